// Command rag-chatbot answers questions about an uploaded document, either
// through a local web page or from the command line.
package main

import (
	"github.com/rs/zerolog/log"

	"rag-chatbot/cmd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}
