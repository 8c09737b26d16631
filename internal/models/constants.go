package models

const (
	ContextSeparator = "\n\n---\n\n"
	DefaultTopK      = 5
)

var (
	// PromptTemplate is rendered with the context and question input variables
	PromptTemplate = `You are a helpful assistant. Answer the question with detailed explanations, including headings, sub-headings, and clear paragraphs for better readability.

Context:
{{.context}}

---

Answer the following question: {{.question}}`
)
