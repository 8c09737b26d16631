package models

import "testing"

func TestPromptResponseString(t *testing.T) {
	r := PromptResponse{
		Content: "The sky is blue.",
		Sources: []string{"sky.pdf", "sky.pdf"},
	}
	want := "Response:\nThe sky is blue.\n\nSources: sky.pdf, sky.pdf"
	if got := r.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestPromptResponseStringNoSources(t *testing.T) {
	r := PromptResponse{Content: "nothing"}
	want := "Response:\nnothing\n\nSources: "
	if got := r.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
