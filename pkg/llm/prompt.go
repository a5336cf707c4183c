package llm

import (
	"strconv"
	"strings"
)

// DefaultSystemPrompt instructs the model to answer strictly from the
// provided passages.
const DefaultSystemPrompt = "You are a careful assistant. Answer the question using only the provided context passages. If the context does not contain the answer, say so plainly instead of guessing."

// UserPrompt renders the retrieved passages and question into a single
// user message. Passages are numbered in the order given.
func UserPrompt(question string, passages []string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		b.WriteString("[" + strconv.Itoa(i+1) + "] ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
