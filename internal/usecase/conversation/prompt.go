package conversation

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docchat/internal/domain/chunk"
)

const answerInstructions = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer. " +
	"Use the earlier conversation to resolve references such as pronouns in the question."

// renderInstructions builds the system text: fixed guidance followed by numbered passages.
func renderInstructions(hits []chunk.Hit) string {
	var b strings.Builder
	b.WriteString(answerInstructions)
	b.WriteString("\n\nContext:\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "\n[%d] (%s, part %d)\n%s\n", i+1, h.Chunk.DocumentID, h.Chunk.Index+1, h.Chunk.Text)
	}
	return b.String()
}
