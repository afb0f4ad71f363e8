// Package chunk defines the passage unit used for embedding and retrieval.
package chunk

// Chunk is a span [Start, End) of a document's normalized text, measured in characters.
type Chunk struct {
	DocumentID string
	Index      int
	Start      int
	End        int
	Text       string
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int { return c.End - c.Start }

// Hit is a chunk with its similarity score.
type Hit struct {
	Chunk Chunk
	Score float64
}
