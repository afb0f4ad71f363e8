// Package chunking splits normalized text into overlapping passages.
package chunking

import (
	"fmt"
	"iter"
	"slices"
	"unicode"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
)

// Chunker cuts text into windows of at most maxSize characters; consecutive
// windows share exactly overlap characters.
type Chunker struct {
	maxSize int
	overlap int
}

// New validates the parameters. overlap must be in [0, maxSize).
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d: %w", maxSize, domain.ErrChunking)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d: %w", maxSize, overlap, domain.ErrChunking)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the maximum chunk length in characters.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the overlap between consecutive chunks in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns a lazy sequence of chunks for text. The sequence can be ranged over
// any number of times and yields the same chunks each time. Empty text yields nothing.
func (c *Chunker) Split(documentID, text string) iter.Seq[chunk.Chunk] {
	runes := []rune(text)
	return func(yield func(chunk.Chunk) bool) {
		n := len(runes)
		start, idx := 0, 0
		for start < n {
			end := min(start+c.maxSize, n)
			if end < n && midWord(runes, end) {
				if b := c.boundary(runes, start, end); b > 0 {
					end = b
				}
			}

			ch := chunk.Chunk{
				DocumentID: documentID,
				Index:      idx,
				Start:      start,
				End:        end,
				Text:       string(runes[start:end]),
			}
			if !yield(ch) || end == n {
				return
			}

			next := end - c.overlap
			if next <= start {
				next = start + 1
			}
			start = next
			idx++
		}
	}
}

// Chunks collects Split into a slice.
func (c *Chunker) Chunks(documentID, text string) []chunk.Chunk {
	return slices.Collect(c.Split(documentID, text))
}

// boundary finds where to retract a window [start, end) that would cut a word.
// Candidates must leave room for the overlap so the next window still advances.
// Paragraph and sentence breaks are only taken in the second half of the window;
// a word break is taken anywhere. Returns 0 when nothing qualifies.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	lo := start + c.overlap + 1
	half := max(lo, start+c.maxSize/2)

	for p := end - 1; p >= half; p-- {
		if p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n' {
			return p
		}
	}
	for p := end - 1; p >= half; p-- {
		if p >= 2 && unicode.IsSpace(runes[p-1]) && isSentenceEnd(runes[p-2]) {
			return p
		}
	}
	for p := end - 1; p >= lo; p-- {
		if unicode.IsSpace(runes[p-1]) {
			return p
		}
	}
	return 0
}

// midWord reports whether cutting before runes[end] splits two non-space characters.
func midWord(runes []rune, end int) bool {
	return !unicode.IsSpace(runes[end-1]) && !unicode.IsSpace(runes[end])
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
