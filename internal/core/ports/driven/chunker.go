package driven

import "github.com/custodia-labs/traceq/internal/core/domain"

// TextChunker splits extracted text into overlapping token-bounded chunks.
// Only Sequence, Text and the span fields of the returned chunks are set.
type TextChunker interface {
	Split(text string) ([]domain.Chunk, error)
}
