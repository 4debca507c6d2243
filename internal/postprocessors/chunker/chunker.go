// Package chunker provides a token-bounded, overlapping text chunker.
//
// Tokens are whitespace-delimited words. NUL bytes count as separators, so a
// chunk boundary always sits at the start of a word and never next to or
// inside a NUL run. Chunks are deterministic for a given input and
// parameters, and the core spans of all chunks rebuild the input exactly.
package chunker

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping tokens.
const DefaultChunkOverlap = 200

// Chunker splits extracted text into overlapping token-bounded chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a new chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// ChunkSize returns the configured tokens per chunk.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text with the configured parameters.
func (c *Chunker) Split(text string) ([]domain.Chunk, error) {
	return Chunk(text, c.chunkSize, c.overlap)
}

// Chunk splits text into chunks of at most maxTokens tokens, each chunk after
// the first repeating the last overlap tokens of its predecessor.
//
// Empty input yields no chunks. Input holding at most maxTokens tokens yields
// one chunk with no overlap. Invalid parameters fail with a FatalError.
func Chunk(text string, maxTokens, overlap int) ([]domain.Chunk, error) {
	if maxTokens <= 0 || overlap < 0 || overlap >= maxTokens {
		return nil, domain.Fatal("chunker.chunk", fmt.Errorf(
			"%w: max_tokens=%d overlap=%d", domain.ErrInvalidInput, maxTokens, overlap))
	}
	if text == "" {
		return nil, nil
	}

	starts := tokenStarts(text)
	n := len(starts)
	if n <= maxTokens {
		return []domain.Chunk{{
			Sequence:   0,
			Text:       text,
			Start:      0,
			End:        len(text),
			CoreStart:  0,
			TokenCount: n,
		}}, nil
	}

	stride := maxTokens - overlap
	chunks := make([]domain.Chunk, 0, (n-overlap+stride-1)/stride)

	for first := 0; ; first += stride {
		last := first + maxTokens // exclusive token index
		if last > n {
			last = n
		}

		start, coreStart, overlapTokens := 0, 0, 0
		if first > 0 {
			start = starts[first]
			coreStart = starts[first+overlap]
			overlapTokens = overlap
		}
		end := len(text)
		if last < n {
			end = starts[last]
		}

		chunks = append(chunks, domain.Chunk{
			Sequence:      len(chunks),
			Text:          text[start:end],
			Start:         start,
			End:           end,
			CoreStart:     coreStart,
			TokenCount:    last - first,
			OverlapTokens: overlapTokens,
		})

		if last == n {
			break
		}
	}

	return chunks, nil
}

// EstimateTokens returns the deterministic token estimate used by Chunk.
func EstimateTokens(text string) int {
	return len(tokenStarts(text))
}

// tokenStarts returns the byte offset of every token in text.
func tokenStarts(text string) []int {
	var starts []int
	inToken := false
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		sep := r == 0 || unicode.IsSpace(r)
		if !sep && !inToken {
			starts = append(starts, i)
		}
		inToken = !sep
		i += size
	}
	return starts
}
