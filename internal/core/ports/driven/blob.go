package driven

import "context"

// BlobStore is content-addressed storage for raw uploaded documents.
type BlobStore interface {
	// Put stores data and returns its URI. Storing the same bytes under the
	// same name twice returns the same URI.
	Put(ctx context.Context, data []byte, suggestedName string) (string, error)

	// Get returns the bytes stored at uri, or domain.ErrNotFound.
	Get(ctx context.Context, uri string) ([]byte, error)
}
