package extractors

import (
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/extractors/docx"
	"github.com/custodia-labs/traceq/internal/extractors/eml"
	"github.com/custodia-labs/traceq/internal/extractors/html"
	"github.com/custodia-labs/traceq/internal/extractors/markdown"
	"github.com/custodia-labs/traceq/internal/extractors/pdf"
	"github.com/custodia-labs/traceq/internal/extractors/plaintext"
)

// Default returns a registry with every built-in extractor registered.
func Default(blobs driven.BlobStore) *Registry {
	return NewRegistry(blobs,
		plaintext.New(),
		markdown.New(),
		html.New(),
		eml.New(),
		docx.New(),
		pdf.New(),
	)
}
