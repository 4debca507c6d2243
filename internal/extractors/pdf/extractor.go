// Package pdf extracts text from PDF documents.
//
// pdfcpu decodes each page's content stream; the text showing operators
// (Tj, TJ, ' and ") are then interpreted to recover the text in drawing
// order. Scanned PDFs without a text layer yield empty text.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.FormatExtractor = (*Extractor)(nil)

// Extractor handles PDF documents.
type Extractor struct {
	tempDir string
}

// New creates a new PDF extractor that stages page content under the
// system temp directory.
func New() *Extractor {
	return &Extractor{tempDir: os.TempDir()}
}

// Formats returns the format keys this extractor handles.
func (e *Extractor) Formats() []string {
	return []string{"pdf"}
}

// Extract returns the text of every page, pages separated by a blank line.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	pages, err := e.pageContents(raw.Content)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for i, content := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text := ContentText(content)
		if text == "" {
			continue
		}
		if i > 0 && out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}

	logger.Debug("extracted pdf", "uri", raw.URI, "pages", len(pages), "bytes", out.Len())
	return out.String(), nil
}

var pageFile = regexp.MustCompile(`_page_(\d+)\.txt$`)

// pageContents returns the decoded content stream of each page in order.
func (e *Extractor) pageContents(data []byte) ([][]byte, error) {
	dir, err := os.MkdirTemp(e.tempDir, "traceq-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("creating pdf staging directory: %w", err)
	}
	defer os.RemoveAll(dir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ExtractContent(bytes.NewReader(data), dir, "document", nil, conf); err != nil {
		return nil, fmt.Errorf("%w: reading pdf: %v", domain.ErrInvalidInput, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading pdf staging directory: %w", err)
	}

	type page struct {
		number  int
		content []byte
	}
	pages := make([]page, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		content, err := os.ReadFile(dir + string(os.PathSeparator) + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading page %d content: %w", n, err)
		}
		pages = append(pages, page{number: n, content: content})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })

	out := make([][]byte, len(pages))
	for i := range pages {
		out[i] = pages[i].content
	}
	return out, nil
}
