// Package markdown extracts readable text from Markdown documents by
// walking the goldmark syntax tree.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.FormatExtractor = (*Extractor)(nil)

// Extractor handles Markdown documents.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// Formats returns the format keys this extractor handles.
func (e *Extractor) Formats() []string {
	return []string{"md"}
}

// Extract converts Markdown to plain text. Headings, list items, table rows
// and code block lines each end up on their own line; emphasis, link
// targets and raw HTML are dropped.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	return e.ToText(raw.Content)
}

// ToText converts Markdown source to plain text.
func (e *Extractor) ToText(source []byte) (string, error) {
	doc := e.md.Parser().Parse(text.NewReader(source))

	w := &textWriter{source: source}
	if err := ast.Walk(doc, w.walk); err != nil {
		return "", err
	}
	return w.String(), nil
}

type textWriter struct {
	source []byte
	buf    strings.Builder
}

func (w *textWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Text:
		if entering {
			w.buf.Write(node.Segment.Value(w.source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.buf.WriteByte('\n')
			}
		}
	case *ast.String:
		if entering {
			w.buf.Write(node.Value)
		}
	case *ast.AutoLink:
		if entering {
			w.buf.Write(node.Label(w.source))
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				w.buf.Write(seg.Value(w.source))
			}
			w.endBlock()
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
		return ast.WalkSkipChildren, nil
	case *ast.ThematicBreak:
		if entering {
			w.endBlock()
		}
	case *extast.TableCell:
		if !entering && node.NextSibling() != nil {
			w.buf.WriteString(" | ")
		}
	case *extast.TableHeader, *extast.TableRow:
		if !entering {
			w.endBlock()
		}
	case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
		if !entering {
			w.endBlock()
		}
	}
	return ast.WalkContinue, nil
}

func (w *textWriter) endBlock() {
	s := w.buf.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		w.buf.WriteByte('\n')
	}
}

var multiNewlines = regexp.MustCompile(`\n{3,}`)

func (w *textWriter) String() string {
	return strings.TrimSpace(multiNewlines.ReplaceAllString(w.buf.String(), "\n\n"))
}
