package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/extractors/markdown"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.FormatExtractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct {
	markdown *markdown.Extractor
}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{markdown: markdown.New()}
}

// Formats returns the format keys this extractor handles.
func (e *Extractor) Formats() []string {
	return []string{"html"}
}

// Extract converts an HTML document to plain text.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	return e.ToText(string(raw.Content)), nil
}

// ToText converts an HTML fragment or page to plain text.
func (e *Extractor) ToText(content string) string {
	conv := md.NewConverter("", true, nil)
	conv.Remove("script", "style", "noscript", "head", "svg")

	converted, err := conv.ConvertString(content)
	if err != nil {
		logger.Warn("HTML to markdown conversion failed, using fallback", "error", err)
		return stripHTML(content)
	}
	text, err := e.markdown.ToText([]byte(converted))
	if err != nil {
		logger.Warn("markdown flattening failed, using fallback", "error", err)
		return stripHTML(content)
	}
	return text
}

// Pre-compiled regular expressions for the fallback stripper.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
)

// stripHTML removes tags and returns the non-empty text lines.
func stripHTML(content string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, htmlComments} {
		content = re.ReplaceAllString(content, "")
	}

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	result := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
