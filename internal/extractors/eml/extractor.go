// Package eml extracts text from RFC 5322 email messages, the form in which
// requirement clarifications usually arrive.
package eml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // non-UTF-8 charsets
	"github.com/emersion/go-message/mail"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/extractors/html"
)

// Ensure Extractor implements the interface.
var _ driven.FormatExtractor = (*Extractor)(nil)

// Extractor handles EML documents.
type Extractor struct {
	html *html.Extractor
}

// New creates a new EML extractor.
func New() *Extractor {
	return &Extractor{html: html.New()}
}

// Formats returns the format keys this extractor handles.
func (e *Extractor) Formats() []string {
	return []string{"eml"}
}

// Extract returns the From, To, Date and Subject headers followed by the
// message body. Plain text parts are preferred over HTML parts; attachments
// are skipped.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw.Content))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("%w: parsing email: %v", domain.ErrInvalidInput, err)
	}
	defer mr.Close()

	var content strings.Builder
	for _, key := range []string{"From", "To", "Date", "Subject"} {
		value, _ := mr.Header.Text(key)
		if value = strings.TrimSpace(value); value != "" {
			content.WriteString(key)
			content.WriteString(": ")
			content.WriteString(value)
			content.WriteString("\n")
		}
	}

	body, err := e.body(mr)
	if err != nil {
		return "", err
	}
	content.WriteString("\n")
	content.WriteString(body)

	return strings.TrimSpace(content.String()), nil
}

// body collects the inline text of every part.
func (e *Extractor) body(mr *mail.Reader) (string, error) {
	var textParts, htmlParts []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("%w: reading email part: %v", domain.ErrInvalidInput, err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		if !strings.HasPrefix(contentType, "text/") {
			continue
		}

		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("%w: reading email body: %v", domain.ErrInvalidInput, err)
		}
		if contentType == "text/html" {
			htmlParts = append(htmlParts, e.html.ToText(string(b)))
		} else {
			textParts = append(textParts, strings.TrimSpace(string(b)))
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}
