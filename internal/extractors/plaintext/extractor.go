// Package plaintext extracts text from plain text and RTF documents.
package plaintext

import (
	"context"
	"strings"
	"unicode"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.FormatExtractor = (*Extractor)(nil)

// Extractor handles plain text and RTF documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the format keys this extractor handles.
func (e *Extractor) Formats() []string {
	return []string{"txt", "rtf"}
}

// Extract returns the document text. Plain text passes through unchanged
// apart from a leading byte order mark; RTF has its control words removed.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	content := strings.TrimPrefix(string(raw.Content), "\ufeff")
	if raw.Format == "rtf" || strings.HasPrefix(content, `{\rtf`) {
		return StripRTF(content), nil
	}
	return content, nil
}

// rtfDestinations are groups whose content is not document text.
var rtfDestinations = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"generator":  true,
	"listtable":  true,
	"themedata":  true,
	"xmlnstbl":   true,
}

// StripRTF removes RTF control words, groups and destinations, keeping text.
func StripRTF(src string) string {
	var out strings.Builder
	// skipDepth is the group depth at which an ignored destination started.
	depth, skipDepth := 0, -1
	ignorable := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '{':
			depth++
			continue
		case '}':
			if depth == skipDepth {
				skipDepth = -1
			}
			depth--
			continue
		case '\r', '\n':
			continue
		case '\\':
		default:
			if skipDepth < 0 {
				out.WriteByte(c)
			}
			continue
		}

		// control sequence
		if i+1 >= len(src) {
			break
		}
		next := src[i+1]
		switch {
		case next == '*':
			ignorable = true
			i++
			continue
		case next == '\\' || next == '{' || next == '}':
			if skipDepth < 0 {
				out.WriteByte(next)
			}
			i++
			continue
		case next == '\'':
			if i+3 < len(src) && skipDepth < 0 {
				out.WriteRune(decodeHexByte(src[i+2 : i+4]))
			}
			i += 3
			continue
		case next == '~':
			if skipDepth < 0 {
				out.WriteByte(' ')
			}
			i++
			continue
		case !isASCIILetter(next):
			i++
			continue
		}

		j := i + 1
		for j < len(src) && isASCIILetter(src[j]) {
			j++
		}
		word := src[i+1 : j]
		k := j
		if k < len(src) && src[k] == '-' {
			k++
		}
		for k < len(src) && unicode.IsDigit(rune(src[k])) {
			k++
		}
		if k < len(src) && src[k] == ' ' {
			k++
		}
		i = k - 1

		if ignorable || rtfDestinations[word] {
			if skipDepth < 0 {
				skipDepth = depth
			}
			ignorable = false
			continue
		}
		if skipDepth >= 0 {
			continue
		}
		switch word {
		case "par", "line", "sect", "page":
			out.WriteByte('\n')
		case "tab", "cell":
			out.WriteByte('\t')
		case "row":
			out.WriteByte('\n')
		}
	}
	return strings.TrimSpace(out.String())
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// decodeHexByte maps a \'hh escape onto its Windows-1252 (Latin-1 subset) rune.
func decodeHexByte(h string) rune {
	var v rune
	for _, c := range h {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= c - '0'
		case c >= 'a' && c <= 'f':
			v |= c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v |= c - 'A' + 10
		default:
			return unicode.ReplacementChar
		}
	}
	return v
}
