package domain

import (
	"path/filepath"
	"strings"
)

// RawDocument is the blob content handed to a format extractor.
type RawDocument struct {
	// URI is the blob store location.
	URI string

	// Format is the normalised format key (txt, md, html, eml, docx, pdf).
	Format string

	// Content is the raw bytes.
	Content []byte
}

// formatAliases maps file extensions and hints onto format keys.
var formatAliases = map[string]string{
	"txt":      "txt",
	"text":     "txt",
	"log":      "txt",
	"csv":      "txt",
	"rtf":      "rtf",
	"md":       "md",
	"markdown": "md",
	"html":     "html",
	"htm":      "html",
	"eml":      "eml",
	"email":    "eml",
	"msg":      "eml",
	"docx":     "docx",
	"pdf":      "pdf",
}

// NormaliseFormat resolves a format hint or, when the hint is empty, the
// extension of uri. Unknown formats return "".
func NormaliseFormat(hint, uri string) string {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), "."))
	if key == "" {
		key = strings.ToLower(strings.TrimPrefix(filepath.Ext(uri), "."))
	}
	return formatAliases[key]
}
