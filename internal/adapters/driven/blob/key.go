// Package blob holds the object layout shared by the blob store adapters.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strings"
	"time"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey returns the content-addressed key YYYY/MM/DD/<sha256[:16]>__<name>.
// The same bytes and name stored on the same UTC day share a key.
func ObjectKey(now time.Time, data []byte, suggestedName string) string {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])[:16]
	return path.Join(now.UTC().Format("2006/01/02"), digest+"__"+SafeName(suggestedName))
}

// SafeName reduces a suggested file name to a portable base name.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	return name
}
