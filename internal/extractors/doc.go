// Package extractors turns stored requirement documents into plain text.
//
// Each subpackage implements driven.FormatExtractor for one family of
// formats. The Registry resolves a format from a hint or the URI extension,
// loads the bytes from the blob store and dispatches to the matching
// extractor. Unknown formats fail with domain.ErrUnsupportedFormat.
package extractors
