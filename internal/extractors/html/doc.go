// Package html provides a FormatExtractor for HTML documents.
// HTML is converted to Markdown with html-to-markdown and the Markdown is
// flattened to text, so headings, lists and tables keep their line
// structure. A regex stripper is used when conversion fails.
package html
