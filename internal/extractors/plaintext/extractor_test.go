package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	extractor := New()
	require.NotNil(t, extractor)
	assert.IsType(t, &Extractor{}, extractor)
}

func TestFormats(t *testing.T) {
	assert.ElementsMatch(t, []string{"txt", "rtf"}, New().Formats())
}

func TestExtract_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:     "/path/to/document.txt",
		Format:  "txt",
		Content: []byte("  Settlement must complete within 30 seconds.\n"),
	}

	text, err := New().Extract(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "  Settlement must complete within 30 seconds.\n", text)
}

func TestExtract_NilDocument(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_EmptyContent(t *testing.T) {
	text, err := New().Extract(context.Background(), &domain.RawDocument{Format: "txt"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_StripsBOM(t *testing.T) {
	text, err := New().Extract(context.Background(), &domain.RawDocument{
		Format:  "txt",
		Content: []byte("\ufeffhello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestStripRTF(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple paragraph",
			input:    `{\rtf1\ansi\deff0 {\fonttbl {\f0 Times New Roman;}}\f0\fs24 Refunds are instant.\par}`,
			expected: "Refunds are instant.",
		},
		{
			name:     "two paragraphs",
			input:    `{\rtf1\ansi First rule.\par Second rule.\par}`,
			expected: "First rule.\nSecond rule.",
		},
		{
			name:     "escaped braces",
			input:    `{\rtf1 Use \{curly\} braces}`,
			expected: "Use {curly} braces",
		},
		{
			name:     "hex escape",
			input:    `{\rtf1 caf\'e9}`,
			expected: "café",
		},
		{
			name:     "ignorable destination",
			input:    `{\rtf1 {\*\generator Riched20;}Visible}`,
			expected: "Visible",
		},
		{
			name:     "info group",
			input:    `{\rtf1{\info{\title Hidden}}Shown}`,
			expected: "Shown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripRTF(tt.input))
		})
	}
}

func TestExtract_RTFByFormatOrSignature(t *testing.T) {
	rtf := []byte(`{\rtf1\ansi Settlement window\par}`)
	for _, format := range []string{"rtf", "txt"} {
		text, err := New().Extract(context.Background(), &domain.RawDocument{Format: format, Content: rtf})
		require.NoError(t, err)
		assert.Equal(t, "Settlement window", text, format)
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.FormatExtractor = (*Extractor)(nil)
}
