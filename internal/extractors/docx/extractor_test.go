package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(documentXML string) []byte {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, _ := w.Create("[Content_Types].xml")
	contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	if documentXML != "" {
		doc, _ := w.Create("word/document.xml")
		doc.Write([]byte(documentXML))
	}

	w.Close()
	return buf.Bytes()
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body + `</w:body>
</w:document>`
}

func extract(t *testing.T, content []byte) (string, error) {
	t.Helper()
	return New().Extract(context.Background(), &domain.RawDocument{
		URI:     "/docs/fsd.docx",
		Format:  "docx",
		Content: content,
	})
}

func TestNew(t *testing.T) {
	extractor := New()
	require.NotNil(t, extractor)
	assert.IsType(t, &Extractor{}, extractor)
}

func TestFormats(t *testing.T) {
	assert.Equal(t, []string{"docx"}, New().Formats())
}

func TestExtract_NilDocument(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_InvalidZip(t *testing.T) {
	_, err := extract(t, []byte("not a zip file"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_MultipleParagraphs(t *testing.T) {
	text, err := extract(t, createTestDOCX(wrapBody(
		`<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>`)))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\nSecond paragraph", text)
}

func TestExtract_MultipleRuns(t *testing.T) {
	text, err := extract(t, createTestDOCX(wrapBody(
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>`)))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)
}

func TestExtract_Table(t *testing.T) {
	text, err := extract(t, createTestDOCX(wrapBody(
		`<w:tbl>`+
			`<w:tr><w:tc><w:p><w:r><w:t>Field</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Limit</w:t></w:r></w:p></w:tc></w:tr>`+
			`</w:tbl>`)))
	require.NoError(t, err)
	assert.Contains(t, text, "Field")
	assert.Contains(t, text, "Limit")
}

func TestExtract_TabsAndBreaks(t *testing.T) {
	text, err := extract(t, createTestDOCX(wrapBody(
		`<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t><w:br/><w:t>C</w:t></w:r></w:p>`)))
	require.NoError(t, err)
	assert.Equal(t, "A\tB\nC", text)
}

func TestExtract_EmptyDocument(t *testing.T) {
	text, err := extract(t, createTestDOCX(wrapBody("")))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_MissingDocumentXML(t *testing.T) {
	text, err := extract(t, createTestDOCX(""))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.FormatExtractor = (*Extractor)(nil)
}
