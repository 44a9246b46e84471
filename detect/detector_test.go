package detect

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/weavit/core"
)

func TestDetect_ExtensionTable(t *testing.T) {
	d := NewDetector()

	// Every canonical extension must map to exactly its (format, method) pair.
	for ext, want := range extensionTable {
		t.Run(ext, func(t *testing.T) {
			got := d.Detect("sample"+ext, nil)
			assert.Equal(t, want.format, got.Format)
			assert.Equal(t, want.method, got.Method)
			assert.Equal(t, "extension", got.DetectedBy)
		})
	}
}

func TestDetect_ExtensionIsCaseInsensitive(t *testing.T) {
	d := NewDetector()

	got := d.Detect("REPORT.PDF", nil)
	assert.Equal(t, core.FormatPDF, got.Format)
	assert.Equal(t, core.MethodDocumentParser, got.Method)
}

func TestDetect_JSONContentHeuristic(t *testing.T) {
	d := NewDetector()

	// Unknown extension, content starting with "{" must classify as JSON.
	got := d.Detect("data.xyz", []byte(`{"key": "value", "items": [1, 2`))
	assert.Equal(t, core.FormatJSON, got.Format)
	assert.Equal(t, core.MethodLightweight, got.Method)
}

func TestDetect_ContentHeuristics(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name    string
		content string
		format  core.Format
	}{
		{"json object", `{"a":1}`, core.FormatJSON},
		{"json array", `[1,2,3]`, core.FormatJSON},
		{"xml declaration", `<?xml version="1.0"?><root/>`, core.FormatXML},
		{"html doctype", `<!DOCTYPE html><html></html>`, core.FormatHTML},
		{"html tag", `<html><body>hi</body></html>`, core.FormatHTML},
		{"yaml document marker", "---\nkey: value\n", core.FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect("noext", []byte(tt.content))
			assert.Equal(t, tt.format, got.Format)
		})
	}
}

func TestDetect_MagicBytes(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		data   []byte
		format core.Format
		method core.Method
	}{
		{"pdf header", []byte("%PDF-1.7\n%binary"), core.FormatPDF, core.MethodDocumentParser},
		{"png header", []byte("\x89PNG\r\n\x1a\n0000"), core.FormatImage, core.MethodOCR},
		{"jpeg header", []byte("\xFF\xD8\xFF\xE0rest"), core.FormatImage, core.MethodOCR},
		{"gzip header", []byte("\x1F\x8B\x08rest"), core.FormatArchive, core.MethodArchive},
		{"mp3 id3 header", []byte("ID3\x04rest"), core.FormatAudio, core.MethodTranscription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect("blob.bin", tt.data)
			assert.Equal(t, tt.format, got.Format, "detected by %s", got.DetectedBy)
			assert.Equal(t, tt.method, got.Method)
		})
	}
}

func TestDetect_ZipIntrospection(t *testing.T) {
	d := NewDetector()

	buildZip := func(t *testing.T, members ...string) []byte {
		t.Helper()
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		for _, name := range members {
			f, err := w.Create(name)
			require.NoError(t, err)
			_, err = f.Write([]byte("x"))
			require.NoError(t, err)
		}
		require.NoError(t, w.Close())
		return buf.Bytes()
	}

	tests := []struct {
		name    string
		members []string
		format  core.Format
		method  core.Method
	}{
		{"word package", []string{"[Content_Types].xml", "word/document.xml"}, core.FormatDocx, core.MethodDocumentParser},
		{"sheet package", []string{"[Content_Types].xml", "xl/workbook.xml"}, core.FormatXlsx, core.MethodDocumentParser},
		{"slides package", []string{"[Content_Types].xml", "ppt/slides/slide1.xml"}, core.FormatPptx, core.MethodDocumentParser},
		{"plain archive", []string{"readme.txt", "photos/cat.raw"}, core.FormatArchive, core.MethodArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No useful extension: content alone must disambiguate.
			got := d.Detect("upload.bin", buildZip(t, tt.members...))
			assert.Equal(t, tt.format, got.Format, "detected by %s", got.DetectedBy)
			assert.Equal(t, tt.method, got.Method)
		})
	}
}

func TestDetect_UnknownFallsBackToText(t *testing.T) {
	d := NewDetector()

	got := d.Detect("mystery.q7z", []byte("just some prose with no structure at all"))
	assert.Equal(t, core.FormatUnknown, got.Format)
	assert.Equal(t, core.MethodText, got.Method)
	assert.Equal(t, "fallback", got.DetectedBy)
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDetector()
	data := []byte(`{"stable": true}`)

	first := d.Detect("payload.dat", data)
	for i := 0; i < 10; i++ {
		again := d.Detect("payload.dat", data)
		assert.Equal(t, first, again)
	}
}
