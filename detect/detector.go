// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package detect

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/poiesic/weavit/core"
)

// Result describes how a file should be processed.
type Result struct {
	Format core.Format
	Method core.Method
	// MIME is the sniffed MIME type, set when content was inspected.
	MIME string
	// DetectedBy records which cascade tier produced the result:
	// extension, mime, magic, content, zip, or fallback.
	DetectedBy string
}

// Detector classifies a file into a (format, processing method) pair.
//
// The cascade runs from most to least confident: extension table, MIME
// sniffing, magic-byte signatures, content heuristics, and ZIP-internal
// introspection to split Office documents from plain archives. Detection
// is pure and deterministic, touches only the bytes it is handed, and
// never errors: unrecognized input maps to the generic text method.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

type formatMethod struct {
	format core.Format
	method core.Method
}

// extensionTable is the canonical extension mapping, the first and most
// confident cascade tier.
var extensionTable = map[string]formatMethod{
	".pdf":      {core.FormatPDF, core.MethodDocumentParser},
	".docx":     {core.FormatDocx, core.MethodDocumentParser},
	".xlsx":     {core.FormatXlsx, core.MethodDocumentParser},
	".pptx":     {core.FormatPptx, core.MethodDocumentParser},
	".md":       {core.FormatMarkdown, core.MethodLightweight},
	".markdown": {core.FormatMarkdown, core.MethodLightweight},
	".html":     {core.FormatHTML, core.MethodLightweight},
	".htm":      {core.FormatHTML, core.MethodLightweight},
	".json":     {core.FormatJSON, core.MethodLightweight},
	".yaml":     {core.FormatYAML, core.MethodLightweight},
	".yml":      {core.FormatYAML, core.MethodLightweight},
	".xml":      {core.FormatXML, core.MethodLightweight},
	".csv":      {core.FormatCSV, core.MethodLightweight},
	".tsv":      {core.FormatCSV, core.MethodLightweight},
	".txt":      {core.FormatText, core.MethodText},
	".text":     {core.FormatText, core.MethodText},
	".log":      {core.FormatText, core.MethodText},
	".go":       {core.FormatGo, core.MethodCode},
	".py":       {core.FormatPython, core.MethodCode},
	".js":       {core.FormatJavaScript, core.MethodCode},
	".ts":       {core.FormatTypeScript, core.MethodCode},
	".java":     {core.FormatJava, core.MethodCode},
	".c":        {core.FormatC, core.MethodCode},
	".cpp":      {core.FormatCPP, core.MethodCode},
	".rs":       {core.FormatRust, core.MethodCode},
	".rb":       {core.FormatRuby, core.MethodCode},
	".png":      {core.FormatImage, core.MethodOCR},
	".jpg":      {core.FormatImage, core.MethodOCR},
	".jpeg":     {core.FormatImage, core.MethodOCR},
	".tif":      {core.FormatImage, core.MethodOCR},
	".tiff":     {core.FormatImage, core.MethodOCR},
	".bmp":      {core.FormatImage, core.MethodOCR},
	".gif":      {core.FormatImage, core.MethodOCR},
	".mp3":      {core.FormatAudio, core.MethodTranscription},
	".wav":      {core.FormatAudio, core.MethodTranscription},
	".m4a":      {core.FormatAudio, core.MethodTranscription},
	".flac":     {core.FormatAudio, core.MethodTranscription},
	".ogg":      {core.FormatAudio, core.MethodTranscription},
	".mp4":      {core.FormatVideo, core.MethodTranscription},
	".mkv":      {core.FormatVideo, core.MethodTranscription},
	".mov":      {core.FormatVideo, core.MethodTranscription},
	".avi":      {core.FormatVideo, core.MethodTranscription},
	".webm":     {core.FormatVideo, core.MethodTranscription},
	".zip":      {core.FormatArchive, core.MethodArchive},
	".tar":      {core.FormatArchive, core.MethodArchive},
	".gz":       {core.FormatArchive, core.MethodArchive},
	".tgz":      {core.FormatArchive, core.MethodArchive},
	".zst":      {core.FormatArchive, core.MethodArchive},
}

// mimeTable maps sniffed MIME types to formats, the second cascade tier.
// text/plain is deliberately absent so that extensionless text falls
// through to the content heuristics.
var mimeTable = map[string]formatMethod{
	"application/pdf": {core.FormatPDF, core.MethodDocumentParser},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {core.FormatDocx, core.MethodDocumentParser},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {core.FormatXlsx, core.MethodDocumentParser},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {core.FormatPptx, core.MethodDocumentParser},
	"text/html":        {core.FormatHTML, core.MethodLightweight},
	"application/json": {core.FormatJSON, core.MethodLightweight},
	"text/csv":         {core.FormatCSV, core.MethodLightweight},
	"text/xml":         {core.FormatXML, core.MethodLightweight},
	"application/xml":  {core.FormatXML, core.MethodLightweight},
	"image/png":        {core.FormatImage, core.MethodOCR},
	"image/jpeg":       {core.FormatImage, core.MethodOCR},
	"image/tiff":       {core.FormatImage, core.MethodOCR},
	"image/bmp":        {core.FormatImage, core.MethodOCR},
	"image/gif":        {core.FormatImage, core.MethodOCR},
	"audio/mpeg":       {core.FormatAudio, core.MethodTranscription},
	"audio/wav":        {core.FormatAudio, core.MethodTranscription},
	"audio/flac":       {core.FormatAudio, core.MethodTranscription},
	"audio/ogg":        {core.FormatAudio, core.MethodTranscription},
	"audio/x-m4a":      {core.FormatAudio, core.MethodTranscription},
	"video/mp4":        {core.FormatVideo, core.MethodTranscription},
	"video/webm":       {core.FormatVideo, core.MethodTranscription},
	"video/quicktime":  {core.FormatVideo, core.MethodTranscription},
	"video/x-matroska": {core.FormatVideo, core.MethodTranscription},
	"video/x-msvideo":  {core.FormatVideo, core.MethodTranscription},
	"application/x-tar": {core.FormatArchive, core.MethodArchive},
	"application/gzip":  {core.FormatArchive, core.MethodArchive},
	"application/zstd":  {core.FormatArchive, core.MethodArchive},
}

// Detect classifies filename and content. It never fails; the final
// fallback is the generic text method.
func (d *Detector) Detect(filename string, data []byte) *Result {
	// Tier 1: extension table.
	ext := strings.ToLower(filepath.Ext(filename))
	if fm, ok := extensionTable[ext]; ok {
		return &Result{Format: fm.format, Method: fm.method, DetectedBy: "extension"}
	}

	// Tier 2: MIME sniffing.
	mtype := mimetype.Detect(data)
	mime := baseMIME(mtype.String())
	if mime == "application/zip" {
		// Tier 5 applies whenever the content is a ZIP container:
		// Office packages are ZIP files with well-known member paths.
		fm := introspectZip(data)
		return &Result{Format: fm.format, Method: fm.method, MIME: mime, DetectedBy: "zip"}
	}
	if fm, ok := mimeTable[mime]; ok {
		return &Result{Format: fm.format, Method: fm.method, MIME: mime, DetectedBy: "mime"}
	}

	// Tier 3: magic-byte signatures, for containers the sniffer does not
	// name or names too generically.
	if fm, ok := matchMagic(data); ok {
		return &Result{Format: fm.format, Method: fm.method, MIME: mime, DetectedBy: "magic"}
	}

	// Tier 4: content heuristics for bare structured text.
	if fm, ok := matchHeuristics(data); ok {
		return &Result{Format: fm.format, Method: fm.method, MIME: mime, DetectedBy: "content"}
	}

	return &Result{Format: core.FormatUnknown, Method: core.MethodText, MIME: mime, DetectedBy: "fallback"}
}

// baseMIME strips parameters such as "; charset=utf-8".
func baseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

func matchMagic(data []byte) (formatMethod, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return formatMethod{core.FormatPDF, core.MethodDocumentParser}, true
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return introspectZip(data), true
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")),
		bytes.HasPrefix(data, []byte("\xFF\xD8\xFF")),
		bytes.HasPrefix(data, []byte("GIF87a")),
		bytes.HasPrefix(data, []byte("GIF89a")):
		return formatMethod{core.FormatImage, core.MethodOCR}, true
	case bytes.HasPrefix(data, []byte("\x1F\x8B")),
		bytes.HasPrefix(data, []byte("\x28\xB5\x2F\xFD")),
		len(data) > 262 && bytes.Equal(data[257:262], []byte("ustar")):
		return formatMethod{core.FormatArchive, core.MethodArchive}, true
	case bytes.HasPrefix(data, []byte("ID3")),
		bytes.HasPrefix(data, []byte("fLaC")),
		bytes.HasPrefix(data, []byte("OggS")):
		return formatMethod{core.FormatAudio, core.MethodTranscription}, true
	case bytes.HasPrefix(data, []byte("\x1A\x45\xDF\xA3")):
		return formatMethod{core.FormatVideo, core.MethodTranscription}, true
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12:
		if bytes.Equal(data[8:12], []byte("WAVE")) {
			return formatMethod{core.FormatAudio, core.MethodTranscription}, true
		}
		if bytes.Equal(data[8:12], []byte("AVI ")) {
			return formatMethod{core.FormatVideo, core.MethodTranscription}, true
		}
		return formatMethod{}, false
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		if bytes.Equal(data[8:11], []byte("M4A")) {
			return formatMethod{core.FormatAudio, core.MethodTranscription}, true
		}
		return formatMethod{core.FormatVideo, core.MethodTranscription}, true
	}
	return formatMethod{}, false
}

func matchHeuristics(data []byte) (formatMethod, bool) {
	trimmed := strings.TrimSpace(string(data))
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return formatMethod{core.FormatJSON, core.MethodLightweight}, true
	case strings.HasPrefix(trimmed, "<?xml"):
		return formatMethod{core.FormatXML, core.MethodLightweight}, true
	case strings.HasPrefix(lower, "<!doctype html"), strings.HasPrefix(lower, "<html"):
		return formatMethod{core.FormatHTML, core.MethodLightweight}, true
	case strings.HasPrefix(trimmed, "---"):
		return formatMethod{core.FormatYAML, core.MethodLightweight}, true
	}
	return formatMethod{}, false
}

// introspectZip looks inside a ZIP container for the member paths that
// identify Office packages. Anything else is a plain archive.
func introspectZip(data []byte) formatMethod {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return formatMethod{core.FormatArchive, core.MethodArchive}
	}

	for _, f := range r.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return formatMethod{core.FormatDocx, core.MethodDocumentParser}
		case strings.HasPrefix(f.Name, "xl/"):
			return formatMethod{core.FormatXlsx, core.MethodDocumentParser}
		case strings.HasPrefix(f.Name, "ppt/"):
			return formatMethod{core.FormatPptx, core.MethodDocumentParser}
		}
	}
	return formatMethod{core.FormatArchive, core.MethodArchive}
}
