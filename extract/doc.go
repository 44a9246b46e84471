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


// Package extract turns classified files into plain text.
//
// A Registry maps each processing method to one Processor implementation:
//
//   - document-parser: PDF (pdfcpu) and the OOXML family (zip + XML parts)
//   - lightweight: markdown, HTML, JSON, YAML, XML, CSV
//   - code: tree-sitter parse with declaration-aligned split points
//   - archive: bounded expansion and summary, never re-ingestion
//   - ocr: tesseract subprocess
//   - transcription: ffmpeg audio extraction plus a speech-to-text service
//   - text: the generic fallback every unknown method resolves to
//
// Processors are stateless and safe for concurrent use. A failure
// extracting one file is that file's failure alone; the registry itself
// never errors on dispatch.
package extract
