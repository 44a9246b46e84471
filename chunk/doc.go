// Package chunk splits extracted document text into ordered, addressable
// chunks, the unit of embedding and retrieval.
//
// Three strategies are provided:
//   - Split: fixed-size rune windows with overlap (the default)
//   - SplitSegments: transcript chunks aligned to speech-segment boundaries
//     with millisecond timestamps
//   - SplitAt: partition aligned to code declaration starts
//
// All strategies are lossless: concatenating chunk contents with the
// leading overlaps removed reproduces the original text exactly.
package chunk
