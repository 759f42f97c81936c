// Package chunker implements the recursive character splitter described in
// C6: paragraph break, then newline, then space, then bare character,
// bounded to chunk_size with chunk_overlap trailing/leading characters
// shared between adjacent chunks.
package chunker

import "strings"

// Chunk is one produced chunk, in source order.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits normalized text into bounded, overlapping chunks.
type Chunker interface {
	Chunk(text string, chunkSize, chunkOverlap int) []Chunk
}

// RecursiveChunker implements the paragraph->newline->space->char policy.
type RecursiveChunker struct{}

var separators = []string{"\n\n", "\n", " "}

// Chunk splits text deterministically: identical input and parameters always
// produce the same chunk count, text, and order. A whitespace-only or empty
// input yields nil.
func (RecursiveChunker) Chunk(text string, chunkSize, chunkOverlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	pieces := splitRecursive(text, chunkSize)
	merged := applyOverlap(pieces, chunkSize, chunkOverlap)

	out := make([]Chunk, 0, len(merged))
	idx := 0
	for _, m := range merged {
		if strings.TrimSpace(m) == "" {
			continue
		}
		out = append(out, Chunk{Index: idx, Text: m})
		idx++
	}
	return out
}

// splitRecursive breaks text into pieces no longer than size, trying each
// separator in turn, repacking adjacent pieces that still fit together, and
// falling back to a hard character cut when no separator helps.
func splitRecursive(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	for _, sep := range separators {
		parts := strings.Split(text, sep)
		if len(parts) <= 1 {
			continue
		}
		var pieces []string
		for _, p := range parts {
			pieces = append(pieces, splitRecursive(p, size)...)
		}
		return repack(pieces, sep, size)
	}
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}

// repack greedily reassembles consecutive pieces with sep between them as
// long as the result stays within size, undoing over-fragmentation from the
// separator split.
func repack(pieces []string, sep string, size int) []string {
	var out []string
	var cur string
	flush := func() {
		if cur != "" {
			out = append(out, cur)
			cur = ""
		}
	}
	for _, p := range pieces {
		if cur == "" {
			cur = p
			continue
		}
		candidate := cur + sep + p
		if len(candidate) <= size {
			cur = candidate
			continue
		}
		flush()
		cur = p
	}
	flush()
	return out
}

// applyOverlap prepends the trailing chunkOverlap characters of each piece
// onto the next one, so adjacent chunks share exactly that many characters
// whenever the source is longer than a single chunk.
func applyOverlap(pieces []string, size, overlap int) []string {
	if len(pieces) <= 1 || overlap == 0 {
		return pieces
	}
	out := make([]string, len(pieces))
	copy(out, pieces)
	for i := 1; i < len(out); i++ {
		prev := out[i-1]
		tail := prev
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		combined := tail + out[i]
		if len(combined) > size {
			combined = combined[:size]
		}
		out[i] = combined
	}
	return out
}
