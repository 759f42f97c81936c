package chunker

import (
	"strings"
	"testing"
)

func genText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("word")
	}
	return b.String()
}

func TestRecursiveChunker_RespectsChunkSize(t *testing.T) {
	text := genText(2000)
	ch := RecursiveChunker{}
	chunks := ch.Chunk(text, 200, 20)
	if len(chunks) == 0 {
		t.Fatalf("expected some chunks")
	}
	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		if len(c.Text) > 200 {
			t.Fatalf("chunk %d length %d exceeds chunk size", i, len(c.Text))
		}
	}
}

func TestRecursiveChunker_OverlapSharesTrailingText(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50) + "\n\n" + strings.Repeat("c", 50)
	ch := RecursiveChunker{}
	chunks := ch.Chunk(text, 60, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Text[len(chunks[i-1].Text)-10:]
		if !strings.HasPrefix(chunks[i].Text, prevTail) {
			t.Fatalf("chunk %d does not start with previous chunk's overlap tail", i)
		}
	}
}

func TestRecursiveChunker_PreservesParagraphsWhenPossible(t *testing.T) {
	text := "para one here.\n\npara two here.\n\npara three here."
	ch := RecursiveChunker{}
	chunks := ch.Chunk(text, 18, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if strings.Count(c.Text, "para") > 1 {
			t.Fatalf("chunk should not contain multiple paragraphs at this size: %q", c.Text)
		}
	}
}

func TestRecursiveChunker_EmptyInput(t *testing.T) {
	ch := RecursiveChunker{}
	if chunks := ch.Chunk("   \n\t  ", 100, 10); chunks != nil {
		t.Fatalf("expected nil for whitespace-only input, got %v", chunks)
	}
}

func TestRecursiveChunker_DeterministicAcrossCalls(t *testing.T) {
	text := genText(500)
	ch := RecursiveChunker{}
	a := ch.Chunk(text, 150, 15)
	b := ch.Chunk(text, 150, 15)
	if len(a) != len(b) {
		t.Fatalf("expected deterministic chunk count, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}
