package rag

import (
	"strings"
	"testing"
)

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	got := ChunkText("ngắn gọn", 500, 100)
	if len(got) != 1 || got[0] != "ngắn gọn" {
		t.Errorf("ChunkText = %v, want single chunk", got)
	}
}

func TestChunkText_Empty(t *testing.T) {
	if got := ChunkText("   \n  ", 500, 100); got != nil {
		t.Errorf("ChunkText = %v, want nil", got)
	}
}

func TestChunkText_PrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	got := ChunkText(text, 100, 10)

	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %v", len(got), got)
	}
	if got[0] != strings.Repeat("a", 60) {
		t.Errorf("first chunk = %q, want the full first paragraph", got[0])
	}
	if !strings.HasSuffix(got[1], strings.Repeat("b", 60)) {
		t.Errorf("second chunk = %q, want it to end with the second paragraph", got[1])
	}
}

func TestChunkText_ChunksOverlap(t *testing.T) {
	// No separators at all, so chunks are cut at exactly chunkSize and each
	// following chunk repeats the last overlap runes.
	var b strings.Builder
	for i := 0; i < 250; i++ {
		b.WriteByte(byte('0' + i%10))
	}
	got := ChunkText(b.String(), 100, 20)

	if len(got) < 3 {
		t.Fatalf("chunks = %d, want at least 3", len(got))
	}
	if n := len([]rune(got[0])); n != 100 {
		t.Fatalf("first chunk length = %d, want 100", n)
	}
	if got[1][:20] != got[0][80:] {
		t.Errorf("second chunk does not repeat the overlap: %q vs %q", got[1][:20], got[0][80:])
	}
}

func TestChunkText_RespectsRuneBoundaries(t *testing.T) {
	// Multi-byte Vietnamese text must never be cut mid-rune.
	text := strings.Repeat("Trường Đại học Thái Bình. ", 30)
	for _, c := range ChunkText(text, 120, 20) {
		if !strings.HasPrefix(c, "Trường") && !strings.HasPrefix(c, "Đại") &&
			!strings.HasPrefix(c, "học") && !strings.HasPrefix(c, "Thái") &&
			!strings.HasPrefix(c, "Bình") {
			t.Errorf("chunk starts mid-word: %q", c[:20])
		}
	}
}

func TestChunkText_IgnoresBreakInFirstHalf(t *testing.T) {
	// The only separator sits in the first half of the window, so the cut
	// falls at chunkSize instead.
	text := strings.Repeat("a", 10) + " " + strings.Repeat("b", 200)
	got := ChunkText(text, 100, 10)

	if len([]rune(got[0])) != 100 {
		t.Errorf("first chunk length = %d, want 100", len([]rune(got[0])))
	}
}
