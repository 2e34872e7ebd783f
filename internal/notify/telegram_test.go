package notify

import (
	"strings"
	"testing"
)

func TestChunkMessageShortPassesThrough(t *testing.T) {
	chunks := chunkMessage("hello", 4096)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestChunkMessageEmpty(t *testing.T) {
	if chunks := chunkMessage("", 4096); chunks != nil {
		t.Errorf("empty message should produce no chunks, got %v", chunks)
	}
}

func TestChunkMessageSplitsAtNewline(t *testing.T) {
	msg := strings.Repeat("line of text\n", 40)
	chunks := chunkMessage(msg, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c))
		}
	}
	// Content is preserved apart from the newlines consumed at the breaks.
	joined := strings.Join(chunks, "\n")
	if strings.ReplaceAll(joined, "\n", "") != strings.ReplaceAll(msg, "\n", "") {
		t.Error("chunking lost content")
	}
}

func TestChunkMessageHardSplitWithoutNewlines(t *testing.T) {
	msg := strings.Repeat("x", 250)
	chunks := chunkMessage(msg, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Errorf("chunk sizes = %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}
