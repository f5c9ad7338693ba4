package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessagePrefersParagraphs(t *testing.T) {
	text := strings.Repeat("ق", 3000) + "\n\n" + strings.Repeat("ص", 800) + "\n" + strings.Repeat("ة", 800)

	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for i, part := range parts {
		if n := len([]rune(part)); n > messageLimit {
			t.Fatalf("part %d exceeds limit: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("ق", 3000) {
		t.Fatalf("first part should end at the paragraph break")
	}
	if !strings.HasPrefix(parts[1], "ص") || !strings.HasSuffix(parts[1], "ة") {
		t.Fatalf("unexpected second part boundaries")
	}
}

func TestSplitMessageFallsBackToLines(t *testing.T) {
	text := strings.Repeat("a", 4000) + "\n" + strings.Repeat("b", 200)
	parts := SplitMessage(text)
	if len(parts) != 2 || parts[1] != strings.Repeat("b", 200) {
		t.Fatalf("unexpected split: %d parts", len(parts))
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", messageLimit*2+10))
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if len([]rune(parts[2])) != 10 {
		t.Fatalf("unexpected tail length %d", len([]rune(parts[2])))
	}
}

func TestSplitMessageShortAndEmpty(t *testing.T) {
	if parts := SplitMessage(" مرحبا "); len(parts) != 1 || parts[0] != "مرحبا" {
		t.Fatalf("unexpected parts %q", parts)
	}
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("expected no parts, got %d", len(parts))
	}
}
