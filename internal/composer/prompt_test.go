package composer

import (
	"strings"
	"testing"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/retrieval"
)

func scored(id, text string, score float32) retrieval.ScoredDocument {
	return retrieval.ScoredDocument{Document: catalog.Document{ID: id, Text: text}, Score: score}
}

func TestCompose_Structure(t *testing.T) {
	c := New(0)
	msgs := c.Compose("  Quels tajines de Safi ?  ", []retrieval.ScoredDocument{
		scored("poterie#1", "PRODUIT: Tajine", 0.9),
	})

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != Instructions {
		t.Errorf("first message should be the system instructions, got role %q", msgs[0].Role)
	}
	if msgs[1].Role != "user" {
		t.Errorf("second role = %q, want user", msgs[1].Role)
	}
	want := "Contexte:\nPRODUIT: Tajine\n\nQuestion: Quels tajines de Safi ?"
	if msgs[1].Content != want {
		t.Errorf("user turn = %q, want %q", msgs[1].Content, want)
	}
}

func TestCompose_NoDocuments(t *testing.T) {
	msgs := New(0).Compose("bol", nil)
	if !strings.Contains(msgs[1].Content, noContext) {
		t.Errorf("user turn %q should say nothing matched", msgs[1].Content)
	}
}

func TestCompose_OrdersByScore(t *testing.T) {
	msgs := New(0).Compose("q", []retrieval.ScoredDocument{
		scored("a", "PRODUIT: Assiette", 0.2),
		scored("b", "PRODUIT: Bol", 0.8),
	})
	content := msgs[1].Content
	if strings.Index(content, "Bol") > strings.Index(content, "Assiette") {
		t.Errorf("higher-scored document should come first:\n%s", content)
	}
}

func TestCompose_TokenBudgetDropsLowestScore(t *testing.T) {
	big := strings.Repeat("x", 40) // 10 tokens
	c := New(15)
	msgs := c.Compose("q", []retrieval.ScoredDocument{
		scored("low", "LOW"+big, 0.1),
		scored("high", "HIGH"+big, 0.9),
	})
	content := msgs[1].Content
	if !strings.Contains(content, "HIGH") {
		t.Error("highest-scored document should be kept")
	}
	if strings.Contains(content, "LOW") {
		t.Error("lowest-scored document should be dropped when over budget")
	}
}

func TestFormatSources(t *testing.T) {
	out := FormatSources([]retrieval.ScoredDocument{scored("poterie#2", "PRODUIT: Bol", 0.75)})
	if !strings.HasPrefix(out, "1. (score 0.750, poterie#2)\nPRODUIT: Bol") {
		t.Errorf("FormatSources = %q", out)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
