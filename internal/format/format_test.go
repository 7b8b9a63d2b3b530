package format

import (
	"strings"
	"testing"

	"github.com/recallhq/recall/internal/memory"
)

func TestResults_NumbersFromOne(t *testing.T) {
	hits := []memory.SearchHit{
		{Kind: memory.KindText, CanonicalText: "wifi password in the drawer", Score: 0.9},
		{Kind: memory.KindVoice, CanonicalText: "dentist on friday", Score: 0.8},
	}

	out := Results(hits)

	if !strings.Contains(out, "1. [text] wifi password in the drawer") {
		t.Errorf("missing rank 1 line:\n%s", out)
	}
	if !strings.Contains(out, "2. [voice] dentist on friday") {
		t.Errorf("missing rank 2 line:\n%s", out)
	}
	if !strings.Contains(out, "Found 2:") {
		t.Errorf("missing count header:\n%s", out)
	}
}

func TestResults_PrefersRerankScore(t *testing.T) {
	hits := []memory.SearchHit{
		{Kind: memory.KindText, CanonicalText: "note", Score: 0.42, RerankScore: 1.0},
	}

	out := Results(hits)
	if !strings.Contains(out, "(1.00)") {
		t.Errorf("expected rerank score in output:\n%s", out)
	}
}

func TestResults_Empty(t *testing.T) {
	if got := Results(nil); got != NoResults() {
		t.Errorf("Results(nil) = %q, want NoResults()", got)
	}
}

func TestSelected(t *testing.T) {
	hit := memory.SearchHit{Kind: memory.KindPhoto, CanonicalText: "receipt from the hardware store"}
	out := Selected(2, hit)

	if !strings.HasPrefix(out, "#2 [photo]") {
		t.Errorf("Selected() = %q", out)
	}
}

func TestNothingAtRank(t *testing.T) {
	if out := NothingAtRank(5); !strings.Contains(out, "#5") {
		t.Errorf("NothingAtRank(5) = %q, want the rank mentioned", out)
	}
	if out := NothingAtRank(0); strings.Contains(out, "#") {
		t.Errorf("NothingAtRank(0) = %q, want no rank", out)
	}
}

func TestExcerpt(t *testing.T) {
	t.Run("collapses whitespace", func(t *testing.T) {
		if got := Excerpt("a\nb\t c"); got != "a b c" {
			t.Errorf("Excerpt = %q", got)
		}
	})

	t.Run("truncates long text at a word boundary", func(t *testing.T) {
		long := strings.Repeat("word ", 60)
		got := Excerpt(long)
		if len(got) > 130 {
			t.Errorf("excerpt too long: %d bytes", len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("truncated excerpt should end with ellipsis: %q", got)
		}
		if strings.HasSuffix(strings.TrimSuffix(got, "..."), "wor") {
			t.Errorf("excerpt cut mid-word: %q", got)
		}
	})
}

func TestDistinctFailureMessages(t *testing.T) {
	// An empty result and a broken search must read differently.
	if NoResults() == SearchFailed() {
		t.Error("empty result and search failure must be distinguishable")
	}
}
