// Package format renders user-facing replies. Pure functions only: no I/O,
// no state, so every message the assistant sends is trivially testable.
package format

import (
	"fmt"
	"strings"

	"github.com/recallhq/recall/internal/memory"
)

// maxExcerptLen caps the text shown per result line.
const maxExcerptLen = 120

// kindLabels are the display names for item kinds.
var kindLabels = map[memory.Kind]string{
	memory.KindText:     "text",
	memory.KindVoice:    "voice",
	memory.KindPhoto:    "photo",
	memory.KindVideo:    "video",
	memory.KindDocument: "document",
	memory.KindLocation: "location",
}

// Saved renders the acknowledgment after an item is stored.
func Saved(kind memory.Kind) string {
	return fmt.Sprintf("Saved your %s. Ask me about it anytime.", label(kind))
}

// Results renders the numbered result list. Ranks match the registry:
// the first hit is #1.
func Results(hits []memory.SearchHit) string {
	if len(hits) == 0 {
		return NoResults()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d:\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. [%s] %s (%.2f)\n", i+1, label(h.Kind), Excerpt(h.CanonicalText), displayScore(h))
	}
	sb.WriteString("\nReply with a number to get the original message.")
	return sb.String()
}

// Selected renders the reply for a resolved selection. The transport
// forwards the original message separately; this line gives context.
func Selected(rank int, hit memory.SearchHit) string {
	return fmt.Sprintf("#%d [%s] %s", rank, label(hit.Kind), Excerpt(hit.CanonicalText))
}

// NoResults is the reply for a legitimate empty search result.
func NoResults() string {
	return "Nothing saved matches that. Try different words?"
}

// NothingAtRank is the reply for a selection that cannot be resolved.
func NothingAtRank(rank int) string {
	if rank > 0 {
		return fmt.Sprintf("There is nothing at #%d to select. Search first, then pick a number.", rank)
	}
	return "There is nothing to select right now. Search first, then pick a number."
}

// SearchFailed is the reply when retrieval is unavailable. Distinct from
// NoResults: the search broke, the user should retry.
func SearchFailed() string {
	return "Search is not working right now. Please try again in a moment."
}

// SaveFailed is the reply when an item could not be stored.
func SaveFailed() string {
	return "I couldn't save that right now. Please try again in a moment."
}

// Unsupported is the reply for content that cannot be normalized.
func Unsupported() string {
	return "I can't make sense of that content, so I didn't save it."
}

// Excerpt returns a single-line excerpt of s for display.
func Excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxExcerptLen {
		return s
	}
	cut := s[:maxExcerptLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxExcerptLen/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// displayScore prefers the rerank score when the reranker listed the hit.
func displayScore(h memory.SearchHit) float64 {
	if h.RerankScore > 0 {
		return h.RerankScore
	}
	return h.Score
}

// label returns the display name for a kind, falling back to the raw value.
func label(k memory.Kind) string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}
