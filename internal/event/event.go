package event

import (
	"strings"
)

// #region typed-event

// TypedEvent is a single captured interaction event. Events are produced by
// the external capture layer and are immutable once created.
type TypedEvent struct {
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Type      string  `json:"type"`      // namespaced, e.g. "user_action.click"
	Context   Context `json:"context"`
	Payload   Payload `json:"payload"`
}

// Context identifies the browsing context an event occurred in.
type Context struct {
	TabID    string `json:"tabId"`
	WindowID string `json:"windowId,omitempty"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Position is a viewport-relative pointer position.
type Position struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	ViewportWidth  float64 `json:"viewportWidth,omitempty"`
	ViewportHeight float64 `json:"viewportHeight,omitempty"`
}

// Payload carries the target fingerprint and the free-form feature bag.
type Payload struct {
	TargetSelector string         `json:"targetSelector,omitempty"`
	Value          any            `json:"value,omitempty"`
	Position       *Position      `json:"position,omitempty"`
	Features       map[string]any `json:"features,omitempty"`
}

// #endregion typed-event

// #region helpers

// TrailingSelectors returns the target selectors of the last events that have
// one, oldest first, bounded to limit entries.
func TrailingSelectors(events []TypedEvent, limit int) []string {
	var selectors []string
	for _, ev := range events {
		if ev.Payload.TargetSelector != "" {
			selectors = append(selectors, ev.Payload.TargetSelector)
		}
	}
	if limit > 0 && len(selectors) > limit {
		selectors = selectors[len(selectors)-limit:]
	}
	return selectors
}

// TypeSignature joins the types of the last n events with "→". Used as the
// key for difficulty bookkeeping.
func TypeSignature(events []TypedEvent, n int) string {
	if len(events) == 0 {
		return ""
	}
	start := len(events) - n
	if start < 0 {
		start = 0
	}
	types := make([]string, 0, n)
	for _, ev := range events[start:] {
		types = append(types, ev.Type)
	}
	return strings.Join(types, "→")
}

// SimplifyTarget reduces a full selector to its last simple segment, dropping
// positional pseudo-classes. Pattern keys use the simplified form so small
// DOM shifts do not fragment counts.
func SimplifyTarget(selector string) string {
	s := strings.TrimSpace(selector)
	if s == "" {
		return ""
	}
	segments := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '>'
	})
	if len(segments) > 0 {
		s = segments[len(segments)-1]
	}
	if i := strings.Index(s, ":nth-"); i > 0 {
		s = s[:i]
	}
	return s
}

// #endregion helpers
