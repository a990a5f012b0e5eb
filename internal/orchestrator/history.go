package orchestrator

import (
	"sync"

	"github.com/carelink-ai/vigil/internal/guard"
)

// boostWindow is how many recent utterances contribute to the context
// boost, and boostPerMention the additive confidence per topic mention.
const (
	boostWindow     = 3
	boostPerMention = 0.1
)

// history is the ring of recent utterances with their topic tags. It feeds
// two consumers: the implicit-command context boost and the LLM prompt
// context. Safe for concurrent use.
type history struct {
	mu      sync.Mutex
	size    int
	entries []historyEntry
}

type historyEntry struct {
	text   string
	topics []guard.CommandType
}

func newHistory(size int) *history {
	if size <= 0 {
		size = 10
	}
	return &history{size: size}
}

// Add appends one utterance, evicting the oldest beyond the window size.
func (h *history) Add(text string, topics []guard.CommandType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, historyEntry{text: text, topics: topics})
	if len(h.entries) > h.size {
		h.entries = h.entries[len(h.entries)-h.size:]
	}
}

// Boost returns the additive confidence bonus for a command type:
// boostPerMention per mention of its topic among the last boostWindow
// utterances.
func (h *history) Boost(typ guard.CommandType) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.entries) - boostWindow
	if start < 0 {
		start = 0
	}
	mentions := 0
	for _, e := range h.entries[start:] {
		for _, t := range e.topics {
			if t == typ {
				mentions++
				break
			}
		}
	}
	return boostPerMention * float64(mentions)
}

// Lines returns the recent utterance texts, oldest first.
func (h *history) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := make([]string, len(h.entries))
	for i, e := range h.entries {
		lines[i] = e.text
	}
	return lines
}
