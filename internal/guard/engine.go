package guard

import (
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the Jaro-Winkler score a Latin word must reach to count
// as a match. Chinese patterns never go through fuzzy matching.
const fuzzyThreshold = 0.88

// Engine holds the pattern tables and tuning knobs for all rule checks.
// Safe for concurrent use once constructed.
type Engine struct {
	log       *slog.Logger
	wakewords map[WakewordType][]string
	sos       map[SOSCategory][]string
	implicit  map[CommandType][]string
	highRisk  map[string]struct{}
	boost     func(CommandType) float64
	fuzzy     float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for rule-hit diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithContextBoost installs the conversation-context boost callback used by
// implicit-command scoring. The callback returns an additive confidence
// bonus for the given command type.
func WithContextBoost(fn func(CommandType) float64) Option {
	return func(e *Engine) { e.boost = fn }
}

// WithHighRiskDevices replaces the default high-risk device list.
func WithHighRiskDevices(devices []string) Option {
	return func(e *Engine) {
		e.highRisk = make(map[string]struct{}, len(devices))
		for _, d := range devices {
			e.highRisk[d] = struct{}{}
		}
	}
}

// WithExtraWakewords appends user-configured wakewords to one type.
func WithExtraWakewords(typ WakewordType, words ...string) Option {
	return func(e *Engine) { e.wakewords[typ] = append(e.wakewords[typ], words...) }
}

// WithExtraSOSKeywords appends user-configured keywords to one SOS category.
func WithExtraSOSKeywords(cat SOSCategory, words ...string) Option {
	return func(e *Engine) { e.sos[cat] = append(e.sos[cat], words...) }
}

// WithFuzzyThreshold overrides the Jaro-Winkler threshold for Latin words.
func WithFuzzyThreshold(t float64) Option {
	return func(e *Engine) { e.fuzzy = t }
}

// New builds an Engine with the default pattern tables.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:       slog.Default(),
		wakewords: cloneTable(defaultWakewords),
		sos:       cloneTable(defaultSOSKeywords),
		implicit:  cloneTable(defaultImplicitPatterns),
		fuzzy:     fuzzyThreshold,
	}
	WithHighRiskDevices(defaultHighRiskDevices)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func cloneTable[K comparable](src map[K][]string) map[K][]string {
	dst := make(map[K][]string, len(src))
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
	return dst
}

// DetectWakeword scans text for wakewords in priority order and applies the
// elderly-speech confidence adjustments: slurred or weak voice and elevated
// stress both raise confidence, since those utterances are the ones that
// must not be missed.
func (e *Engine) DetectWakeword(text string, emo Emotion) *WakewordHit {
	lower := strings.ToLower(text)
	for _, typ := range wakewordPriority {
		for _, word := range e.wakewords[typ] {
			if !e.matches(lower, word) {
				continue
			}
			conf := 0.8
			if emo.VoiceQuality < 0.7 {
				conf += 0.15
			}
			if emo.Stress > 0.6 {
				conf += 0.10
			}
			if conf > 1.0 {
				conf = 1.0
			}
			return &WakewordHit{Type: typ, Keyword: word, Confidence: conf}
		}
	}
	return nil
}

// matches reports whether pattern occurs in lower (already lowercased).
// ASCII patterns fall back to per-word fuzzy matching so that minor ASR
// misspellings still hit.
func (e *Engine) matches(lower, pattern string) bool {
	p := strings.ToLower(pattern)
	if strings.Contains(lower, p) {
		return true
	}
	if !isASCIIWords(p) {
		return false
	}
	want := strings.Fields(p)
	words := asciiWords(lower)
	if len(want) == 0 || len(words) < len(want) {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		ok := true
		for j, w := range want {
			if matchr.JaroWinkler(words[i+j], w, false) < e.fuzzy {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func isASCIIWords(s string) bool {
	for _, r := range s {
		if r >= 0x80 {
			return false
		}
	}
	return true
}

// asciiWords extracts runs of ASCII letters and apostrophes from s.
func asciiWords(s string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}
