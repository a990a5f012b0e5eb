// Package audit appends one JSON line per pipeline decision to a local
// file. The audit trail is the only place where timing and trace data are
// persisted; HTTP responses stay deterministic.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StageTiming is one pipeline stage in a record's trace.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

// Record is one audited decision.
type Record struct {
	ID   string    `json:"id"`
	Time time.Time `json:"ts"`

	// Text is the utterance, or empty when hashing is enabled.
	Text string `json:"text,omitempty"`

	// TextSHA256 replaces Text when the logger hashes utterances.
	TextSHA256 string `json:"text_sha256,omitempty"`

	Path    string `json:"path"`
	Verdict string `json:"verdict"`
	Backend string `json:"backend,omitempty"`

	Intent        json.RawMessage `json:"intent,omitempty"`
	Trace         []StageTiming   `json:"trace,omitempty"`
	AdapterEcho   any             `json:"adapter_echo,omitempty"`
	DispatchError string          `json:"dispatch_error,omitempty"`
}

// Logger is an append-only JSON-lines writer. A nil *Logger is a valid
// no-op logger, so callers never need to branch on whether auditing is
// configured. Safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	f        *os.File
	hashText bool
}

// Open creates or appends to the audit file at path. When hashText is set,
// utterance text is replaced by its SHA-256 hex digest in every record.
func Open(path string, hashText bool) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %q: %w", path, err)
	}
	return &Logger{f: f, hashText: hashText}, nil
}

// Log appends one record, filling in ID and timestamp when unset.
func (l *Logger) Log(rec Record) error {
	if l == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if l.hashText && rec.Text != "" {
		sum := sha256.Sum256([]byte(rec.Text))
		rec.TextSHA256 = hex.EncodeToString(sum[:])
		rec.Text = ""
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
