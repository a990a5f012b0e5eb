package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line %q: %v", sc.Text(), err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestLogAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	if err := l.Log(Record{Text: "开灯", Path: "rules", Verdict: "allow"}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if err := l.Log(Record{Text: "救命", Path: "bypass", Verdict: "dispatch_emergency", DispatchError: "sip unreachable"}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	recs := readRecords(t, path)
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].ID == "" || recs[0].Time.IsZero() {
		t.Errorf("record missing id/ts: %+v", recs[0])
	}
	if recs[0].Text != "开灯" || recs[0].Verdict != "allow" {
		t.Errorf("record[0] = %+v", recs[0])
	}
	if recs[1].DispatchError != "sip unreachable" {
		t.Errorf("record[1].DispatchError = %q", recs[1].DispatchError)
	}
	if recs[0].ID == recs[1].ID {
		t.Error("records share an id")
	}
}

func TestLogHashesText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	if err := l.Log(Record{Text: "我胸口疼", Path: "bypass", Verdict: "dispatch_emergency"}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	recs := readRecords(t, path)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].Text != "" {
		t.Errorf("text = %q, want empty when hashing", recs[0].Text)
	}
	if len(recs[0].TextSHA256) != 64 {
		t.Errorf("text_sha256 = %q, want 64 hex chars", recs[0].TextSHA256)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	if err := l.Log(Record{Text: "x"}); err != nil {
		t.Errorf("nil Log() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
