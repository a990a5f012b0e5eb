package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/carelink-ai/vigil/pkg/audio"
	"github.com/carelink-ai/vigil/pkg/segment"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startWSServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSegmenter(t *testing.T) *segment.Segmenter {
	t.Helper()
	seg, err := segment.New(segment.Config{})
	if err != nil {
		t.Fatalf("segment.New() error = %v", err)
	}
	return seg
}

// utterance returns 400 ms of loud PCM followed by 400 ms of silence at the
// canonical rate, enough to open and close one segment.
func utterance() []float32 {
	speech := audio.CanonicalRate * 400 / 1000
	samples := make([]float32, 2*speech)
	for i := 0; i < speech; i++ {
		samples[i] = 0.5
	}
	return samples
}

func TestCaptureAndSegment(t *testing.T) {
	sub := startWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		ctx := r.Context()
		// A stray text frame must be ignored by capture.
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"hello"}`)); err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageBinary, audio.EncodeF32LE(utterance())); err != nil {
			return
		}
		<-ctx.Done()
	})

	queue := segment.NewQueue(16)
	bridge := New(Config{SubscribeURL: wsURL(sub)}, newTestSegmenter(t), queue, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go bridge.Capture(ctx)
	go bridge.Segment(ctx)

	seg, err := queue.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if seg.SampleRate != audio.CanonicalRate {
		t.Errorf("SampleRate = %d, want %d", seg.SampleRate, audio.CanonicalRate)
	}
	if d := seg.Duration(); d < 350*time.Millisecond || d > 800*time.Millisecond {
		t.Errorf("Duration = %v, want roughly 400ms", d)
	}
}

func TestSegmentFlushOnDisconnect(t *testing.T) {
	// Speech with no trailing silence: only the session-end flush emits it.
	speech := make([]float32, audio.CanonicalRate*400/1000)
	for i := range speech {
		speech[i] = 0.5
	}

	sub := startWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		_ = conn.Write(r.Context(), websocket.MessageBinary, audio.EncodeF32LE(speech))
	})

	queue := segment.NewQueue(16)
	bridge := New(Config{SubscribeURL: wsURL(sub)}, newTestSegmenter(t), queue, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go bridge.Capture(ctx)
	go bridge.Segment(ctx)

	seg, err := queue.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if seg.Duration() < 300*time.Millisecond {
		t.Errorf("flushed segment duration = %v, want ≥ 300ms", seg.Duration())
	}
}

func TestMarkEmergencyTagsSegments(t *testing.T) {
	sub := startWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		if err := conn.Write(r.Context(), websocket.MessageBinary, audio.EncodeF32LE(utterance())); err != nil {
			return
		}
		<-r.Context().Done()
	})

	queue := segment.NewQueue(16)
	bridge := New(Config{SubscribeURL: wsURL(sub)}, newTestSegmenter(t), queue, nil)
	bridge.MarkEmergency()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go bridge.Capture(ctx)
	go bridge.Segment(ctx)

	seg, err := queue.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if !seg.Emergency {
		t.Error("segment cut inside the priority window is not emergency-tagged")
	}
}

func TestPublishRoundTrip(t *testing.T) {
	type published struct {
		header segmentHeader
		pcm    []byte
	}
	pubCh := make(chan published, 1)

	pub := startWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		ctx := r.Context()
		var p published
		_, hdr, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := json.Unmarshal(hdr, &p.header); err != nil {
			return
		}
		if _, p.pcm, err = conn.Read(ctx); err != nil {
			return
		}
		pubCh <- p
	})

	queue := segment.NewQueue(16)
	bridge := New(Config{PublishURL: wsURL(pub)}, newTestSegmenter(t), queue, nil)

	pcm := []float32{0.1, -0.2, 0.3, -0.4}
	seg := segment.Segment{
		PCM:        pcm,
		Start:      time.Second,
		End:        time.Second + 250*time.Millisecond,
		SampleRate: audio.CanonicalRate,
	}
	queue.Push(seg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go bridge.Publish(ctx)

	select {
	case p := <-pubCh:
		if p.header.Type != "speech_segment" {
			t.Errorf("header type = %q, want speech_segment", p.header.Type)
		}
		if p.header.Samples != len(pcm) {
			t.Errorf("header samples = %d, want %d", p.header.Samples, len(pcm))
		}
		if p.header.SampleRate != audio.CanonicalRate {
			t.Errorf("header sr = %d, want %d", p.header.SampleRate, audio.CanonicalRate)
		}
		if p.header.DurationSec != 0.25 {
			t.Errorf("header duration_sec = %v, want 0.25", p.header.DurationSec)
		}
		if !bytes.Equal(p.pcm, audio.EncodeF32LE(pcm)) {
			t.Error("published PCM does not round-trip the segment audio")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for published segment")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	bridge := New(Config{}, newTestSegmenter(t), segment.NewQueue(16), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
