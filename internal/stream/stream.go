// Package stream bridges the websocket audio topics to the segmenter. Three
// workers form the pipeline: Capture subscribes to the raw PCM feed, Segment
// cuts frames into speech segments, and Publish republishes completed
// segments for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/carelink-ai/vigil/internal/observe"
	"github.com/carelink-ai/vigil/pkg/audio"
	"github.com/carelink-ai/vigil/pkg/segment"
)

// reconnectDelay is the pause between dial attempts after a dropped
// connection.
const reconnectDelay = time.Second

// frameChanCapacity bounds the capture → segmenter hand-off.
const frameChanCapacity = 64

// priorityWindow is how long segments stay emergency-tagged after
// [Bridge.MarkEmergency]. Long enough to cover the utterances around a
// dispatch, short enough that routine audio reverts to the normal lane.
const priorityWindow = 10 * time.Second

// Config holds the bridge endpoints. An empty SubscribeURL disables capture
// entirely; an empty PublishURL makes Publish drain the queue without
// republishing.
type Config struct {
	SubscribeURL string
	PublishURL   string
}

// Bridge owns the audio workers. Segment is the only goroutine touching the
// segmenter; Capture and Publish only move bytes.
type Bridge struct {
	cfg     Config
	seg     *segment.Segmenter
	queue   *segment.Queue
	metrics *observe.Metrics

	// frames carries raw PCM buffers from Capture to Segment. A nil entry
	// marks the end of one subscribe session and triggers a flush.
	frames chan []byte

	// priorityUntil is the UnixNano deadline below which cut segments are
	// emergency-tagged. Written by MarkEmergency, read by Segment.
	priorityUntil atomic.Int64

	dropped uint64 // queue drop count already reported to metrics
}

// New builds a Bridge. A nil metrics falls back to the package default.
func New(cfg Config, seg *segment.Segmenter, queue *segment.Queue, metrics *observe.Metrics) *Bridge {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Bridge{
		cfg:     cfg,
		seg:     seg,
		queue:   queue,
		metrics: metrics,
		frames:  make(chan []byte, frameChanCapacity),
	}
}

// MarkEmergency tags segments cut during the next priority window as
// emergency, so they take the queue's priority lane and reach the processed
// topic ahead of any backlog. Called by the orchestrator on emergency
// dispatch.
func (b *Bridge) MarkEmergency() {
	b.priorityUntil.Store(time.Now().Add(priorityWindow).UnixNano())
}

func (b *Bridge) emergencyActive() bool {
	return time.Now().UnixNano() < b.priorityUntil.Load()
}

// Run executes all three workers until ctx is cancelled or one of them
// fails.
func (b *Bridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Capture(gctx) })
	g.Go(func() error { return b.Segment(gctx) })
	g.Go(func() error { return b.Publish(gctx) })
	return g.Wait()
}

// Capture subscribes to the PCM topic and forwards binary frames to the
// segmenter worker. Dropped connections are redialed after a short delay;
// each session end is signalled downstream so trailing speech gets flushed.
func (b *Bridge) Capture(ctx context.Context) error {
	defer close(b.frames)

	if b.cfg.SubscribeURL == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		if err := b.captureSession(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("audio stream disconnected, redialing",
				"url", b.cfg.SubscribeURL,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// captureSession runs one subscribe connection to completion.
func (b *Bridge) captureSession(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, b.cfg.SubscribeURL, nil)
	if err != nil {
		return fmt.Errorf("dial subscribe topic: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "session closed")
	// Frames can span many hops; one message per read is fine but the
	// default 32 KiB cap is not.
	conn.SetReadLimit(1 << 22)

	// End-of-session marker so the segmenter flushes trailing speech.
	defer func() {
		select {
		case b.frames <- nil:
		case <-ctx.Done():
		}
	}()

	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if typ != websocket.MessageBinary {
			continue
		}
		select {
		case b.frames <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Segment consumes raw frames, cuts them into speech segments, and enqueues
// the results. It closes the queue on exit so Publish drains and stops.
func (b *Bridge) Segment(ctx context.Context) error {
	defer b.queue.Close()

	for {
		select {
		case <-ctx.Done():
			b.flush(ctx)
			return ctx.Err()
		case buf, ok := <-b.frames:
			if !ok {
				b.flush(ctx)
				return nil
			}
			if buf == nil {
				b.flush(ctx)
				continue
			}
			emergency := b.emergencyActive()
			for _, seg := range b.seg.PushBytes(buf) {
				seg.Emergency = seg.Emergency || emergency
				b.queue.Push(seg)
			}
			b.reportDrops(ctx)
		}
	}
}

// flush emits any in-progress segment so session trailers are not lost.
func (b *Bridge) flush(ctx context.Context) {
	if seg, ok := b.seg.Flush(); ok {
		seg.Emergency = seg.Emergency || b.emergencyActive()
		b.queue.Push(seg)
		b.reportDrops(ctx)
	}
}

// reportDrops forwards queue evictions to the drop counter exactly once
// each.
func (b *Bridge) reportDrops(ctx context.Context) {
	if d := b.queue.Dropped(); d > b.dropped {
		b.metrics.SegmentsDropped.Add(ctx, int64(d-b.dropped))
		b.dropped = d
	}
}

// Publish pops completed segments and republishes them on the processed
// topic. Without a PublishURL it still drains the queue so emergency
// segments do not pile up behind a dead lane.
func (b *Bridge) Publish(ctx context.Context) error {
	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "session closed")
		}
	}()

	for {
		seg, err := b.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if b.cfg.PublishURL == "" {
			continue
		}

		if conn == nil {
			conn, _, err = websocket.Dial(ctx, b.cfg.PublishURL, nil)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("publish topic unreachable, segment dropped",
					"url", b.cfg.PublishURL,
					"error", err,
				)
				conn = nil
				continue
			}
		}

		if err := publishSegment(ctx, conn, seg); err != nil {
			slog.Warn("segment publish failed", "error", err)
			conn.Close(websocket.StatusInternalError, "publish failed")
			conn = nil
		}
	}
}

// segmentHeader is the JSON frame announcing a published segment. The raw
// PCM follows in the next binary frame.
type segmentHeader struct {
	Type        string  `json:"type"`
	Samples     int     `json:"samples"`
	SampleRate  int     `json:"sr"`
	DurationSec float64 `json:"duration_sec"`
	Ts          float64 `json:"ts"`
}

// publishSegment writes the header frame followed by the segment PCM, so
// subscribers get a bit-for-bit copy of the audio.
func publishSegment(ctx context.Context, conn *websocket.Conn, seg segment.Segment) error {
	hdr, err := json.Marshal(segmentHeader{
		Type:        "speech_segment",
		Samples:     len(seg.PCM),
		SampleRate:  seg.SampleRate,
		DurationSec: seg.Duration().Seconds(),
		Ts:          seg.Start.Seconds(),
	})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, audio.EncodeF32LE(seg.PCM)); err != nil {
		return fmt.Errorf("write pcm: %w", err)
	}
	return nil
}
