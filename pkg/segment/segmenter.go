// Package segment implements the energy-VAD stream segmenter that cuts the
// continuous microphone feed into bounded speech segments.
//
// The segmenter is a per-stream state machine: frames of RMS energy drive
// Idle ↔ Speaking transitions, and each completed segment carries owned PCM
// plus stream-relative timestamps. It is single-writer: exactly one
// goroutine (the segmenter worker) may call Push. Completed segments are
// handed to the orchestrator through the bounded [Queue].
package segment

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/carelink-ai/vigil/pkg/audio"
)

// Config holds the segmenter tuning parameters. Zero values are replaced by
// the documented defaults; see [Config.WithDefaults].
type Config struct {
	// SampleRate of the incoming mono PCM in Hz. Default 16000.
	SampleRate int

	// FrameMs is the analysis window duration. Default 20.
	FrameMs int

	// HopMs is the window advance per frame. Must be ≤ FrameMs. Default 10.
	HopMs int

	// EnergyThreshold is the RMS level at or above which a frame counts as
	// voiced (inclusive). Default 0.015.
	EnergyThreshold float64

	// MinSpeechMs is the minimum run of consecutive voiced audio before a
	// segment starts. Default 200.
	MinSpeechMs int

	// MaxSilenceMs is the trailing silence that ends a segment. Default 300.
	MaxSilenceMs int

	// MaxSegmentMs caps a single segment; when reached the segment is
	// emitted and accumulation restarts without leaving Speaking. Default 10000.
	MaxSegmentMs int

	// Channels of the incoming interleaved PCM before downmix. Default 1.
	Channels int

	// ResampleTo16k converts input at other rates to 16 kHz before framing.
	ResampleTo16k bool
}

// WithDefaults returns a copy of c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = audio.CanonicalRate
	}
	if c.FrameMs == 0 {
		c.FrameMs = 20
	}
	if c.HopMs == 0 {
		c.HopMs = 10
	}
	if c.EnergyThreshold == 0 {
		c.EnergyThreshold = 0.015
	}
	if c.MinSpeechMs == 0 {
		c.MinSpeechMs = 200
	}
	if c.MaxSilenceMs == 0 {
		c.MaxSilenceMs = 300
	}
	if c.MaxSegmentMs == 0 {
		c.MaxSegmentMs = 10000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	return c
}

// Validate checks that the parameters produce a workable state machine.
// In particular the derived frame counts must both be at least 1.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("segment: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.HopMs <= 0 || c.FrameMs <= 0 || c.HopMs > c.FrameMs {
		return fmt.Errorf("segment: need 0 < hop_ms (%d) <= frame_ms (%d)", c.HopMs, c.FrameMs)
	}
	if c.MinSpeechMs/c.HopMs < 1 {
		return fmt.Errorf("segment: min_speech_ms %d yields zero speech frames at hop %d ms", c.MinSpeechMs, c.HopMs)
	}
	if c.MaxSilenceMs/c.HopMs < 1 {
		return fmt.Errorf("segment: max_silence_ms %d yields zero silence frames at hop %d ms", c.MaxSilenceMs, c.HopMs)
	}
	if c.MaxSegmentMs < c.MinSpeechMs {
		return fmt.Errorf("segment: max_segment_ms %d below min_speech_ms %d", c.MaxSegmentMs, c.MinSpeechMs)
	}
	return nil
}

// Segment is one completed speech segment. PCM is owned by the segment and
// safe to retain after the next Push call.
type Segment struct {
	// PCM is mono float32 at SampleRate.
	PCM []float32

	// Start and End are stream-relative monotonic offsets.
	Start, End time.Duration

	// SampleRate of PCM in Hz, always the canonical rate after resampling.
	SampleRate int

	// Emergency marks segments routed through the priority lane. Set by the
	// guard after classification, never by the segmenter itself.
	Emergency bool
}

// Duration returns the audio length of the segment.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// state is the segmenter state machine phase.
type state int

const (
	stateIdle state = iota
	stateSpeaking
)

// Segmenter cuts a mono PCM stream into speech segments. Not safe for
// concurrent use; confine it to the segmenter worker goroutine.
type Segmenter struct {
	cfg      Config
	frameLen int
	hopLen   int

	minSpeechFrames  int
	maxSilenceFrames int
	maxSegmentLen    int // samples

	state   state
	residue []float32 // undecoded tail < frameLen

	// pending holds hop slices of the current consecutive voiced run while
	// still Idle, so the emitted segment starts at the transition frame.
	pending      []float32
	pendingStart int64 // sample offset of the first pending hop

	segBuf   []float32
	segStart int64

	voicedRun  int
	silenceRun int

	offset int64 // absolute sample position of residue[0]

	warnedCorrupt bool
}

// New creates a Segmenter. The config is defaulted then validated.
func New(cfg Config) (*Segmenter, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Segmenter{
		cfg:              cfg,
		frameLen:         audio.CanonicalRate * cfg.FrameMs / 1000,
		hopLen:           audio.CanonicalRate * cfg.HopMs / 1000,
		minSpeechFrames:  cfg.MinSpeechMs / cfg.HopMs,
		maxSilenceFrames: cfg.MaxSilenceMs / cfg.HopMs,
		maxSegmentLen:    audio.CanonicalRate * cfg.MaxSegmentMs / 1000,
	}
	return s, nil
}

// PushBytes decodes a little-endian float32 PCM buffer and feeds it to the
// state machine. Malformed buffers (length not a multiple of 4) are logged
// once and dropped; they never produce an error. An empty buffer is a no-op.
func (s *Segmenter) PushBytes(buf []byte) []Segment {
	if len(buf) == 0 {
		return nil
	}
	samples, err := audio.DecodeF32LE(buf)
	if err != nil {
		if !s.warnedCorrupt {
			s.warnedCorrupt = true
			slog.Warn("segmenter: dropping malformed pcm buffer", "bytes", len(buf))
		}
		return nil
	}
	return s.Push(samples)
}

// Push feeds interleaved samples at the configured input format through
// downmix and optional resampling, then advances the state machine one frame
// at a time. It returns any segments completed by this buffer, oldest first.
func (s *Segmenter) Push(samples []float32) []Segment {
	samples = audio.Downmix(samples, s.cfg.Channels)
	if s.cfg.ResampleTo16k && s.cfg.SampleRate != audio.CanonicalRate {
		samples = audio.Resample(samples, s.cfg.SampleRate, audio.CanonicalRate)
	}
	if len(samples) == 0 {
		return nil
	}

	s.residue = append(s.residue, samples...)

	var out []Segment
	for len(s.residue) >= s.frameLen {
		frame := s.residue[:s.frameLen]
		hop := s.residue[:s.hopLen]
		voiced := audio.RMS(frame) >= s.cfg.EnergyThreshold

		if seg, ok := s.step(hop, voiced); ok {
			out = append(out, seg)
		}

		s.residue = s.residue[s.hopLen:]
		s.offset += int64(s.hopLen)
	}
	return out
}

// Flush emits the in-progress segment, if any, regardless of trailing
// silence. Called on stream shutdown so the final utterance is not lost.
func (s *Segmenter) Flush() (Segment, bool) {
	if s.state != stateSpeaking || len(s.segBuf) < s.minSpeechFrames*s.hopLen {
		s.reset()
		return Segment{}, false
	}
	seg := s.emit()
	s.reset()
	return seg, true
}

// step advances the state machine by one frame whose leading hop samples are
// hop. Returns a completed segment when one ends at this frame.
func (s *Segmenter) step(hop []float32, voiced bool) (Segment, bool) {
	switch s.state {
	case stateIdle:
		if !voiced {
			s.voicedRun = 0
			s.pending = s.pending[:0]
			return Segment{}, false
		}
		if s.voicedRun == 0 {
			s.pendingStart = s.offset
		}
		s.voicedRun++
		s.pending = append(s.pending, hop...)
		if s.voicedRun >= s.minSpeechFrames {
			s.state = stateSpeaking
			s.segStart = s.pendingStart
			s.segBuf = append(s.segBuf[:0], s.pending...)
			s.pending = s.pending[:0]
			s.silenceRun = 0
		}
		return Segment{}, false

	case stateSpeaking:
		s.segBuf = append(s.segBuf, hop...)
		if voiced {
			s.silenceRun = 0
		} else {
			s.silenceRun++
			if s.silenceRun >= s.maxSilenceFrames {
				seg := s.emit()
				s.reset()
				return seg, true
			}
		}
		if len(s.segBuf) >= s.maxSegmentLen {
			// Hard cap: emit and stay in Speaking with a fresh buffer.
			seg := s.emit()
			s.segStart = s.offset + int64(s.hopLen)
			s.segBuf = s.segBuf[:0]
			s.silenceRun = 0
			return seg, true
		}
		return Segment{}, false
	}
	return Segment{}, false
}

// emit packages the accumulated buffer into an owned Segment.
func (s *Segmenter) emit() Segment {
	pcm := make([]float32, len(s.segBuf))
	copy(pcm, s.segBuf)
	start := samplesToDuration(s.segStart)
	return Segment{
		PCM:        pcm,
		Start:      start,
		End:        start + samplesToDuration(int64(len(pcm))),
		SampleRate: audio.CanonicalRate,
	}
}

// reset returns to Idle, clearing per-segment state.
func (s *Segmenter) reset() {
	s.state = stateIdle
	s.segBuf = s.segBuf[:0]
	s.pending = s.pending[:0]
	s.voicedRun = 0
	s.silenceRun = 0
}

func samplesToDuration(n int64) time.Duration {
	return time.Duration(n) * time.Second / audio.CanonicalRate
}
