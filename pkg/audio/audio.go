// Package audio provides the PCM primitives for the Vigil speech pipeline:
// little-endian float32 decoding, channel downmix, and resampling to the
// canonical 16 kHz mono format consumed by the segmenter.
//
// All functions operate on mono float32 sample slices unless stated
// otherwise. Frames are non-owning views; callers that retain samples across
// pipeline stages must copy them.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CanonicalRate is the sample rate every downstream stage expects, in Hz.
const CanonicalRate = 16000

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a compact human-readable description, e.g. "48000Hz/2ch".
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// DecodeF32LE decodes a little-endian float32 PCM byte buffer into samples.
// Returns an error if the byte count is not a multiple of 4; callers drop
// such buffers rather than propagate the error upstream.
func DecodeF32LE(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("audio: pcm buffer length %d is not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// EncodeF32LE is the inverse of [DecodeF32LE]. Used when republishing
// segments to the processed-audio topic; the round-trip is bit-exact.
func EncodeF32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// Downmix reduces interleaved multi-channel samples to mono by channel mean.
// A channel count of 1 returns the input unchanged (zero allocation).
// Trailing samples that do not form a complete interleaved group are dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]float32, n)
	inv := 1 / float32(channels)
	for i := 0; i < n; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		out[i] = sum * inv
	}
	return out
}

// RMS returns the root-mean-square energy of the samples. An empty slice
// has zero energy.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
