package audio

import "math"

// resampleTaps is the one-sided width of the windowed-sinc kernel, measured
// in input samples. 8 taps per side keeps aliasing below the energy-VAD
// threshold while staying cheap enough for the capture worker.
const resampleTaps = 8

// Resample converts mono float32 samples from one sample rate to another
// using polyphase windowed-sinc interpolation (Hann window). When from == to
// the input is returned unchanged. Rates must be positive.
//
// The kernel is normalised per output sample so constant signals pass
// through without amplitude ripple at the buffer edges.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}

	outLen := int(math.Round(float64(len(in)) * float64(to) / float64(from)))
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)

	// Low-pass cutoff relative to the input rate. Downsampling must cut at
	// the output Nyquist; upsampling keeps the full input band.
	fc := 1.0
	if to < from {
		fc = float64(to) / float64(from)
	}
	step := float64(from) / float64(to)

	for n := range out {
		t := float64(n) * step // fractional position in input samples
		i0 := int(math.Floor(t))

		var acc, norm float64
		for k := i0 - resampleTaps + 1; k <= i0+resampleTaps; k++ {
			if k < 0 || k >= len(in) {
				continue
			}
			w := sincHann((t-float64(k))*fc, resampleTaps)
			acc += float64(in[k]) * w
			norm += w
		}
		if norm != 0 {
			out[n] = float32(acc / norm)
		}
	}
	return out
}

// sincHann evaluates the Hann-windowed sinc kernel at x, with the window
// spanning ±taps. Outside the window the kernel is zero.
func sincHann(x float64, taps int) float64 {
	ax := math.Abs(x)
	if ax >= float64(taps) {
		return 0
	}
	window := 0.5 * (1 + math.Cos(math.Pi*ax/float64(taps)))
	if x == 0 {
		return window
	}
	px := math.Pi * x
	return window * math.Sin(px) / px
}
