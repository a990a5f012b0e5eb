package audio

import (
	"math"
	"testing"
)

func TestDecodeF32LE_RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1, 0.015}
	buf := EncodeF32LE(in)

	out, err := DecodeF32LE(buf)
	if err != nil {
		t.Fatalf("DecodeF32LE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Float32bits(out[i]) != math.Float32bits(in[i]) {
			t.Errorf("sample %d = %v, want bit-identical %v", i, out[i], in[i])
		}
	}
}

func TestDecodeF32LE_MisalignedBuffer(t *testing.T) {
	_, err := DecodeF32LE(make([]byte, 7))
	if err == nil {
		t.Fatal("expected error for buffer length not a multiple of 4")
	}
}

func TestDecodeF32LE_Empty(t *testing.T) {
	out, err := DecodeF32LE(nil)
	if err != nil {
		t.Fatalf("DecodeF32LE(nil): %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}

func TestDownmix_StereoMean(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := Downmix(stereo, 2)

	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("len = %d, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}
}

func TestDownmix_MonoPassthrough(t *testing.T) {
	in := []float32{0.1, 0.2}
	out := Downmix(in, 1)
	if &out[0] != &in[0] {
		t.Error("mono downmix should return the input slice unchanged")
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", make([]float32, 160), 0},
		{"unit", []float32{1, -1, 1, -1}, 1},
		{"half", []float32{0.5, -0.5}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResample_SameRatePassthrough(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return the input slice unchanged")
	}
}

func TestResample_OutputLength(t *testing.T) {
	in := make([]float32, 480) // 10 ms at 48 kHz
	out := Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("len = %d, want 160", len(out))
	}
}

func TestResample_ConstantSignal(t *testing.T) {
	in := make([]float32, 1600)
	for i := range in {
		in[i] = 0.25
	}
	out := Resample(in, 48000, 16000)

	// Ignore the kernel-width edges; the interior must be flat.
	for i := resampleTaps; i < len(out)-resampleTaps; i++ {
		if math.Abs(float64(out[i])-0.25) > 1e-3 {
			t.Fatalf("out[%d] = %v, want ~0.25", i, out[i])
		}
	}
}

func TestResample_PreservesToneEnergy(t *testing.T) {
	// 440 Hz tone, well below both Nyquist rates.
	const rate = 48000
	in := make([]float32, rate/10)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	out := Resample(in, rate, 16000)

	inRMS := RMS(in)
	outRMS := RMS(out)
	if math.Abs(inRMS-outRMS) > 0.02 {
		t.Errorf("RMS drifted after resample: in=%v out=%v", inRMS, outRMS)
	}
}
