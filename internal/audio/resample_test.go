package audio

import (
	"math"
	"testing"
)

func sineBlock(freq float64, rate, n int, amplitude float64) Block {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return Block{Samples: samples, SampleRate: rate}
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestResample_OutputLength(t *testing.T) {
	const n = 1024
	for _, rate := range []int{8000, 16000, 44100, 48000} {
		out := Resample(sineBlock(440, rate, n, 0.5), TargetSampleRate)
		expected := float64(n) * TargetSampleRate / float64(rate)
		if math.Abs(float64(len(out.Samples))-expected) > 1 {
			t.Fatalf("rate %d: expected about %.1f samples, got %d", rate, expected, len(out.Samples))
		}
		if out.SampleRate != TargetSampleRate {
			t.Fatalf("rate %d: unexpected output rate %d", rate, out.SampleRate)
		}
	}
}

func TestResample_IdentityAtTargetRate(t *testing.T) {
	in := sineBlock(440, TargetSampleRate, 512, 0.5)
	out := Resample(in, TargetSampleRate)
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("expected %d samples, got %d", len(in.Samples), len(out.Samples))
	}
	if &out.Samples[0] != &in.Samples[0] {
		t.Fatal("expected identity resample to return the input slice")
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Fatalf("sample %d changed: %v != %v", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestResample_InvalidInputYieldsEmptyBlock(t *testing.T) {
	cases := map[string]Block{
		"zero rate":     {Samples: []float32{0.1, 0.2}, SampleRate: 0},
		"negative rate": {Samples: []float32{0.1, 0.2}, SampleRate: -8000},
		"absurd rate":   {Samples: []float32{0.1, 0.2}, SampleRate: MaxSampleRate + 1},
		"tiny rate":     {Samples: make([]float32, 2000), SampleRate: 1},
		"below minimum": {Samples: make([]float32, 2000), SampleRate: MinSampleRate - 1},
		"no samples":    {SampleRate: 44100},
	}
	for name, block := range cases {
		if out := Resample(block, TargetSampleRate); !out.IsEmpty() {
			t.Fatalf("%s: expected empty block, got %d samples", name, len(out.Samples))
		}
	}
}

func TestResample_PreservesInBandTone(t *testing.T) {
	out := Resample(sineBlock(1000, 48000, 4800, 0.5), TargetSampleRate)
	mid := out.Samples[50 : len(out.Samples)-50]
	if got := rms(mid); got < 0.3 || got > 0.4 {
		t.Fatalf("expected in-band tone rms near 0.354, got %.4f", got)
	}
}

func TestResample_SuppressesAliasingTone(t *testing.T) {
	// 12 kHz would fold to 4 kHz at a 16 kHz rate without filtering.
	out := Resample(sineBlock(12000, 48000, 4800, 0.5), TargetSampleRate)
	mid := out.Samples[50 : len(out.Samples)-50]
	if got := rms(mid); got > 0.02 {
		t.Fatalf("expected out-of-band tone to be filtered, rms %.4f", got)
	}
}

func TestResample_ClampsOutOfRangeSamples(t *testing.T) {
	in := Block{SampleRate: 8000, Samples: make([]float32, 256)}
	for i := range in.Samples {
		switch i % 4 {
		case 0:
			in.Samples[i] = 3
		case 1:
			in.Samples[i] = float32(math.NaN())
		case 2:
			in.Samples[i] = float32(math.Inf(-1))
		default:
			in.Samples[i] = -2
		}
	}
	out := Resample(in, TargetSampleRate)
	for i, s := range out.Samples {
		if math.IsNaN(float64(s)) || s > 1 || s < -1 {
			t.Fatalf("sample %d out of range: %v", i, s)
		}
	}
}

func TestLowpassKernel_UnityGain(t *testing.T) {
	h := lowpassKernel(0.15, lowpassTaps)
	var sum float64
	for _, c := range h {
		sum += c
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("expected unity DC gain, got %v", sum)
	}
	if h[0] != h[len(h)-1] {
		t.Fatal("expected symmetric kernel")
	}
}
