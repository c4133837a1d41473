package audio

import (
	"math"

	"github.com/gopxl/beep"
)

const (
	resampleQuality = 4
	lowpassTaps     = 63
	// fraction of the target Nyquist kept by the anti-alias filter
	lowpassRolloff = 0.9
	streamBufSize  = 512
)

// Resample converts block to the target rate.
//
// A block already at the target rate is returned as is. Blocks with no
// samples or an unusable rate come back empty so callers skip transcription.
// Downsampling runs a windowed-sinc low-pass at the source rate first, so the
// result never carries aliased content above the target Nyquist frequency.
func Resample(block Block, target int) Block {
	if target <= 0 || !ValidSampleRate(block.SampleRate) || len(block.Samples) == 0 {
		return Block{SampleRate: target}
	}
	if block.SampleRate == target {
		return block
	}

	src := sanitize(block.Samples)
	if target < block.SampleRate {
		cutoff := lowpassRolloff * 0.5 * float64(target) / float64(block.SampleRate)
		src = lowpass(src, cutoff)
	}

	want := int(math.Round(float64(len(src)) * float64(target) / float64(block.SampleRate)))
	if want == 0 {
		return Block{SampleRate: target}
	}
	return Block{
		Samples:    interpolate(src, block.SampleRate, target, want),
		SampleRate: target,
	}
}

func sanitize(samples []float32) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = clampSample(s)
	}
	return out
}

func lowpass(x []float32, cutoff float64) []float32 {
	h := lowpassKernel(cutoff, lowpassTaps)
	half := len(h) / 2
	out := make([]float32, len(x))
	for i := range x {
		var acc float64
		for k, c := range h {
			j := i + k - half
			if j < 0 || j >= len(x) {
				continue
			}
			acc += c * float64(x[j])
		}
		out[i] = float32(acc)
	}
	return out
}

// lowpassKernel builds a Blackman-windowed sinc with unity DC gain.
// cutoff is in cycles per sample.
func lowpassKernel(cutoff float64, taps int) []float64 {
	h := make([]float64, taps)
	m := float64(taps - 1)
	var sum float64
	for n := range h {
		x := float64(n) - m/2
		v := 2 * cutoff
		if x != 0 {
			v = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(n)/m) + 0.08*math.Cos(4*math.Pi*float64(n)/m)
		h[n] = v * w
		sum += h[n]
	}
	for n := range h {
		h[n] /= sum
	}
	return h
}

func interpolate(src []float32, from, to, want int) []float32 {
	pos := 0
	in := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(src) {
			return 0, false
		}
		n := 0
		for n < len(samples) && pos < len(src) {
			v := float64(src[pos])
			samples[n] = [2]float64{v, v}
			n++
			pos++
		}
		return n, true
	})

	r := beep.Resample(resampleQuality, beep.SampleRate(from), beep.SampleRate(to), in)
	out := make([]float32, 0, want)
	buf := make([][2]float64, streamBufSize)
	for len(out) < want {
		n, ok := r.Stream(buf)
		for _, s := range buf[:n] {
			if len(out) == want {
				break
			}
			out = append(out, clampSample(float32(s[0])))
		}
		if !ok || n == 0 {
			break
		}
	}
	// the interpolator may stop a sample short of the rounded length
	for len(out) < want {
		var last float32
		if len(out) > 0 {
			last = out[len(out)-1]
		}
		out = append(out, last)
	}
	return out
}
