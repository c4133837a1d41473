package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// TargetSampleRate is the only rate the speech model accepts.
	TargetSampleRate = 16000
	// MinSampleRate bounds the upsampling factor so one request cannot
	// expand into an unbounded buffer.
	MinSampleRate = 8000
	MaxSampleRate = 384000

	float32Bytes = 4
	pcm16Bytes   = 2
)

var ErrInvalidPayload = errors.New("invalid audio payload")

// Block is one captured chunk of mono samples in the range -1.0..1.0.
type Block struct {
	Samples    []float32
	SampleRate int
}

// ValidSampleRate reports whether rate is within MinSampleRate..MaxSampleRate.
func ValidSampleRate(rate int) bool {
	return rate >= MinSampleRate && rate <= MaxSampleRate
}

func (b Block) IsEmpty() bool {
	return len(b.Samples) == 0
}

func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

func DecodeFloat32LE(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no sample bytes", ErrInvalidPayload)
	}
	if len(raw)%float32Bytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidPayload, len(raw), float32Bytes)
	}
	out := make([]float32, len(raw)/float32Bytes)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*float32Bytes:]))
	}
	return out, nil
}

func EncodeFloat32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*float32Bytes)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*float32Bytes:], math.Float32bits(s))
	}
	return out
}

// EncodePCM16LE converts float samples to LINEAR16 bytes, clamping out-of-range values.
func EncodePCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*pcm16Bytes)
	for i, s := range samples {
		v := math.Round(float64(clampSample(s)) * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*pcm16Bytes:], uint16(int16(v)))
	}
	return out
}

func clampSample(s float32) float32 {
	switch {
	case math.IsNaN(float64(s)) || math.IsInf(float64(s), 0):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
