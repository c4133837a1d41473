package capture

import (
	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
)

// Source is a capture device producing fixed-size mono blocks.
// onBlock runs on the device's own thread and must not block.
type Source interface {
	Start(onBlock func(audio.Block)) error
	Stop() error
}

// Framer cuts arbitrarily sized device buffers into blocks of exactly blockSize samples.
// It is not safe for concurrent use; device callbacks are delivered serially.
type Framer struct {
	sampleRate int
	blockSize  int
	pending    []float32
	emit       func(audio.Block)
}

func NewFramer(sampleRate, blockSize int, emit func(audio.Block)) *Framer {
	return &Framer{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		pending:    make([]float32, 0, blockSize*2),
		emit:       emit,
	}
}

func (f *Framer) Write(samples []float32) {
	f.pending = append(f.pending, samples...)
	offset := 0
	for len(f.pending)-offset >= f.blockSize {
		block := make([]float32, f.blockSize)
		copy(block, f.pending[offset:offset+f.blockSize])
		offset += f.blockSize
		f.emit(audio.Block{Samples: block, SampleRate: f.sampleRate})
	}
	n := copy(f.pending, f.pending[offset:])
	f.pending = f.pending[:n]
}

// WriteBytes accepts raw little-endian float32 frames as delivered by the device.
func (f *Framer) WriteBytes(raw []byte) {
	samples, err := audio.DecodeFloat32LE(raw)
	if err != nil {
		return
	}
	f.Write(samples)
}

func (f *Framer) Pending() int {
	return len(f.pending)
}
