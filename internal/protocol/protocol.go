package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"github.com/gorilla/websocket"
)

const (
	DefaultPath = "/ws/transcribe"

	// AckSubprotocol makes the server answer every request, sending an empty
	// text message when a block produced no transcription.
	AckSubprotocol = "transcribe.ack.v1"
)

const (
	CloseNormal        = websocket.CloseNormalClosure
	CloseGoingAway     = websocket.CloseGoingAway
	CloseMalformed     = websocket.CloseProtocolError
	CloseTooLarge      = websocket.CloseMessageTooBig
	CloseInternalError = websocket.CloseInternalServerErr
)

var ErrMalformed = errors.New("malformed request")

// Request is one audio block on the wire. Audio holds little-endian float32
// samples and is base64 encoded by encoding/json.
type Request struct {
	Audio      []byte `json:"audio"`
	SampleRate int    `json:"sample_rate"`
}

type wireRequest struct {
	Audio      *[]byte `json:"audio"`
	SampleRate *int    `json:"sample_rate"`
}

func EncodeRequest(block audio.Block) ([]byte, error) {
	data, err := json.Marshal(Request{
		Audio:      audio.EncodeFloat32LE(block.Samples),
		SampleRate: block.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return data, nil
}

// DecodeRequest parses a text message. Missing fields and invalid JSON are
// reported as ErrMalformed; the payload bytes are not validated here.
func DecodeRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.SampleRate == nil {
		return Request{}, fmt.Errorf("%w: missing sample_rate", ErrMalformed)
	}
	if w.Audio == nil {
		return Request{}, fmt.Errorf("%w: missing audio", ErrMalformed)
	}
	return Request{Audio: *w.Audio, SampleRate: *w.SampleRate}, nil
}

func (r Request) Block() (audio.Block, error) {
	if !audio.ValidSampleRate(r.SampleRate) {
		return audio.Block{}, fmt.Errorf("%w: sample rate %d outside %d..%d",
			audio.ErrInvalidPayload, r.SampleRate, audio.MinSampleRate, audio.MaxSampleRate)
	}
	samples, err := audio.DecodeFloat32LE(r.Audio)
	if err != nil {
		return audio.Block{}, err
	}
	return audio.Block{Samples: samples, SampleRate: r.SampleRate}, nil
}

// State is the connection state seen by either endpoint.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
