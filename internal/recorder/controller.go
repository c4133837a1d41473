package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"github.com/foxseedlab/mojiokoshin-live/internal/capture"
	"github.com/foxseedlab/mojiokoshin-live/internal/protocol"
	"github.com/foxseedlab/mojiokoshin-live/internal/queue"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
	"github.com/foxseedlab/mojiokoshin-live/internal/webhook"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultPollInterval     = 100 * time.Millisecond
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 5 * time.Second
	stopGrace               = 100 * time.Millisecond
	webhookTimeout          = 15 * time.Second
	replyBuffer             = 16
)

var (
	ErrAlreadyRunning = errors.New("recording is already running")
	ErrNotRunning     = errors.New("recording is not running")
)

type Config struct {
	ServerURL        string
	AckMode          bool
	ReplyTimeout     time.Duration
	AckReplyTimeout  time.Duration
	PollInterval     time.Duration
	QueueCapacity    int
	HandshakeTimeout time.Duration
}

type Stats struct {
	BlocksCaptured int64
	BlocksSent     int64
	BlocksDropped  uint64
	// BlocksUnsent were still queued when the recording ended.
	BlocksUnsent  int64
	Replies       int64
	ReplyTimeouts int64
}

// Controller owns one recording at a time: capture feeds a bounded queue and
// a single loop sends blocks one by one, waiting for each reply.
type Controller struct {
	cfg       Config
	source    capture.Source
	assembler *transcript.Assembler
	webhook   webhook.Sender

	mu    sync.Mutex
	run   *run
	last  *run
	state atomic.Int32
}

type run struct {
	id        string
	ack       bool
	startedAt time.Time
	conn      *websocket.Conn
	queue     *queue.Bounded[audio.Block]

	ctx    context.Context
	cancel context.CancelFunc
	active atomic.Bool
	done   chan struct{}

	replies chan string
	readErr chan error

	captureOnce sync.Once
	connOnce    sync.Once

	mu      sync.Mutex
	failure error

	captured      atomic.Int64
	sent          atomic.Int64
	unsent        atomic.Int64
	received      atomic.Int64
	replyTimeouts atomic.Int64
}

// NewController wires a recorder. wh may be nil.
func NewController(cfg Config, source capture.Source, assembler *transcript.Assembler, wh webhook.Sender) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.AckReplyTimeout <= 0 {
		cfg.AckReplyTimeout = cfg.ReplyTimeout
	}
	c := &Controller{
		cfg:       cfg,
		source:    source,
		assembler: assembler,
		webhook:   wh,
	}
	c.state.Store(int32(protocol.StateIdle))
	return c
}

func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != nil {
		select {
		case <-c.run.done:
		default:
			return ErrAlreadyRunning
		}
	}

	c.assembler.Reset()
	c.assembler.SetStatus(transcript.StatusConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	if c.cfg.AckMode {
		dialer.Subprotocols = []string{protocol.AckSubprotocol}
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		c.state.Store(int32(protocol.StateIdle))
		c.assembler.SetStatus(transcript.Disconnected(err))
		return fmt.Errorf("connect to %s: %w", c.cfg.ServerURL, err)
	}
	c.state.Store(int32(protocol.StateConnected))

	ack := conn.Subprotocol() == protocol.AckSubprotocol
	if c.cfg.AckMode && !ack {
		slog.Warn("server did not accept acknowledged mode; falling back to reply timeouts", "server_url", c.cfg.ServerURL)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:        uuid.NewString(),
		ack:       ack,
		startedAt: time.Now(),
		conn:      conn,
		queue:     queue.NewBounded[audio.Block](c.cfg.QueueCapacity),
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		replies:   make(chan string, replyBuffer),
		readErr:   make(chan error, 1),
	}
	r.active.Store(true)
	go c.read(r)

	if err := c.source.Start(func(block audio.Block) { c.enqueue(r, block) }); err != nil {
		r.active.Store(false)
		cancel()
		close(r.done)
		_ = conn.Close()
		c.state.Store(int32(protocol.StateClosed))
		c.assembler.SetStatus(transcript.Disconnected(err))
		return fmt.Errorf("start capture: %w", err)
	}

	c.run = r
	c.last = r
	c.state.Store(int32(protocol.StateStreaming))
	c.assembler.SetStatus(transcript.StatusRecording)
	slog.Info("recording started", "recording_id", r.id, "server_url", c.cfg.ServerURL, "ack_mode", ack, "queue_capacity", r.queue.Cap())

	go c.loop(r)
	return nil
}

// enqueue runs on the capture thread and must never block.
func (c *Controller) enqueue(r *run, block audio.Block) {
	if !r.active.Load() {
		return
	}
	r.captured.Add(1)
	if r.queue.Push(block) {
		slog.Debug("queue full; dropped oldest block", "recording_id", r.id, "dropped_total", r.queue.Dropped())
	}
}

func (c *Controller) read(r *run) {
	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			r.readErr <- err
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case r.replies <- string(data):
		case <-r.done:
			return
		}
	}
}

func (c *Controller) loop(r *run) {
	defer close(r.done)
	for {
		c.drainReplies(r)
		select {
		case err := <-r.readErr:
			c.fail(r, err)
			return
		case <-r.ctx.Done():
			return
		default:
		}

		block, ok := r.queue.Pop(r.ctx, c.cfg.PollInterval)
		if !ok {
			continue
		}
		if err := c.roundTrip(r, block); err != nil {
			c.fail(r, err)
			return
		}
	}
}

// drainReplies accepts replies that arrived after their wait timed out.
func (c *Controller) drainReplies(r *run) {
	for {
		select {
		case text := <-r.replies:
			c.accept(r, text)
		default:
			return
		}
	}
}

func (c *Controller) roundTrip(r *run, block audio.Block) error {
	data, err := protocol.EncodeRequest(block)
	if err != nil {
		return err
	}
	if err := r.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("send block: %w", err)
	}
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send block: %w", err)
	}
	r.sent.Add(1)

	timeout := c.cfg.ReplyTimeout
	if r.ack {
		timeout = c.cfg.AckReplyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case text := <-r.replies:
		c.accept(r, text)
	case err := <-r.readErr:
		return fmt.Errorf("wait for reply: %w", err)
	case <-timer.C:
		r.replyTimeouts.Add(1)
		if r.ack {
			slog.Warn("acknowledgement timed out", "recording_id", r.id, "timeout", timeout.String())
		} else {
			slog.Debug("no reply for block", "recording_id", r.id, "sample_rate", block.SampleRate, "samples", len(block.Samples), "queue_len", r.queue.Len())
		}
	}
	return nil
}

func (c *Controller) accept(r *run, text string) {
	if text == "" {
		return
	}
	r.received.Add(1)
	c.assembler.Append(text)
}

func (c *Controller) stopCapture(r *run) {
	r.captureOnce.Do(func() {
		r.active.Store(false)
		if err := c.source.Stop(); err != nil {
			slog.Warn("failed to stop capture", "error", err, "recording_id", r.id)
		}
	})
}

func (c *Controller) closeConn(r *run, graceful bool) {
	r.connOnce.Do(func() {
		if graceful {
			msg := websocket.FormatCloseMessage(protocol.CloseNormal, "")
			if err := r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil {
				slog.Debug("failed to send close frame", "error", err, "recording_id", r.id)
			}
		}
		_ = r.conn.Close()
	})
}

// fail runs on the loop goroutine after a transport error.
func (c *Controller) fail(r *run, err error) {
	slog.Error("connection to transcription server lost", "error", err, "recording_id", r.id)
	r.mu.Lock()
	r.failure = err
	r.mu.Unlock()

	r.cancel()
	c.stopCapture(r)
	c.closeConn(r, false)
	c.state.Store(int32(protocol.StateClosed))
	c.assembler.SetStatus(transcript.Disconnected(err))
}

// Stop ends the recording, flushing the in-flight round trip when possible.
// It also finalizes a recording that already ended on a transport error.
func (c *Controller) Stop() error {
	c.mu.Lock()
	r := c.run
	c.run = nil
	c.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}

	r.cancel()
	c.stopCapture(r)

	wait := c.cfg.ReplyTimeout
	if r.ack {
		wait = c.cfg.AckReplyTimeout
	}
	select {
	case <-r.done:
	case <-time.After(wait + c.cfg.PollInterval + stopGrace):
		slog.Warn("recording loop did not stop in time", "recording_id", r.id)
	}
	r.unsent.Add(int64(r.queue.Drain()))

	failure := r.err()
	c.closeConn(r, failure == nil)
	c.state.Store(int32(protocol.StateClosed))
	if failure == nil {
		c.assembler.SetStatus(transcript.StatusStopped)
	}

	endedAt := time.Now()
	stats := r.stats()
	slog.Info("recording stopped",
		"recording_id", r.id,
		"blocks_captured", stats.BlocksCaptured,
		"blocks_sent", stats.BlocksSent,
		"blocks_dropped", stats.BlocksDropped,
		"blocks_unsent", stats.BlocksUnsent,
		"replies", stats.Replies,
		"reply_timeouts", stats.ReplyTimeouts,
		"elapsed", formatElapsedHMS(endedAt.Sub(r.startedAt)))

	if c.webhook != nil {
		payload := buildTranscriptWebhookPayload(r.id, c.cfg.ServerURL, r.startedAt, endedAt, stopReason(failure), stats, c.assembler)
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		if err := c.webhook.SendTranscript(ctx, payload); err != nil {
			slog.Error("failed to send transcript webhook", "error", err, "recording_id", r.id)
		}
	}
	return nil
}

// Done is closed when the current recording loop exits, including on transport errors.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.run.done
}

func (c *Controller) State() protocol.State {
	return protocol.State(c.state.Load())
}

// Transcript returns the text assembled so far.
func (c *Controller) Transcript() string {
	return c.assembler.Text()
}

// Stats reports counters of the current or most recent recording.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	r := c.last
	c.mu.Unlock()
	if r == nil {
		return Stats{}
	}
	return r.stats()
}

func (r *run) stats() Stats {
	return Stats{
		BlocksCaptured: r.captured.Load(),
		BlocksSent:     r.sent.Load(),
		BlocksDropped:  r.queue.Dropped(),
		BlocksUnsent:   r.unsent.Load(),
		Replies:        r.received.Load(),
		ReplyTimeouts:  r.replyTimeouts.Load(),
	}
}

func (r *run) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

func stopReason(failure error) string {
	if failure != nil {
		return transcript.Disconnected(failure)
	}
	return transcript.StatusStopped
}
