package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"github.com/foxseedlab/mojiokoshin-live/internal/metrics"
	"github.com/foxseedlab/mojiokoshin-live/internal/protocol"
	"github.com/foxseedlab/mojiokoshin-live/internal/repository"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 5 * time.Second
	journalTimeout      = 5 * time.Second
)

// Transcriber turns one audio block into text. false means no result.
type Transcriber interface {
	Transcribe(ctx context.Context, block audio.Block) (string, bool)
}

type Config struct {
	ContextOverlap  time.Duration
	MaxMessageBytes int64
	WriteTimeout    time.Duration
}

// Manager serves the streaming endpoint. Each connection gets its own
// goroutine; requests on a connection are handled strictly in order.
type Manager struct {
	cfg         Config
	transcriber Transcriber
	repo        repository.Repository
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*connSession
	closing  bool
	wg       sync.WaitGroup
}

type connSession struct {
	id         string
	remoteAddr string
	ackMode    bool
	startedAt  time.Time
	conn       *websocket.Conn

	state     atomic.Int32
	goingAway atomic.Bool

	blocks       atomic.Int64
	replies      atomic.Int64
	emptyResults atomic.Int64
	decodeErrors atomic.Int64

	carry []float32
}

type SessionInfo struct {
	ID             string    `json:"id"`
	RemoteAddr     string    `json:"remote_addr"`
	AckMode        bool      `json:"ack_mode"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	BlocksReceived int64     `json:"blocks_received"`
	RepliesSent    int64     `json:"replies_sent"`
}

func NewManager(cfg Config, stt Transcriber, repo repository.Repository, m *metrics.Metrics) *Manager {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:         cfg,
		transcriber: stt,
		repo:        repo,
		metrics:     m,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{protocol.AckSubprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*connSession),
	}
}

func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	if m.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(m.cfg.MaxMessageBytes)
	}
	// The close frame is answered in finish with a code chosen by the server.
	conn.SetCloseHandler(func(int, string) error { return nil })

	s := &connSession{
		id:         uuid.NewString(),
		remoteAddr: r.RemoteAddr,
		ackMode:    conn.Subprotocol() == protocol.AckSubprotocol,
		startedAt:  time.Now(),
		conn:       conn,
	}
	s.state.Store(int32(protocol.StateConnected))
	m.register(s)
	slog.Info("session connected", "session_id", s.id, "remote_addr", s.remoteAddr, "ack_mode", s.ackMode)

	code, reason := m.serve(s)
	m.finish(s, code, reason)
}

func (m *Manager) register(s *connSession) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.metrics.SessionsOpened.Inc()
	m.metrics.ActiveSessions.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if _, err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		ID:         s.id,
		RemoteAddr: s.remoteAddr,
		AckMode:    s.ackMode,
		StartedAt:  s.startedAt,
	}); err != nil {
		slog.Error("failed to journal session start", "error", err, "session_id", s.id)
	}
}

func (m *Manager) serve(s *connSession) (int, string) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return m.classifyReadError(s, err)
		}
		if messageType != websocket.TextMessage {
			m.metrics.ProtocolErrors.Inc()
			slog.Warn("rejecting non-text frame", "session_id", s.id, "message_type", messageType)
			return protocol.CloseMalformed, "expected text frames"
		}
		req, err := protocol.DecodeRequest(data)
		if err != nil {
			m.metrics.ProtocolErrors.Inc()
			slog.Warn("rejecting malformed request", "session_id", s.id, "error", err)
			return protocol.CloseMalformed, "malformed request"
		}
		s.state.Store(int32(protocol.StateStreaming))
		s.blocks.Add(1)
		m.metrics.BlocksReceived.Inc()

		text, ok := m.handle(s, req)
		if !ok {
			s.emptyResults.Add(1)
			m.metrics.EmptyResults.Inc()
			if !s.ackMode {
				continue
			}
			text = ""
		}

		if err := m.reply(s, text); err != nil {
			if s.goingAway.Load() {
				return protocol.CloseGoingAway, "server shutting down"
			}
			slog.Error("failed to send reply", "error", err, "session_id", s.id)
			return protocol.CloseInternalError, "failed to send reply"
		}
		if ok {
			s.replies.Add(1)
			m.metrics.RepliesSent.Inc()
		}
	}
}

func (m *Manager) reply(s *connSession, text string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (m *Manager) handle(s *connSession, req protocol.Request) (string, bool) {
	block, err := req.Block()
	if err != nil {
		s.decodeErrors.Add(1)
		m.metrics.DecodeErrors.Inc()
		slog.Warn("failed to decode audio payload", "session_id", s.id, "error", err, "payload_bytes", len(req.Audio), "sample_rate", req.SampleRate)
		return "", false
	}
	m.metrics.BlockAudioSeconds.Observe(block.Duration().Seconds())

	if m.cfg.ContextOverlap > 0 {
		block = s.withOverlap(block, m.cfg.ContextOverlap)
	}

	start := time.Now()
	text, ok := m.transcriber.Transcribe(m.ctx, block)
	m.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	return text, ok
}

// withOverlap prepends the tail of the previous block, both at the target rate.
func (s *connSession) withOverlap(block audio.Block, overlap time.Duration) audio.Block {
	resampled := audio.Resample(block, audio.TargetSampleRate)
	if resampled.IsEmpty() {
		return block
	}

	merged := make([]float32, 0, len(s.carry)+len(resampled.Samples))
	merged = append(merged, s.carry...)
	merged = append(merged, resampled.Samples...)

	keep := overlapSamples(overlap, len(resampled.Samples))
	s.carry = append(s.carry[:0], resampled.Samples[len(resampled.Samples)-keep:]...)

	return audio.Block{Samples: merged, SampleRate: audio.TargetSampleRate}
}

// overlapSamples converts overlap to a sample count at the target rate, bounded by 0..limit.
func overlapSamples(overlap time.Duration, limit int) int {
	ms := overlap.Milliseconds()
	if ms <= 0 {
		return 0
	}
	if ms >= int64(limit)*1000/audio.TargetSampleRate {
		return limit
	}
	return int(ms * audio.TargetSampleRate / 1000)
}

func (m *Manager) classifyReadError(s *connSession, err error) (int, string) {
	switch {
	case s.goingAway.Load():
		return protocol.CloseGoingAway, "server shutting down"
	case errors.Is(err, websocket.ErrReadLimit):
		m.metrics.ProtocolErrors.Inc()
		slog.Warn("message exceeded read limit", "session_id", s.id, "limit_bytes", m.cfg.MaxMessageBytes)
		return protocol.CloseTooLarge, "message too large"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return protocol.CloseNormal, ""
	default:
		slog.Warn("session read failed", "session_id", s.id, "error", err)
		return websocket.CloseAbnormalClosure, err.Error()
	}
}

func (m *Manager) finish(s *connSession, code int, reason string) {
	s.state.Store(int32(protocol.StateClosed))
	if code != websocket.CloseAbnormalClosure {
		deadline := time.Now().Add(m.cfg.WriteTimeout)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			slog.Debug("failed to send close frame", "session_id", s.id, "error", err)
		}
	}
	_ = s.conn.Close()

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
	m.metrics.SessionClosed(code)

	slog.Info("session closed",
		"session_id", s.id,
		"close_code", code,
		"close_reason", reason,
		"blocks_received", s.blocks.Load(),
		"replies_sent", s.replies.Load(),
		"empty_results", s.emptyResults.Load(),
		"decode_errors", s.decodeErrors.Load(),
		"elapsed", time.Since(s.startedAt).String())

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := m.repo.CompleteSession(ctx, repository.CompleteSessionInput{
		SessionID:      s.id,
		EndedAt:        time.Now(),
		BlocksReceived: s.blocks.Load(),
		RepliesSent:    s.replies.Load(),
		EmptyResults:   s.emptyResults.Load(),
		DecodeErrors:   s.decodeErrors.Load(),
		CloseCode:      code,
		CloseReason:    reason,
	}); err != nil {
		slog.Error("failed to journal session end", "error", err, "session_id", s.id)
	}
}

// Sessions returns a snapshot of the open connections.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, SessionInfo{
			ID:             s.id,
			RemoteAddr:     s.remoteAddr,
			AckMode:        s.ackMode,
			State:          protocol.State(s.state.Load()).String(),
			StartedAt:      s.startedAt,
			BlocksReceived: s.blocks.Load(),
			RepliesSent:    s.replies.Load(),
		})
	}
	return out
}

// Shutdown sends going-away to every connection and waits for them to end.
// Connections still open when ctx expires are closed forcibly.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	open := make([]*connSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	slog.Info("shutting down sessions", "open_sessions", len(open))
	msg := websocket.FormatCloseMessage(protocol.CloseGoingAway, "server shutting down")
	for _, s := range open {
		s.goingAway.Store(true)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(m.cfg.WriteTimeout)); err != nil {
			_ = s.conn.Close()
		}
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		for _, s := range m.sessions {
			_ = s.conn.Close()
		}
		m.mu.Unlock()
		<-done
		return ctx.Err()
	}
}
