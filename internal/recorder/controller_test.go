package recorder

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"github.com/foxseedlab/mojiokoshin-live/internal/metrics"
	"github.com/foxseedlab/mojiokoshin-live/internal/protocol"
	"github.com/foxseedlab/mojiokoshin-live/internal/repository"
	"github.com/foxseedlab/mojiokoshin-live/internal/session"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
	"github.com/foxseedlab/mojiokoshin-live/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	mu      sync.Mutex
	onBlock func(audio.Block)
	starts  int
	stops   int
	failErr error
}

func (s *fakeSource) Start(onBlock func(audio.Block)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.onBlock = onBlock
	s.starts++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSource) emit(rate, n int, value float32) {
	s.mu.Lock()
	fn := s.onBlock
	s.mu.Unlock()
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	fn(audio.Block{Samples: samples, SampleRate: rate})
}

func (s *fakeSource) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// scriptedTranscriber answers calls in order from a script; "" means no result.
type scriptedTranscriber struct {
	mu     sync.Mutex
	script []string
	calls  int
	delay  time.Duration
}

func (s *scriptedTranscriber) Transcribe(context.Context, audio.Block) (string, bool) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.script) || s.script[i] == "" {
		return "", false
	}
	return s.script[i], true
}

type nopRepository struct{}

func (nopRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	return &repository.Session{ID: input.ID}, nil
}
func (nopRepository) CompleteSession(context.Context, repository.CompleteSessionInput) error {
	return nil
}
func (nopRepository) GetSession(context.Context, string) (*repository.Session, error) {
	return nil, nil
}
func (nopRepository) ListRecentSessions(context.Context, int) ([]repository.Session, error) {
	return nil, nil
}

type statusSink struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusSink) AppendText(string) {}

func (s *statusSink) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *statusSink) has(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.statuses {
		if strings.HasPrefix(st, prefix) {
			return true
		}
	}
	return false
}

type recordingWebhook struct {
	mu       sync.Mutex
	payloads []webhook.TranscriptWebhookPayload
}

func (w *recordingWebhook) SendTranscript(_ context.Context, payload webhook.TranscriptWebhookPayload) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.payloads = append(w.payloads, payload)
	return nil
}

type harness struct {
	manager *session.Manager
	server  *httptest.Server
	url     string
}

func newHarness(t *testing.T, stt session.Transcriber) *harness {
	t.Helper()
	m := session.NewManager(session.Config{}, stt, nopRepository{}, metrics.NewMetrics(prometheus.NewRegistry()))
	srv := httptest.NewServer(m)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		srv.Close()
	})
	return &harness{manager: m, server: srv, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func testConfig(url string) Config {
	return Config{
		ServerURL:       url,
		ReplyTimeout:    200 * time.Millisecond,
		AckReplyTimeout: 2 * time.Second,
		PollInterval:    20 * time.Millisecond,
		QueueCapacity:   64,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestController_MixedRateScenario(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{script: []string{"a", "", "b"}})
	src := &fakeSource{}
	wh := &recordingWebhook{}
	c := NewController(testConfig(h.url), src, transcript.NewAssembler(), wh)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if c.State() != protocol.StateStreaming {
		t.Fatalf("expected streaming state, got %s", c.State())
	}

	src.emit(16000, 1024, 0.5)
	src.emit(44100, 1024, 0.5)
	src.emit(16000, 1024, 0.5)

	waitFor(t, 3*time.Second, func() bool {
		s := c.Stats()
		return s.BlocksSent == 3 && s.Replies == 2
	})
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if got := c.Transcript(); got != "a b" {
		t.Fatalf("expected %q, got %q", "a b", got)
	}
	stats := c.Stats()
	if stats.Replies != 2 || stats.BlocksCaptured != 3 || stats.BlocksDropped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if c.State() != protocol.StateClosed {
		t.Fatalf("expected closed state, got %s", c.State())
	}
	if len(wh.payloads) != 1 || wh.payloads[0].Transcript != "a b" || wh.payloads[0].StopReason != transcript.StatusStopped {
		t.Fatalf("unexpected webhook payloads: %+v", wh.payloads)
	}
}

func TestController_AckModeAvoidsReplyTimeouts(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{script: []string{"", "hello"}})
	src := &fakeSource{}
	cfg := testConfig(h.url)
	cfg.AckMode = true
	c := NewController(cfg, src, transcript.NewAssembler(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	src.emit(16000, 512, 0)
	src.emit(16000, 512, 0.5)

	waitFor(t, 3*time.Second, func() bool { return c.Stats().Replies == 1 })
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := c.Stats().ReplyTimeouts; got != 0 {
		t.Fatalf("expected no reply timeouts in ack mode, got %d", got)
	}
	if got := c.Transcript(); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestController_StopIsPromptWithEmptyQueue(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	src := &fakeSource{}
	cfg := testConfig(h.url)
	cfg.PollInterval = 100 * time.Millisecond
	c := NewController(cfg, src, transcript.NewAssembler(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 200*time.Millisecond {
		t.Fatalf("stop took %v", elapsed)
	}
	if src.stopCount() != 1 {
		t.Fatalf("expected capture to stop once, got %d", src.stopCount())
	}
	if !errors.Is(c.Stop(), ErrNotRunning) {
		t.Fatal("expected second stop to report ErrNotRunning")
	}
}

func TestController_ServerDisconnectClosesRecording(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{script: []string{"first"}})
	src := &fakeSource{}
	sink := &statusSink{}
	c := NewController(testConfig(h.url), src, transcript.NewAssembler(sink), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	src.emit(16000, 256, 0.5)
	waitFor(t, 3*time.Second, func() bool { return c.Stats().Replies == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.manager.Shutdown(ctx); err != nil {
		t.Fatalf("server shutdown failed: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recording loop did not exit after disconnect")
	}
	if c.State() != protocol.StateClosed {
		t.Fatalf("expected closed state, got %s", c.State())
	}
	if src.stopCount() != 1 {
		t.Fatalf("expected capture to be stopped, got %d stops", src.stopCount())
	}
	if !sink.has("disconnected: ") {
		t.Fatalf("expected disconnect status, got %v", sink.statuses)
	}

	// Late device callbacks are ignored.
	src.emit(16000, 256, 0.5)
	if got := c.Stats().BlocksCaptured; got != 1 {
		t.Fatalf("expected late block to be ignored, captured %d", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("expected stop to finalize the failed recording, got %v", err)
	}
	if src.stopCount() != 1 {
		t.Fatalf("expected capture stop not to repeat, got %d", src.stopCount())
	}
}

func TestController_StartTwice(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	c := NewController(testConfig(h.url), &fakeSource{}, transcript.NewAssembler(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = c.Stop() }()
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestController_StartClearsPreviousTranscript(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{script: []string{"old", "new"}})
	src := &fakeSource{}
	c := NewController(testConfig(h.url), src, transcript.NewAssembler(), nil)

	for _, want := range []string{"old", "new"} {
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		src.emit(16000, 256, 0.5)
		waitFor(t, 3*time.Second, func() bool { return c.Stats().Replies == 1 })
		if err := c.Stop(); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if got := c.Transcript(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestController_DialFailure(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	url := h.url
	h.server.Close()

	sink := &statusSink{}
	c := NewController(testConfig(url), &fakeSource{}, transcript.NewAssembler(sink), nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if c.State() != protocol.StateIdle {
		t.Fatalf("expected idle state, got %s", c.State())
	}
	if !sink.has("disconnected: ") {
		t.Fatalf("expected disconnect status, got %v", sink.statuses)
	}
	if !errors.Is(c.Stop(), ErrNotRunning) {
		t.Fatal("expected ErrNotRunning after failed start")
	}
}

func TestController_CaptureStartFailure(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	src := &fakeSource{failErr: errors.New("no input device")}
	c := NewController(testConfig(h.url), src, transcript.NewAssembler(), nil)

	if err := c.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "no input device") {
		t.Fatalf("expected capture error, got %v", err)
	}
	if c.State() != protocol.StateClosed {
		t.Fatalf("expected closed state, got %s", c.State())
	}
}

func TestController_QueueDropsOldestWhileBusy(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{delay: 150 * time.Millisecond})
	src := &fakeSource{}
	cfg := testConfig(h.url)
	cfg.QueueCapacity = 2
	c := NewController(cfg, src, transcript.NewAssembler(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	var emitted atomic.Int64
	for range 10 {
		src.emit(16000, 128, 0.5)
		emitted.Add(1)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	stats := c.Stats()
	if stats.BlocksCaptured != emitted.Load() {
		t.Fatalf("expected %d captured, got %d", emitted.Load(), stats.BlocksCaptured)
	}
	if stats.BlocksDropped < 7 {
		t.Fatalf("expected at least 7 dropped blocks, got %d", stats.BlocksDropped)
	}
	if accounted := stats.BlocksSent + int64(stats.BlocksDropped) + stats.BlocksUnsent; accounted != stats.BlocksCaptured {
		t.Fatalf("expected every captured block to be sent, dropped or unsent, got %+v", stats)
	}
}
