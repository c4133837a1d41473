package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveSessions prometheus.Gauge
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec

	BlocksReceived prometheus.Counter
	RepliesSent    prometheus.Counter
	EmptyResults   prometheus.Counter
	DecodeErrors   prometheus.Counter
	ProtocolErrors prometheus.Counter

	TranscriptionDuration prometheus.Histogram
	BlockAudioSeconds     prometheus.Histogram
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "transcribe_active_sessions",
			Help: "Current number of open streaming sessions",
		}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_sessions_opened_total",
			Help: "Total number of accepted streaming sessions",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "transcribe_sessions_closed_total",
			Help: "Total number of closed streaming sessions by close code",
		}, []string{"code"}),
		BlocksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_blocks_received_total",
			Help: "Total number of audio blocks received",
		}),
		RepliesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_replies_sent_total",
			Help: "Total number of transcription replies sent",
		}),
		EmptyResults: f.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_empty_results_total",
			Help: "Total number of blocks that produced no transcription",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_decode_errors_total",
			Help: "Total number of audio payloads that could not be decoded",
		}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_protocol_errors_total",
			Help: "Total number of malformed protocol messages",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcribe_transcription_duration_seconds",
			Help:    "Time spent transcribing one block",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		BlockAudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcribe_block_audio_seconds",
			Help:    "Duration of audio carried by one block",
			Buckets: prometheus.ExponentialBuckets(0.016, 2, 10), // 16ms to ~8s
		}),
	}
}

func (m *Metrics) SessionClosed(code int) {
	m.ActiveSessions.Dec()
	m.SessionsClosed.WithLabelValues(strconv.Itoa(code)).Inc()
}
