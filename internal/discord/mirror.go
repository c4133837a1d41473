package discord

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMirrorBuffer = 128
	mirrorDrainTimeout  = 10 * time.Second
)

type mirrorMessage struct {
	content string
	file    *FileMessage
}

// Mirror posts transcript fragments and status changes to one channel.
// Posting happens on a worker goroutine so callers never wait on Discord.
type Mirror struct {
	client    Client
	channelID string
	queue     chan mirrorMessage
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

func NewMirror(client Client, channelID string, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = defaultMirrorBuffer
	}
	m := &Mirror{
		client:    client,
		channelID: channelID,
		queue:     make(chan mirrorMessage, buffer),
		done:      make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) run() {
	defer close(m.done)
	for msg := range m.queue {
		var err error
		if msg.file != nil {
			err = m.client.SendChannelMessageWithFile(*msg.file)
		} else {
			err = m.client.SendChannelMessage(m.channelID, msg.content)
		}
		if err != nil {
			slog.Error("failed to post to discord", "error", err, "channel_id", m.channelID)
		}
	}
}

func (m *Mirror) enqueue(msg mirrorMessage) {
	select {
	case m.queue <- msg:
	default:
		n := m.dropped.Add(1)
		slog.Warn("discord mirror queue full; dropping message", "channel_id", m.channelID, "dropped_total", n)
	}
}

func (m *Mirror) AppendText(text string) {
	m.enqueue(mirrorMessage{content: text})
}

func (m *Mirror) SetStatus(status string) {
	if content := statusMessage(status); content != "" {
		m.enqueue(mirrorMessage{content: content})
	}
}

// PostTranscript attaches the full transcript as a text file.
func (m *Mirror) PostTranscript(filename, text string) {
	if text == "" {
		m.enqueue(mirrorMessage{content: msgEmptyTranscript})
		return
	}
	m.enqueue(mirrorMessage{file: &FileMessage{
		ChannelID: m.channelID,
		Content:   msgTranscriptFile,
		Filename:  filename,
		FileBody:  []byte(text),
	}})
}

func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// Shutdown flushes queued messages and closes the client. It must be called
// after the last AppendText or SetStatus.
func (m *Mirror) Shutdown() error {
	m.closeOnce.Do(func() { close(m.queue) })
	select {
	case <-m.done:
	case <-time.After(mirrorDrainTimeout):
		slog.Warn("discord mirror did not drain in time", "channel_id", m.channelID, "pending", len(m.queue))
	}
	return m.client.Close()
}
