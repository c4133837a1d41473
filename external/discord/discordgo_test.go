package discord

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/mojiokoshin-live/internal/discord"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSession(t *testing.T, rt roundTripFunc) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if rt != nil {
		s.Client = &http.Client{Transport: rt}
	}
	return s
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

var _ discordpkg.Client = (*Client)(nil)

func TestSendChannelMessage_SplitsLongContent(t *testing.T) {
	var bodies []string
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/channels/chan-1/messages") {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		bodies = append(bodies, payload.Content)
		return jsonResponse(http.StatusOK, `{"id":"m1","channel_id":"chan-1"}`), nil
	})

	c := &Client{session: s}
	long := strings.Repeat("あ", maxMessageRunes+10)
	if err := c.SendChannelMessage("chan-1", long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(bodies))
	}
	if len([]rune(bodies[0])) != maxMessageRunes || len([]rune(bodies[1])) != 10 {
		t.Fatalf("unexpected chunk sizes: %d %d", len([]rune(bodies[0])), len([]rune(bodies[1])))
	}
}

func TestResolveChannelName_UsesStateCacheFirst(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Errorf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID:       "guild-1",
		Channels: []*discordgo.Channel{{ID: "chan-1", GuildID: "guild-1", Name: "transcripts"}},
	}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}

	c := &Client{session: s}
	if got := c.ResolveChannelName("chan-1"); got != "transcripts" {
		t.Fatalf("expected transcripts, got %q", got)
	}
}

func TestResolveChannelName_FallsBackToREST(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/channels/chan-1") {
			t.Errorf("unexpected request path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"id":"chan-1","name":"live","type":0}`), nil
	})

	c := &Client{session: s}
	if got := c.ResolveChannelName("chan-1"); got != "live" {
		t.Fatalf("expected live, got %q", got)
	}
}

func TestResolveChannelName_ReturnsIDOnNotFound(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Channel","code":10003}`), nil
	})

	c := &Client{session: s}
	if got := c.ResolveChannelName("chan-1"); got != "chan-1" {
		t.Fatalf("expected channel id fallback, got %q", got)
	}
}

func TestSplitMessage_ShortContentIsUnchanged(t *testing.T) {
	chunks := splitMessage("hello", maxMessageRunes)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}
