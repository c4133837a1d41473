package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/webhook"
)

const (
	requestTimeout = 10 * time.Second
	// how much of a failing response body is quoted in the error
	errorBodyLimit = 512
	userAgent      = "mojiokoshin-live-recorder"
)

// HTTPSender posts the final transcript of a recording as JSON. It sends
// once; a failed delivery is reported to the caller and not repeated.
type HTTPSender struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPSender(webhookURL string) *HTTPSender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

func (s *HTTPSender) SendTranscript(ctx context.Context, payload webhook.TranscriptWebhookPayload) error {
	if s.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal transcript of recording %s: %w", payload.SessionID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build transcript webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Recording-Id", payload.SessionID)
	req.Header.Set("X-Schema-Version", strconv.Itoa(payload.SchemaVersion))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post transcript of recording %s: %w", payload.SessionID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("transcript webhook for recording %s returned status %d: %s",
			payload.SessionID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
