package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/livescribe/internal/webhook"
	"github.com/google/uuid"
)

const (
	webhookRequestTimeout = 10 * time.Second
	maxErrorBodyBytes     = 512

	headerEvent         = "X-Livescribe-Event"
	headerSession       = "X-Livescribe-Session"
	headerDelivery      = "X-Livescribe-Delivery"
	headerSchemaVersion = "X-Livescribe-Schema-Version"
	userAgent           = "livescribe-webhook/" + webhook.TranscriptSchemaVersion
)

// StatusError reports a receiver that answered a transcript delivery with a non-2xx status.
type StatusError struct {
	Event      string
	SessionID  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s webhook for session %s returned status %d", e.Event, e.SessionID, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// HTTPSender posts transcript payloads as JSON. Every delivery carries a fresh delivery id so
// receivers can drop duplicates of a retried progress update.
type HTTPSender struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPSender(webhookURL string) *HTTPSender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookRequestTimeout},
	}
}

func (s *HTTPSender) SendTranscript(ctx context.Context, payload webhook.TranscriptPayload) error {
	if s.webhookURL == "" {
		return nil
	}
	if payload.SchemaVersion == "" {
		payload.SchemaVersion = webhook.TranscriptSchemaVersion
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", payload.Event, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerEvent, payload.Event)
	req.Header.Set(headerSession, payload.SessionID)
	req.Header.Set(headerDelivery, uuid.NewString())
	req.Header.Set(headerSchemaVersion, payload.SchemaVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver %s webhook: %w", payload.Event, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			Event:      payload.Event,
			SessionID:  payload.SessionID,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return nil
}
