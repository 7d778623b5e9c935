package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/livescribe/internal/webhook"
)

func TestSendTranscript_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendTranscript(context.Background(), webhook.TranscriptPayload{SessionID: "s"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendTranscript_Success(t *testing.T) {
	var got webhook.TranscriptPayload
	var gotEvent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		gotEvent = r.Header.Get("X-Livescribe-Event")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payload := webhook.TranscriptPayload{
		SchemaVersion: webhook.TranscriptSchemaVersion,
		Event:         webhook.EventTranscriptCompleted,
		SessionID:     "session-1",
		SegmentCount:  1,
		TranscriptSegments: []webhook.TranscriptSegment{
			{Index: 0, SequenceNumber: 1, Transcript: "hello world"},
		},
		Transcript: "hello world",
	}
	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), payload); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotEvent != webhook.EventTranscriptCompleted {
		t.Fatalf("unexpected event header: %s", gotEvent)
	}
	if got.SessionID != "session-1" || got.Transcript != "hello world" || len(got.TranscriptSegments) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendTranscript_SetsDeliveryHeaders(t *testing.T) {
	var headers []http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = append(headers, r.Header.Clone())
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	payload := webhook.TranscriptPayload{Event: webhook.EventTranscriptProgress, SessionID: "session-9"}
	for range 2 {
		if err := sender.SendTranscript(context.Background(), payload); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if len(headers) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(headers))
	}
	h := headers[0]
	if h.Get(headerSession) != "session-9" || h.Get(headerEvent) != webhook.EventTranscriptProgress {
		t.Fatalf("unexpected routing headers: %v", h)
	}
	if h.Get(headerSchemaVersion) != webhook.TranscriptSchemaVersion || h.Get("User-Agent") != userAgent {
		t.Fatalf("unexpected schema headers: %v", h)
	}
	if h.Get(headerDelivery) == "" || h.Get(headerDelivery) == headers[1].Get(headerDelivery) {
		t.Fatalf("expected distinct delivery ids, got %q and %q", h.Get(headerDelivery), headers[1].Get(headerDelivery))
	}
}

func TestSendTranscript_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("  unknown session  "))
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	err := sender.SendTranscript(context.Background(), webhook.TranscriptPayload{Event: webhook.EventTranscriptCompleted, SessionID: "s"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Body != "unknown session" || statusErr.SessionID != "s" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}
