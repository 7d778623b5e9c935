package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

// echoTranscriber returns the payload itself as a single span.
type echoTranscriber struct{}

func (echoTranscriber) Transcribe(_ context.Context, payload []byte) ([]transcriber.Span, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return []transcriber.Span{{Start: 0, End: time.Second, Text: string(payload)}}, nil
}

func newTestServer(t *testing.T) (*Server, *session.Registry) {
	t.Helper()
	return newTestServerWithDecoders(t, func(encoding string) (audio.Decoder, error) {
		if _, err := audio.NormalizeEncoding(encoding); err != nil {
			return nil, err
		}
		return audio.PassthroughDecoder(), nil
	})
}

func newTestServerWithDecoders(t *testing.T, decoders audio.DecoderFactory) (*Server, *session.Registry) {
	t.Helper()
	hub := notifier.NewHub(16)
	registry := session.NewRegistry(session.Options{
		FlushThreshold: 2,
		MaxPending:     4,
		StopTimeout:    2 * time.Second,
	}, echoTranscriber{}, hub, nil)
	return NewServer(registry, hub, decoders, "127.0.0.1:0"), registry
}

func doRequest(t *testing.T, s *Server, method, path string) (int, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, path, nil), -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	status, body := doRequest(t, s, http.MethodGet, "/healthz")
	if status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response: %d %q", status, body)
	}
}

func TestStartReturnsSessionID(t *testing.T) {
	s, registry := newTestServer(t)
	status, body := doRequest(t, s, http.MethodPost, "/api/transcribe/start")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var res startResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !res.Success || res.SessionID == "" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if _, err := registry.Session(res.SessionID); err != nil {
		t.Fatalf("session not registered: %v", err)
	}
}

func TestStopUnknownSessionReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	status, body := doRequest(t, s, http.MethodPost, "/api/transcribe/stop/missing")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	var res errorResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("unexpected error response: %+v", res)
	}
}

func TestStopTwiceReturns409(t *testing.T) {
	s, registry := newTestServer(t)
	info, err := registry.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := registry.SubmitAudio(info.ID, []byte("a")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status, body := doRequest(t, s, http.MethodPost, "/api/transcribe/stop/"+info.ID)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var res stopResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !res.Success || res.Warning != "" {
		t.Fatalf("unexpected stop response: %+v", res)
	}

	status, _ = doRequest(t, s, http.MethodPost, "/api/transcribe/stop/"+info.ID)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on second stop, got %d", status)
	}
}

func TestSessionLookup(t *testing.T) {
	s, registry := newTestServer(t)
	info, err := registry.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := registry.SubmitAudio(info.ID, []byte("a")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status, body := doRequest(t, s, http.MethodGet, "/api/transcribe/sessions/"+info.ID)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var res sessionResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	got := res.Session
	if got.SessionID != info.ID || got.Status != string(session.StatusActive) || got.PendingFragments != 1 || got.EndedAt != nil {
		t.Fatalf("unexpected session view: %+v", got)
	}

	status, _ = doRequest(t, s, http.MethodGet, "/api/transcribe/sessions/missing")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", status)
	}
}

func TestStreamRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	status, _ := doRequest(t, s, http.MethodGet, "/ws")
	if status != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", status)
	}
}
