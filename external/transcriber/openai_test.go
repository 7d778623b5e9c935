package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

func TestOpenAITranscriber_ParsesVerboseSegments(t *testing.T) {
	var gotModel, gotFormat, gotFile, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		gotLanguage = r.FormValue("language")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFile = header.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"task":"transcribe","language":"english","duration":2.5,
			"segments":[
				{"id":0,"start":0.0,"end":1.2,"text":" Good morning."},
				{"id":1,"start":1.2,"end":2.5,"text":" Let's begin."}
			],
			"text":"Good morning. Let's begin."
		}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Language: "en-US"})
	spans, err := tr.Transcribe(context.Background(), []byte{0x01, 0x00, 0x02, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotModel != "whisper-1" || gotFormat != "verbose_json" || gotLanguage != "en" {
		t.Fatalf("unexpected form values: model=%q format=%q language=%q", gotModel, gotFormat, gotLanguage)
	}
	if gotFile != "segment.wav" {
		t.Fatalf("unexpected file name: %q", gotFile)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Text != "Good morning." || spans[0].End != 1200*time.Millisecond {
		t.Fatalf("unexpected first span: %+v", spans[0])
	}
	if spans[1].Start != 1200*time.Millisecond || spans[1].End != 2500*time.Millisecond {
		t.Fatalf("unexpected second span: %+v", spans[1])
	}
}

func TestOpenAITranscriber_UnauthorizedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(OpenAIConfig{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"})
	_, err := tr.Transcribe(context.Background(), []byte{1, 2})
	if !errors.Is(err, transcriber.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestOpenAITranscriber_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	_, err := tr.Transcribe(context.Background(), []byte{1, 2})
	if err == nil || errors.Is(err, transcriber.ErrEngineUnavailable) {
		t.Fatalf("expected plain backend error, got %v", err)
	}
}

func TestOpenAITranscriber_MissingKeyIsUnavailable(t *testing.T) {
	tr := NewOpenAITranscriber(OpenAIConfig{})
	_, err := tr.Transcribe(context.Background(), []byte{1})
	if !errors.Is(err, transcriber.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestPrimaryLanguage(t *testing.T) {
	cases := map[string]string{"en-US": "en", "ja_JP": "ja", "de": "de", "": ""}
	for in, want := range cases {
		if got := primaryLanguage(in); got != want {
			t.Fatalf("primaryLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
