package transcriber

import (
	"context"
	"errors"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

type fakeRecognizeClient struct {
	resp   *speechpb.RecognizeResponse
	err    error
	req    *speechpb.RecognizeRequest
	closed bool
}

func (f *fakeRecognizeClient) Recognize(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeRecognizeClient) Close() error {
	f.closed = true
	return nil
}

func newTestCloudSpeech(client recognizeClient) *CloudSpeechTranscriber {
	t := NewCloudSpeechTranscriber(CloudSpeechConfig{
		ProjectID: "proj",
		Language:  "en-US",
		Location:  "us-central1",
		Model:     "long",
	})
	t.newClient = func(context.Context) (recognizeClient, error) { return client, nil }
	return t
}

func TestCloudSpeech_MapsResultsToSpans(t *testing.T) {
	fake := &fakeRecognizeClient{resp: &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{
				Alternatives:    []*speechpb.SpeechRecognitionAlternative{{Transcript: "first part"}},
				ResultEndOffset: durationpb.New(1500 * time.Millisecond),
			},
			{Alternatives: nil},
			{
				Alternatives:    []*speechpb.SpeechRecognitionAlternative{{Transcript: " second part "}},
				ResultEndOffset: durationpb.New(3 * time.Second),
			},
		},
	}}
	tr := newTestCloudSpeech(fake)

	spans, err := tr.Transcribe(context.Background(), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []transcriber.Span{
		{Start: 0, End: 1500 * time.Millisecond, Text: "first part"},
		{Start: 1500 * time.Millisecond, End: 3 * time.Second, Text: "second part"},
	}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(spans))
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Fatalf("span %d = %+v, want %+v", i, spans[i], want[i])
		}
	}
	if got := fake.req.GetRecognizer(); got != "projects/proj/locations/us-central1/recognizers/_" {
		t.Fatalf("unexpected recognizer: %s", got)
	}
	if fake.req.GetConfig().GetExplicitDecodingConfig() == nil {
		t.Fatal("raw pcm payload should use explicit decoding")
	}
}

func TestCloudSpeech_ContainerUsesAutoDecoding(t *testing.T) {
	fake := &fakeRecognizeClient{resp: &speechpb.RecognizeResponse{}}
	tr := newTestCloudSpeech(fake)
	if _, err := tr.Transcribe(context.Background(), []byte("OggS-page")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.req.GetConfig().GetAutoDecodingConfig() == nil {
		t.Fatal("container payload should use auto decoding")
	}
}

func TestCloudSpeech_PermissionDeniedIsUnavailable(t *testing.T) {
	fake := &fakeRecognizeClient{err: status.Error(codes.PermissionDenied, "denied")}
	tr := newTestCloudSpeech(fake)
	_, err := tr.Transcribe(context.Background(), []byte{1})
	if !errors.Is(err, transcriber.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestCloudSpeech_OtherErrorsPropagate(t *testing.T) {
	fake := &fakeRecognizeClient{err: status.Error(codes.InvalidArgument, "bad audio")}
	tr := newTestCloudSpeech(fake)
	_, err := tr.Transcribe(context.Background(), []byte{1})
	if err == nil || errors.Is(err, transcriber.ErrEngineUnavailable) {
		t.Fatalf("expected plain backend error, got %v", err)
	}
}

func TestCloudSpeech_MissingProjectIsUnavailable(t *testing.T) {
	tr := NewCloudSpeechTranscriber(CloudSpeechConfig{})
	_, err := tr.Transcribe(context.Background(), []byte{1})
	if !errors.Is(err, transcriber.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestCloudSpeech_CloseReleasesClient(t *testing.T) {
	fake := &fakeRecognizeClient{resp: &speechpb.RecognizeResponse{}}
	tr := newTestCloudSpeech(fake)
	if _, err := tr.Transcribe(context.Background(), []byte{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !fake.closed {
		t.Fatal("expected client to be closed")
	}
}
