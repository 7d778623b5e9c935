package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

// speechClientAdapter adapts *speech.Client's variadic Recognize to recognizeClient.
type speechClientAdapter struct {
	*speech.Client
}

func (a speechClientAdapter) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return a.Client.Recognize(ctx, req)
}

type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	language        string
	location        string
	model           string

	mu        sync.Mutex
	client    recognizeClient
	newClient func(ctx context.Context) (recognizeClient, error)
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) *CloudSpeechTranscriber {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	t := &CloudSpeechTranscriber{
		projectID:       strings.TrimSpace(cfg.ProjectID),
		credentialsJSON: cfg.CredentialsJSON,
		language:        strings.TrimSpace(cfg.Language),
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
	}
	t.newClient = t.dial
	return t
}

func (t *CloudSpeechTranscriber) dial(ctx context.Context) (recognizeClient, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %v: %w", err, transcriber.ErrEngineUnavailable)
	}
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	slog.Info("cloud speech client initialized", "location", t.location, "model", t.model)
	return speechClientAdapter{client}, nil
}

func (t *CloudSpeechTranscriber) getClient(ctx context.Context) (recognizeClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	if t.projectID == "" {
		return nil, fmt.Errorf("google cloud project id is empty: %w", transcriber.ErrEngineUnavailable)
	}
	client, err := t.newClient(ctx)
	if err != nil {
		return nil, err
	}
	t.client = client
	return client, nil
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, payload []byte) ([]transcriber.Span, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	client, err := t.getClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer:  fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, t.location),
		Config:      t.recognitionConfig(payload),
		AudioSource: &speechpb.RecognizeRequest_Content{Content: payload},
	})
	if err != nil {
		if isCredentialError(err) {
			return nil, fmt.Errorf("cloud speech rejected credentials: %v: %w", err, transcriber.ErrEngineUnavailable)
		}
		return nil, fmt.Errorf("cloud speech recognize: %w", err)
	}
	return spansFromRecognizeResponse(resp), nil
}

func (t *CloudSpeechTranscriber) recognitionConfig(payload []byte) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Model:         t.model,
		LanguageCodes: []string{t.language},
		Features:      &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
	}
	if audio.IsContainer(payload) {
		cfg.DecodingConfig = &speechpb.RecognitionConfig_AutoDecodingConfig{
			AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
		}
		return cfg
	}
	cfg.DecodingConfig = &speechpb.RecognitionConfig_ExplicitDecodingConfig{
		ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
			Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
			SampleRateHertz:   audio.PCMSampleRate,
			AudioChannelCount: audio.PCMChannels,
		},
	}
	return cfg
}

func (t *CloudSpeechTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Each result's end offset is measured from the start of the audio, so a result spans from the
// previous result's end to its own.
func spansFromRecognizeResponse(resp *speechpb.RecognizeResponse) []transcriber.Span {
	var spans []transcriber.Span
	var prevEnd time.Duration
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		end := prevEnd
		if off := result.GetResultEndOffset(); off != nil {
			end = off.AsDuration()
		}
		spans = append(spans, transcriber.Span{
			Start: prevEnd,
			End:   end,
			Text:  result.GetAlternatives()[0].GetTranscript(),
		})
		prevEnd = end
	}
	return transcriber.Normalize(spans)
}

func isCredentialError(err error) bool {
	if errors.Is(err, transcriber.ErrEngineUnavailable) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied
}
