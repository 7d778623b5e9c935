package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// OpenAITranscriber sends each payload to the audio transcription endpoint and keeps the
// per-segment timestamps of the verbose response.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

func NewOpenAITranscriber(cfg OpenAIConfig) *OpenAITranscriber {
	key := strings.TrimSpace(cfg.APIKey)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.Whisper1
	}
	t := &OpenAITranscriber{model: model, language: primaryLanguage(cfg.Language)}
	if key == "" {
		return t
	}
	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	t.client = openai.NewClientWithConfig(clientCfg)
	return t
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, payload []byte) ([]transcriber.Span, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if t.client == nil {
		return nil, fmt.Errorf("openai api key is empty: %w", transcriber.ErrEngineUnavailable)
	}
	body := audio.AsContainer(payload)
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audio.FileName(body),
		Reader:   bytes.NewReader(body),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: t.language,
	})
	if err != nil {
		if isOpenAIAuthError(err) {
			return nil, fmt.Errorf("openai rejected api key: %v: %w", err, transcriber.ErrEngineUnavailable)
		}
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	if len(resp.Segments) == 0 {
		return transcriber.Normalize([]transcriber.Span{{
			End:  secondsToDuration(resp.Duration),
			Text: resp.Text,
		}}), nil
	}
	spans := make([]transcriber.Span, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		spans = append(spans, transcriber.Span{
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  seg.Text,
		})
	}
	return transcriber.Normalize(spans), nil
}

func isOpenAIAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// primaryLanguage turns a BCP-47 tag like "en-US" into the ISO-639-1 code the API expects.
func primaryLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
