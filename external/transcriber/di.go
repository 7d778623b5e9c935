package transcriber

import (
	"fmt"
	"log/slog"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFromConfig(c)
	})
}

// NewFromConfig builds the configured engine. Every real engine falls back to the deterministic
// engine when it cannot run.
func NewFromConfig(c *config.Config) (transcriber.Transcriber, error) {
	deterministic := NewDeterministic(c.DeterministicLatency)

	var primary transcriber.Transcriber
	switch c.TranscriptionEngine {
	case config.EngineDeterministic:
		slog.Info("transcription engine selected", "engine", c.TranscriptionEngine)
		return deterministic, nil
	case config.EngineWhisper:
		w := NewWhisperCpp(WhisperConfig{
			BinaryPath: c.WhisperBinaryPath,
			ModelPath:  c.WhisperModelPath,
			Language:   c.DefaultTranscribeLanguage,
			FFmpegPath: c.FFmpegPath,
			Threads:    c.WhisperThreads,
		})
		if err := w.Available(); err != nil {
			slog.Warn("whisper.cpp is not available; transcripts will come from the fallback engine until it is", "error", err)
		}
		primary = w
	case config.EngineOpenAI:
		primary = NewOpenAITranscriber(OpenAIConfig{
			APIKey:   c.OpenAIAPIKey,
			BaseURL:  c.OpenAIBaseURL,
			Model:    c.OpenAIModel,
			Language: c.DefaultTranscribeLanguage,
		})
	case config.EngineCloudSpeech:
		primary = NewCloudSpeechTranscriber(CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.DefaultTranscribeLanguage,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
		})
	case config.EngineDeepgram:
		primary = NewDeepgramTranscriber(DeepgramConfig{
			APIKey:   c.DeepgramAPIKey,
			Endpoint: c.DeepgramEndpoint,
			Model:    c.DeepgramModel,
			Language: c.DefaultTranscribeLanguage,
		})
	default:
		return nil, fmt.Errorf("unknown transcription engine %q", c.TranscriptionEngine)
	}

	slog.Info("transcription engine selected", "engine", c.TranscriptionEngine, "fallback", config.EngineDeterministic)
	return &transcriber.Fallback{
		Primary:   primary,
		Secondary: deterministic,
		Name:      c.TranscriptionEngine,
	}, nil
}
