package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/livescribe/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env  string `env:"ENV" envDefault:"production"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"5000"`

	TranscriptionEngine       string        `env:"TRANSCRIPTION_ENGINE" envDefault:"whisper"`
	DefaultTranscribeLanguage string        `env:"DEFAULT_TRANSCRIBE_LANGUAGE" envDefault:"en"`
	DeterministicLatency      time.Duration `env:"DETERMINISTIC_LATENCY" envDefault:"500ms"`

	WhisperBinaryPath string `env:"WHISPER_BINARY_PATH" envDefault:"whisper-cli"`
	WhisperModelPath  string `env:"WHISPER_MODEL_PATH" envDefault:"models/ggml-tiny.en.bin"`
	WhisperModelURL   string `env:"WHISPER_MODEL_URL" envDefault:"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin"`
	WhisperThreads    int    `env:"WHISPER_THREADS" envDefault:"0"`
	FFmpegPath        string `env:"FFMPEG_PATH"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_TRANSCRIBE_MODEL" envDefault:"whisper-1"`

	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`

	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY"`
	DeepgramEndpoint string `env:"DEEPGRAM_ENDPOINT" envDefault:"wss://api.deepgram.com/v1/listen"`
	DeepgramModel    string `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`

	FlushThresholdFragments int           `env:"FLUSH_THRESHOLD_FRAGMENTS" envDefault:"10"`
	MaxPendingFragments     int           `env:"MAX_PENDING_FRAGMENTS" envDefault:"200"`
	StopTimeout             time.Duration `env:"STOP_TIMEOUT" envDefault:"5s"`
	IdleTimeout             time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ReapInterval            time.Duration `env:"REAP_INTERVAL" envDefault:"10s"`
	TranscribeTimeout       time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	TranscriptStore string `env:"TRANSCRIPT_STORE" envDefault:"none"`
	DatabaseURL     string `env:"DATABASE_URL"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"data/livescribe.db"`

	DiscordToken               string `env:"DISCORD_TOKEN"`
	DiscordTranscriptChannelID string `env:"DISCORD_TRANSCRIPT_CHANNEL_ID"`
	DiscordShowPoweredBy       bool   `env:"DISCORD_SHOW_POWERED_BY" envDefault:"false"`

	TranscriptTimezone   string `env:"TRANSCRIPT_TIMEZONE" envDefault:"UTC"`
	TranscriptWebhookURL string `env:"TRANSCRIPT_WEBHOOK_URL"`
	SummaryTriggerChars  int    `env:"SUMMARY_TRIGGER_CHARS" envDefault:"1000"`
}

// Load reads an optional .env file, then the process environment, and validates the result.
func Load(envFiles ...string) (*internalconfig.Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		slog.Debug("no env file found; using process environment only")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		Host:                       raw.Host,
		Port:                       raw.Port,
		TranscriptionEngine:        raw.TranscriptionEngine,
		DefaultTranscribeLanguage:  raw.DefaultTranscribeLanguage,
		DeterministicLatency:       raw.DeterministicLatency,
		WhisperBinaryPath:          raw.WhisperBinaryPath,
		WhisperModelPath:           raw.WhisperModelPath,
		WhisperModelURL:            raw.WhisperModelURL,
		WhisperThreads:             raw.WhisperThreads,
		FFmpegPath:                 raw.FFmpegPath,
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIBaseURL:              raw.OpenAIBaseURL,
		OpenAIModel:                raw.OpenAIModel,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		DeepgramAPIKey:             raw.DeepgramAPIKey,
		DeepgramEndpoint:           raw.DeepgramEndpoint,
		DeepgramModel:              raw.DeepgramModel,
		FlushThresholdFragments:    raw.FlushThresholdFragments,
		MaxPendingFragments:        raw.MaxPendingFragments,
		StopTimeout:                raw.StopTimeout,
		IdleTimeout:                raw.IdleTimeout,
		ReapInterval:               raw.ReapInterval,
		TranscribeTimeout:          raw.TranscribeTimeout,
		ShutdownTimeout:            raw.ShutdownTimeout,
		TranscriptStore:            raw.TranscriptStore,
		DatabaseURL:                raw.DatabaseURL,
		SQLitePath:                 raw.SQLitePath,
		DiscordToken:               raw.DiscordToken,
		DiscordTranscriptChannelID: raw.DiscordTranscriptChannelID,
		DiscordShowPoweredBy:       raw.DiscordShowPoweredBy,
		TranscriptTimezone:         raw.TranscriptTimezone,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		SummaryTriggerChars:        raw.SummaryTriggerChars,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
