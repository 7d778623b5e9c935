package config

import (
	"fmt"
	"time"
)

const (
	EngineWhisper       = "whisper"
	EngineOpenAI        = "openai"
	EngineCloudSpeech   = "cloud-speech"
	EngineDeepgram      = "deepgram"
	EngineDeterministic = "deterministic"

	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Env  string
	Host string
	Port int

	TranscriptionEngine       string
	DefaultTranscribeLanguage string
	DeterministicLatency      time.Duration

	WhisperBinaryPath string
	WhisperModelPath  string
	WhisperModelURL   string
	WhisperThreads    int
	FFmpegPath        string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string

	DeepgramAPIKey   string
	DeepgramEndpoint string
	DeepgramModel    string

	FlushThresholdFragments int
	MaxPendingFragments     int
	StopTimeout             time.Duration
	IdleTimeout             time.Duration
	ReapInterval            time.Duration
	TranscribeTimeout       time.Duration
	ShutdownTimeout         time.Duration

	TranscriptStore string
	DatabaseURL     string
	SQLitePath      string

	DiscordToken               string
	DiscordTranscriptChannelID string
	DiscordShowPoweredBy       bool

	TranscriptTimezone   string
	TranscriptWebhookURL string
	SummaryTriggerChars  int
}

func (c *Config) Validate() error {
	switch c.TranscriptionEngine {
	case EngineWhisper, EngineOpenAI, EngineCloudSpeech, EngineDeepgram, EngineDeterministic:
	default:
		return fmt.Errorf("TRANSCRIPTION_ENGINE is invalid: %q", c.TranscriptionEngine)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.FlushThresholdFragments <= 0 {
		return fmt.Errorf("FLUSH_THRESHOLD_FRAGMENTS must be positive, got %d", c.FlushThresholdFragments)
	}
	if c.MaxPendingFragments < c.FlushThresholdFragments {
		return fmt.Errorf("MAX_PENDING_FRAGMENTS (%d) must not be less than FLUSH_THRESHOLD_FRAGMENTS (%d)", c.MaxPendingFragments, c.FlushThresholdFragments)
	}
	for _, d := range c.durationChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.DeterministicLatency < 0 {
		return fmt.Errorf("DETERMINISTIC_LATENCY must not be negative, got %s", c.DeterministicLatency)
	}
	switch c.TranscriptStore {
	case StoreNone:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when TRANSCRIPT_STORE=%s", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when TRANSCRIPT_STORE=%s", StoreSQLite)
		}
	default:
		return fmt.Errorf("TRANSCRIPT_STORE is invalid: %q", c.TranscriptStore)
	}
	if c.DiscordToken != "" && c.DiscordTranscriptChannelID == "" {
		return fmt.Errorf("DISCORD_TRANSCRIPT_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}
	if c.SummaryTriggerChars < 0 {
		return fmt.Errorf("SUMMARY_TRIGGER_CHARS must not be negative, got %d", c.SummaryTriggerChars)
	}
	if c.TranscriptTimezone == "" {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type durationField struct {
	name  string
	value time.Duration
}

func (c *Config) durationChecks() []durationField {
	return []durationField{
		{name: "STOP_TIMEOUT", value: c.StopTimeout},
		{name: "IDLE_TIMEOUT", value: c.IdleTimeout},
		{name: "REAP_INTERVAL", value: c.ReapInterval},
		{name: "TRANSCRIBE_TIMEOUT", value: c.TranscribeTimeout},
		{name: "SHUTDOWN_TIMEOUT", value: c.ShutdownTimeout},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
