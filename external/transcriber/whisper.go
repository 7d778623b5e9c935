package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

const whisperTempDirName = "meeting-app-audio"

type WhisperConfig struct {
	BinaryPath string
	ModelPath  string
	Language   string
	FFmpegPath string
	Threads    int
	TempDir    string
}

// WhisperCpp runs a local whisper.cpp binary against each payload.
type WhisperCpp struct {
	binaryPath string
	modelPath  string
	language   string
	ffmpegPath string
	threads    int
	tempDir    string
}

func NewWhisperCpp(cfg WhisperConfig) *WhisperCpp {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), whisperTempDirName)
	}
	return &WhisperCpp{
		binaryPath: strings.TrimSpace(cfg.BinaryPath),
		modelPath:  strings.TrimSpace(cfg.ModelPath),
		language:   strings.TrimSpace(cfg.Language),
		ffmpegPath: strings.TrimSpace(cfg.FFmpegPath),
		threads:    cfg.Threads,
		tempDir:    tempDir,
	}
}

type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Available reports ErrEngineUnavailable when the model file or the binary is missing.
func (w *WhisperCpp) Available() error {
	if w.modelPath == "" {
		return fmt.Errorf("whisper model path is empty: %w", transcriber.ErrEngineUnavailable)
	}
	if _, err := os.Stat(w.modelPath); err != nil {
		return fmt.Errorf("whisper model %s: %w", w.modelPath, transcriber.ErrEngineUnavailable)
	}
	if _, err := exec.LookPath(w.binaryPath); err != nil {
		return fmt.Errorf("whisper binary %q: %w", w.binaryPath, transcriber.ErrEngineUnavailable)
	}
	return nil
}

func (w *WhisperCpp) Transcribe(ctx context.Context, payload []byte) ([]transcriber.Span, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if err := w.Available(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(w.tempDir, "segment-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			slog.Warn("failed to remove whisper work dir", "error", err, "dir", workDir)
		}
	}()

	inputPath := filepath.Join(workDir, "input.wav")
	if err := os.WriteFile(inputPath, audio.AsContainer(payload), 0o600); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}
	if w.ffmpegPath != "" {
		converted := filepath.Join(workDir, "input_16k.wav")
		if err := w.transcode(ctx, inputPath, converted); err != nil {
			return nil, err
		}
		inputPath = converted
	}

	outPrefix := filepath.Join(workDir, "result")
	args := []string{"-m", w.modelPath, "-f", inputPath, "-oj", "-of", outPrefix, "-np"}
	if w.language != "" {
		args = append(args, "-l", w.language)
	}
	if w.threads > 0 {
		args = append(args, "-t", fmt.Sprint(w.threads))
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.binaryPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("whisper.cpp failed: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run whisper.cpp: %w", err)
	}

	raw, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWhisperOutput(raw)
}

func (w *WhisperCpp) transcode(ctx context.Context, in, out string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.ffmpegPath, "-y", "-loglevel", "error", "-i", in, "-ac", "1", "-ar", "16000", "-f", "wav", out)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func parseWhisperOutput(raw []byte) ([]transcriber.Span, error) {
	var parsed whisperOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	spans := make([]transcriber.Span, 0, len(parsed.Transcription))
	for _, seg := range parsed.Transcription {
		spans = append(spans, transcriber.Span{
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   time.Duration(seg.Offsets.To) * time.Millisecond,
			Text:  seg.Text,
		})
	}
	return transcriber.Normalize(spans), nil
}
