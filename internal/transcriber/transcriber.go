package transcriber

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrEngineUnavailable means the engine cannot run at all (missing model, binary or credentials).
// Callers fall back to another engine instead of reporting it.
var ErrEngineUnavailable = errors.New("transcription engine unavailable")

// Span is one timestamped piece of text. Start and End are offsets from the start of the payload.
type Span struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type Transcriber interface {
	Transcribe(ctx context.Context, payload []byte) ([]Span, error)
}

// JoinText concatenates span texts with single spaces, skipping blank spans.
func JoinText(spans []Span) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Normalize trims span texts, drops empty spans and clamps offsets so they never decrease.
func Normalize(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	var last time.Duration
	for _, s := range spans {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < last {
			s.Start = last
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		last = s.End
		out = append(out, s)
	}
	return out
}
