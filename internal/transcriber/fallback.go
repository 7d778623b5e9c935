package transcriber

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Fallback sends payloads to Primary and retries on Secondary when Primary reports
// ErrEngineUnavailable. Other Primary errors are returned unchanged.
type Fallback struct {
	Primary   Transcriber
	Secondary Transcriber
	Name      string
}

func (f *Fallback) Transcribe(ctx context.Context, payload []byte) ([]Span, error) {
	spans, err := f.Primary.Transcribe(ctx, payload)
	if err == nil {
		return spans, nil
	}
	if !errors.Is(err, ErrEngineUnavailable) || f.Secondary == nil {
		return nil, err
	}
	slog.Warn("transcription engine unavailable; using fallback engine", "engine", f.Name, "error", err, "payload_bytes", len(payload))
	return f.Secondary.Transcribe(ctx, payload)
}

// Close releases engines that hold connections.
func (f *Fallback) Close() error {
	var errs []error
	for _, t := range []Transcriber{f.Primary, f.Secondary} {
		if c, ok := t.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
