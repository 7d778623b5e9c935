package transcriber

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type stubTranscriber struct {
	spans []Span
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte) ([]Span, error) {
	s.calls++
	return s.spans, s.err
}

func TestFallback_UsesPrimaryOnSuccess(t *testing.T) {
	primary := &stubTranscriber{spans: []Span{{Text: "primary"}}}
	secondary := &stubTranscriber{spans: []Span{{Text: "secondary"}}}
	f := &Fallback{Primary: primary, Secondary: secondary, Name: "test"}

	spans, err := f.Transcribe(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spans[0].Text != "primary" || secondary.calls != 0 {
		t.Fatalf("expected primary result only, got %+v secondary_calls=%d", spans, secondary.calls)
	}
}

func TestFallback_SwitchesOnEngineUnavailable(t *testing.T) {
	primary := &stubTranscriber{err: fmt.Errorf("model missing: %w", ErrEngineUnavailable)}
	secondary := &stubTranscriber{spans: []Span{{Text: "secondary"}}}
	f := &Fallback{Primary: primary, Secondary: secondary}

	spans, err := f.Transcribe(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("unavailable engine must not surface an error, got %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "secondary" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestFallback_ReturnsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	primary := &stubTranscriber{err: boom}
	secondary := &stubTranscriber{}
	f := &Fallback{Primary: primary, Secondary: secondary}

	if _, err := f.Transcribe(context.Background(), []byte("x")); !errors.Is(err, boom) {
		t.Fatalf("expected primary error, got %v", err)
	}
	if secondary.calls != 0 {
		t.Fatal("secondary must not be called for ordinary failures")
	}
}

func TestNormalize_DropsBlankAndClampsOffsets(t *testing.T) {
	got := Normalize([]Span{
		{Start: 2 * time.Second, End: 3 * time.Second, Text: " hello "},
		{Start: time.Second, End: 500 * time.Millisecond, Text: "world"},
		{Start: 4 * time.Second, End: 5 * time.Second, Text: "  "},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(got))
	}
	if got[0].Text != "hello" {
		t.Fatalf("expected trimmed text, got %q", got[0].Text)
	}
	if got[1].Start != 3*time.Second || got[1].End != 3*time.Second {
		t.Fatalf("expected clamped offsets, got %+v", got[1])
	}
}

func TestJoinText(t *testing.T) {
	got := JoinText([]Span{{Text: "a"}, {Text: " "}, {Text: "b "}})
	if got != "a b" {
		t.Fatalf("unexpected text: %q", got)
	}
}

type closingTranscriber struct {
	stubTranscriber
	closed bool
	err    error
}

func (c *closingTranscriber) Close() error {
	c.closed = true
	return c.err
}

func TestFallback_CloseReleasesClosableEngines(t *testing.T) {
	primary := &closingTranscriber{err: errors.New("close failed")}
	f := &Fallback{Primary: primary, Secondary: &stubTranscriber{}}
	err := f.Close()
	if !primary.closed {
		t.Fatal("expected primary to be closed")
	}
	if err == nil || err.Error() != "close failed" {
		t.Fatalf("expected primary close error, got %v", err)
	}
}
