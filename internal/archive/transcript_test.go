package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/webhook"
)

func TestBuildTranscriptText(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	startedAt := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	segments := []repository.TranscriptSegment{
		{SegmentIndex: 0, SpokenAt: startedAt.Add(15 * time.Second), Content: "good morning"},
		{SegmentIndex: 1, SpokenAt: startedAt.Add(75 * time.Second), Content: "let's begin"},
	}

	body := string(buildTranscriptText(transcriptHeader{
		SessionID:  "session-1",
		StartedAt:  startedAt,
		EndedAt:    startedAt.Add(2 * time.Minute),
		Timezone:   "Asia/Tokyo",
		StopReason: "stopped",
	}, loc, segments))

	for _, want := range []string{
		"Session: session-1",
		"Period: 2026-02-28 21:00:00 ~ 2026-02-28 21:02:00 (Asia/Tokyo)",
		"Stop reason: stopped",
		"00:00:15 good morning",
		"00:01:15 let's begin",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Channel:") {
		t.Fatalf("did not expect a channel line without a channel name:\n%s", body)
	}
}

func TestBuildCompletedPayload_SegmentEndAtRules(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	startedAt := time.Date(2026, 2, 28, 19, 0, 0, 0, loc)
	segments := []repository.TranscriptSegment{
		{SegmentIndex: 0, SequenceNumber: 1, SpokenAt: startedAt.Add(10 * time.Second), Content: "first"},
		{SegmentIndex: 1, SequenceNumber: 2, SpokenAt: startedAt.Add(30 * time.Second), Content: "second"},
	}
	endedAt := startedAt.Add(45 * time.Second)

	payload := buildCompletedPayload(transcriptHeader{
		SessionID:  "session-1",
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		Timezone:   "Asia/Tokyo",
		StopReason: "stop_timeout",
	}, loc, segments)

	if payload.SchemaVersion != webhook.TranscriptSchemaVersion || payload.Event != webhook.EventTranscriptCompleted {
		t.Fatalf("unexpected header fields: %+v", payload)
	}
	if payload.StartAt != "2026-02-28T19:00:00+09:00" || payload.EndAt != "2026-02-28T19:00:45+09:00" {
		t.Fatalf("unexpected period: %s ~ %s", payload.StartAt, payload.EndAt)
	}
	if payload.DurationSeconds != 45 || payload.SegmentCount != 2 || payload.StopReason != "stop_timeout" {
		t.Fatalf("unexpected summary fields: %+v", payload)
	}
	if payload.Transcript != "first\nsecond" {
		t.Fatalf("unexpected transcript: %q", payload.Transcript)
	}
	first, second := payload.TranscriptSegments[0], payload.TranscriptSegments[1]
	if first.EndAt != second.StartAt {
		t.Fatalf("first segment should end where the second starts: %s vs %s", first.EndAt, second.StartAt)
	}
	if second.EndAt != payload.EndAt {
		t.Fatalf("last segment should end with the session: %s vs %s", second.EndAt, payload.EndAt)
	}
	if second.SequenceNumber != 2 {
		t.Fatalf("unexpected sequence number: %d", second.SequenceNumber)
	}
}

func TestBuildPayloadSegments_ClampsOutOfOrderEnds(t *testing.T) {
	base := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	segments := []repository.TranscriptSegment{
		{SpokenAt: base.Add(20 * time.Second), Content: "a"},
		{SpokenAt: base.Add(10 * time.Second), Content: "b"},
	}
	out := buildPayloadSegments(segments, base, time.UTC)
	if out[0].EndAt != out[0].StartAt || out[1].EndAt != out[1].StartAt {
		t.Fatalf("expected end clamped to start: %+v", out)
	}
}

func TestFormatElapsedHMS(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{1500 * time.Millisecond, "00:00:01"},
	}
	for _, tt := range tests {
		if got := formatElapsedHMS(tt.in); got != tt.want {
			t.Fatalf("formatElapsedHMS(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeLocation(t *testing.T) {
	if safeLocation(nil) != time.UTC {
		t.Fatal("expected UTC for nil location")
	}
}
