package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/webhook"
)

// Kept explicit instead of time.DateTime so the layout can change independently.
const transcriptTimeLayout = "2006-01-02 15:04:05"

type transcriptHeader struct {
	SessionID   string
	ChannelName string
	StartedAt   time.Time
	EndedAt     time.Time
	Timezone    string
	StopReason  string
}

func buildTranscriptText(h transcriptHeader, loc *time.Location, segments []repository.TranscriptSegment) []byte {
	loc = safeLocation(loc)
	lines := []string{
		fmt.Sprintf("Session: %s", h.SessionID),
	}
	if h.ChannelName != "" {
		lines = append(lines, fmt.Sprintf("Channel: #%s", h.ChannelName))
	}
	lines = append(lines,
		fmt.Sprintf("Period: %s ~ %s (%s)", h.StartedAt.In(loc).Format(transcriptTimeLayout), h.EndedAt.In(loc).Format(transcriptTimeLayout), h.Timezone),
		fmt.Sprintf("Stop reason: %s", h.StopReason),
		"",
	)
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("%s %s", formatElapsedHMS(segmentElapsed(seg, h.StartedAt)), seg.Content))
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildCompletedPayload(h transcriptHeader, loc *time.Location, segments []repository.TranscriptSegment) webhook.TranscriptPayload {
	loc = safeLocation(loc)
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Content)
	}
	return webhook.TranscriptPayload{
		SchemaVersion:      webhook.TranscriptSchemaVersion,
		Event:              webhook.EventTranscriptCompleted,
		SessionID:          h.SessionID,
		StartAt:            h.StartedAt.In(loc).Format(time.RFC3339),
		EndAt:              h.EndedAt.In(loc).Format(time.RFC3339),
		Timezone:           h.Timezone,
		DurationSeconds:    durationSeconds(h.StartedAt, h.EndedAt),
		StopReason:         h.StopReason,
		SegmentCount:       len(segments),
		TranscriptSegments: buildPayloadSegments(segments, h.EndedAt, loc),
		Transcript:         strings.Join(lines, "\n"),
	}
}

func buildProgressPayload(sessionID string, startedAt, now time.Time, timezone string, loc *time.Location, segmentCount int, fullText string) webhook.TranscriptPayload {
	return webhook.TranscriptPayload{
		SchemaVersion:   webhook.TranscriptSchemaVersion,
		Event:           webhook.EventTranscriptProgress,
		SessionID:       sessionID,
		StartAt:         startedAt.In(safeLocation(loc)).Format(time.RFC3339),
		Timezone:        timezone,
		DurationSeconds: durationSeconds(startedAt, now),
		SegmentCount:    segmentCount,
		Transcript:      fullText,
	}
}

// A segment ends where the next one starts; the last one ends with the session.
func buildPayloadSegments(segments []repository.TranscriptSegment, sessionEndedAt time.Time, loc *time.Location) []webhook.TranscriptSegment {
	out := make([]webhook.TranscriptSegment, 0, len(segments))
	for i, seg := range segments {
		segmentEnd := sessionEndedAt
		if i+1 < len(segments) {
			segmentEnd = segments[i+1].SpokenAt
		}
		if segmentEnd.Before(seg.SpokenAt) {
			segmentEnd = seg.SpokenAt
		}
		out = append(out, webhook.TranscriptSegment{
			Index:          seg.SegmentIndex,
			SequenceNumber: seg.SequenceNumber,
			StartAt:        seg.SpokenAt.In(loc).Format(time.RFC3339),
			EndAt:          segmentEnd.In(loc).Format(time.RFC3339),
			Transcript:     seg.Content,
		})
	}
	return out
}

func segmentElapsed(seg repository.TranscriptSegment, startedAt time.Time) time.Duration {
	elapsed := seg.SpokenAt.Sub(startedAt)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func durationSeconds(start, end time.Time) int64 {
	d := int64(end.Sub(start).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
