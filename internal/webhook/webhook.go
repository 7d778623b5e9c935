package webhook

import "context"

const (
	TranscriptSchemaVersion = "1"

	EventTranscriptProgress  = "transcript.progress"
	EventTranscriptCompleted = "transcript.completed"
)

type TranscriptSegment struct {
	Index          int    `json:"index"`
	SequenceNumber uint64 `json:"sequence_number"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	Transcript     string `json:"transcript"`
}

// TranscriptPayload is posted on transcript progress and on session completion. Progress payloads
// carry only the accumulated text.
type TranscriptPayload struct {
	SchemaVersion      string              `json:"schema_version"`
	Event              string              `json:"event"`
	SessionID          string              `json:"session_id"`
	StartAt            string              `json:"start_at"`
	EndAt              string              `json:"end_at,omitempty"`
	Timezone           string              `json:"timezone"`
	DurationSeconds    int64               `json:"duration_seconds"`
	StopReason         string              `json:"stop_reason,omitempty"`
	SegmentCount       int                 `json:"segment_count"`
	TranscriptSegments []TranscriptSegment `json:"transcript_segments,omitempty"`
	Transcript         string              `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptPayload) error
}
