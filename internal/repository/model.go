package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID              string
	StartedAt       time.Time
	EndedAt         *time.Time
	Status          SessionStatus
	StopReason      string
	DurationSeconds int64
	SegmentCount    int
	CreatedAt       time.Time
}

// TranscriptSegment is one archived span. Offsets are relative to the start of its flush payload;
// SpokenAt is the wall-clock time the span was archived at.
type TranscriptSegment struct {
	SessionID      string
	SegmentIndex   int
	SequenceNumber uint64
	StartOffset    time.Duration
	EndOffset      time.Duration
	Content        string
	IsFinal        bool
	SpokenAt       time.Time
	CreatedAt      time.Time
}
