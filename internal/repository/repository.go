package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	SessionID string
	StartedAt time.Time
}

type CompleteSessionInput struct {
	SessionID       string
	EndedAt         time.Time
	StopReason      string
	DurationSeconds int64
	SegmentCount    int
}

type InsertSegmentInput struct {
	SessionID      string
	SegmentIndex   int
	SequenceNumber uint64
	StartOffset    time.Duration
	EndOffset      time.Duration
	Content        string
	IsFinal        bool
	SpokenAt       time.Time
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

type TranscriptRepository interface {
	InsertSegments(ctx context.Context, inputs []InsertSegmentInput) error
	ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]TranscriptSegment, error)
}

type Repository interface {
	SessionRepository
	TranscriptRepository
	Close() error
}
