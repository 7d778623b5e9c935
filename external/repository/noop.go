package repository

import (
	"context"

	"github.com/foxseedlab/livescribe/internal/repository"
)

// NoopRepository is used when TRANSCRIPT_STORE=none.
type NoopRepository struct{}

func (NoopRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	return &repository.Session{ID: input.SessionID, StartedAt: input.StartedAt, Status: repository.SessionStatusRunning}, nil
}

func (NoopRepository) CompleteSession(context.Context, repository.CompleteSessionInput) error {
	return nil
}

func (NoopRepository) GetSession(context.Context, string) (*repository.Session, error) {
	return nil, nil
}

func (NoopRepository) InsertSegments(context.Context, []repository.InsertSegmentInput) error {
	return nil
}

func (NoopRepository) ListSegmentsBySessionID(context.Context, string) ([]repository.TranscriptSegment, error) {
	return nil, nil
}

func (NoopRepository) Close() error {
	return nil
}
