package session

import (
	"context"
	"time"

	"github.com/foxseedlab/livescribe/internal/notifier"
)

type CompletionReason string

const (
	ReasonStopped     CompletionReason = "stopped"
	ReasonStopTimeout CompletionReason = "stop_timeout"
	ReasonIdle        CompletionReason = "idle"
)

type TranscriptUpdate struct {
	SessionID string
	StartedAt time.Time
	Result    notifier.TranscriptResult
	FullText  string
}

type Completion struct {
	Info     Info
	Reason   CompletionReason
	FullText string
}

// Observer receives session lifecycle hooks. SessionStarted runs inside Start. TranscriptUpdated
// and SessionCompleted run in order on a per-session queue off the flush worker, each with a
// bounded context, and SessionCompleted is always the last hook of a session.
type Observer interface {
	SessionStarted(ctx context.Context, info Info)
	TranscriptUpdated(ctx context.Context, update TranscriptUpdate)
	SessionCompleted(ctx context.Context, completion Completion)
}

type NopObserver struct{}

func (NopObserver) SessionStarted(context.Context, Info)                {}
func (NopObserver) TranscriptUpdated(context.Context, TranscriptUpdate) {}
func (NopObserver) SessionCompleted(context.Context, Completion)        {}
