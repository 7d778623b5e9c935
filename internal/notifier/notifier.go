package notifier

import "github.com/foxseedlab/livescribe/internal/transcriber"

// ErrorKindTranscriptionFailed marks a failure reported by the transcription backend.
const ErrorKindTranscriptionFailed = "backend_transcription_failed"

type TranscriptResult struct {
	SessionID      string
	SequenceNumber uint64
	Spans          []transcriber.Span
	IsFinal        bool
}

func (r TranscriptResult) Text() string {
	return transcriber.JoinText(r.Spans)
}

type Failure struct {
	SessionID      string
	SequenceNumber uint64
	Kind           string
	Message        string
}

// Event carries exactly one of Result or Failure.
type Event struct {
	SessionID string
	Result    *TranscriptResult
	Failure   *Failure
}

type Notifier interface {
	Publish(sessionID string, result TranscriptResult)
	PublishError(sessionID string, failure Failure)
}
