package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/foxseedlab/livescribe/internal/discord"
	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/foxseedlab/livescribe/internal/webhook"
)

const (
	attachmentMessage = "Transcription finished. The full transcript is attached."
	poweredByLine     = "-# *Powered by livescribe*"
)

type Options struct {
	DiscordChannelID    string
	ShowPoweredBy       bool
	Timezone            string
	SummaryTriggerChars int
}

// Recorder archives transcripts and forwards them to Discord and the transcript webhook.
// Every failure is logged; none reaches the session registry.
type Recorder struct {
	repo     repository.Repository
	webhook  webhook.Sender
	discord  discord.Client
	opts     Options
	location *time.Location
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionProgress
}

type sessionProgress struct {
	nextIndex     int
	notifiedChars int
}

var _ session.Observer = (*Recorder)(nil)

func NewRecorder(repo repository.Repository, sender webhook.Sender, dc discord.Client, opts Options) *Recorder {
	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		slog.Warn("failed to load transcript timezone; using UTC", "error", err, "timezone", opts.Timezone)
		loc = time.UTC
		opts.Timezone = "UTC"
	}
	return &Recorder{
		repo:     repo,
		webhook:  sender,
		discord:  dc,
		opts:     opts,
		location: loc,
		now:      time.Now,
		sessions: make(map[string]*sessionProgress),
	}
}

func (r *Recorder) SessionStarted(ctx context.Context, info session.Info) {
	r.mu.Lock()
	r.sessions[info.ID] = &sessionProgress{}
	r.mu.Unlock()

	if _, err := r.repo.CreateSession(ctx, repository.CreateSessionInput{
		SessionID: info.ID,
		StartedAt: info.StartedAt,
	}); err != nil {
		slog.Error("failed to archive session", "error", err, "session_id", info.ID)
	}
}

func (r *Recorder) TranscriptUpdated(ctx context.Context, update session.TranscriptUpdate) {
	spans := update.Result.Spans
	if len(spans) == 0 {
		return
	}
	spokenAt := r.now()

	r.mu.Lock()
	p := r.progressLocked(update.SessionID)
	firstIndex := p.nextIndex
	p.nextIndex += len(spans)
	segmentCount := p.nextIndex
	chars := utf8.RuneCountInString(update.FullText)
	notify := r.opts.SummaryTriggerChars > 0 && chars-p.notifiedChars >= r.opts.SummaryTriggerChars
	if notify {
		p.notifiedChars = chars
	}
	r.mu.Unlock()

	inputs := make([]repository.InsertSegmentInput, 0, len(spans))
	for i, span := range spans {
		inputs = append(inputs, repository.InsertSegmentInput{
			SessionID:      update.SessionID,
			SegmentIndex:   firstIndex + i,
			SequenceNumber: update.Result.SequenceNumber,
			StartOffset:    span.Start,
			EndOffset:      span.End,
			Content:        span.Text,
			IsFinal:        update.Result.IsFinal,
			SpokenAt:       spokenAt,
		})
	}
	if err := r.repo.InsertSegments(ctx, inputs); err != nil {
		slog.Error("failed to insert transcript segments", "error", err, "session_id", update.SessionID, "sequence_number", update.Result.SequenceNumber)
	}

	if r.opts.DiscordChannelID != "" {
		if err := r.discord.SendChannelMessage(r.opts.DiscordChannelID, update.Result.Text()); err != nil {
			slog.Error("failed to post transcript message", "error", err, "session_id", update.SessionID)
		}
	}

	if notify {
		payload := buildProgressPayload(update.SessionID, update.StartedAt, spokenAt, r.opts.Timezone, r.location, segmentCount, update.FullText)
		if err := r.webhook.SendTranscript(ctx, payload); err != nil {
			slog.Error("failed to send transcript progress webhook", "error", err, "session_id", update.SessionID)
		} else {
			slog.Info("transcript progress webhook sent", "session_id", update.SessionID, "transcript_chars", chars)
		}
	}
}

func (r *Recorder) SessionCompleted(ctx context.Context, c session.Completion) {
	id := c.Info.ID
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	segments, err := r.repo.ListSegmentsBySessionID(ctx, id)
	if err != nil {
		slog.Error("failed to list transcript segments", "error", err, "session_id", id)
	}
	endedAt := c.Info.EndedAt
	if endedAt.IsZero() {
		endedAt = r.now()
	}
	header := transcriptHeader{
		SessionID:  id,
		StartedAt:  c.Info.StartedAt,
		EndedAt:    endedAt,
		Timezone:   r.opts.Timezone,
		StopReason: string(c.Reason),
	}

	if err := r.repo.CompleteSession(ctx, repository.CompleteSessionInput{
		SessionID:       id,
		EndedAt:         endedAt,
		StopReason:      string(c.Reason),
		DurationSeconds: durationSeconds(c.Info.StartedAt, endedAt),
		SegmentCount:    len(segments),
	}); err != nil {
		slog.Error("failed to complete archived session", "error", err, "session_id", id)
	}

	if r.opts.DiscordChannelID != "" {
		name, err := r.discord.ChannelName(r.opts.DiscordChannelID)
		if err != nil {
			slog.Warn("failed to resolve transcript channel name", "error", err, "channel_id", r.opts.DiscordChannelID)
		}
		header.ChannelName = name
		if err := r.discord.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID: r.opts.DiscordChannelID,
			Content:   r.attachmentMessage(),
			Filename:  fmt.Sprintf("transcript-%s.txt", id),
			FileBody:  buildTranscriptText(header, r.location, segments),
		}); err != nil {
			slog.Error("failed to post transcript attachment", "error", err, "session_id", id)
		}
	}

	payload := buildCompletedPayload(header, r.location, segments)
	if len(segments) == 0 {
		payload.Transcript = strings.TrimSpace(c.FullText)
	}
	if err := r.webhook.SendTranscript(ctx, payload); err != nil {
		slog.Error("failed to send transcript webhook", "error", err, "session_id", id)
	}
	slog.Info("session archived", "session_id", id, "reason", string(c.Reason), "segment_count", len(segments))
}

// progressLocked tolerates sessions that started before the recorder was attached.
func (r *Recorder) progressLocked(sessionID string) *sessionProgress {
	p, ok := r.sessions[sessionID]
	if !ok {
		p = &sessionProgress{}
		r.sessions[sessionID] = p
	}
	return p
}

func (r *Recorder) attachmentMessage() string {
	if r.opts.ShowPoweredBy {
		return attachmentMessage + "\n" + poweredByLine
	}
	return attachmentMessage
}
