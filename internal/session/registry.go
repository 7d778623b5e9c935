package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStopTimeout       = 5 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultReapInterval      = 10 * time.Second
	DefaultTranscribeTimeout = 30 * time.Second

	observerTimeout = 30 * time.Second

	stopTimeoutWarning = "final transcription did not finish before the stop timeout; the session was closed without it"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusStopping  Status = "stopping"
	StatusCompleted Status = "completed"
)

type Options struct {
	FlushThreshold    int
	MaxPending        int
	StopTimeout       time.Duration
	IdleTimeout       time.Duration
	ReapInterval      time.Duration
	TranscribeTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = DefaultReapInterval
	}
	if o.TranscribeTimeout <= 0 {
		o.TranscribeTimeout = DefaultTranscribeTimeout
	}
	return o
}

func (o Options) bufferPolicy() audio.Policy {
	return audio.Policy{FlushThreshold: o.FlushThreshold, MaxPending: o.MaxPending}
}

// Info is a point-in-time snapshot of a session.
type Info struct {
	ID               string
	Status           Status
	StartedAt        time.Time
	EndedAt          time.Time
	LastActivity     time.Time
	PendingFragments int
	NextSequence     uint64
	TranscriptChars  int
}

type StopResult struct {
	Info    Info
	Warning string
}

// Registry owns every live session. At most one flush runs per session at a time, so results of a
// session are published in sequence order.
type Registry struct {
	opts     Options
	engine   transcriber.Transcriber
	notifier notifier.Notifier
	observer Observer
	newID    func() (string, error)
	now      func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*sessionState
	completed map[string]Info
	hooks     sync.WaitGroup
}

type sessionState struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	status       Status
	startedAt    time.Time
	endedAt      time.Time
	lastActivity time.Time
	buffer       *audio.Buffer
	nextSeq      uint64
	flushing     bool
	transcript   strings.Builder

	hookMu      sync.Mutex
	hookQueue   []func(ctx context.Context)
	hookRunning bool
}

func NewRegistry(opts Options, engine transcriber.Transcriber, n notifier.Notifier, observer Observer) *Registry {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Registry{
		opts:      opts.withDefaults(),
		engine:    engine,
		notifier:  n,
		observer:  observer,
		newID:     newUUID,
		now:       time.Now,
		sessions:  make(map[string]*sessionState),
		completed: make(map[string]Info),
	}
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *Registry) Start(ctx context.Context) (Info, error) {
	id, err := r.newID()
	if err != nil {
		slog.Error("failed to generate session id", "error", err)
		return Info{}, fmt.Errorf("%w: %v", ErrIdentifierGeneration, err)
	}
	now := r.now()
	sessCtx, cancel := context.WithCancel(context.Background())
	s := &sessionState{
		id:           id,
		ctx:          sessCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
		status:       StatusActive,
		startedAt:    now,
		lastActivity: now,
		buffer:       audio.NewBuffer(r.opts.bufferPolicy()),
		nextSeq:      1,
	}

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		cancel()
		slog.Error("generated session id collides with a live session", "session_id", id)
		return Info{}, fmt.Errorf("%w: duplicate id %s", ErrIdentifierGeneration, id)
	}
	r.sessions[id] = s
	r.mu.Unlock()

	info := s.snapshot()
	slog.Info("session started", "session_id", id)
	r.observer.SessionStarted(ctx, info)
	return info, nil
}

// lookup returns ErrSessionNotActive for sessions that completed within the last idle timeout.
func (r *Registry) lookup(id string) (*sessionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	if _, ok := r.completed[id]; ok {
		return nil, ErrSessionNotActive
	}
	return nil, ErrSessionNotFound
}

// Session returns a snapshot of a live or recently completed session.
func (r *Registry) Session(id string) (Info, error) {
	r.mu.RLock()
	s, live := r.sessions[id]
	info, done := r.completed[id]
	r.mu.RUnlock()
	switch {
	case live:
		return s.snapshot(), nil
	case done:
		return info, nil
	default:
		return Info{}, ErrSessionNotFound
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SubmitAudio appends one fragment and schedules a flush once the threshold is reached.
// It never waits for transcription.
func (r *Registry) SubmitAudio(id string, fragment []byte) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrSessionNotActive
	}
	if err := s.buffer.Append(fragment); err != nil {
		s.mu.Unlock()
		slog.Warn("audio fragment rejected", "error", err, "session_id", id, "pending_fragments", s.buffer.Len())
		return err
	}
	s.lastActivity = r.now()
	startWorker := s.buffer.ShouldFlush() && !s.flushing
	if startWorker {
		s.flushing = true
	}
	s.mu.Unlock()

	if startWorker {
		go r.runFlushes(s)
	}
	return nil
}

// Stop moves the session to Stopping, runs the final flush and waits until the session completes
// or the stop timeout elapses.
func (r *Registry) Stop(ctx context.Context, id string) (StopResult, error) {
	s, err := r.lookup(id)
	if err != nil {
		return StopResult{}, err
	}

	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return StopResult{}, ErrSessionNotActive
	}
	s.status = StatusStopping
	s.lastActivity = r.now()
	startWorker := !s.flushing
	if startWorker {
		s.flushing = true
	}
	pending := s.buffer.Len()
	s.mu.Unlock()

	slog.Info("session stopping", "session_id", id, "pending_fragments", pending, "flush_in_progress", !startWorker)
	if startWorker {
		go r.runFlushes(s)
	}

	timer := time.NewTimer(r.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return StopResult{Info: s.snapshot()}, nil
	case <-timer.C:
		if !r.complete(s, ReasonStopTimeout) {
			return StopResult{Info: s.snapshot()}, nil
		}
		slog.Warn("stop timeout elapsed before final flush finished", "session_id", id, "timeout", r.opts.StopTimeout)
		return StopResult{Info: s.snapshot(), Warning: stopTimeoutWarning}, nil
	case <-ctx.Done():
		return StopResult{Info: s.snapshot()}, ctx.Err()
	}
}

// runFlushes drains and transcribes until nothing is due. While the session is Stopping the next
// drain is the final one, so deferred threshold flushes fold into it.
func (r *Registry) runFlushes(s *sessionState) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("flush worker panicked", "panic", p, "session_id", s.id)
			s.mu.Lock()
			s.flushing = false
			stopping := s.status == StatusStopping
			s.mu.Unlock()
			r.deliver(s.id, func() {
				r.notifier.PublishError(s.id, notifier.Failure{
					Kind:    notifier.ErrorKindTranscriptionFailed,
					Message: fmt.Sprintf("flush worker panicked: %v", p),
				})
			})
			if stopping {
				r.complete(s, ReasonStopped)
			}
		}
	}()

	for {
		s.mu.Lock()
		if s.status == StatusCompleted {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		final := s.status == StatusStopping
		if !final && !s.buffer.ShouldFlush() {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		payload, fragments, _ := s.buffer.Drain()
		seq := s.nextSeq
		s.nextSeq++
		s.mu.Unlock()

		r.flush(s, seq, payload, fragments, final)
		if final {
			r.complete(s, ReasonStopped)
			return
		}
	}
}

func (r *Registry) flush(s *sessionState, seq uint64, payload []byte, fragments int, final bool) {
	slog.Debug("flushing segment", "session_id", s.id, "sequence_number", seq, "fragments", fragments, "payload_bytes", len(payload), "is_final", final)

	var spans []transcriber.Span
	var err error
	if len(payload) > 0 {
		ctx, cancel := context.WithTimeout(s.ctx, r.opts.TranscribeTimeout)
		spans, err = r.transcribe(ctx, payload)
		cancel()
	}

	s.mu.Lock()
	if s.status == StatusCompleted {
		s.mu.Unlock()
		slog.Debug("discarding result for completed session", "session_id", s.id, "sequence_number", seq)
		return
	}
	if err != nil {
		s.mu.Unlock()
		slog.Error("failed to transcribe segment", "error", err, "session_id", s.id, "sequence_number", seq, "is_final", final)
		r.deliver(s.id, func() {
			r.notifier.PublishError(s.id, notifier.Failure{
				SequenceNumber: seq,
				Kind:           notifier.ErrorKindTranscriptionFailed,
				Message:        err.Error(),
			})
		})
		return
	}
	spans = transcriber.Normalize(spans)
	if text := transcriber.JoinText(spans); text != "" {
		if s.transcript.Len() > 0 {
			s.transcript.WriteByte(' ')
		}
		s.transcript.WriteString(text)
	}
	result := notifier.TranscriptResult{
		SessionID:      s.id,
		SequenceNumber: seq,
		Spans:          spans,
		IsFinal:        final,
	}
	update := TranscriptUpdate{
		SessionID: s.id,
		StartedAt: s.startedAt,
		Result:    result,
		FullText:  s.transcript.String(),
	}
	s.mu.Unlock()

	r.deliver(s.id, func() { r.notifier.Publish(s.id, result) })
	if len(spans) > 0 {
		r.enqueueHook(s, func(ctx context.Context) { r.observer.TranscriptUpdated(ctx, update) })
	}
}

// deliver runs a notifier call with no session lock held. A panicking notifier is logged so the
// flush worker keeps going.
func (r *Registry) deliver(sessionID string, publish func()) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("notifier panicked", "panic", p, "session_id", sessionID)
		}
	}()
	publish()
}

// enqueueHook runs observer callbacks of one session in order on a goroutine tracked by hooks,
// so a slow observer never holds the flush slot.
func (r *Registry) enqueueHook(s *sessionState, hook func(ctx context.Context)) {
	s.hookMu.Lock()
	s.hookQueue = append(s.hookQueue, hook)
	start := !s.hookRunning
	if start {
		s.hookRunning = true
		r.hooks.Add(1)
	}
	s.hookMu.Unlock()

	if start {
		go r.runHooks(s)
	}
}

func (r *Registry) runHooks(s *sessionState) {
	defer r.hooks.Done()
	for {
		s.hookMu.Lock()
		if len(s.hookQueue) == 0 {
			s.hookRunning = false
			s.hookMu.Unlock()
			return
		}
		hook := s.hookQueue[0]
		s.hookQueue[0] = nil
		s.hookQueue = s.hookQueue[1:]
		s.hookMu.Unlock()

		r.runHook(s.id, hook)
	}
}

func (r *Registry) runHook(sessionID string, hook func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("session observer panicked", "panic", p, "session_id", sessionID)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	hook(ctx)
}

func (r *Registry) transcribe(ctx context.Context, payload []byte) (spans []transcriber.Span, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transcription engine panicked: %v", p)
		}
	}()
	return r.engine.Transcribe(ctx, payload)
}

// complete marks the session Completed, cancels in-flight work and removes it from the registry.
// It reports false when the session had already completed.
func (r *Registry) complete(s *sessionState, reason CompletionReason) bool {
	s.mu.Lock()
	if s.status == StatusCompleted {
		s.mu.Unlock()
		return false
	}
	s.status = StatusCompleted
	s.endedAt = r.now()
	s.flushing = false
	dropped := s.buffer.Len()
	s.buffer.Drain()
	completion := Completion{Info: s.snapshotLocked(), Reason: reason, FullText: s.transcript.String()}
	s.mu.Unlock()

	// Queued behind pending transcript hooks, and before done closes so Shutdown waits for it.
	r.enqueueHook(s, func(ctx context.Context) { r.observer.SessionCompleted(ctx, completion) })
	s.cancel()
	close(s.done)

	r.mu.Lock()
	delete(r.sessions, s.id)
	r.completed[s.id] = completion.Info
	r.mu.Unlock()

	slog.Info("session completed", "session_id", s.id, "reason", string(reason), "dropped_fragments", dropped, "transcript_chars", completion.Info.TranscriptChars)
	return true
}

// ReapIdle completes Active sessions idle for longer than the idle timeout, without a final flush.
func (r *Registry) ReapIdle() int {
	now := r.now()
	var idle []*sessionState
	r.mu.RLock()
	for _, s := range r.sessions {
		s.mu.Lock()
		if s.status == StatusActive && now.Sub(s.lastActivity) > r.opts.IdleTimeout {
			idle = append(idle, s)
		}
		s.mu.Unlock()
	}
	r.mu.RUnlock()

	reaped := 0
	for _, s := range idle {
		if r.complete(s, ReasonIdle) {
			slog.Info("evicted idle session", "session_id", s.id, "idle_timeout", r.opts.IdleTimeout)
			reaped++
		}
	}
	r.pruneCompleted(now)
	return reaped
}

func (r *Registry) pruneCompleted(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, info := range r.completed {
		if now.Sub(info.EndedAt) > r.opts.IdleTimeout {
			delete(r.completed, id)
		}
	}
}

// Run reaps idle sessions every reap interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.ReapInterval)
	defer ticker.Stop()
	slog.Info("idle reaper started", "interval", r.opts.ReapInterval, "idle_timeout", r.opts.IdleTimeout)
	for {
		select {
		case <-ctx.Done():
			slog.Info("idle reaper stopped", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			r.ReapIdle()
		}
	}
}

// Shutdown stops every live session concurrently and waits for completion hooks.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	live := make([]*sessionState, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()

	slog.Info("shutting down session registry", "sessions", len(live))
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range live {
		g.Go(func() error {
			_, err := r.Stop(gctx, s.id)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrSessionNotActive):
				select {
				case <-s.done:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			default:
				return fmt.Errorf("stop session %s: %w", s.id, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	hooksDone := make(chan struct{})
	go func() {
		r.hooks.Wait()
		close(hooksDone)
	}()
	select {
	case <-hooksDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for completion hooks: %w", ctx.Err())
	}
}

func (s *sessionState) snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *sessionState) snapshotLocked() Info {
	return Info{
		ID:               s.id,
		Status:           s.status,
		StartedAt:        s.startedAt,
		EndedAt:          s.endedAt,
		LastActivity:     s.lastActivity,
		PendingFragments: s.buffer.Len(),
		NextSequence:     s.nextSeq,
		TranscriptChars:  s.transcript.Len(),
	}
}
