package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foxseedlab/livescribe/internal/repository"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		status TEXT NOT NULL DEFAULT 'running',
		stop_reason TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		segment_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		segment_index INTEGER NOT NULL,
		sequence_number INTEGER NOT NULL,
		start_offset_ms INTEGER NOT NULL,
		end_offset_ms INTEGER NOT NULL,
		content TEXT NOT NULL,
		is_final INTEGER NOT NULL DEFAULT 0,
		spoken_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, segment_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcript_segments_sequence ON transcript_segments (session_id, sequence_number)`,
}

// SQLiteRepository stores times as unix milliseconds.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	createdAt := r.now()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, status, created_at) VALUES (?, ?, 'running', ?)`,
		input.SessionID, toUnixMilli(input.StartedAt), toUnixMilli(createdAt)); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &repository.Session{
		ID:        input.SessionID,
		StartedAt: fromUnixMilli(toUnixMilli(input.StartedAt)),
		Status:    repository.SessionStatusRunning,
		CreatedAt: fromUnixMilli(toUnixMilli(createdAt)),
	}, nil
}

func (r *SQLiteRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET status = 'completed', ended_at = ?, stop_reason = ?, duration_seconds = ?, segment_count = ?
		 WHERE id = ?`,
		toUnixMilli(input.EndedAt), input.StopReason, input.DurationSeconds, input.SegmentCount, input.SessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// GetSession returns nil without error when the session does not exist.
func (r *SQLiteRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, status, stop_reason, duration_seconds, segment_count, created_at
		 FROM sessions WHERE id = ?`,
		sessionID)
	var s repository.Session
	var startedAt, createdAt int64
	var endedAt sql.NullInt64
	var status string
	if err := row.Scan(&s.ID, &startedAt, &endedAt, &status, &s.StopReason, &s.DurationSeconds, &s.SegmentCount, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	s.Status = repository.SessionStatus(status)
	s.StartedAt = fromUnixMilli(startedAt)
	s.CreatedAt = fromUnixMilli(createdAt)
	if endedAt.Valid {
		t := fromUnixMilli(endedAt.Int64)
		s.EndedAt = &t
	}
	return &s, nil
}

func (r *SQLiteRepository) InsertSegments(ctx context.Context, inputs []repository.InsertSegmentInput) error {
	if len(inputs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_segments
		 (session_id, segment_index, sequence_number, start_offset_ms, end_offset_ms, content, is_final, spoken_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := toUnixMilli(r.now())
	for _, in := range inputs {
		if _, err := stmt.ExecContext(ctx,
			in.SessionID, in.SegmentIndex, int64(in.SequenceNumber),
			in.StartOffset.Milliseconds(), in.EndOffset.Milliseconds(),
			in.Content, in.IsFinal, toUnixMilli(in.SpokenAt), createdAt); err != nil {
			return fmt.Errorf("insert segment %d: %w", in.SegmentIndex, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, segment_index, sequence_number, start_offset_ms, end_offset_ms, content, is_final, spoken_at, created_at
		 FROM transcript_segments WHERE session_id = ? ORDER BY segment_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var list []repository.TranscriptSegment
	for rows.Next() {
		var seg repository.TranscriptSegment
		var seq, startMs, endMs, spokenAt, createdAt int64
		if err := rows.Scan(&seg.SessionID, &seg.SegmentIndex, &seq, &startMs, &endMs, &seg.Content, &seg.IsFinal, &spokenAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.SequenceNumber = uint64(seq)
		seg.StartOffset = time.Duration(startMs) * time.Millisecond
		seg.EndOffset = time.Duration(endMs) * time.Millisecond
		seg.SpokenAt = fromUnixMilli(spokenAt)
		seg.CreatedAt = fromUnixMilli(createdAt)
		list = append(list, seg)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func toUnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
