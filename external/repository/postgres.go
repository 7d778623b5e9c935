package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, started_at, status)
		 VALUES ($1, $2, 'running')
		 RETURNING id, started_at, ended_at, status, stop_reason, duration_seconds, segment_count, created_at`,
		input.SessionID, input.StartedAt)
	return scanSession(row)
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = 'completed', ended_at = $2, stop_reason = $3, duration_seconds = $4, segment_count = $5
		 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.StopReason, input.DurationSeconds, input.SegmentCount)
	return err
}

// GetSession returns nil without error when the session does not exist.
func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, started_at, ended_at, status, stop_reason, duration_seconds, segment_count, created_at
		 FROM sessions WHERE id = $1`,
		sessionID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var endedAt *time.Time
	if err := row.Scan(&s.ID, &s.StartedAt, &endedAt, &s.Status, &s.StopReason, &s.DurationSeconds, &s.SegmentCount, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) InsertSegments(ctx context.Context, inputs []repository.InsertSegmentInput) error {
	if len(inputs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, in := range inputs {
		batch.Queue(
			`INSERT INTO transcript_segments
			 (session_id, segment_index, sequence_number, start_offset_ms, end_offset_ms, content, is_final, spoken_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			in.SessionID, in.SegmentIndex, int64(in.SequenceNumber),
			in.StartOffset.Milliseconds(), in.EndOffset.Milliseconds(),
			in.Content, in.IsFinal, in.SpokenAt)
	}
	results := r.pool.SendBatch(ctx, batch)
	for i := range inputs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert segment %d: %w", inputs[i].SegmentIndex, err)
		}
	}
	return results.Close()
}

func (r *PostgresRepository) ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, segment_index, sequence_number, start_offset_ms, end_offset_ms, content, is_final, spoken_at, created_at
		 FROM transcript_segments WHERE session_id = $1 ORDER BY segment_index ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TranscriptSegment
	for rows.Next() {
		var seg repository.TranscriptSegment
		var seq, startMs, endMs int64
		if err := rows.Scan(&seg.SessionID, &seg.SegmentIndex, &seq, &startMs, &endMs, &seg.Content, &seg.IsFinal, &seg.SpokenAt, &seg.CreatedAt); err != nil {
			return nil, err
		}
		seg.SequenceNumber = uint64(seq)
		seg.StartOffset = time.Duration(startMs) * time.Millisecond
		seg.EndOffset = time.Duration(endMs) * time.Millisecond
		list = append(list, seg)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
