package export

import (
	"context"
	"database/sql"
	"time"
)

// Store persists the latest export job per session so /status survives a
// page reload and interrupted jobs can be surfaced after restart.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveJob(ctx context.Context, sessionID string, job Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_jobs (session_id, status, progress, token, download_ref, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			token = excluded.token,
			download_ref = excluded.download_ref,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, sessionID, string(job.Status), job.ProgressPercent, job.Token, job.DownloadRef,
		job.ErrorMessage, job.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *Store) LoadJob(ctx context.Context, sessionID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, progress, token, download_ref, error, updated_at
		FROM export_jobs WHERE session_id = ?
	`, sessionID)

	var j Job
	var status, updatedAt string
	err := row.Scan(&status, &j.ProgressPercent, &j.Token, &j.DownloadRef, &j.ErrorMessage, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Status = State(status)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}
