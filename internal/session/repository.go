package session

import (
	"context"
	"database/sql"
	"time"
)

// Repository persists session snapshots. The whole session is written on
// every committed mutation; sessions are small and the single-writer sqlite
// connection keeps this simple and atomic.
type Repository interface {
	SaveSession(ctx context.Context, sess *Session) error
	LoadSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateClipThumbnail(ctx context.Context, sessionID, clipID, thumbnailPath string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, sess *Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, name, active_clip_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			active_clip_id = excluded.active_clip_id,
			updated_at = excluded.updated_at
	`, sess.ID, sess.Name, nullString(sess.ActiveClipID),
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	// Child rows are replaced wholesale; the snapshot is the unit of
	// persistence.
	for _, stmt := range []string{
		"DELETE FROM segments WHERE session_id = ?",
		"DELETE FROM clips WHERE session_id = ?",
		"DELETE FROM overlays WHERE session_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, sess.ID); err != nil {
			return err
		}
	}

	for _, clip := range sess.Clips {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clips (id, session_id, source_ref, duration_s, width, height, fps, thumbnail_path, placeholder_color, ord, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, clip.ID, sess.ID, clip.SourceRef, clip.DurationS, clip.Width, clip.Height, clip.FPS,
			clip.ThumbnailPath, clip.PlaceholderColor, clip.Order, clip.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}

	for _, seg := range sess.Segments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO segments (id, session_id, clip_id, in_s, out_s, ord)
			VALUES (?, ?, ?, ?, ?, ?)
		`, seg.ID, sess.ID, seg.ClipID, seg.InS, seg.OutS, seg.Order)
		if err != nil {
			return err
		}
	}

	for _, ov := range sess.Overlays {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO overlays (id, session_id, kind, text, style, pos_x, pos_y, start_s, end_s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ov.ID, sess.ID, string(ov.Kind), ov.Text, ov.Style, ov.PosX, ov.PosY, ov.StartS, ov.EndS)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) LoadSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, active_clip_id, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if err != nil || sess == nil {
		return sess, err
	}
	if err := r.loadChildren(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, active_clip_id, created_at, updated_at
		FROM sessions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		var activeClip sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.Name, &activeClip, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.ActiveClipID = activeClip.String
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		if err := r.loadChildren(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateClipThumbnail(ctx context.Context, sessionID, clipID, thumbnailPath string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE clips SET thumbnail_path = ? WHERE session_id = ? AND id = ?",
		thumbnailPath, sessionID, clipID)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) loadChildren(ctx context.Context, sess *Session) error {
	sess.Clips = make(map[string]*Clip)
	clipRows, err := r.db.QueryContext(ctx, `
		SELECT id, source_ref, duration_s, width, height, fps, thumbnail_path, placeholder_color, ord, created_at
		FROM clips WHERE session_id = ? ORDER BY ord
	`, sess.ID)
	if err != nil {
		return err
	}
	defer clipRows.Close()
	for clipRows.Next() {
		var c Clip
		var createdAt string
		if err := clipRows.Scan(&c.ID, &c.SourceRef, &c.DurationS, &c.Width, &c.Height, &c.FPS,
			&c.ThumbnailPath, &c.PlaceholderColor, &c.Order, &createdAt); err != nil {
			return err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sess.Clips[c.ID] = &c
	}
	if err := clipRows.Err(); err != nil {
		return err
	}

	segRows, err := r.db.QueryContext(ctx, `
		SELECT id, clip_id, in_s, out_s, ord
		FROM segments WHERE session_id = ? ORDER BY ord
	`, sess.ID)
	if err != nil {
		return err
	}
	defer segRows.Close()
	sess.Segments = nil
	for segRows.Next() {
		var s Segment
		if err := segRows.Scan(&s.ID, &s.ClipID, &s.InS, &s.OutS, &s.Order); err != nil {
			return err
		}
		sess.Segments = append(sess.Segments, &s)
	}
	if err := segRows.Err(); err != nil {
		return err
	}

	ovRows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, text, style, pos_x, pos_y, start_s, end_s
		FROM overlays WHERE session_id = ?
	`, sess.ID)
	if err != nil {
		return err
	}
	defer ovRows.Close()
	sess.Overlays = nil
	for ovRows.Next() {
		var o TextOverlay
		var kind string
		if err := ovRows.Scan(&o.ID, &kind, &o.Text, &o.Style, &o.PosX, &o.PosY, &o.StartS, &o.EndS); err != nil {
			return err
		}
		o.Kind = OverlayKind(kind)
		sess.Overlays = append(sess.Overlays, &o)
	}
	return ovRows.Err()
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var activeClip sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.Name, &activeClip, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.ActiveClipID = activeClip.String
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &s, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
