package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads calendar, news and announcement records from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const scheduleColumns = `
	id, date, day_of_week,
	COALESCE(to_char(start_time, 'HH24:MI'), ''),
	COALESCE(to_char(end_time, 'HH24:MI'), ''),
	COALESCE(content, ''), COALESCE(location, ''), COALESCE(leader, ''),
	COALESCE(participants, '[]'::jsonb),
	COALESCE(preparing_unit, ''),
	COALESCE(cooperating_units, '[]'::jsonb),
	COALESCE(notes, ''), status`

// SchedulesInRange returns active entries with date in [start, end] inclusive,
// ordered by date then start time. Only approved and draft entries are active.
func (r *Repository) SchedulesInRange(ctx context.Context, start, end time.Time) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE status IN ($1, $2) AND date BETWEEN $3 AND $4
		ORDER BY date, start_time`,
		StatusApproved, StatusDraft, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying schedules in range: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// ListSchedules returns all active entries, newest first. Used by indexing;
// the status filter matches SchedulesInRange so search and exact lookup see
// the same calendar.
func (r *Repository) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE status IN ($1, $2)
		ORDER BY date DESC`, StatusApproved, StatusDraft)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// ListNews returns all news articles, newest first.
func (r *Repository) ListNews(ctx context.Context) ([]News, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, COALESCE(summary, ''), COALESCE(content, ''),
		       COALESCE(category, ''), published_at
		FROM news
		ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	defer rows.Close()

	var out []News
	for rows.Next() {
		var n News
		if err := rows.Scan(&n.ID, &n.Title, &n.Summary, &n.Content, &n.Category, &n.PublishedAt); err != nil {
			return nil, fmt.Errorf("scanning news row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	return out, nil
}

// ListAnnouncements returns unexpired announcements, newest first.
func (r *Repository) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, COALESCE(content, ''), COALESCE(priority, ''),
		       published_at, expires_at
		FROM announcements
		WHERE expires_at IS NULL OR expires_at > NOW()
		ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing announcements: %w", err)
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Priority, &a.PublishedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning announcement row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing announcements: %w", err)
	}
	return out, nil
}

// SaveDocument replaces the stored reference document. Documents are a
// full-replace corpus like every other indexed source, so the previous
// upload is removed in the same transaction.
func (r *Repository) SaveDocument(ctx context.Context, title, content string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting document save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM documents`); err != nil {
		return 0, fmt.Errorf("clearing stored documents: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO documents (title, content)
		VALUES ($1, $2)
		RETURNING id`, title, content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storing document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing document save: %w", err)
	}
	return id, nil
}

// ListDocuments returns the stored reference documents, newest first.
func (r *Repository) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, content, created_at
		FROM documents
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return out, nil
}

func scanSchedules(rows pgx.Rows) ([]Schedule, error) {
	var out []Schedule
	for rows.Next() {
		var s Schedule
		var participants, coopUnits []byte
		if err := rows.Scan(&s.ID, &s.Date, &s.DayOfWeek, &s.StartTime, &s.EndTime,
			&s.Content, &s.Location, &s.Leader, &participants,
			&s.PreparingUnit, &coopUnits, &s.Notes, &s.Status); err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		s.Participants = parseStringList(participants)
		s.CooperatingUnits = parseStringList(coopUnits)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading schedule rows: %w", err)
	}
	return out, nil
}

// parseStringList decodes a JSONB string array. Legacy rows hold a bare
// string; those become a single-element list.
func parseStringList(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
