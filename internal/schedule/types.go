// Package schedule provides structured access to the working calendar, news
// and announcements, plus the canonical Vietnamese text rendering used both
// for embedding and for direct answers.
package schedule

import "time"

// Schedule statuses visible to the assistant. Cancelled and rejected entries
// are never surfaced.
const (
	StatusApproved = "approved"
	StatusDraft    = "draft"
)

// Schedule is one working-calendar entry.
type Schedule struct {
	ID               int64
	Date             time.Time
	DayOfWeek        string
	StartTime        string // "HH:MM", empty when unset
	EndTime          string
	Content          string
	Location         string
	Leader           string
	Participants     []string
	PreparingUnit    string
	CooperatingUnits []string
	Notes            string
	Status           string
}

// News is one published news article.
type News struct {
	ID          int64
	Title       string
	Summary     string
	Content     string
	Category    string
	PublishedAt time.Time
}

// Announcement is one official announcement. ExpiresAt nil means it never
// expires.
type Announcement struct {
	ID          int64
	Title       string
	Content     string
	Priority    string
	PublishedAt time.Time
	ExpiresAt   *time.Time
}

// Document is one free-form reference document uploaded for retrieval.
type Document struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
}
