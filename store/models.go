package store

import (
	"time"

	"github.com/kbukum/mediascribe/jobs"
)

// JobRecord is the persisted summary of a finished job.
type JobRecord struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Source      string     `gorm:"not null" json:"source"`
	State       string     `gorm:"size:16;index;not null" json:"state"`
	Engine      string     `gorm:"size:32" json:"engine,omitempty"`
	Model       string     `gorm:"size:64" json:"model,omitempty"`
	Language    string     `gorm:"size:8" json:"language,omitempty"`
	Quality     string     `gorm:"size:8" json:"quality,omitempty"`
	Text        string     `json:"text,omitempty"`
	Partial     bool       `json:"partial"`
	Placeholder bool       `json:"placeholder"`
	Note        string     `json:"note,omitempty"`
	Segments    int        `json:"segments"`
	Skipped     int        `json:"skipped"`
	Duration    float64    `json:"duration"`
	ErrorCode   string     `gorm:"size:32" json:"error_code,omitempty"`
	ErrorText   string     `json:"error_message,omitempty"`
	SubmittedAt time.Time  `gorm:"index" json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ElapsedMs   int64      `json:"elapsed_ms"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name.
func (JobRecord) TableName() string { return "jobs" }

// FromInfo builds a record from a job snapshot.
func FromInfo(info jobs.Info) *JobRecord {
	rec := &JobRecord{
		ID:          info.ID,
		Source:      info.Source,
		State:       string(info.State),
		Engine:      info.Engine,
		Model:       info.Options.Model,
		Language:    info.Options.Language,
		Quality:     info.Options.Quality,
		Segments:    info.Segments,
		Duration:    info.Duration,
		SubmittedAt: info.SubmittedAt,
		StartedAt:   info.StartedAt,
		FinishedAt:  info.FinishedAt,
	}
	if r := info.Result; r != nil {
		rec.Text = r.Text
		rec.Partial = r.Partial
		rec.Placeholder = r.Placeholder
		rec.Note = r.Note
		rec.Segments = r.Segments
		rec.Skipped = r.Skipped
		rec.ElapsedMs = r.Elapsed.Milliseconds()
		if rec.Engine == "" {
			rec.Engine = r.Engine
		}
	}
	if e := info.Error; e != nil {
		rec.ErrorCode = string(e.Code)
		rec.ErrorText = e.Message
	}
	if rec.ElapsedMs == 0 && info.StartedAt != nil && info.FinishedAt != nil {
		rec.ElapsedMs = info.FinishedAt.Sub(*info.StartedAt).Milliseconds()
	}
	return rec
}
