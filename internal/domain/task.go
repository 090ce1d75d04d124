package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current status of a download task
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Credentials holds the Steam login material for one session.
// Never persisted; a recovered task always runs with zero-value credentials.
type Credentials struct {
	Username  string `json:"-"`
	Password  string `json:"-"`
	GuardCode string `json:"-"`
	Anonymous bool   `json:"anonymous"`
}

// IsAnonymous reports whether this session should use anonymous login.
// An empty username is treated as anonymous so that tasks recovered after a
// restart (whose secrets were never stored) still run.
func (c Credentials) IsAnonymous() bool {
	return c.Anonymous || c.Username == ""
}

// DownloadTask represents one download-and-compress job.
// The credential fields are excluded from both the database and JSON output;
// only the queue holds them, in memory, while the task is pending.
type DownloadTask struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	AppID        string     `json:"app_id" gorm:"not null;index"`
	SourceURL    string     `json:"source_url"`
	OutputPath   string     `json:"output_path" gorm:"not null"`
	Resume       bool       `json:"resume"`
	Anonymous    bool       `json:"anonymous"`
	Status       TaskStatus `json:"status" gorm:"not null;index"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ArchivePath  string     `json:"archive_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Username  string `json:"-" gorm:"-"`
	Password  string `json:"-" gorm:"-"`
	GuardCode string `json:"-" gorm:"-"`
}

// NewDownloadTask creates a new queued task
func NewDownloadTask(appID, sourceURL, outputPath string, creds Credentials, resume bool) *DownloadTask {
	return &DownloadTask{
		ID:         uuid.New().String(),
		AppID:      appID,
		SourceURL:  sourceURL,
		OutputPath: outputPath,
		Resume:     resume,
		Anonymous:  creds.IsAnonymous(),
		Status:     StatusQueued,
		Username:   creds.Username,
		Password:   creds.Password,
		GuardCode:  creds.GuardCode,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

// Credentials returns the in-memory login material for this task.
func (t *DownloadTask) Credentials() Credentials {
	return Credentials{
		Username:  t.Username,
		Password:  t.Password,
		GuardCode: t.GuardCode,
		Anonymous: t.Anonymous,
	}
}

// MarkRunning marks the task as picked up by the worker
func (t *DownloadTask) MarkRunning() {
	t.Status = StatusRunning
	now := time.Now()
	t.StartedAt = &now
	t.UpdatedAt = now
}

// MarkCompleted marks the task as completed with the archive it produced
func (t *DownloadTask) MarkCompleted(archivePath string) {
	t.Status = StatusCompleted
	t.ArchivePath = archivePath
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkFailed marks the task as failed
func (t *DownloadTask) MarkFailed(err error) {
	t.Status = StatusFailed
	if err != nil {
		t.ErrorMessage = err.Error()
	}
	t.UpdatedAt = time.Now()
}

// IsTerminal checks if the task reached a final state
func (t *DownloadTask) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// IsPending checks if the task is waiting in the queue
func (t *DownloadTask) IsPending() bool {
	return t.Status == StatusQueued
}

var (
	storeURLPattern = regexp.MustCompile(`/app/(\d+)`)
	bareIDPattern   = regexp.MustCompile(`^\d+$`)
)

// ExtractAppID extracts the numeric app ID from a store URL, or accepts a
// bare numeric ID as-is.
func ExtractAppID(input string) (string, error) {
	if bareIDPattern.MatchString(input) {
		return input, nil
	}
	if m := storeURLPattern.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("could not extract app ID from %q", input)
}
