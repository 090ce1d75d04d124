package domain

// TaskRepository defines the interface for task metadata persistence.
// Records never contain credential material; see DownloadTask field tags.
type TaskRepository interface {
	// Create persists a new task record
	Create(task *DownloadTask) error

	// Update updates an existing task record
	Update(task *DownloadTask) error

	// Delete deletes a task record by ID
	Delete(id string) error

	// FindByID finds a task by ID
	FindByID(id string) (*DownloadTask, error)

	// FindByStatus finds tasks by status
	FindByStatus(status TaskStatus) ([]*DownloadTask, error)

	// FindPending returns all queued tasks in enqueue order
	FindPending() ([]*DownloadTask, error)

	// FindAll finds all tasks with optional column filters
	FindAll(filters map[string]interface{}) ([]*DownloadTask, error)

	// Count returns the total number of task records
	Count() (int64, error)

	// CountByStatus returns the number of tasks with the given status
	CountByStatus(status TaskStatus) (int64, error)

	// ResetOrphanedRunning re-queues tasks left in the running state by a
	// previous process; returns how many were reset
	ResetOrphanedRunning() (int64, error)

	// GetStats returns queue statistics
	GetStats() (*TaskStats, error)
}

// TaskStats represents queue statistics
type TaskStats struct {
	Total     int64 `json:"total"`
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
