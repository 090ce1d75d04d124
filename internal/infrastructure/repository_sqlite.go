package infrastructure

import (
	"fmt"

	"github.com/yourusername/steampack-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteTaskRepository implements TaskRepository using SQLite
type SQLiteTaskRepository struct {
	db *gorm.DB
}

// NewSQLiteTaskRepository creates a new SQLite repository
func NewSQLiteTaskRepository(dbPath string) (*SQLiteTaskRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.DownloadTask{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteTaskRepository{db: db}, nil
}

// Create creates a new task
func (r *SQLiteTaskRepository) Create(task *domain.DownloadTask) error {
	return r.db.Create(task).Error
}

// Update updates an existing task
func (r *SQLiteTaskRepository) Update(task *domain.DownloadTask) error {
	return r.db.Save(task).Error
}

// Delete deletes a task by ID
func (r *SQLiteTaskRepository) Delete(id string) error {
	return r.db.Delete(&domain.DownloadTask{}, "id = ?", id).Error
}

// FindByID finds a task by ID
func (r *SQLiteTaskRepository) FindByID(id string) (*domain.DownloadTask, error) {
	var task domain.DownloadTask
	err := r.db.First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByStatus finds tasks by status
func (r *SQLiteTaskRepository) FindByStatus(status domain.TaskStatus) ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	err := r.db.Where("status = ?", status).Find(&tasks).Error
	return tasks, err
}

// FindPending finds all queued tasks in submission order
func (r *SQLiteTaskRepository) FindPending() ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	err := r.db.Where("status = ?", domain.StatusQueued).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindAll finds all tasks with optional filters
func (r *SQLiteTaskRepository) FindAll(filters map[string]interface{}) ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	query := r.db

	for key, value := range filters {
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// Count returns the total number of tasks
func (r *SQLiteTaskRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.DownloadTask{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of tasks by status
func (r *SQLiteTaskRepository) CountByStatus(status domain.TaskStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.DownloadTask{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// ResetOrphanedRunning re-queues tasks left in the running state by a
// previous process. Their credentials lived in memory only, so they come
// back as anonymous-equivalent and are retried exactly once.
func (r *SQLiteTaskRepository) ResetOrphanedRunning() (int64, error) {
	result := r.db.Model(&domain.DownloadTask{}).
		Where("status = ?", domain.StatusRunning).
		Updates(map[string]interface{}{
			"status":        domain.StatusQueued,
			"error_message": "",
		})
	return result.RowsAffected, result.Error
}

// GetStats returns task statistics
func (r *SQLiteTaskRepository) GetStats() (*domain.TaskStats, error) {
	stats := &domain.TaskStats{}

	if err := r.db.Model(&domain.DownloadTask{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.TaskStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.DownloadTask{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusQueued:
			stats.Queued = sc.Count
		case domain.StatusRunning:
			stats.Running = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteTaskRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
