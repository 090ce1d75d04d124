package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/internal/domain"
	"github.com/yourusername/steampack-go/internal/infrastructure"
	"github.com/yourusername/steampack-go/pkg/logger"
)

// QueueStatus is the live queue view returned to clients
type QueueStatus struct {
	Running      bool     `json:"running"`
	ActiveTaskID string   `json:"active_task_id,omitempty"`
	PendingCount int64    `json:"pending_count"`
	StatusLog    []string `json:"status_log"`
}

// QueueManager owns the task queue. Tasks run strictly one at a time in
// submission order; SteamCMD holds global locks on its install state, so a
// second concurrent session would corrupt the first.
//
// Credentials are held in memory only, keyed by task ID, and are dropped
// as soon as the task is picked up. Tasks recovered after a restart
// therefore run with anonymous-equivalent credentials, once.
type QueueManager struct {
	repo        domain.TaskRepository
	session     domain.SessionRunner
	notifier    *infrastructure.NotificationService
	config      *domain.QueueConfig
	paths       domain.PathsConfig
	multiLogger *logger.MultiLogger
	logger      *zap.Logger

	statusLog *StatusLog

	mu           sync.RWMutex
	running      bool
	activeTaskID string
	creds        map[string]domain.Credentials
	stopChan     chan struct{}
	workerWg     sync.WaitGroup
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.TaskRepository,
	session domain.SessionRunner,
	notifier *infrastructure.NotificationService,
	config *domain.QueueConfig,
	paths domain.PathsConfig,
	multiLogger *logger.MultiLogger,
	log *zap.Logger,
) *QueueManager {
	return &QueueManager{
		repo:        repo,
		session:     session,
		notifier:    notifier,
		config:      config,
		paths:       paths,
		multiLogger: multiLogger,
		logger:      log,
		statusLog:   NewStatusLog(config.StatusLogCap),
		creds:       make(map[string]domain.Credentials),
		stopChan:    make(chan struct{}),
	}
}

// Start recovers orphaned tasks and starts the queue worker
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.mu.Unlock()

	recovered, err := qm.repo.ResetOrphanedRunning()
	if err != nil {
		qm.logger.Error("Failed to recover orphaned tasks", zap.Error(err))
	} else if recovered > 0 {
		qm.statusLog.Append(fmt.Sprintf("Recovered %d interrupted task(s); re-queued without credentials.", recovered))
		if qm.multiLogger != nil {
			qm.multiLogger.LogQueueEvent("tasks_recovered", zap.Int64("count", recovered))
		}
	}

	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent("queue_started")
	}

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the queue worker, waiting for an in-flight task to finish
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent("queue_stopped")
	}
	close(qm.stopChan)
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue worker is active
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// AddTask validates the request, persists a queued task, and stashes its
// credentials in memory
func (qm *QueueManager) AddTask(source, outputPath string, creds domain.Credentials, resume bool) (*domain.DownloadTask, error) {
	appID, err := domain.ExtractAppID(source)
	if err != nil {
		return nil, err
	}
	if outputPath == "" {
		outputPath = qm.paths.DefaultOutputPath(appID)
	}

	task := domain.NewDownloadTask(appID, source, outputPath, creds, resume)
	if err := qm.repo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	qm.mu.Lock()
	if !creds.IsAnonymous() {
		qm.creds[task.ID] = creds
	}
	qm.mu.Unlock()

	qm.statusLog.Append(fmt.Sprintf("Queued app %s -> %s", appID, outputPath))
	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent("task_added",
			zap.String("id", task.ID),
			zap.String("app_id", appID),
			zap.Bool("anonymous", creds.IsAnonymous()),
			zap.Bool("resume", resume))
	}
	if qm.notifier != nil {
		qm.notifier.NotifyTaskQueued(task)
	}

	return task, nil
}

// RunDirect executes a task immediately, bypassing the queue. The task is
// persisted in the running state so the worker never double-picks it, and
// the two never collide on disk because working directories are per app.
func (qm *QueueManager) RunDirect(ctx context.Context, source, outputPath string, creds domain.Credentials, resume bool) (*domain.DownloadTask, *domain.SessionResult, error) {
	appID, err := domain.ExtractAppID(source)
	if err != nil {
		return nil, nil, err
	}
	if outputPath == "" {
		outputPath = qm.paths.DefaultOutputPath(appID)
	}

	task := domain.NewDownloadTask(appID, source, outputPath, creds, resume)
	task.MarkRunning()
	if err := qm.repo.Create(task); err != nil {
		return nil, nil, fmt.Errorf("failed to create task: %w", err)
	}

	qm.statusLog.Append(fmt.Sprintf("Running app %s immediately", appID))
	result := qm.execute(ctx, task, creds)
	return task, result, nil
}

// GetTask retrieves a task by ID
func (qm *QueueManager) GetTask(id string) (*domain.DownloadTask, error) {
	return qm.repo.FindByID(id)
}

// ListTasks lists all tasks with optional filters
func (qm *QueueManager) ListTasks(filters map[string]interface{}) ([]*domain.DownloadTask, error) {
	return qm.repo.FindAll(filters)
}

// DeleteTask removes a finished or queued task
func (qm *QueueManager) DeleteTask(id string) error {
	task, err := qm.repo.FindByID(id)
	if err != nil {
		return err
	}
	if task.Status == domain.StatusRunning {
		return fmt.Errorf("cannot delete a running task")
	}
	qm.mu.Lock()
	delete(qm.creds, id)
	qm.mu.Unlock()
	return qm.repo.Delete(id)
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.TaskStats, error) {
	return qm.repo.GetStats()
}

// Status returns the live queue view
func (qm *QueueManager) Status() (*QueueStatus, error) {
	pending, err := qm.repo.CountByStatus(domain.StatusQueued)
	if err != nil {
		return nil, err
	}
	qm.mu.RLock()
	active := qm.activeTaskID
	running := qm.running
	qm.mu.RUnlock()
	return &QueueStatus{
		Running:      running,
		ActiveTaskID: active,
		PendingCount: pending,
		StatusLog:    qm.statusLog.Snapshot(),
	}, nil
}

// StatusLines returns the current status log
func (qm *QueueManager) StatusLines() []string {
	return qm.statusLog.Snapshot()
}

// processQueue drains the queue one task at a time
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if qm.multiLogger != nil {
				qm.multiLogger.LogQueueEvent("queue_processor_stopped",
					zap.String("reason", "context_cancelled"))
			}
			return
		case <-qm.stopChan:
			if qm.multiLogger != nil {
				qm.multiLogger.LogQueueEvent("queue_processor_stopped",
					zap.String("reason", "stop_signal"))
			}
			return
		case <-ticker.C:
			qm.drainPending(ctx)
		}
	}
}

// drainPending runs queued tasks sequentially until the queue is empty or
// a stop is requested
func (qm *QueueManager) drainPending(ctx context.Context) {
	drained := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-qm.stopChan:
			return
		default:
		}

		pending, err := qm.repo.FindPending()
		if err != nil {
			if qm.multiLogger != nil {
				qm.multiLogger.LogAppError("Failed to fetch pending tasks", zap.Error(err))
			}
			return
		}
		if len(pending) == 0 {
			if drained && qm.notifier != nil {
				qm.notifier.NotifyQueueEmpty()
			}
			return
		}

		task := pending[0]
		creds := qm.takeCredentials(task.ID)

		task.MarkRunning()
		if err := qm.repo.Update(task); err != nil {
			if qm.multiLogger != nil {
				qm.multiLogger.LogAppError("Failed to mark task running",
					zap.String("id", task.ID), zap.Error(err))
			}
			return
		}

		qm.execute(ctx, task, creds)
		drained = true
	}
}

// takeCredentials removes and returns the stashed credentials for a task
func (qm *QueueManager) takeCredentials(taskID string) domain.Credentials {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	creds, ok := qm.creds[taskID]
	if ok {
		delete(qm.creds, taskID)
	}
	return creds
}

// execute runs one task through the session pipeline and records the
// outcome. A panic in the pipeline fails the task instead of killing the
// worker.
func (qm *QueueManager) execute(ctx context.Context, task *domain.DownloadTask, creds domain.Credentials) (result *domain.SessionResult) {
	qm.mu.Lock()
	qm.activeTaskID = task.ID
	qm.mu.Unlock()
	defer func() {
		qm.mu.Lock()
		qm.activeTaskID = ""
		qm.mu.Unlock()
	}()

	qm.statusLog.Append(fmt.Sprintf("Starting app %s", task.AppID))
	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent("task_started",
			zap.String("id", task.ID),
			zap.String("app_id", task.AppID))
	}
	if qm.notifier != nil {
		qm.notifier.NotifyTaskStarted(task)
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("session panicked: %v", r)
			qm.logger.Error("Session panicked",
				zap.String("id", task.ID),
				zap.Any("panic", r))
			res := &domain.SessionResult{
				Err: domain.NewSessionError(domain.FailureUnclassifiedLogin, err.Error()),
			}
			qm.finishTask(task, res)
			result = res
		}
	}()

	result = qm.session.Run(ctx, task, creds)
	qm.statusLog.AppendAll(result.Log)
	qm.finishTask(task, result)
	return result
}

// finishTask persists the terminal state and emits completion events
func (qm *QueueManager) finishTask(task *domain.DownloadTask, result *domain.SessionResult) {
	if result.Failed() {
		task.MarkFailed(errors.New(result.Err.Message))
		qm.statusLog.Append(fmt.Sprintf("App %s failed: %s", task.AppID, result.Err.Message))
		if qm.multiLogger != nil {
			qm.multiLogger.LogQueueEvent("task_failed",
				zap.String("id", task.ID),
				zap.String("kind", string(result.Err.Kind)),
				zap.String("message", result.Err.Message))
			qm.multiLogger.WriteSessionComplete(task.ID, false, result.Err.Message)
		}
		if qm.notifier != nil {
			qm.notifier.NotifyTaskFailed(task)
		}
	} else {
		task.MarkCompleted(result.ArchivePath)
		if qm.multiLogger != nil {
			qm.multiLogger.LogQueueEvent("task_completed",
				zap.String("id", task.ID),
				zap.String("archive", result.ArchivePath),
				zap.Int("volumes", len(result.Volumes)))
			qm.multiLogger.WriteSessionComplete(task.ID, true, result.ArchivePath)
		}
		if qm.notifier != nil {
			qm.notifier.NotifyTaskCompleted(task)
		}
	}

	if err := qm.repo.Update(task); err != nil {
		qm.logger.Error("Failed to persist task outcome",
			zap.String("id", task.ID),
			zap.Error(err))
	}
}
