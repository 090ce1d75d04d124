package infrastructure

import (
	"fmt"
	"os/exec"

	"github.com/yourusername/steampack-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService handles sending desktop notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.sendOSAScript(title, message)
	case "notify-send":
		return n.sendNotifySend(title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

// sendOSAScript sends notification using macOS osascript
func (n *NotificationService) sendOSAScript(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", "osascript"),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))

	return nil
}

// sendNotifySend sends notification using Linux notify-send
func (n *NotificationService) sendNotifySend(title, message string) error {
	cmd := exec.Command("notify-send", title, message)

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", "notify-send"),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))

	return nil
}

// NotifyTaskQueued sends notification when a task is queued
func (n *NotificationService) NotifyTaskQueued(task *domain.DownloadTask) {
	title := "Download Queued"
	message := fmt.Sprintf("App %s added to queue", task.AppID)
	n.Send(title, message)
}

// NotifyTaskStarted sends notification when a task starts
func (n *NotificationService) NotifyTaskStarted(task *domain.DownloadTask) {
	title := "Download Started"
	message := fmt.Sprintf("Downloading app %s", task.AppID)
	n.Send(title, message)
}

// NotifyTaskCompleted sends notification when a task completes
func (n *NotificationService) NotifyTaskCompleted(task *domain.DownloadTask) {
	title := "Download Completed"
	message := fmt.Sprintf("App %s archived to %s", task.AppID, truncateString(task.OutputPath, 40))
	n.Send(title, message)
}

// NotifyTaskFailed sends notification when a task fails
func (n *NotificationService) NotifyTaskFailed(task *domain.DownloadTask) {
	title := "Download Failed"
	message := fmt.Sprintf("App %s: %s", task.AppID, truncateString(task.ErrorMessage, 60))
	n.Send(title, message)
}

// NotifyQueueEmpty sends notification when the queue drains
func (n *NotificationService) NotifyQueueEmpty() {
	title := "Queue Empty"
	message := "All downloads completed"
	n.Send(title, message)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
