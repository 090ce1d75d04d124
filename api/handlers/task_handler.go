package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/steampack-go/internal/app"
	"github.com/yourusername/steampack-go/internal/domain"
	"go.uber.org/zap"
)

// TaskHandler handles download-task HTTP requests
type TaskHandler struct {
	queueMgr *app.QueueManager
	logger   *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(queueMgr *app.QueueManager, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		queueMgr: queueMgr,
		logger:   logger,
	}
}

// AddTaskRequest represents a request to queue a download. Source accepts
// either a bare app ID or a store URL. Credentials are optional; an empty
// username means anonymous.
type AddTaskRequest struct {
	Source     string `json:"source" binding:"required"`
	OutputPath string `json:"output_path,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	GuardCode  string `json:"guard_code,omitempty"`
	Resume     bool   `json:"resume,omitempty"`
}

func (r *AddTaskRequest) credentials() domain.Credentials {
	return domain.Credentials{
		Username:  r.Username,
		Password:  r.Password,
		GuardCode: r.GuardCode,
	}
}

// AddTask handles POST /api/v1/tasks
func (h *TaskHandler) AddTask(c *gin.Context) {
	var req AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.queueMgr.AddTask(req.Source, req.OutputPath, req.credentials(), req.Resume)
	if err != nil {
		h.logger.Error("Failed to add task", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id := c.Param("id")

	task, err := h.queueMgr.GetTask(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasks handles GET /api/v1/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if appID := c.Query("app_id"); appID != "" {
		filters["app_id"] = appID
	}

	tasks, err := h.queueMgr.ListTasks(filters)
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// GetStats handles GET /api/v1/tasks/stats
func (h *TaskHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DeleteTask handles DELETE /api/v1/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id := c.Param("id")

	if err := h.queueMgr.DeleteTask(id); err != nil {
		h.logger.Error("Failed to delete task", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

// QueueStatus handles GET /api/v1/queue/status
func (h *TaskHandler) QueueStatus(c *gin.Context) {
	status, err := h.queueMgr.Status()
	if err != nil {
		h.logger.Error("Failed to get queue status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
