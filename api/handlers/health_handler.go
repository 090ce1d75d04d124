package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/steampack-go/internal/app"
)

const serviceVersion = "1.0.0"

// HealthHandler reports service liveness and queue state
type HealthHandler struct {
	queueMgr *app.QueueManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queueMgr *app.QueueManager) *HealthHandler {
	return &HealthHandler{
		queueMgr: queueMgr,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running      bool   `json:"running"`
		ActiveTaskID string `json:"active_task_id,omitempty"`
		PendingCount int64  `json:"pending_count"`
	} `json:"queue"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: serviceVersion,
	}
	if status, err := h.queueMgr.Status(); err == nil {
		response.Queue.Running = status.Running
		response.Queue.ActiveTaskID = status.ActiveTaskID
		response.Queue.PendingCount = status.PendingCount
	} else {
		response.Queue.Running = h.queueMgr.IsRunning()
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready. The service is ready once the queue worker is
// accepting tasks; SteamCMD availability is the system check's concern.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queueMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue worker not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
