package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/steampack-go/internal/app"
	"github.com/yourusername/steampack-go/internal/domain"
	"github.com/yourusername/steampack-go/internal/infrastructure"
	"go.uber.org/zap"
)

// SessionHandler exposes direct (queue-bypassing) session operations
type SessionHandler struct {
	queueMgr *app.QueueManager
	session  *infrastructure.SteamSession
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(queueMgr *app.QueueManager, session *infrastructure.SteamSession, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		queueMgr: queueMgr,
		session:  session,
		logger:   logger,
	}
}

// VerifyRequest carries credentials to check against Steam
type VerifyRequest struct {
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	GuardCode string `json:"guard_code,omitempty"`
}

// Verify handles POST /api/v1/sessions/verify. It runs a login-only
// session and reports the classified outcome without queueing anything.
func (h *SessionHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creds := domain.Credentials{
		Username:  req.Username,
		Password:  req.Password,
		GuardCode: req.GuardCode,
	}

	result := h.session.VerifyLogin(c.Request.Context(), creds)
	if result.Failed() {
		c.JSON(http.StatusUnauthorized, gin.H{
			"verified": false,
			"kind":     result.Err.Kind,
			"message":  result.Err.Message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// Run handles POST /api/v1/sessions/run. The download executes
// synchronously, so the response carries the full session outcome; long
// downloads belong on the queue instead.
func (h *SessionHandler) Run(c *gin.Context) {
	var req AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, result, err := h.queueMgr.RunDirect(c.Request.Context(), req.Source, req.OutputPath, req.credentials(), req.Resume)
	if err != nil {
		h.logger.Error("Failed to run task", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if result.Failed() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"task":    task,
			"kind":    result.Err.Kind,
			"message": result.Err.Message,
			"log":     result.Log,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":    task,
		"archive": result.ArchivePath,
		"volumes": result.Volumes,
		"log":     result.Log,
	})
}
