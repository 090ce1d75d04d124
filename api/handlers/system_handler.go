package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/steampack-go/internal/infrastructure"
	"go.uber.org/zap"
)

// SystemHandler exposes environment checks, disk status, and the output
// file listing
type SystemHandler struct {
	checker   *infrastructure.SystemChecker
	outputDir string
	logger    *zap.Logger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(checker *infrastructure.SystemChecker, outputDir string, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		checker:   checker,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Check handles GET /api/v1/system/check
func (h *SystemHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.Check())
}

// Disk handles GET /api/v1/system/disk
func (h *SystemHandler) Disk(c *gin.Context) {
	report, err := h.checker.Disk()
	if err != nil {
		h.logger.Error("Failed to query disk", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListFiles handles GET /api/v1/files
func (h *SystemHandler) ListFiles(c *gin.Context) {
	files, err := infrastructure.ListOutputFiles(h.outputDir)
	if err != nil {
		h.logger.Error("Failed to list output files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"directory": h.outputDir,
		"count":     len(files),
		"files":     files,
	})
}

// DownloadFile handles GET /api/v1/files/:name
func (h *SystemHandler) DownloadFile(c *gin.Context) {
	name := c.Param("name")

	path, err := infrastructure.ResolveOutputFile(h.outputDir, name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(path))
	c.Header("Content-Type", "application/octet-stream")
	c.File(path)
}
