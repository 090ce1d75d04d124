package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/api/handlers"
	"github.com/yourusername/steampack-go/api/middleware"
	"github.com/yourusername/steampack-go/internal/app"
	"github.com/yourusername/steampack-go/internal/infrastructure"
)

// SetupRouter wires the HTTP API
func SetupRouter(
	queueMgr *app.QueueManager,
	session *infrastructure.SteamSession,
	checker *infrastructure.SystemChecker,
	outputDir string,
	logsDir string,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(queueMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		taskHandler := handlers.NewTaskHandler(queueMgr, log)
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskHandler.AddTask)
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/stats", taskHandler.GetStats)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}
		v1.GET("/queue/status", taskHandler.QueueStatus)

		sessionHandler := handlers.NewSessionHandler(queueMgr, session, log)
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/verify", sessionHandler.Verify)
			sessions.POST("/run", sessionHandler.Run)
		}

		systemHandler := handlers.NewSystemHandler(checker, outputDir, log)
		system := v1.Group("/system")
		{
			system.GET("/check", systemHandler.Check)
			system.GET("/disk", systemHandler.Disk)
		}
		v1.GET("/files", systemHandler.ListFiles)
		v1.GET("/files/:name", systemHandler.DownloadFile)

		logHandler := handlers.NewLogHandler(logsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}

		wsHandler := handlers.NewLogWebSocketHandler(logsDir, log)
		v1.GET("/logs/ws", wsHandler.HandleWebSocket)
	}

	return router
}
