package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/ovelight/storyreel-backend/internal/http/handlers"
	httpMW "github.com/ovelight/storyreel-backend/internal/http/middleware"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	DocumentHandler *httpH.DocumentHandler
	ProcessHandler  *httpH.ProcessHandler
	ChatHandler     *httpH.ChatHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.DocumentHandler != nil {
			api.POST("/upload", cfg.DocumentHandler.Upload)
			api.GET("/documents", cfg.DocumentHandler.List)
			api.GET("/status/:docName", cfg.DocumentHandler.Status)
			api.GET("/manifest/:docName", cfg.DocumentHandler.Manifest)
			api.GET("/quiz/:docName", cfg.DocumentHandler.Quiz)
		}
		if cfg.ProcessHandler != nil {
			api.POST("/process/pending", cfg.ProcessHandler.ProcessPending)
			api.POST("/process/:docName", cfg.ProcessHandler.ProcessOne)
		}
		if cfg.ChatHandler != nil {
			api.POST("/chat/:docName", cfg.ChatHandler.Ask)
		}
	}

	return r
}
