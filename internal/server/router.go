package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/videomind-backend/internal/handlers"
)

type RouterConfig struct {
	CORSOrigins      []string
	VideosHandler    *handlers.VideosHandler
	PlaylistsHandler *handlers.PlaylistsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")

	videos := api.Group("/videos")
	{
		videos.POST("/process", cfg.VideosHandler.Process)
		videos.POST("/process-youtube", cfg.VideosHandler.ProcessYouTube)
		videos.POST("/process-upload", cfg.VideosHandler.ProcessUpload)
		videos.GET("/status/:id", cfg.VideosHandler.Status)
		videos.GET("/results/:id", cfg.VideosHandler.Results)
		videos.GET("/reports", cfg.VideosHandler.Reports)
		videos.GET("/list", cfg.VideosHandler.List)
		videos.DELETE("/:id", cfg.VideosHandler.Delete)
		videos.POST("/:id/cancel", cfg.VideosHandler.Cancel)
		videos.POST("/chat/:id", cfg.VideosHandler.Chat)
		videos.POST("/:id/chat", cfg.VideosHandler.Chat)
		videos.GET("/:id/download/transcript", cfg.VideosHandler.DownloadTranscript)
		videos.GET("/:id/download/audio", cfg.VideosHandler.DownloadAudio)
	}

	// Playlists are "topics" to the frontend; keep both mounts.
	for _, group := range []*gin.RouterGroup{api.Group("/topics"), api.Group("/playlists")} {
		group.POST("/process", cfg.PlaylistsHandler.Process)
		group.GET("", cfg.PlaylistsHandler.List)
		group.GET("/:id", cfg.PlaylistsHandler.Get)
		group.GET("/:id/progress", cfg.PlaylistsHandler.Progress)
		group.DELETE("/:id", cfg.PlaylistsHandler.Delete)
	}

	return router
}
