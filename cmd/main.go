package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/videomind-backend/internal/config"
	"github.com/yungbote/videomind-backend/internal/db"
	"github.com/yungbote/videomind-backend/internal/handlers"
	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/pipeline"
	"github.com/yungbote/videomind-backend/internal/platform/gcp"
	"github.com/yungbote/videomind-backend/internal/platform/gdrive"
	"github.com/yungbote/videomind-backend/internal/platform/gemini"
	"github.com/yungbote/videomind-backend/internal/repos"
	"github.com/yungbote/videomind-backend/internal/server"
	"github.com/yungbote/videomind-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}

	// Postgres
	pg, err := db.NewPostgres(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}

	// Repos
	log.Info("Setting up repos from main...")
	jobRepo := repos.NewVideoJobRepo(pg, log)
	playlistRepo := repos.NewPlaylistRepo(pg, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	ctx := context.Background()
	lmClient, err := gemini.NewClient(log)
	if err != nil {
		log.Fatal("Could not init LM client", "error", err)
	}
	driveService, err := gdrive.NewService(ctx, log)
	if err != nil {
		log.Fatal("Could not init Drive service", "error", err)
	}
	var bucketService gcp.BucketService
	if cfg.ReportBucketName != "" {
		bucketService, err = gcp.NewBucketService(ctx, log)
		if err != nil {
			log.Warn("Could not init bucket service, audio archiving disabled", "error", err)
			bucketService = nil
		}
	}

	// Services
	log.Info("Setting up services from main...")
	mediaTools := services.NewMediaToolsService(log)
	if err := mediaTools.AssertReady(ctx); err != nil {
		log.Fatal("Media tooling not available", "error", err)
	}
	aiService := services.NewVideoAIService(lmClient, log)
	ingestService := services.NewIngestService(driveService, log)

	// Pipeline
	pipe := pipeline.New(cfg, jobRepo, mediaTools, aiService, ingestService, driveService, bucketService, log)
	manager := pipeline.NewManager(pipe, log)

	playlistService := services.NewPlaylistService(playlistRepo, jobRepo, ingestService, aiService, manager, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	videosHandler := handlers.NewVideosHandler(cfg, jobRepo, manager, ingestService, aiService, bucketService)
	playlistsHandler := handlers.NewPlaylistsHandler(playlistRepo, jobRepo, playlistService, log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		CORSOrigins:      cfg.CORSOrigins,
		VideosHandler:    videosHandler,
		PlaylistsHandler: playlistsHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
