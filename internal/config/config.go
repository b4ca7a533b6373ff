package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/utils"
)

// Config collects every tunable the pipeline and its facades read.
// Concurrency caps are sized for LM rate limits and small-server memory;
// they are configuration, not constants.
type Config struct {
	Port        string
	CORSOrigins []string

	TempDir string

	// Audio
	AudioSampleRate      int
	MaxAudioChunkSeconds int
	AudioOverlapSeconds  int

	// Visual sampling
	KeyframeInterval int // configured default; the pipeline samples coarse frames at 30s
	DenseSampleFPS   int

	// Concurrency pools
	MaxConcurrentTranscribes int
	MaxConcurrentVisionTasks int
	MaxConcurrentUploads     int

	// ROI fusion
	ROIBufferSeconds float64
	ROIMinGapSeconds float64

	// Clustering
	ClusterHashThreshold int

	// Blob store
	DriveFolderID string

	// Archive bucket for retained audio (optional)
	ReportBucketName string
}

func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{
		Port: utils.GetEnv("PORT", "8080", log),
		CORSOrigins: utils.GetEnvAsList("CORS_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}, log),
		TempDir:                  utils.GetEnv("TEMP_DIR", "temp", log),
		AudioSampleRate:          utils.GetEnvAsInt("AUDIO_SAMPLE_RATE", 16000, log),
		MaxAudioChunkSeconds:     utils.GetEnvAsInt("MAX_AUDIO_CHUNK_DURATION", 300, log),
		AudioOverlapSeconds:      utils.GetEnvAsInt("AUDIO_OVERLAP_DURATION", 30, log),
		KeyframeInterval:         utils.GetEnvAsInt("KEYFRAME_INTERVAL", 60, log),
		DenseSampleFPS:           utils.GetEnvAsInt("DENSE_SAMPLE_FPS", 1, log),
		MaxConcurrentTranscribes: utils.GetEnvAsInt("MAX_CONCURRENT_TRANSCRIBES", 2, log),
		MaxConcurrentVisionTasks: utils.GetEnvAsInt("MAX_CONCURRENT_VISION_TASKS", 2, log),
		MaxConcurrentUploads:     utils.GetEnvAsInt("MAX_CONCURRENT_UPLOADS", 3, log),
		ROIBufferSeconds:         utils.GetEnvAsFloat("ROI_BUFFER_SECONDS", 10, log),
		ROIMinGapSeconds:         utils.GetEnvAsFloat("ROI_MIN_GAP_SECONDS", 5, log),
		ClusterHashThreshold:     utils.GetEnvAsInt("CLUSTER_HASH_THRESHOLD", 12, log),
		DriveFolderID:            utils.GetEnv("DRIVE_FOLDER_ID", "", log),
		ReportBucketName:         utils.GetEnv("REPORT_GCS_BUCKET_NAME", "", log),
	}

	if cfg.MaxConcurrentTranscribes < 1 {
		cfg.MaxConcurrentTranscribes = 1
	}
	if cfg.MaxConcurrentVisionTasks < 1 {
		cfg.MaxConcurrentVisionTasks = 1
	}
	if cfg.MaxConcurrentUploads < 1 {
		cfg.MaxConcurrentUploads = 1
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir %q: %w", cfg.TempDir, err)
	}
	abs, err := filepath.Abs(cfg.TempDir)
	if err == nil {
		cfg.TempDir = abs
	}
	return cfg, nil
}
