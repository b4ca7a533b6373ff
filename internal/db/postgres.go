package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/videomind-backend/internal/logger"
	"github.com/yungbote/videomind-backend/internal/types"
	"github.com/yungbote/videomind-backend/internal/utils"
)

// NewPostgres opens the database from DATABASE_URL (or discrete DB_* vars)
// and migrates the job tables.
func NewPostgres(log *logger.Logger) (*gorm.DB, error) {
	dsn := utils.GetEnv("DATABASE_URL", "", log)
	if dsn == "" {
		host := utils.GetEnv("DB_HOST", "localhost", log)
		port := utils.GetEnv("DB_PORT", "5432", log)
		user := utils.GetEnv("DB_USER", "postgres", log)
		pass := utils.GetEnv("DB_PASSWORD", "postgres", log)
		name := utils.GetEnv("DB_NAME", "videomind", log)
		ssl := utils.GetEnv("DB_SSLMODE", "disable", log)
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, pass, name, ssl)
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("Could not ensure uuid-ossp extension", "error", err)
	}

	if err := gdb.AutoMigrate(&types.VideoJob{}, &types.Playlist{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	log.Info("Database ready")
	return gdb, nil
}
