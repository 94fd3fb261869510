package repository

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go_voicecards/internal/model"

	slogGorm "github.com/orandin/slog-gorm" // slogGormはエイリアス
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB はローカルの認証情報ストア (sqlite) を開き、マイグレーションを行います。
func NewDB(path string, appLogger *slog.Logger) (*gorm.DB, error) {
	// 例: 環境変数 APP_ENV によって GORM のログレベルを切り替え
	var gormLogLevel gormlogger.LogLevel
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		gormLogLevel = gormlogger.Info
	} else {
		gormLogLevel = gormlogger.Warn
	}

	slogGormLogger := slogGorm.New(
		slogGorm.WithHandler(appLogger.Handler()),
		slogGorm.WithSlowThreshold(200*time.Millisecond),
	).LogMode(gormLogLevel)

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			appLogger.Error("Failed to create storage directory", slog.String("path", path), slog.Any("error", err))
			return nil, fmt.Errorf("repository.NewDB: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: slogGormLogger,
	})
	if err != nil {
		appLogger.Error("Failed to open local store with GORM", slog.Any("error", err))
		return nil, fmt.Errorf("repository.NewDB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		return nil, fmt.Errorf("repository.NewDB: %w", err)
	}
	// sqlite は書き込みが直列なので接続は1本で十分
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		appLogger.Error("Failed to migrate local store", slog.Any("error", err))
		sqlDB.Close()
		return nil, err
	}

	appLogger.Debug("Local store opened", slog.String("path", path))
	return db, nil
}

// Migrate はローカルストアのテーブルを作成します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Credential{}); err != nil {
		return fmt.Errorf("repository.Migrate: %w", err)
	}
	return nil
}
