package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-recurrence-service/pkg/config"
)

// NewGormDB opens the database selected by cfg.Type ("sqlite" by default,
// "mysql" or "postgres"). SQL logging goes through zap.
func NewGormDB(cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.DSN
	var dialector gorm.Dialector
	switch cfg.Type {
	case "mysql":
		if dsn == "" {
			dsn = "root:@tcp(127.0.0.1:3306)/tasks?charset=utf8mb4&parseTime=True&loc=UTC"
			log.Info("Using default MySQL DSN", zap.String("dsn", dsn))
		}
		dialector = mysql.Open(dsn)
	case "postgres":
		if dsn == "" {
			dsn = "host=127.0.0.1 user=postgres dbname=tasks port=5432 sslmode=disable TimeZone=UTC"
			log.Info("Using default Postgres DSN", zap.String("dsn", dsn))
		}
		dialector = postgres.Open(dsn)
	default:
		if dsn == "" {
			dsn = config.DefaultSQLiteDSN
			log.Info("Using default SQLite DSN", zap.String("dsn", dsn))
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log, cfg.LogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established", zap.String("type", cfg.Type))
	return db, nil
}

// NewGormLogger adapts gorm's logger to zap. Unknown levels fall back to warn.
func NewGormLogger(log *zap.Logger, level string) logger.Interface {
	return logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  parseGormLevel(level),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func parseGormLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// AutoMigrate performs auto-migration for the given GORM models.
func AutoMigrate(db *gorm.DB, log *zap.Logger, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	log.Info("Database migration completed", zap.Int("models", len(models)))
	return nil
}
