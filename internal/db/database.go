// Package db is the session audit trail's storage layer: one RecordingSession
// row per post-processed capture session, with its uploaded Chunk rows,
// written when the post-processing pipeline finishes (success or failure).
// Sessions that end without post-processing get no row.
package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/models"
)

type Client struct {
	DB *gorm.DB
}

func New(cfg *config.Config) (*Client, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch cfg.Database.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.Database.Name), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("db: connected")
	return &Client{DB: db}, nil
}

// AutoMigrate creates/updates the audit trail tables.
func (c *Client) AutoMigrate() error {
	return c.DB.AutoMigrate(&models.RecordingSession{}, &models.Chunk{})
}

// RecordFinished persists a session's terminal state along with the chunks
// uploaded during post-processing. It is best-effort from the caller's
// perspective: a failure here never re-opens a decided session state.
func (c *Client) RecordFinished(session models.RecordingSession, chunks []models.Chunk) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("db: create session: %w", err)
		}
		for i := range chunks {
			chunks[i].RecordingSessionID = session.ID
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return fmt.Errorf("db: create chunks: %w", err)
			}
		}
		return nil
	})
}
