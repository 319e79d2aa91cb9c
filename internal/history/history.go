// Package history is the local submission ledger: every batch the client
// submits is recorded in a small SQLite database so past jobs can be listed
// after the fact.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marek/docmill/internal/domain"
)

// Record is one tracked submission.
type Record struct {
	JobID       string     `gorm:"type:text;primaryKey" json:"job_id"`
	ServiceURL  string     `gorm:"type:text" json:"service_url"`
	FileNames   string     `gorm:"type:text" json:"file_names"`
	FileCount   int        `gorm:"default:0" json:"file_count"`
	Status      string     `gorm:"default:pending" json:"status"`
	Progress    int        `gorm:"default:0" json:"progress"`
	OutputCount int        `gorm:"default:0" json:"output_count"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for Record.
func (Record) TableName() string {
	return "jobs"
}

// Store is the SQLite-backed ledger.
type Store struct {
	db *gorm.DB
}

// Open initializes the ledger database at path and runs migrations.
// Parameters:
//   - path: SQLite file location; parent directories are created as needed.
//
// Returns:
//   - *Store: ready-to-use ledger.
//   - error: non-nil if connection or migration fails.
func Open(path string) (*Store, error) {
	// Ensure the directory exists
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// The ledger shares the terminal with user-facing output, so GORM's
	// query logging stays off.
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// Enable WAL mode for better concurrency (SQLite specific)
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Add inserts a fresh submission record.
func (s *Store) Add(rec *Record) error {
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = string(domain.StatusPending)
	}
	return s.db.Create(rec).Error
}

// Finish marks a job settled with its terminal status.
func (s *Store) Finish(jobID string, status domain.JobStatus, progress, outputCount int, errMsg string) error {
	now := time.Now()
	return s.db.Model(&Record{}).Where("job_id = ?", jobID).Updates(map[string]interface{}{
		"status":       string(status),
		"progress":     progress,
		"output_count": outputCount,
		"error":        errMsg,
		"completed_at": &now,
	}).Error
}

// Recent returns the latest records, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []Record
	err := s.db.Order("submitted_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
