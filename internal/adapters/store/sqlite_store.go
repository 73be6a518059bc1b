package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the DetectionStore interface.
// Writers are serialized by a single connection and immediate transactions,
// so the summary read-modify-write cannot interleave.
type SQLiteStore struct {
	sqlStore
	path string
}

var _ core.DetectionStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens a SQLite store at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger, opts ...Option) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	o := applyOptions(opts)
	return &SQLiteStore{
		sqlStore: sqlStore{db: db, logger: logger, now: o.now},
		path:     dbPath,
	}, nil
}

// Init creates the tables and indexes if they don't exist
func (s *SQLiteStore) Init(ctx context.Context) error {
	statements := []string{`
		CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			detection_type TEXT NOT NULL CHECK (detection_type IN ('email', 'url')),
			input_data TEXT NOT NULL,
			result TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('SAFE', 'SUSPICIOUS', 'PHISHING')),
			confidence INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_status ON detections(status)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_type ON detections(detection_type)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_created ON detections(created_at)`,
		`
		CREATE TABLE IF NOT EXISTS analytics_summary (
			date TEXT PRIMARY KEY,
			total_scans INTEGER NOT NULL DEFAULT 0,
			safe_count INTEGER NOT NULL DEFAULT 0,
			suspicious_count INTEGER NOT NULL DEFAULT 0,
			phishing_count INTEGER NOT NULL DEFAULT 0,
			email_scans INTEGER NOT NULL DEFAULT 0,
			url_scans INTEGER NOT NULL DEFAULT 0,
			avg_confidence REAL NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.logger.Info("SQLite detection store initialized", zap.String("path", s.path))
	return nil
}

// StoreEvent inserts the event and folds it into today's summary in one transaction
func (s *SQLiteStore) StoreEvent(ctx context.Context, event *core.DetectionEvent) error {
	result, err := encodeResult(event.Result)
	if err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO detections (detection_type, input_data, result, status, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(event.DetectionType), event.InputData, result, string(event.Result.Status), event.Result.Confidence, event.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	if event.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read detection id: %w", err)
	}

	day := core.Day(event.CreatedAt)
	prior, err := s.summaryForDate(ctx, tx, day)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next := core.ApplyEvent(prior, event.DetectionType, event.Result.Status, event.Result.Confidence)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analytics_summary (`+summaryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_scans = excluded.total_scans,
			safe_count = excluded.safe_count,
			suspicious_count = excluded.suspicious_count,
			phishing_count = excluded.phishing_count,
			email_scans = excluded.email_scans,
			url_scans = excluded.url_scans,
			avg_confidence = excluded.avg_confidence
	`, day.Format(core.DateLayout), next.TotalScans, next.SafeCount, next.SuspiciousCount,
		next.PhishingCount, next.EmailScans, next.URLScans, next.AvgConfidence)
	if err != nil {
		return fmt.Errorf("failed to update daily summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detection: %w", err)
	}

	s.logger.Debug("Stored detection event",
		zap.Int64("id", event.ID),
		zap.String("detection_type", string(event.DetectionType)))
	return nil
}
