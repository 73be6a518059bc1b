package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the DetectionStore interface. The
// daily summary is maintained by a single upsert, so concurrent writers are
// serialized by the row lock.
type MySQLStore struct {
	sqlStore
	cfg *mysql.Config
}

var _ core.DetectionStore = (*MySQLStore)(nil)

// NewMySQLConfig builds a driver configuration for the detection database
func NewMySQLConfig(host string, port int, user, password, database string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Collation = "utf8mb4_unicode_ci"
	return cfg
}

// NewMySQLStore opens a MySQL store. No connection is made until Init or
// the first query, so a missing database can still be created by Init.
func NewMySQLStore(cfg *mysql.Config, logger *zap.Logger, opts ...Option) (*MySQLStore, error) {
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	o := applyOptions(opts)
	return &MySQLStore{
		sqlStore: sqlStore{db: db, logger: logger, now: o.now},
		cfg:      cfg,
	}, nil
}

// Init creates the database and tables if they don't exist
func (s *MySQLStore) Init(ctx context.Context) error {
	if err := s.createDatabase(ctx); err != nil {
		return err
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	statements := []string{`
		CREATE TABLE IF NOT EXISTS detections (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			detection_type ENUM('email', 'url') NOT NULL,
			input_data TEXT NOT NULL,
			result JSON NOT NULL,
			status ENUM('SAFE', 'SUSPICIOUS', 'PHISHING') NOT NULL,
			confidence INT NOT NULL,
			created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_status (status),
			INDEX idx_type (detection_type),
			INDEX idx_created (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`, `
		CREATE TABLE IF NOT EXISTS analytics_summary (
			id INT AUTO_INCREMENT PRIMARY KEY,
			date DATE NOT NULL UNIQUE,
			total_scans INT NOT NULL DEFAULT 0,
			safe_count INT NOT NULL DEFAULT 0,
			suspicious_count INT NOT NULL DEFAULT 0,
			phishing_count INT NOT NULL DEFAULT 0,
			email_scans INT NOT NULL DEFAULT 0,
			url_scans INT NOT NULL DEFAULT 0,
			avg_confidence DOUBLE NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.logger.Info("MySQL detection store initialized",
		zap.String("address", s.cfg.Addr),
		zap.String("database", s.cfg.DBName))
	return nil
}

// createDatabase connects without selecting a schema and creates it
func (s *MySQLStore) createDatabase(ctx context.Context) error {
	serverCfg := s.cfg.Clone()
	serverCfg.DBName = ""

	db, err := sql.Open("mysql", serverCfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open MySQL server connection: %w", err)
	}
	defer db.Close()

	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", s.cfg.DBName)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %s: %w", s.cfg.DBName, err)
	}
	return nil
}

// StoreEvent inserts the event and folds it into today's summary in one transaction
func (s *MySQLStore) StoreEvent(ctx context.Context, event *core.DetectionEvent) error {
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
	`, string(event.DetectionType), event.InputData, result, string(event.Result.Status), event.Result.Confidence, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	if event.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read detection id: %w", err)
	}

	// The inserted row is the summary of this event alone. On conflict the
	// average must be assigned before total_scans is incremented, since
	// MySQL evaluates the assignments left to right. The row alias needs
	// MySQL 8.0.19 or later.
	seed := core.ApplyEvent(nil, event.DetectionType, event.Result.Status, event.Result.Confidence)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analytics_summary (`+summaryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) AS incoming
		ON DUPLICATE KEY UPDATE
			avg_confidence = (avg_confidence * total_scans + incoming.avg_confidence) / (total_scans + 1),
			total_scans = total_scans + 1,
			safe_count = safe_count + incoming.safe_count,
			suspicious_count = suspicious_count + incoming.suspicious_count,
			phishing_count = phishing_count + incoming.phishing_count,
			email_scans = email_scans + incoming.email_scans,
			url_scans = url_scans + incoming.url_scans
	`, core.Day(event.CreatedAt).Format(core.DateLayout), seed.TotalScans, seed.SafeCount, seed.SuspiciousCount,
		seed.PhishingCount, seed.EmailScans, seed.URLScans, seed.AvgConfidence)
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
