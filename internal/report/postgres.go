package report

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// PostgresSink writes one row per invocation into the videos table.
type PostgresSink struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresSink(db *pgxpool.Pool, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger}
}

func (s *PostgresSink) Record(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO videos (batch_id, filename, processing_time, frame_count, extracted_count, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}

	_, err := s.db.Exec(ctx, query,
		rec.BatchID, rec.VideoRef, rec.ProcessingSeconds(),
		rec.FrameCount, rec.ExtractedCount, string(rec.Status),
		errMsg, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record video: %w", err)
	}

	s.logger.Debug("Recorded video", zap.String("batch_id", rec.BatchID), zap.String("status", string(rec.Status)))
	return nil
}

// Recent returns the latest records, newest first.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT batch_id, filename, processing_time, frame_count, extracted_count, status, error_message, created_at
		FROM videos
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var seconds float64
		var status string
		var batchID, errMsg *string
		if err := rows.Scan(&batchID, &rec.VideoRef, &seconds, &rec.FrameCount,
			&rec.ExtractedCount, &status, &errMsg, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		if batchID != nil {
			rec.BatchID = *batchID
		}
		if errMsg != nil {
			rec.Error = *errMsg
		}
		rec.Status = Status(status)
		rec.ProcessingTime = time.Duration(seconds * float64(time.Second))
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate videos: %w", err)
	}
	return records, nil
}

func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
