// Package postgres implements the listing repository on PostgreSQL
// using pgx connection pooling. The fan-in transaction serializes
// concurrent sibling completions with a row lock on the listing.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/pkg/metrics"
	"github.com/marmos91/assetflow/pkg/repository"
)

// Repository is a PostgreSQL-backed ListingRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] =
		fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connected to postgres",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", cfg.MaxConns,
	)
	return &Repository{pool: pool}, nil
}

// NewFromPool wraps an existing pool. Used by tests that manage their
// own database lifecycle.
func NewFromPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks connectivity. The startup retry loop polls it.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CompleteFileValidation runs the fan-in transaction. See the interface
// contract in the repository package for the full semantics.
func (r *Repository) CompleteFileValidation(ctx context.Context, p repository.CompleteParams) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the listing row for the duration of the fan-in check so
	// concurrent sibling completions serialize here.
	var listingStatus string
	var thumbnailPath *string
	err = tx.QueryRow(ctx,
		`SELECT status, thumbnail_path FROM listings WHERE id = $1 FOR UPDATE`,
		p.ListingID,
	).Scan(&listingStatus, &thumbnailPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("listing %s not found", p.ListingID)
		}
		return false, fmt.Errorf("lock listing %s: %w", p.ListingID, err)
	}

	var currentPath string
	err = tx.QueryRow(ctx,
		`SELECT file_path FROM listing_files WHERE id = $1`,
		p.FileID,
	).Scan(&currentPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("file %s not found", p.FileID)
		}
		return false, fmt.Errorf("load file %s: %w", p.FileID, err)
	}

	for _, key := range p.GeneratedKeys {
		_, err = tx.Exec(ctx,
			`INSERT INTO listing_files
			   (id, listing_id, file_path, file_type, status, is_generated, source_file_id, updated_at)
			 VALUES ($1, $2, $3, 'image', $4, TRUE, $5, now())`,
			uuid.NewString(), p.ListingID, key, repository.FileStatusValid, p.FileID,
		)
		if err != nil {
			return false, fmt.Errorf("insert generated file %q: %w", key, err)
		}
	}

	if p.NewFileKey != "" && thumbnailPath != nil && *thumbnailPath == currentPath {
		_, err = tx.Exec(ctx,
			`UPDATE listings SET thumbnail_path = $1, updated_at = now() WHERE id = $2`,
			p.NewFileKey, p.ListingID,
		)
		if err != nil {
			return false, fmt.Errorf("promote thumbnail for listing %s: %w", p.ListingID, err)
		}
	}

	meta := p.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return false, fmt.Errorf("marshal file metadata: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE listing_files
		 SET status = $2,
		     file_path = COALESCE(NULLIF($3, ''), file_path),
		     error_message = NULLIF($4, ''),
		     metadata = COALESCE(metadata, '{}'::jsonb) || $5::jsonb,
		     updated_at = now()
		 WHERE id = $1`,
		p.FileID, repository.FileStatusValid, p.NewFileKey, p.FileWarning, metaJSON,
	)
	if err != nil {
		return false, fmt.Errorf("mark file %s valid: %w", p.FileID, err)
	}

	var pending int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM listing_files WHERE listing_id = $1 AND status = $2`,
		p.ListingID, repository.FileStatusPending,
	).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("count pending siblings: %w", err)
	}
	if pending > 0 {
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("commit: %w", err)
		}
		return false, nil
	}

	var rejected int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM listing_files WHERE listing_id = $1 AND status IN ($2, $3)`,
		p.ListingID, repository.FileStatusFailed, repository.FileStatusInvalid,
	).Scan(&rejected)
	if err != nil {
		return false, fmt.Errorf("count rejected siblings: %w", err)
	}
	if rejected > 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE listings SET status = $2, updated_at = now() WHERE id = $1 AND status <> $2`,
			p.ListingID, repository.ListingStatusRejected,
		)
		if err != nil {
			return false, fmt.Errorf("reject listing %s: %w", p.ListingID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("commit: %w", err)
		}
		if tag.RowsAffected() == 1 {
			metrics.ListingRejected()
			logger.Info("listing rejected",
				logger.KeyListingID, p.ListingID,
				"rejected_siblings", rejected,
			)
		}
		return false, nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE listings SET status = $2, updated_at = now() WHERE id = $1 AND status <> $2`,
		p.ListingID, repository.ListingStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("activate listing %s: %w", p.ListingID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	activated := tag.RowsAffected() == 1
	if activated {
		metrics.ListingActivated()
		logger.Info("listing activated", logger.KeyListingID, p.ListingID)
	}
	return activated, nil
}

func (r *Repository) MarkFileInvalid(ctx context.Context, fileID, reason string) error {
	return r.markFile(ctx, fileID, repository.FileStatusInvalid, reason)
}

func (r *Repository) MarkFileFailed(ctx context.Context, fileID, reason string) error {
	return r.markFile(ctx, fileID, repository.FileStatusFailed, reason)
}

func (r *Repository) markFile(ctx context.Context, fileID, status, reason string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE listing_files SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		fileID, status, reason,
	)
	if err != nil {
		return fmt.Errorf("mark file %s %s: %w", fileID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file %s not found", fileID)
	}
	return nil
}
