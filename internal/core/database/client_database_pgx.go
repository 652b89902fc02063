package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/docwise-ai/docwise/internal/config"
	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

var _ core.DbClient = (*DatabaseClient)(nil)

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) CreateFile(ctx context.Context, f *models.SourceFile) error {
	if f == nil {
		return errors.New("nil file")
	}
	const q = `
		INSERT INTO source_files
			(id, owner_id, file_name, kind, storage_key, content_type, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		f.ID, f.OwnerID, f.FileName, f.Kind, f.StorageKey, f.ContentType, f.Status)
	return err
}

const fileColumns = `
	id, owner_id, file_name, kind, storage_key, content_type, status,
	fail_reason, page_count, duration_sec, embed_model, embed_dim,
	created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*models.SourceFile, error) {
	var f models.SourceFile
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.FileName, &f.Kind, &f.StorageKey, &f.ContentType, &f.Status,
		&f.FailReason, &f.PageCount, &f.DurationSec, &f.EmbedModel, &f.EmbedDim,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *DatabaseClient) GetFileByID(ctx context.Context, id string) (*models.SourceFile, error) {
	q := `SELECT ` + fileColumns + ` FROM source_files WHERE id = $1`
	f, err := scanFile(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (c *DatabaseClient) ListFilesByOwner(ctx context.Context, ownerID string) ([]models.SourceFile, error) {
	q := `SELECT ` + fileColumns + ` FROM source_files WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SourceFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, reason string) error {
	const q = `
		UPDATE source_files
		SET status = $2, fail_reason = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, reason)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrFileNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) SetFileIngestMeta(ctx context.Context, id string, pageCount int, durationSec float64, cfg models.EmbeddingConfig) error {
	const q = `
		UPDATE source_files
		SET page_count = $2, duration_sec = $3, embed_model = $4, embed_dim = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, pageCount, durationSec, cfg.Model, cfg.Dim)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrFileNotFound, id)
	}
	return nil
}

// DeleteFile removes the record and all derived chunks in one
// transaction, so no orphaned vectors remain.
func (c *DatabaseClient) DeleteFile(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_chunks WHERE file_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM source_files WHERE id = $1`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (c *DatabaseClient) CountUploadsSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM source_files WHERE owner_id = $1 AND created_at >= $2`
	var n int
	if err := c.db.QueryRowContext(ctx, q, ownerID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
