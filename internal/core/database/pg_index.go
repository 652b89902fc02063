package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

// PgIndex implements core.VectorIndex on Postgres/pgvector. Per-file
// atomicity comes from transactions: Add replaces a file's chunk rows
// in one tx, so a concurrent Search sees the full old set or the full
// new one. Row-level locking means unrelated files never contend.
type PgIndex struct {
	db *sql.DB
}

// Index exposes the chunk store of this database as a vector index.
func (c *DatabaseClient) Index() *PgIndex { return &PgIndex{db: c.db} }

var _ core.VectorIndex = (*PgIndex)(nil)

func (p *PgIndex) Add(ctx context.Context, fileID string, chunks []models.Chunk) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	// Replace, don't blank: the delete and the inserts commit together.
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_chunks WHERE file_id = $1`, fileID); err != nil {
		_ = tx.Rollback()
		return err
	}

	const q = `
		INSERT INTO file_chunks
			(id, file_id, seq, text, page, start_sec, end_sec, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, fileID, ch.Seq, ch.Text,
			ch.Anchor.Page, ch.Anchor.StartSec, ch.Anchor.EndSec,
			vec, ch.TokenCount,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", ch.Seq, err)
		}
	}
	return tx.Commit()
}

func (p *PgIndex) Search(ctx context.Context, fileID string, query []float32, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		k = 1
	}
	// Cosine similarity from pgvector's cosine distance; ties broken by
	// ascending sequence for determinism.
	const q = `
		SELECT id, file_id, seq, text, page, start_sec, end_sec, token_count,
		       1 - (embedding <=> $2) AS score
		FROM file_chunks
		WHERE file_id = $1
		ORDER BY score DESC, seq ASC
		LIMIT $3
	`
	rows, err := p.db.QueryContext(ctx, q, fileID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(
			&h.Chunk.ID, &h.Chunk.FileID, &h.Chunk.Seq, &h.Chunk.Text,
			&h.Chunk.Anchor.Page, &h.Chunk.Anchor.StartSec, &h.Chunk.Anchor.EndSec,
			&h.Chunk.TokenCount, &h.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *PgIndex) Remove(ctx context.Context, fileID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM file_chunks WHERE file_id = $1`, fileID)
	return err
}
