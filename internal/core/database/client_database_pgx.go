package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/internal/core"
	"github.com/finsight-ai/finsight/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

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

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// UpsertReportChunks writes all chunks in a single transaction. A
// doc_id conflict updates content, embedding and doc_version only;
// the fiscal/report classification keeps its first-insert values.
func (c *DatabaseClient) UpsertReportChunks(ctx context.Context, chunks []models.ReportChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}

	const q = `
		INSERT INTO report_chunks
			(stock_id, fiscal_year, report_type, content_type, doc_id, doc_version, chunk_no, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (doc_id) DO UPDATE SET
			content     = EXCLUDED.content,
			embedding   = EXCLUDED.embedding,
			doc_version = EXCLUDED.doc_version
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)

		if _, err := stmt.ExecContext(ctx,
			ch.StockID, ch.FiscalYear, ch.ReportType, ch.ContentType,
			ch.DocID, ch.DocVersion, ch.ChunkNo, ch.Content, vec,
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert chunk %s: %w", ch.DocID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

const chunkColumns = `id, stock_id, fiscal_year, report_type, content_type, doc_id, doc_version, chunk_no, content, embedding, created_at, updated_at`

// SearchSemantic orders chunks by ascending cosine distance to the
// query embedding.
func (c *DatabaseClient) SearchSemantic(ctx context.Context, embedding []float32, limit int, filter core.SearchFilter) ([]models.ReportChunk, error) {
	args := []any{pgvector.NewVector(embedding)}
	where, args := filterClause(filter, args)

	q := fmt.Sprintf(`
		SELECT %s
		FROM report_chunks
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, chunkColumns, where, len(args)+1)
	args = append(args, limit)

	return c.queryChunks(ctx, q, args)
}

// SearchBM25 orders chunks by descending full-text relevance to the
// query string, using the simple-config tsvector the bootstrap indexes.
func (c *DatabaseClient) SearchBM25(ctx context.Context, query string, limit int, filter core.SearchFilter) ([]models.ReportChunk, error) {
	args := []any{query}
	where, args := filterClause(filter, args)
	if where == "" {
		where = "WHERE to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)"
	} else {
		where += " AND to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)"
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM report_chunks
		%s
		ORDER BY ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', $1)) DESC
		LIMIT $%d
	`, chunkColumns, where, len(args)+1)
	args = append(args, limit)

	return c.queryChunks(ctx, q, args)
}

func (c *DatabaseClient) queryChunks(ctx context.Context, q string, args []any) ([]models.ReportChunk, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReportChunk
	for rows.Next() {
		var (
			ch  models.ReportChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.StockID, &ch.FiscalYear, &ch.ReportType, &ch.ContentType,
			&ch.DocID, &ch.DocVersion, &ch.ChunkNo, &ch.Content, &emb,
			&ch.CreatedAt, &ch.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// filterClause renders the optional equality filters as a WHERE clause
// continuing the given positional args. Zero-valued fields are
// unfiltered.
func filterClause(f core.SearchFilter, args []any) (string, []any) {
	var conds []string
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.DocID != "" {
		add("doc_id", f.DocID)
	}
	if f.StockID != 0 {
		add("stock_id", f.StockID)
	}
	if f.FiscalYear != 0 {
		add("fiscal_year", f.FiscalYear)
	}
	if f.ReportType != "" {
		add("report_type", f.ReportType)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
