package core

import (
	"context"

	"github.com/finsight-ai/finsight/internal/models"
)

// SearchFilter narrows chunk queries by equality. Zero values mean
// "no filter" for that field.
type SearchFilter struct {
	DocID      string
	StockID    int
	FiscalYear int
	ReportType string
}

// DbClient defines the persistence operations the ingestion pipeline
// and retriever need. It abstracts Postgres/pgvector so higher layers
// never depend on a specific DB.
type DbClient interface {
	// UpsertReportChunks writes all chunks in one transaction and
	// returns the number of rows written. Conflicts on doc_id update
	// content, embedding and doc_version only.
	UpsertReportChunks(ctx context.Context, chunks []models.ReportChunk) (int, error)

	// SearchSemantic returns chunks ordered by ascending vector
	// distance to the query embedding.
	SearchSemantic(ctx context.Context, embedding []float32, limit int, filter SearchFilter) ([]models.ReportChunk, error)

	// SearchBM25 returns chunks ordered by descending full-text
	// relevance to the query string.
	SearchBM25(ctx context.Context, query string, limit int, filter SearchFilter) ([]models.ReportChunk, error)

	Close() error
}

// ObjectInfo is one listed object with its content version.
type ObjectInfo struct {
	Key     string
	Version string
}

// ObjectClient defines interactions with S3 or any S3-compatible
// object storage (MinIO in the reference deployment).
type ObjectClient interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) error
	DeleteFile(ctx context.Context, bucket, key string) error
}
