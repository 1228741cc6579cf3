package models

import (
	"time"
)

// Stock is the parent record report chunks hang off. CRUD for stocks
// lives outside this service; the table only exists to satisfy the
// report_chunks foreign key.
type Stock struct {
	ID        int       `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReportChunk is one embedded slice of a financial report, the unit of
// retrieval. doc_id is unique; re-ingesting the same document upserts
// content, embedding and doc_version and leaves the fiscal/report
// classification from the first insert untouched.
type ReportChunk struct {
	ID          int       `db:"id" json:"id"`
	StockID     int       `db:"stock_id" json:"stock_id"`
	FiscalYear  int       `db:"fiscal_year" json:"fiscal_year"`
	ReportType  string    `db:"report_type" json:"report_type"`
	ContentType string    `db:"content_type" json:"content_type"`
	DocID       string    `db:"doc_id" json:"doc_id"`
	DocVersion  string    `db:"doc_version" json:"doc_version"`
	ChunkNo     int       `db:"chunk_no" json:"chunk_no"`
	Content     string    `db:"content" json:"content"`
	Embedding   []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RawChunk is the pre-embedding intermediate produced by the segmenter
// and chunker. It is not persisted to the database; the orchestrator
// writes the full list as a chunks.jsonl diagnostic artifact.
type RawChunk struct {
	ChunkID    string `json:"chunk_id"`
	DocID      string `json:"doc_id"`
	Page       int    `json:"page"` // 1-based
	Heading    string `json:"heading"`
	ChunkIndex int    `json:"chunk_index"` // 0-based, monotonic per document
	Content    string `json:"content"`
}

// ChunkConfig records the chunking parameters a document was processed
// with; a change in any field invalidates prior manifests.
type ChunkConfig struct {
	MaxChars    int    `json:"max_chars"`
	Overlap     int    `json:"overlap"`
	HeadingRule string `json:"heading_rule"`
}

// Manifest statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Manifest is the per-document audit record of the latest ingestion
// attempt. It is overwritten on every run and drives the idempotency
// skip: a success manifest whose identity tuple matches the current
// configuration means the document needs no work.
type Manifest struct {
	DocID           string      `json:"doc_id"`
	SourceKey       string      `json:"source_key"`
	DocVersion      string      `json:"doc_version"`
	PipelineVersion string      `json:"pipeline_version"`
	EmbedModel      string      `json:"embed_model"`
	EmbedDim        int         `json:"embed_dim"`
	ChunkConf       ChunkConfig `json:"chunk_conf"`
	ChunkCount      int         `json:"chunk_count"`
	InsertedRows    int         `json:"inserted_rows"`
	Status          string      `json:"status"`
	StartTime       string      `json:"start_time"` // UTC, ISO-8601
	EndTime         string      `json:"end_time"`
	Artifacts       []string    `json:"artifacts,omitempty"`
	Message         string      `json:"message,omitempty"`
}

// ErrorRecord is written next to a failed manifest with the error
// class and message of the failing step.
type ErrorRecord struct {
	DocID           string `json:"doc_id"`
	SourceKey       string `json:"source_key"`
	DocVersion      string `json:"doc_version"`
	PipelineVersion string `json:"pipeline_version"`
	Status          string `json:"status"`
	ErrorType       string `json:"error_type"`
	ErrorMessage    string `json:"error_message"`
	Time            string `json:"time"`
}
