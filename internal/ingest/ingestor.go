package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/core"
	"github.com/finsight-ai/finsight/internal/models"
)

// Stage names recorded as error_type in failure artifacts.
const (
	StageDownload   = "download_error"
	StageParse      = "parse_error"
	StageArtifact   = "artifact_error"
	StageEmbed      = "embed_error"
	StageValidation = "validation_error"
	StagePersist    = "persist_error"
)

// StageError tags a pipeline failure with the stage it happened in, so
// the error artifact can carry a stable category instead of a Go type
// name.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Config tunes one ingestion pipeline instance. HeadingRule defaults
// to DefaultHeadingRule; HeadingRuleName must change with it.
type Config struct {
	RawBucket       string
	ProcBucket      string
	PipelineVersion string
	EmbedModel      string
	EmbedDim        int
	MaxChars        int
	Overlap         int
	HeadingRule     HeadingFunc
	HeadingRuleName string
}

// Params identifies the stock and report classification a batch of
// source PDFs belongs to.
type Params struct {
	StockID     int
	FiscalYear  int
	ReportType  string
	ContentType string // defaults to application/pdf
	Prefix      string // optional listing filter inside the raw bucket
}

// Ingestor coordinates download → parse → segment/chunk → embed →
// persist → manifest for each listed document. Documents are processed
// strictly sequentially; idempotency comes from manifest comparison
// and the doc_id upsert, not from locks.
type Ingestor struct {
	db       core.DbClient
	obj      core.ObjectClient
	embedder core.EmbeddingProvider
	parser   core.DocumentParser
	cfg      *Config
}

func NewIngestor(db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, parser core.DocumentParser, cfg *Config) *Ingestor {
	if cfg.HeadingRule == nil {
		cfg.HeadingRule = DefaultHeadingRule
		if cfg.HeadingRuleName == "" {
			cfg.HeadingRuleName = DefaultHeadingRuleName
		}
	}
	return &Ingestor{db: db, obj: obj, embedder: emb, parser: parser, cfg: cfg}
}

// Ingest lists candidate objects under the raw bucket (optionally
// prefix-filtered) and processes each in turn. It returns the number
// of documents attempted, skipped ones included. The first document
// failure stops the batch and is returned to the caller; whether to
// resume is the caller's policy.
func (i *Ingestor) Ingest(ctx context.Context, p Params) (int, error) {
	if p.ContentType == "" {
		p.ContentType = "application/pdf"
	}

	objects, err := i.obj.ListObjects(ctx, i.cfg.RawBucket, p.Prefix)
	if err != nil {
		// nothing started yet, no artifacts to write
		return 0, fmt.Errorf("list raw objects: %w", err)
	}

	attempted := 0
	for _, obj := range objects {
		attempted++
		if err := i.ingestOne(ctx, p, obj); err != nil {
			return attempted, err
		}
	}
	return attempted, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, p Params, obj core.ObjectInfo) error {
	docID := DocID(obj.Key, obj.Version)
	prefix := ArtifactPrefix(obj.Key)

	id := identity{
		SourceKey:       obj.Key,
		DocVersion:      obj.Version,
		PipelineVersion: i.cfg.PipelineVersion,
		EmbedModel:      i.cfg.EmbedModel,
		EmbedDim:        i.cfg.EmbedDim,
		ChunkConf: models.ChunkConfig{
			MaxChars:    i.cfg.MaxChars,
			Overlap:     i.cfg.Overlap,
			HeadingRule: i.cfg.HeadingRuleName,
		},
	}

	if prior := i.readManifest(ctx, prefix); id.matches(prior) {
		log.Printf("ingest: %s unchanged (doc %s), skipping", obj.Key, docID)
		return nil
	}

	startTime := nowUTC()

	run := &docRun{
		ing:       i,
		docID:     docID,
		id:        id,
		prefix:    prefix,
		startTime: startTime,
	}
	return run.process(ctx, p, obj)
}

// readManifest fetches a prior manifest, treating any miss or decode
// problem as "no manifest": reprocessing is always safe.
func (i *Ingestor) readManifest(ctx context.Context, prefix string) *models.Manifest {
	data, err := i.obj.GetFile(ctx, i.cfg.ProcBucket, manifestKey(prefix))
	if err != nil {
		return nil
	}
	return decodeManifest(data)
}

// docRun carries the per-document state the failure path needs to
// write its artifacts.
type docRun struct {
	ing       *Ingestor
	docID     string
	id        identity
	prefix    string
	startTime string

	chunksWritten bool
}

func (r *docRun) process(ctx context.Context, p Params, obj core.ObjectInfo) error {
	i := r.ing

	data, err := i.obj.GetFile(ctx, i.cfg.RawBucket, obj.Key)
	if err != nil {
		return r.fail(ctx, &StageError{Stage: StageDownload, Err: err})
	}

	// scratch file for the parser; removed regardless of outcome
	scratch := filepath.Join(os.TempDir(), "finsight-"+uuid.NewString()+filepath.Ext(obj.Key))
	if err := os.WriteFile(scratch, data, 0o600); err != nil {
		return r.fail(ctx, &StageError{Stage: StageDownload, Err: err})
	}
	defer func() {
		if err := os.Remove(scratch); err != nil {
			log.Printf("ingest: remove scratch %s: %v", scratch, err)
		}
	}()

	pages, err := i.parser.ParsePages(ctx, scratch, p.ContentType)
	if err != nil {
		return r.fail(ctx, &StageError{Stage: StageParse, Err: err})
	}

	raws := i.segmentAndChunk(r.docID, pages)
	if len(raws) == 0 {
		// an empty extraction is not an error
		return r.succeed(ctx, 0, 0, nil)
	}

	// Persist the raw chunk listing before any embedding call, so a
	// later failure still leaves this artifact referenced.
	jsonl, err := encodeChunksJSONL(raws)
	if err != nil {
		return r.fail(ctx, &StageError{Stage: StageArtifact, Err: err})
	}
	if err := i.obj.UploadFile(ctx, i.cfg.ProcBucket, chunksKey(r.prefix), jsonl, "application/x-ndjson"); err != nil {
		return r.fail(ctx, &StageError{Stage: StageArtifact, Err: err})
	}
	r.chunksWritten = true

	rows := make([]models.ReportChunk, 0, len(raws))
	for _, raw := range raws {
		vec, err := i.embedder.Embed(ctx, raw.Content)
		if err != nil {
			return r.fail(ctx, &StageError{Stage: StageEmbed, Err: fmt.Errorf("chunk %d: %w", raw.ChunkIndex, err)})
		}
		if len(vec) != i.cfg.EmbedDim {
			return r.fail(ctx, &StageError{
				Stage: StageValidation,
				Err:   fmt.Errorf("chunk %d: embedding dim %d, want %d", raw.ChunkIndex, len(vec), i.cfg.EmbedDim),
			})
		}
		rows = append(rows, models.ReportChunk{
			StockID:     p.StockID,
			FiscalYear:  p.FiscalYear,
			ReportType:  p.ReportType,
			ContentType: p.ContentType,
			DocID:       raw.ChunkID,
			DocVersion:  r.id.DocVersion,
			ChunkNo:     raw.ChunkIndex,
			Content:     raw.Content,
			Embedding:   vec,
		})
	}

	inserted, err := i.db.UpsertReportChunks(ctx, rows)
	if err != nil {
		return r.fail(ctx, &StageError{Stage: StagePersist, Err: err})
	}

	artifacts := []string{chunksKey(r.prefix)}
	return r.succeed(ctx, len(raws), inserted, artifacts)
}

// segmentAndChunk turns per-page text into raw chunks with a
// document-wide monotonic chunk index.
func (i *Ingestor) segmentAndChunk(docID string, pages []string) []models.RawChunk {
	var raws []models.RawChunk
	idx := 0
	for pageNo, page := range pages {
		for _, seg := range SegmentPage(page, i.cfg.HeadingRule) {
			for _, piece := range SplitChunks(seg.Text, i.cfg.MaxChars, i.cfg.Overlap) {
				raws = append(raws, models.RawChunk{
					ChunkID:    ChunkID(docID, pageNo+1, seg.Heading, idx, piece),
					DocID:      docID,
					Page:       pageNo + 1,
					Heading:    seg.Heading,
					ChunkIndex: idx,
					Content:    piece,
				})
				idx++
			}
		}
	}
	return raws
}

func (r *docRun) manifest(status string, chunkCount, inserted int, artifacts []string, message string) *models.Manifest {
	return &models.Manifest{
		DocID:           r.docID,
		SourceKey:       r.id.SourceKey,
		DocVersion:      r.id.DocVersion,
		PipelineVersion: r.id.PipelineVersion,
		EmbedModel:      r.id.EmbedModel,
		EmbedDim:        r.id.EmbedDim,
		ChunkConf:       r.id.ChunkConf,
		ChunkCount:      chunkCount,
		InsertedRows:    inserted,
		Status:          status,
		StartTime:       r.startTime,
		EndTime:         nowUTC(),
		Artifacts:       artifacts,
		Message:         message,
	}
}

func (r *docRun) succeed(ctx context.Context, chunkCount, inserted int, artifacts []string) error {
	m := r.manifest(models.StatusSuccess, chunkCount, inserted, artifacts, "")
	if err := r.writeJSON(ctx, manifestKey(r.prefix), m); err != nil {
		return &StageError{Stage: StageArtifact, Err: err}
	}
	log.Printf("ingest: %s done (doc %s, %d chunks, %d rows)", r.id.SourceKey, r.docID, chunkCount, inserted)
	return nil
}

// fail writes the error artifact and a failed manifest, then returns
// the original error to the caller. Artifact-write problems during
// failure handling are logged, never allowed to mask the cause.
func (r *docRun) fail(ctx context.Context, cause *StageError) error {
	rec := &models.ErrorRecord{
		DocID:           r.docID,
		SourceKey:       r.id.SourceKey,
		DocVersion:      r.id.DocVersion,
		PipelineVersion: r.id.PipelineVersion,
		Status:          models.StatusFailed,
		ErrorType:       cause.Stage,
		ErrorMessage:    cause.Err.Error(),
		Time:            nowUTC(),
	}
	if err := r.writeJSON(ctx, errorKey(r.prefix), rec); err != nil {
		log.Printf("ingest: write error artifact for %s: %v", r.docID, err)
	}

	var artifacts []string
	if r.chunksWritten {
		artifacts = []string{chunksKey(r.prefix)}
	}
	m := r.manifest(models.StatusFailed, 0, 0, artifacts, cause.Error())
	if err := r.writeJSON(ctx, manifestKey(r.prefix), m); err != nil {
		log.Printf("ingest: write failed manifest for %s: %v", r.docID, err)
	}

	return fmt.Errorf("ingest %s: %w", r.id.SourceKey, cause)
}

func (r *docRun) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.ing.obj.UploadFile(ctx, r.ing.cfg.ProcBucket, key, data, "application/json")
}
