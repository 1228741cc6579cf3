package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/internal/core"
	"github.com/finsight-ai/finsight/internal/models"
)

// --- Mock implementations ---

type fakeObjectStore struct {
	mu      sync.Mutex
	listing []core.ObjectInfo
	objects map[string][]byte // "bucket/key"
	rawGets int
	listErr error
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) ListObjects(_ context.Context, _ string, prefix string) ([]core.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.ObjectInfo
	for _, o := range f.listing {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeObjectStore) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bucket == "raw" {
		f.rawGets++
	}
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s/%s", bucket, key)
	}
	return data, nil
}

func (f *fakeObjectStore) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjectStore) DeleteFile(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeObjectStore) manifest(t *testing.T, prefix string) *models.Manifest {
	t.Helper()
	data, ok := f.objects["proc/"+manifestKey(prefix)]
	require.True(t, ok, "manifest not written")
	var m models.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	return &m
}

type fakeDb struct {
	upserts [][]models.ReportChunk
	err     error
}

func (f *fakeDb) UpsertReportChunks(_ context.Context, chunks []models.ReportChunk) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.upserts = append(f.upserts, chunks)
	return len(chunks), nil
}

func (f *fakeDb) SearchSemantic(context.Context, []float32, int, core.SearchFilter) ([]models.ReportChunk, error) {
	return nil, nil
}

func (f *fakeDb) SearchBM25(context.Context, string, int, core.SearchFilter) ([]models.ReportChunk, error) {
	return nil, nil
}

func (f *fakeDb) Close() error { return nil }

type fakeEmbedder struct {
	dim   int
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

type fakeParser struct {
	pages []string
	err   error
}

func (f *fakeParser) ParsePages(context.Context, string, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// --- Fixtures ---

func testConfig() *Config {
	return &Config{
		RawBucket:       "raw",
		ProcBucket:      "proc",
		PipelineVersion: "v1",
		EmbedModel:      "fake-model",
		EmbedDim:        4,
		MaxChars:        900,
		Overlap:         120,
	}
}

func testParams() Params {
	return Params{StockID: 1, FiscalYear: 2024, ReportType: "annual"}
}

func seedObject(obj *fakeObjectStore, key, version string) {
	obj.listing = append(obj.listing, core.ObjectInfo{Key: key, Version: version})
	obj.objects["raw/"+key] = []byte("%PDF-fake")
}

// --- Tests ---

func TestIngest_PersistsChunksAndManifest(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "test.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world", "more text on page two"}}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	attempted, err := ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	require.Len(t, dbc.upserts, 1)
	rows := dbc.upserts[0]
	require.Len(t, rows, 2)

	docID := DocID("test.pdf", "etag-1")
	assert.Equal(t, ChunkID(docID, 1, "OVERVIEW", 0, "hello world"), rows[0].DocID)
	assert.Equal(t, ChunkID(docID, 2, UnnamedSection, 1, "more text on page two"), rows[1].DocID)
	assert.Equal(t, 0, rows[0].ChunkNo)
	assert.Equal(t, 1, rows[1].ChunkNo)
	assert.Equal(t, "etag-1", rows[0].DocVersion)
	assert.Equal(t, 1, rows[0].StockID)
	assert.Equal(t, "application/pdf", rows[0].ContentType)

	m := obj.manifest(t, "test")
	assert.Equal(t, models.StatusSuccess, m.Status)
	assert.Equal(t, docID, m.DocID)
	assert.Equal(t, 2, m.ChunkCount)
	assert.Equal(t, 2, m.InsertedRows)
	assert.Equal(t, []string{"test/chunks.jsonl"}, m.Artifacts)
	assert.NotEmpty(t, m.StartTime)
	assert.NotEmpty(t, m.EndTime)

	_, ok := obj.objects["proc/test/chunks.jsonl"]
	assert.True(t, ok, "chunks.jsonl not written")
}

func TestIngest_SecondRunSkips(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "test.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world"}}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	_, err := ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)

	obj.rawGets = 0
	emb.calls = 0

	attempted, err := ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, attempted, "skipped documents still count as attempted")
	assert.Equal(t, 0, obj.rawGets, "skip must not download")
	assert.Equal(t, 0, emb.calls, "skip must not embed")
	assert.Len(t, dbc.upserts, 1, "skip must not write rows")
}

func TestIngest_NewVersionReprocesses(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "test.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world"}}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	_, err := ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)

	// same key, new content version; the prior success manifest must
	// not cause a skip
	obj.listing[0].Version = "etag-2"
	obj.rawGets = 0

	_, err = ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, obj.rawGets)
	require.Len(t, dbc.upserts, 2)
	assert.NotEqual(t, dbc.upserts[0][0].DocID, dbc.upserts[1][0].DocID)
}

func TestIngest_ConfigChangeReprocesses(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "test.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world"}}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	_, err := ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.PipelineVersion = "v2"
	ing2 := NewIngestor(dbc, obj, emb, prs, cfg)

	obj.rawGets = 0
	_, err = ing2.Ingest(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, obj.rawGets)
}

func TestIngest_EmptyExtraction(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "empty.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{pages: []string{"", "   \n\n  "}}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	attempted, err := ing.Ingest(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	m := obj.manifest(t, "empty")
	assert.Equal(t, models.StatusSuccess, m.Status)
	assert.Equal(t, 0, m.ChunkCount)
	assert.Equal(t, 0, m.InsertedRows)

	assert.Empty(t, dbc.upserts)
	assert.Equal(t, 0, emb.calls)
	_, ok := obj.objects["proc/empty/chunks.jsonl"]
	assert.False(t, ok, "no chunk artifact for an empty extraction")
}

func TestIngest_EmbedFailureWritesArtifacts(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "test.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4, err: errors.New("provider down")}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world"}}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	attempted, err := ing.Ingest(context.Background(), testParams())

	require.Error(t, err)
	assert.Equal(t, 1, attempted)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageEmbed, stageErr.Stage)

	m := obj.manifest(t, "test")
	assert.Equal(t, models.StatusFailed, m.Status)
	assert.Contains(t, m.Message, "provider down")
	assert.Equal(t, []string{"test/chunks.jsonl"}, m.Artifacts,
		"failure manifest must still reference the chunk artifact written before embedding")

	data, ok := obj.objects["proc/"+errorKey("test")]
	require.True(t, ok, "error.json not written")
	var rec models.ErrorRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Equal(t, StageEmbed, rec.ErrorType)
	assert.Contains(t, rec.ErrorMessage, "provider down")
	assert.Equal(t, DocID("test.pdf", "etag-1"), rec.DocID)

	assert.Empty(t, dbc.upserts)
}

func TestIngest_ParseFailure(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "bad.pdf", "etag-1")
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{err: errors.New("malformed xref table")}

	ing := NewIngestor(dbc, obj, emb, prs, testConfig())
	_, err := ing.Ingest(context.Background(), testParams())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageParse, stageErr.Stage)

	m := obj.manifest(t, "bad")
	assert.Equal(t, models.StatusFailed, m.Status)
	assert.Empty(t, m.Artifacts, "no chunk artifact exists before parsing succeeds")
}

func TestIngest_DimensionMismatch(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "test.pdf", "etag-1")
	cfg := testConfig()
	cfg.EmbedDim = 768 // embedder returns 4
	dbc := &fakeDb{}
	emb := &fakeEmbedder{dim: 4}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world"}}

	ing := NewIngestor(dbc, obj, emb, prs, cfg)
	_, err := ing.Ingest(context.Background(), testParams())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageValidation, stageErr.Stage)
	assert.Empty(t, dbc.upserts)
}

func TestIngest_ListErrorWritesNothing(t *testing.T) {
	obj := newFakeObjectStore()
	obj.listErr = errors.New("bucket unreachable")
	ing := NewIngestor(&fakeDb{}, obj, &fakeEmbedder{dim: 4}, &fakeParser{}, testConfig())

	attempted, err := ing.Ingest(context.Background(), testParams())
	require.Error(t, err)
	assert.Equal(t, 0, attempted)
	assert.Empty(t, obj.objects, "no artifacts before anything started")
}

func TestIngest_PrefixFilter(t *testing.T) {
	obj := newFakeObjectStore()
	seedObject(obj, "reports/2024/annual/600519.pdf", "etag-1")
	seedObject(obj, "reports/2023/annual/600519.pdf", "etag-2")
	dbc := &fakeDb{}
	prs := &fakeParser{pages: []string{"OVERVIEW\nhello world"}}

	ing := NewIngestor(dbc, obj, &fakeEmbedder{dim: 4}, prs, testConfig())
	p := testParams()
	p.Prefix = "reports/2024/"

	attempted, err := ing.Ingest(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)
}
