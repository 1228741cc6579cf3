package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/finsight-ai/finsight/internal/models"
)

// ArtifactPrefix derives the processed-bucket directory for a source
// object by stripping its file extension: "reports/2024/annual/600519.pdf"
// becomes "reports/2024/annual/600519".
func ArtifactPrefix(sourceKey string) string {
	ext := path.Ext(sourceKey)
	return strings.TrimSuffix(sourceKey, ext)
}

func manifestKey(prefix string) string { return prefix + "/manifest.json" }
func chunksKey(prefix string) string   { return prefix + "/chunks.jsonl" }
func errorKey(prefix string) string    { return prefix + "/error.json" }

// identity is the configuration tuple that must match an existing
// success manifest for a document to be skipped.
type identity struct {
	SourceKey       string
	DocVersion      string
	PipelineVersion string
	EmbedModel      string
	EmbedDim        int
	ChunkConf       models.ChunkConfig
}

// matches reports whether a prior manifest covers exactly this run's
// source version and pipeline configuration.
func (id identity) matches(m *models.Manifest) bool {
	return m != nil &&
		m.Status == models.StatusSuccess &&
		m.SourceKey == id.SourceKey &&
		m.DocVersion == id.DocVersion &&
		m.PipelineVersion == id.PipelineVersion &&
		m.EmbedModel == id.EmbedModel &&
		m.EmbedDim == id.EmbedDim &&
		m.ChunkConf == id.ChunkConf
}

// decodeManifest parses a stored manifest; a nil return means the
// bytes were not a manifest we can trust, which callers treat the same
// as no manifest at all.
func decodeManifest(data []byte) *models.Manifest {
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if m.DocID == "" {
		return nil
	}
	return &m
}

// encodeChunksJSONL serializes raw chunks one JSON document per line,
// the diagnostic artifact written before any embedding call.
func encodeChunksJSONL(chunks []models.RawChunk) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range chunks {
		if err := enc.Encode(&chunks[i]); err != nil {
			return nil, fmt.Errorf("encode chunk %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// nowUTC formats the current instant the way all artifacts record
// time: UTC, ISO-8601.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
