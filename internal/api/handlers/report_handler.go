package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/finsight-ai/finsight/internal/core"
	"github.com/finsight-ai/finsight/internal/ingest"
	"github.com/finsight-ai/finsight/internal/models"
	"github.com/finsight-ai/finsight/internal/retrieve"
)

type ReportHandler struct {
	ingestor  *ingest.Ingestor
	retriever *retrieve.Retriever
	embedder  core.EmbeddingProvider
}

func NewReportHandler(ing *ingest.Ingestor, ret *retrieve.Retriever, emb core.EmbeddingProvider) *ReportHandler {
	return &ReportHandler{ingestor: ing, retriever: ret, embedder: emb}
}

type ingestRequest struct {
	StockID     int    `json:"stock_id"`
	FiscalYear  int    `json:"fiscal_year"`
	ReportType  string `json:"report_type"`
	ContentType string `json:"content_type"`
	Prefix      string `json:"prefix"`
}

type ingestResponse struct {
	Attempted int `json:"attempted"`
}

// IngestReports runs one synchronous ingestion pass over the raw
// bucket for the given stock/report classification.
func (h *ReportHandler) IngestReports(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.StockID == 0 || req.FiscalYear == 0 || req.ReportType == "" {
		http.Error(w, "stock_id, fiscal_year and report_type are required", http.StatusBadRequest)
		return
	}

	ingestCtx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	attempted, err := h.ingestor.Ingest(ingestCtx, ingest.Params{
		StockID:     req.StockID,
		FiscalYear:  req.FiscalYear,
		ReportType:  req.ReportType,
		ContentType: req.ContentType,
		Prefix:      req.Prefix,
	})
	if err != nil {
		log.Printf("ingest failed after %d documents: %v", attempted, err)
		http.Error(w, fmt.Sprintf("ingest failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ingestResponse{Attempted: attempted})
}

type searchRequest struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit"`
	Mode       string `json:"mode"` // semantic | bm25 | hybrid (default)
	DocID      string `json:"doc_id"`
	StockID    int    `json:"stock_id"`
	FiscalYear int    `json:"fiscal_year"`
	ReportType string `json:"report_type"`
}

// SearchReports answers semantic, keyword or hybrid chunk queries.
func (h *ReportHandler) SearchReports(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Mode == "" {
		req.Mode = "hybrid"
	}

	filter := core.SearchFilter{
		DocID:      req.DocID,
		StockID:    req.StockID,
		FiscalYear: req.FiscalYear,
		ReportType: req.ReportType,
	}

	var (
		chunks []models.ReportChunk
		err    error
	)
	switch req.Mode {
	case "bm25":
		chunks, err = h.retriever.SearchBM25(r.Context(), req.Query, req.Limit, filter)
	case "semantic":
		var embedding []float32
		embedding, err = h.embedder.Embed(r.Context(), req.Query)
		if err == nil {
			chunks, err = h.retriever.SearchSemantic(r.Context(), embedding, req.Limit, filter)
		}
	case "hybrid":
		var embedding []float32
		embedding, err = h.embedder.Embed(r.Context(), req.Query)
		if err == nil {
			chunks, err = h.retriever.SearchHybrid(r.Context(), embedding, req.Query, req.Limit, filter, retrieve.Options{})
		}
	default:
		http.Error(w, "mode must be semantic, bm25 or hybrid", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("search (%s) failed: %v", req.Mode, err)
		http.Error(w, fmt.Sprintf("search failed: %v", err), http.StatusInternalServerError)
		return
	}

	if chunks == nil {
		chunks = []models.ReportChunk{}
	}
	writeJSON(w, chunks)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
