package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/internal/core"
	db "github.com/finsight-ai/finsight/internal/core/database"
	"github.com/finsight-ai/finsight/internal/core/llm"
	objectclient "github.com/finsight-ai/finsight/internal/core/object-client"
	"github.com/finsight-ai/finsight/internal/core/parser"
	"github.com/finsight-ai/finsight/internal/ingest"
	"github.com/finsight-ai/finsight/internal/retrieve"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Embedder     core.EmbeddingProvider
	Ingestor     *ingest.Ingestor
	Retriever    *retrieve.Retriever
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := NewEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	ingestor := ingest.NewIngestor(dbClient, objClient, embedder, parser.New(), &ingest.Config{
		RawBucket:       cfg.RawBucket,
		ProcBucket:      cfg.ProcBucket,
		PipelineVersion: cfg.PipelineVersion,
		EmbedModel:      cfg.EmbedModel,
		EmbedDim:        cfg.EmbedDim,
		MaxChars:        cfg.ChunkMaxChars,
		Overlap:         cfg.ChunkOverlap,
	})

	retriever := retrieve.NewRetriever(dbClient)

	server := NewServer(cfg, ingestor, retriever, embedder)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Embedder:     embedder,
		Ingestor:     ingestor,
		Retriever:    retriever,
		Server:       server,
	}, nil
}

// NewEmbedder picks the embedding provider from configuration:
// "openai" covers any OpenAI-compatible endpoint (vLLM included),
// "gemini" uses the Google API.
func NewEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "openai":
		return llm.NewOpenAIEmbedder(cfg.EmbedAPIKey, cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbedDim)
	case "gemini":
		return llm.NewGeminiEmbedder(ctx, cfg.EmbedAPIKey, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.EmbedProvider)
	}
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
	if closer, ok := a.Embedder.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
