// One-shot ingestion runner: lists the raw bucket, processes every
// document for the given stock/report classification and exits.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/finsight-ai/finsight/internal/app"
	"github.com/finsight-ai/finsight/internal/config"
	db "github.com/finsight-ai/finsight/internal/core/database"
	objectclient "github.com/finsight-ai/finsight/internal/core/object-client"
	"github.com/finsight-ai/finsight/internal/core/parser"
	"github.com/finsight-ai/finsight/internal/ingest"
)

func main() {
	var (
		stockID     = flag.Int("stock", 0, "stock id the reports belong to")
		fiscalYear  = flag.Int("year", 0, "fiscal year of the reports")
		reportType  = flag.String("type", "annual", "report type (annual, quarterly, ...)")
		contentType = flag.String("content-type", "application/pdf", "content type of the source objects")
		prefix      = flag.String("prefix", "", "optional key prefix filter in the raw bucket")
	)
	flag.Parse()

	if *stockID == 0 || *fiscalYear == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer dbClient.Close()

	objClient, err := objectclient.NewS3Client(ctx, cfg)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	embedder, err := app.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("embedder: %v", err)
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

	attempted, err := ingestor.Ingest(ctx, ingest.Params{
		StockID:     *stockID,
		FiscalYear:  *fiscalYear,
		ReportType:  *reportType,
		ContentType: *contentType,
		Prefix:      *prefix,
	})
	if err != nil {
		log.Fatalf("ingest failed after %d documents: %v", attempted, err)
	}
	log.Printf("ingest complete: %d documents attempted", attempted)
}
