package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	AwsEndpoint  string // non-empty for MinIO or other S3-compatible stores
	RawBucket    string
	ProcBucket   string

	EmbedProvider string // "openai" | "gemini"
	EmbedAPIKey   string
	EmbedBaseURL  string // OpenAI-compatible endpoint (vLLM etc.)
	EmbedModel    string
	EmbedDim      int

	PipelineVersion string
	ChunkMaxChars   int
	ChunkOverlap    int

	Port string
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		AwsEndpoint:  getEnv("S3_ENDPOINT", ""),
		RawBucket:    getEnv("RAW_BUCKET", "reports-raw"),
		ProcBucket:   getEnv("PROCESSED_BUCKET", "reports-processed"),

		EmbedProvider: getEnv("EMBED_PROVIDER", "openai"),
		EmbedAPIKey:   getEnv("EMBED_API_KEY", ""),
		EmbedBaseURL:  getEnv("EMBED_BASE_URL", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),

		PipelineVersion: getEnv("PIPELINE_VERSION", "v1"),
		ChunkMaxChars:   getEnvInt("CHUNK_MAX_CHARS", 900),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 120),

		Port: getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
