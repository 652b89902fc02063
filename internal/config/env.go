package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	S3Endpoint   string // set for MinIO; empty means AWS
	BucketName   string

	AIAPIKey        string
	EmbedModel      string
	EmbedDim        int
	GenModel        string
	TranscribeModel string

	// Ingestion tuning. Operational values, not load-bearing invariants.
	TargetTokens  int
	OverlapTokens int
	BatchSize     int
	MaxAttempts   int
	Workers       int
	EmbedRPS      float64

	TopK             int
	MaxUploadMB      int
	MaxUploadsPerDay int
	ProviderTimeout  time.Duration

	IndexBackend string // "memory" or "pgvector"
	JWTSecret    string
	Port         string
}

// LoadConfig loads the environment variables and returns config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		BucketName:   getEnv("BUCKET_NAME", "docwise-files"),

		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:        getEnvInt("EMBED_DIM", 768),
		GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "gemini-1.5-flash"),

		TargetTokens:  getEnvInt("CHUNK_TARGET_TOKENS", 400),
		OverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 60),
		BatchSize:     getEnvInt("EMBED_BATCH_SIZE", 16),
		MaxAttempts:   getEnvInt("PROVIDER_MAX_ATTEMPTS", 4),
		Workers:       getEnvInt("INGEST_WORKERS", 4),
		EmbedRPS:      float64(getEnvInt("EMBED_RPS", 5)),

		TopK:             getEnvInt("RETRIEVAL_TOP_K", 5),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 100),
		MaxUploadsPerDay: getEnvInt("MAX_UPLOADS_PER_DAY", 20),
		ProviderTimeout:  time.Duration(getEnvInt("PROVIDER_TIMEOUT_SEC", 60)) * time.Second,

		IndexBackend: getEnv("INDEX_BACKEND", "pgvector"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		Port:         getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
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
