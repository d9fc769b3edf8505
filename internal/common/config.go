package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	Google   GoogleConfig
	Analysis AnalysisConfig
	Watch    WatchConfig
}

// Store drivers understood by repository.Open.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string
	DSN              string
	MongoDatabase    string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// OCRConfig holds local OCR configuration
type OCRConfig struct {
	HeicConverter    string
	TessdataDir      string
	ArtifactCacheDir string
	Languages        string
	PDFDPI           int
}

// GoogleConfig holds the cloud OCR backend configuration. Empty ProjectID disables both backends.
type GoogleConfig struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
}

// AnalysisConfig tunes the dedup orchestrator.
type AnalysisConfig struct {
	MaxConcurrentOCR int64
	PendingWait      time.Duration
	PendingPoll      time.Duration
	BackendRPS       float64
	BackendBurst     int
	Timeout          time.Duration
}

// WatchConfig makes the daemon analyze files dropped into local directories.
type WatchConfig struct {
	Dirs         []string
	SellerID     string
	DocumentType string
	Debounce     time.Duration
	Workers      int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", StorePostgres),
			DSN:              getEnv("DB_URL", ""),
			MongoDatabase:    getEnv("MONGO_DATABASE", "docscan"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			Languages:        getEnv("OCR_LANGUAGES", "eng"),
			PDFDPI:           getEnvAsInt("OCR_PDF_DPI", 300),
		},
		Google: GoogleConfig{
			ProjectID:       getEnv("GOOGLE_PROJECT_ID", ""),
			Location:        getEnv("DOCUMENTAI_LOCATION", "us"),
			ProcessorID:     getEnv("DOCUMENTAI_PROCESSOR_ID", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Analysis: AnalysisConfig{
			MaxConcurrentOCR: int64(getEnvAsInt("OCR_MAX_CONCURRENCY", 4)),
			PendingWait:      getEnvAsDuration("ANALYSIS_PENDING_WAIT", 30*time.Second),
			PendingPoll:      getEnvAsDuration("ANALYSIS_PENDING_POLL", 250*time.Millisecond),
			BackendRPS:       getEnvAsFloat64("OCR_BACKEND_RPS", 5),
			BackendBurst:     getEnvAsInt("OCR_BACKEND_BURST", 5),
			Timeout:          getEnvAsDuration("ANALYSIS_TIMEOUT", 2*time.Minute),
		},
		Watch: WatchConfig{
			Dirs:         getEnvAsList("WATCH_DIRS"),
			SellerID:     getEnv("WATCH_SELLER_ID", ""),
			DocumentType: getEnv("WATCH_DOCUMENT_TYPE", "generic"),
			Debounce:     getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			Workers:      getEnvAsInt("WATCH_WORKERS", 4),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StorePostgres, StoreMongo:
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
		}
	case StoreSQLite:
		if c.Database.DSN == "" {
			c.Database.DSN = ":memory:"
		}
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres, sqlite or mongo", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Google.ProjectID != "" && c.Google.ProcessorID == "" {
		return NewAppError("CONFIG_ERROR", "DOCUMENTAI_PROCESSOR_ID is required when GOOGLE_PROJECT_ID is set", ErrInvalidInput)
	}
	if len(c.Watch.Dirs) > 0 && c.Watch.SellerID == "" {
		return NewAppError("CONFIG_ERROR", "WATCH_SELLER_ID is required when WATCH_DIRS is set", ErrInvalidInput)
	}
	if c.Analysis.MaxConcurrentOCR < 1 {
		c.Analysis.MaxConcurrentOCR = 1
	}
	return nil
}
