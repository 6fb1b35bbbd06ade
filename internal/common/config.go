package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Workers  WorkersConfig
	Attorney AttorneyConfig
	Ingest   IngestConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	UploadDir       string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	Tesseract   string
	Pdftotext   string
	Pdftoppm    string
	TessdataDir string
	Language    string
	DPI         int
	WorkDir     string
}

// LLMConfig holds AI service configuration
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	ExtractModel string
	ClarifyModel string
	Timeout      time.Duration
}

// WorkersConfig sizes background processing and the external service pool
type WorkersConfig struct {
	ProcessWorkers  int
	QueueSize       int
	ProcessTimeout  time.Duration
	ServicePoolSize int
}

// AttorneyConfig is the attorney profile used when a fact record has none
type AttorneyConfig struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// IngestConfig controls the optional watch folder
type IngestConfig struct {
	WatchDir string
	Debounce time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:./data/legal-docs.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":9090"),
			UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Language:    getEnv("OCR_LANG", "eng"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			WorkDir:     getEnv("OCR_WORK_DIR", ""),
		},
		LLM: LLMConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ExtractModel: getEnv("OPENAI_EXTRACT_MODEL", "gpt-4o"),
			ClarifyModel: getEnv("OPENAI_CLARIFY_MODEL", "gpt-4o-mini"),
			Timeout:      getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Workers: WorkersConfig{
			ProcessWorkers:  getEnvAsInt("PROCESS_WORKERS", 4),
			QueueSize:       getEnvAsInt("PROCESS_QUEUE_SIZE", 256),
			ProcessTimeout:  getEnvAsDuration("PROCESS_TIMEOUT", 5*time.Minute),
			ServicePoolSize: getEnvAsInt("SERVICE_POOL_SIZE", 4),
		},
		Attorney: AttorneyConfig{
			Name:    getEnv("ATTORNEY_NAME", ""),
			Address: getEnv("ATTORNEY_ADDRESS", ""),
			Phone:   getEnv("ATTORNEY_PHONE", ""),
			Email:   getEnv("ATTORNEY_EMAIL", ""),
		},
		Ingest: IngestConfig{
			WatchDir: getEnv("WATCH_DIR", ""),
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
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
	if strings.TrimSpace(c.Database.DSN) == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.UploadDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Workers.ProcessWorkers <= 0 || c.Workers.ServicePoolSize <= 0 {
		return NewAppError("CONFIG_ERROR", "PROCESS_WORKERS and SERVICE_POOL_SIZE must be positive", ErrInvalidInput)
	}
	if c.Ingest.WatchDir != "" && sameDir(c.Ingest.WatchDir, c.Server.UploadDir) {
		return NewAppError("CONFIG_ERROR", "WATCH_DIR must differ from UPLOAD_DIR", ErrInvalidInput)
	}
	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
