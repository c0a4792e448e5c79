// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kona/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive fields (API key, database password) are masked in MarshalJSON
// so the config can be logged safely. Validation is fail-fast: Load returns
// an error rather than letting a bad value surface mid-request.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidBackend indicates an unknown index backend name.
	ErrInvalidBackend = errors.New("invalid index backend")

	// ErrMissingIndexURL indicates the http backend has no base URL.
	ErrMissingIndexURL = errors.New("missing index base URL")

	// ErrInvalidTemperature indicates the temperature is out of [0,1].
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidChunking indicates a bad chunk size/overlap pair.
	ErrInvalidChunking = errors.New("invalid chunk configuration")

	// ErrInvalidThreshold indicates a dedup threshold outside (0,1].
	ErrInvalidThreshold = errors.New("invalid dedup threshold")

	// ErrInvalidTopK indicates a non-positive retrieval depth.
	ErrInvalidTopK = errors.New("invalid topK")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrMissingCorpusName indicates an empty corpus name.
	ErrMissingCorpusName = errors.New("missing corpus name")
)

// Index backend identifiers used in Config.Backend.
const (
	BackendPGVector = "pgvector"
	BackendHTTP     = "http"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Model configuration
	GeminiAPIKey  string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Corpus configuration
	CorpusName     string  `mapstructure:"corpus_name" json:"corpus_name"`
	BlobDir        string  `mapstructure:"blob_dir" json:"blob_dir"`
	ChunkSize      int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	SemanticDedup  bool    `mapstructure:"semantic_dedup" json:"semantic_dedup"`
	DedupThreshold float64 `mapstructure:"dedup_threshold" json:"dedup_threshold"`
	IngestWorkers  int     `mapstructure:"ingest_workers" json:"ingest_workers"`

	// Retrieval and answering
	Backend        string `mapstructure:"backend" json:"backend"` // "pgvector" (default) or "http"
	IndexBaseURL   string `mapstructure:"index_base_url" json:"index_base_url"`
	TopK           int    `mapstructure:"top_k" json:"top_k"`
	StrictAnswers  bool   `mapstructure:"strict_answers" json:"strict_answers"`
	RelevanceCheck bool   `mapstructure:"relevance_check" json:"relevance_check"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".kona")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	// Model defaults
	v.SetDefault("model_name", "gemini-2.0-flash-001")
	v.SetDefault("embedder_model", "text-embedding-005")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 1024)

	// Corpus defaults
	v.SetDefault("corpus_name", "knowledge-base")
	v.SetDefault("blob_dir", filepath.Join(configDir, "blobs"))
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("semantic_dedup", true)
	v.SetDefault("dedup_threshold", 0.85)
	v.SetDefault("ingest_workers", 4)

	// Retrieval defaults
	v.SetDefault("backend", BackendPGVector)
	v.SetDefault("top_k", 5)
	v.SetDefault("strict_answers", false)
	v.SetDefault("relevance_check", true)

	// PostgreSQL defaults for a local development instance
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "kona")
	v.SetDefault("postgres_password", "kona_dev_password")
	v.SetDefault("postgres_db_name", "kona")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("model_name", "KONA_MODEL_NAME")
	mustBind("embedder_model", "KONA_EMBEDDER_MODEL")
	mustBind("corpus_name", "KONA_CORPUS_NAME")
	mustBind("blob_dir", "KONA_BLOB_DIR")
	mustBind("backend", "KONA_BACKEND")
	mustBind("index_base_url", "KONA_INDEX_BASE_URL")
	mustBind("log_level", "KONA_LOG_LEVEL")
	mustBind("log_json", "KONA_LOG_JSON")
}

// Validate performs fail-fast range and presence checks.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if c.CorpusName == "" {
		return ErrMissingCorpusName
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: %v not in [0,1]", ErrInvalidTemperature, c.Temperature)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("%w: %v not in (0,1]", ErrInvalidThreshold, c.DedupThreshold)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, c.TopK)
	}

	switch c.Backend {
	case BackendPGVector:
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	case BackendHTTP:
		if c.IndexBaseURL == "" {
			return fmt.Errorf("%w: set index_base_url or KONA_INDEX_BASE_URL", ErrMissingIndexURL)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidBackend, c.Backend, BackendPGVector, BackendHTTP)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
