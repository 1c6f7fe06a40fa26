package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

// Catalog source kinds.
const (
	CatalogSourceFile     = "file"
	CatalogSourceS3       = "s3"
	CatalogSourcePostgres = "postgres"
)

// Embedding provider kinds.
const (
	ProviderOpenAI        = "openai"
	ProviderDeterministic = "deterministic"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	LLM     LLMConfig     `yaml:"llm"`
	Catalog CatalogConfig `yaml:"catalog"`
	Search  SearchConfig  `yaml:"search"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
	Auth           AuthConfig      `yaml:"auth"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool         `yaml:"enabled"`
	RequestsPerMinute int          `yaml:"requestsPerMinute"`
	Burst             int          `yaml:"burst"`
	Valkey            ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig points the rate limiter at a shared Valkey/Redis instance.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// RetryConfig configures best-effort retries for transient upstream failures.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// AuthConfig enables HS256 bearer tokens on the API routes.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
	Issuer  string `yaml:"issuer"`
}

// LLMConfig contains embedding provider settings.
type LLMConfig struct {
	Provider         string        `yaml:"provider"`
	APIKey           string        `yaml:"apiKey"`
	BaseURL          string        `yaml:"baseUrl"`
	EmbeddingModel   string        `yaml:"embeddingModel"`
	EmbeddingTimeout time.Duration `yaml:"embeddingTimeout"`
	MaxInputTokens   int           `yaml:"maxInputTokens"`
	Dimension        int           `yaml:"dimension"`
}

// CatalogConfig selects where the FAQ catalog is loaded from.
type CatalogConfig struct {
	Source      string            `yaml:"source"`
	Dir         string            `yaml:"dir"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Workers     int               `yaml:"workers"`
	BatchSize   int               `yaml:"batchSize"`
}

// ObjectStoreConfig locates catalog artifacts in an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// SearchConfig tunes ranking and confidence.
type SearchConfig struct {
	TopK        int               `yaml:"topK"`
	MaxTopK     int               `yaml:"maxTopK"`
	Calibration CalibrationConfig `yaml:"calibration"`
}

// CalibrationConfig mirrors faq.Calibration.
type CalibrationConfig struct {
	SimilarityWeight float64 `yaml:"similarityWeight"`
	MarginWeight     float64 `yaml:"marginWeight"`
	SimilarityFloor  float64 `yaml:"similarityFloor"`
	SimilarityScale  float64 `yaml:"similarityScale"`
	MarginScale      float64 `yaml:"marginScale"`
	Threshold        float64 `yaml:"confidenceThreshold"`
}

// Load reads configuration from .env, a YAML file and environment variables, in that order.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv walks up from the working directory and loads the first .env found.
// Variables already present in the environment win.
func loadDotEnv() error {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.RateLimit.Valkey.Enabled, "HTTP_RATE_LIMIT_VALKEY_ENABLED")
	setString(&cfg.HTTP.RateLimit.Valkey.Addr, "HTTP_RATE_LIMIT_VALKEY_ADDR")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")
	setBool(&cfg.HTTP.Auth.Enabled, "HTTP_AUTH_ENABLED")
	setString(&cfg.HTTP.Auth.Secret, "HTTP_AUTH_SECRET")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	if cfg.LLM.APIKey == "" {
		setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	}
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setDuration(&cfg.LLM.EmbeddingTimeout, "LLM_EMBEDDING_TIMEOUT")
	setInt(&cfg.LLM.MaxInputTokens, "LLM_MAX_INPUT_TOKENS")
	setInt(&cfg.LLM.Dimension, "LLM_DIMENSION")

	setString(&cfg.Catalog.Source, "FAQ_CATALOG_SOURCE")
	setString(&cfg.Catalog.Dir, "FAQ_CATALOG_DIR")
	setString(&cfg.Catalog.ObjectStore.Endpoint, "FAQ_S3_ENDPOINT")
	setString(&cfg.Catalog.ObjectStore.AccessKey, "FAQ_S3_ACCESS_KEY")
	setString(&cfg.Catalog.ObjectStore.SecretKey, "FAQ_S3_SECRET_KEY")
	setString(&cfg.Catalog.ObjectStore.Bucket, "FAQ_S3_BUCKET")
	setString(&cfg.Catalog.ObjectStore.Region, "FAQ_S3_REGION")
	setString(&cfg.Catalog.ObjectStore.Prefix, "FAQ_S3_PREFIX")
	setString(&cfg.Catalog.Postgres.DSN, "FAQ_POSTGRES_DSN")
	setInt(&cfg.Catalog.Workers, "FAQ_CATALOG_WORKERS")
	setInt(&cfg.Catalog.BatchSize, "FAQ_CATALOG_BATCH_SIZE")
	if v := os.Getenv("FAQ_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("FAQ_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.Postgres.MinConns = int32(parsed)
		}
	}

	setInt(&cfg.Search.TopK, "FAQ_TOP_K")
	setInt(&cfg.Search.MaxTopK, "FAQ_MAX_TOP_K")
	setFloat(&cfg.Search.Calibration.Threshold, "FAQ_CONFIDENCE_THRESHOLD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() *Config {
	cal := faq.DefaultCalibration()
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
				Valkey: ValkeyConfig{
					Prefix: "faq-search:ratelimit",
				},
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 2,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/",
				},
			},
		},
		LLM: LLMConfig{
			Provider:         ProviderOpenAI,
			EmbeddingModel:   "text-embedding-3-small",
			EmbeddingTimeout: 10 * time.Second,
			MaxInputTokens:   8191,
		},
		Catalog: CatalogConfig{
			Source: CatalogSourceFile,
			Dir:    "data",
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Search: SearchConfig{
			TopK:    3,
			MaxTopK: 20,
			Calibration: CalibrationConfig{
				SimilarityWeight: cal.SimilarityWeight,
				MarginWeight:     cal.MarginWeight,
				SimilarityFloor:  cal.SimilarityFloor,
				SimilarityScale:  cal.SimilarityScale,
				MarginScale:      cal.MarginScale,
				Threshold:        cal.Threshold,
			},
		},
	}
}

// FAQ converts the search and llm sections into the domain configuration.
func (c *Config) FAQ() faq.Config {
	cal := c.Search.Calibration
	return faq.Config{
		EmbeddingModel:   c.LLM.EmbeddingModel,
		EmbeddingTimeout: c.LLM.EmbeddingTimeout,
		MaxInputTokens:   c.LLM.MaxInputTokens,
		TopK:             c.Search.TopK,
		MaxTopK:          c.Search.MaxTopK,
		Calibration: faq.Calibration{
			SimilarityWeight: cal.SimilarityWeight,
			MarginWeight:     cal.MarginWeight,
			SimilarityFloor:  cal.SimilarityFloor,
			SimilarityScale:  cal.SimilarityScale,
			MarginScale:      cal.MarginScale,
			Threshold:        cal.Threshold,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
		if c.HTTP.RateLimit.Valkey.Enabled && strings.TrimSpace(c.HTTP.RateLimit.Valkey.Addr) == "" {
			return errors.New("http.rateLimit.valkey.addr cannot be empty when valkey is enabled")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.HTTP.Auth.Enabled && len(c.HTTP.Auth.Secret) < 16 {
		return errors.New("http.auth.secret must be at least 16 bytes when auth is enabled")
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderDeterministic:
	default:
		return fmt.Errorf("llm.provider must be %q or %q", ProviderOpenAI, ProviderDeterministic)
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if c.LLM.EmbeddingTimeout <= 0 {
		return errors.New("llm.embeddingTimeout must be positive")
	}
	if c.LLM.MaxInputTokens < 0 {
		return errors.New("llm.maxInputTokens cannot be negative")
	}
	if c.LLM.Dimension < 0 {
		return errors.New("llm.dimension cannot be negative")
	}

	switch c.Catalog.Source {
	case CatalogSourceFile:
		if strings.TrimSpace(c.Catalog.Dir) == "" {
			return errors.New("catalog.dir cannot be empty for file catalogs")
		}
	case CatalogSourceS3:
		if strings.TrimSpace(c.Catalog.ObjectStore.Endpoint) == "" || strings.TrimSpace(c.Catalog.ObjectStore.Bucket) == "" {
			return errors.New("catalog.objectStore.endpoint and bucket are required for s3 catalogs")
		}
	case CatalogSourcePostgres:
		if strings.TrimSpace(c.Catalog.Postgres.DSN) == "" {
			return errors.New("catalog.postgres.dsn is required for postgres catalogs")
		}
	default:
		return fmt.Errorf("catalog.source must be one of %q, %q, %q", CatalogSourceFile, CatalogSourceS3, CatalogSourcePostgres)
	}

	if c.Search.TopK <= 0 {
		return errors.New("search.topK must be positive")
	}
	if c.Search.MaxTopK < c.Search.TopK {
		return errors.New("search.maxTopK cannot be smaller than search.topK")
	}
	cal := c.Search.Calibration
	if cal.SimilarityWeight < 0 || cal.MarginWeight < 0 {
		return errors.New("search.calibration weights cannot be negative")
	}
	if cal.SimilarityScale <= 0 || cal.MarginScale <= 0 {
		return errors.New("search.calibration scales must be positive")
	}
	if cal.Threshold < 0 || cal.Threshold > 1 {
		return errors.New("search.calibration.confidenceThreshold must be within [0, 1]")
	}
	return nil
}
