// Package config loads productrank settings from a YAML file, a .env file
// and PRODUCTRANK_* environment variables, in that order.
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

	"github.com/dshills/productrank-mcp/internal/category"
	"github.com/dshills/productrank-mcp/internal/chunker"
	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/lexical"
	"github.com/dshills/productrank-mcp/internal/logging"
	"github.com/dshills/productrank-mcp/internal/searcher"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// Environment overrides
const (
	EnvDBPath         = "PRODUCTRANK_DB_PATH"
	EnvCategoriesPath = "PRODUCTRANK_CATEGORIES_PATH"
	EnvProfilePath    = "PRODUCTRANK_PROFILE_PATH"
	EnvPGDSN          = "PRODUCTRANK_PG_DSN"
	EnvHTTPAddr       = "PRODUCTRANK_HTTP_ADDR"
	EnvLogLevel       = "PRODUCTRANK_LOG_LEVEL"
	EnvLogFormat      = "PRODUCTRANK_LOG_FORMAT"
	EnvSearchLimit    = "PRODUCTRANK_SEARCH_LIMIT"
	EnvVectorTimeout  = "PRODUCTRANK_VECTOR_TIMEOUT"
)

// DefaultDBPath is the catalog database location when none is configured
const DefaultDBPath = "~/.productrank/catalog.db"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all productrank settings
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Lexical    LexicalConfig    `yaml:"lexical"`
	Categories CategoriesConfig `yaml:"categories"`
	PGVector   PGVectorConfig   `yaml:"pgvector"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig locates the SQLite catalog
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects the embedding provider. An empty provider is
// detected from the environment.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`
}

// SearchConfig holds the default per-query parameters
type SearchConfig struct {
	Limit                int           `yaml:"limit"`
	LexicalWeight        float64       `yaml:"lexical_weight"`
	VectorWeight         float64       `yaml:"vector_weight"`
	EnableCategoryWeight bool          `yaml:"enable_category_weight"`
	ScoreThreshold       float64       `yaml:"score_threshold"`
	VectorTimeout        time.Duration `yaml:"vector_timeout"`
	CandidateMultiplier  int           `yaml:"candidate_multiplier"`
	PreferChunk          string        `yaml:"prefer_chunk"`
}

// LexicalConfig holds BM25 parameters. Workers < 0 scores on the calling
// goroutine, 0 sizes the pool to GOMAXPROCS.
type LexicalConfig struct {
	K1        float64 `yaml:"k1"`
	B         float64 `yaml:"b"`
	ShardSize int     `yaml:"shard_size"`
	Workers   int     `yaml:"workers"`
}

// CategoriesConfig points at replacement category and chunk profile files.
// Empty paths use the built-in tables.
type CategoriesConfig struct {
	Path        string `yaml:"path"`
	ProfilePath string `yaml:"profile_path"`
}

// PGVectorConfig switches the vector source to Postgres
type PGVectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// HTTPConfig configures the search API
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns a configuration that runs with no file and no
// environment: local embeddings, built-in categories, SQLite only.
func DefaultConfig() *Config {
	p := searcher.DefaultParams()
	return &Config{
		Database: DatabaseConfig{Path: DefaultDBPath},
		Embedding: EmbeddingConfig{
			CacheSize: embedder.DefaultCacheSize,
		},
		Search: SearchConfig{
			Limit:                p.Limit,
			LexicalWeight:        p.LexicalWeight,
			VectorWeight:         p.VectorWeight,
			EnableCategoryWeight: p.EnableCategoryWeight,
			ScoreThreshold:       p.ScoreThreshold,
			VectorTimeout:        p.VectorTimeout,
			CandidateMultiplier:  p.CandidateMultiplier,
		},
		Lexical: LexicalConfig{
			K1:        lexical.DefaultK1,
			B:         lexical.DefaultB,
			ShardSize: lexical.DefaultShardSize,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
			Output: "stderr",
		},
	}
}

// Load reads path (optional), then .env in the working directory, then
// environment overrides, and validates the result
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env is normal
	_ = godotenv.Load()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(embedder.EnvProvider); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv(embedder.EnvModel); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv(EnvCategoriesPath); v != "" {
		c.Categories.Path = v
	}
	if v := os.Getenv(EnvProfilePath); v != "" {
		c.Categories.ProfilePath = v
	}
	if v := os.Getenv(EnvPGDSN); v != "" {
		c.PGVector.DSN = v
		c.PGVector.Enabled = true
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvSearchLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvSearchLimit, err)
		}
		c.Search.Limit = n
	}
	if v := os.Getenv(EnvVectorTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvVectorTimeout, err)
		}
		c.Search.VectorTimeout = d
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = embedder.DetectProvider()
	}
	c.Embedding.Provider = strings.ToLower(c.Embedding.Provider)
	if c.Embedding.APIKey == "" {
		switch c.Embedding.Provider {
		case embedder.ProviderJina:
			c.Embedding.APIKey = os.Getenv(embedder.EnvJinaAPIKey)
		case embedder.ProviderOpenAI:
			c.Embedding.APIKey = os.Getenv(embedder.EnvOpenAIAPIKey)
		}
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == embedder.ProviderOllama {
		c.Embedding.BaseURL = os.Getenv(embedder.EnvOllamaHost)
	}
	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}
	if err := c.Search.Params().Validate(); err != nil {
		return fmt.Errorf("%w: search: %w", ErrInvalidConfig, err)
	}
	if c.Lexical.K1 < 0 || c.Lexical.B < 0 || c.Lexical.B > 1 {
		return fmt.Errorf("%w: lexical k1 must be >= 0 and b in [0,1]", ErrInvalidConfig)
	}
	if c.Lexical.ShardSize < 1 {
		return fmt.Errorf("%w: lexical shard size must be >= 1", ErrInvalidConfig)
	}
	if c.Embedding.Dimension < 0 || c.Embedding.CacheSize < 0 {
		return fmt.Errorf("%w: embedding dimension and cache size cannot be negative", ErrInvalidConfig)
	}
	if c.PGVector.Enabled && c.PGVector.DSN == "" {
		return fmt.Errorf("%w: pgvector enabled without a dsn", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Params converts the section to searcher parameters
func (s SearchConfig) Params() searcher.Params {
	return searcher.Params{
		Limit:                s.Limit,
		LexicalWeight:        s.LexicalWeight,
		VectorWeight:         s.VectorWeight,
		EnableCategoryWeight: s.EnableCategoryWeight,
		ScoreThreshold:       s.ScoreThreshold,
		VectorTimeout:        s.VectorTimeout,
		CandidateMultiplier:  s.CandidateMultiplier,
		PreferChunk:          types.ChunkType(s.PreferChunk),
	}
}

// EmbedderConfig converts the section for embedder.New
func (e EmbeddingConfig) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  e.Provider,
		Model:     e.Model,
		APIKey:    e.APIKey,
		BaseURL:   e.BaseURL,
		Dimension: e.Dimension,
		CacheSize: e.CacheSize,
	}
}

// Options builds lexical options. The caller releases Options.Pool when
// it is not nil.
func (l LexicalConfig) Options() (lexical.Options, error) {
	opts := lexical.Options{K1: l.K1, B: l.B, ShardSize: l.ShardSize}
	if l.Workers < 0 {
		return opts, nil
	}
	pool, err := lexical.NewPool(l.Workers)
	if err != nil {
		return opts, err
	}
	opts.Pool = pool
	return opts, nil
}

// Table loads the category table
func (c CategoriesConfig) Table() (*category.Table, error) {
	if c.Path == "" {
		return category.Default(), nil
	}
	return category.LoadFile(c.Path)
}

// Chunker builds the chunker from the configured profile
func (c CategoriesConfig) Chunker() (*chunker.Chunker, error) {
	if c.ProfilePath == "" {
		return chunker.New(), nil
	}
	p, err := chunker.LoadProfile(c.ProfilePath)
	if err != nil {
		return nil, err
	}
	return chunker.NewWithProfile(p), nil
}

// LoggingConfig converts the section for logging.New
func (l LogConfig) LoggingConfig(service string) logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, Output: l.Output, Service: service}
}

// DBFile returns the database path with a leading ~ expanded and its
// directory created
func (d DatabaseConfig) DBFile() (string, error) {
	path := d.Path
	if path == ":memory:" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return path, nil
}
