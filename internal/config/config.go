package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/fields"
)

// Config holds the popolodex API configuration.
type Config struct {
	HTTP        HTTPConfig                  `yaml:"http"`
	Database    DatabaseConfig              `yaml:"database"`
	Search      SearchConfig                `yaml:"search"`
	Index       IndexConfig                 `yaml:"index"`
	Timeouts    TimeoutsConfig              `yaml:"timeouts"`
	API         APIConfig                   `yaml:"api"`
	Images      ImagesConfig                `yaml:"images"`
	Collections map[string]CollectionConfig `yaml:"collections"`
	Logging     LoggingConfig               `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds document store settings.
type DatabaseConfig struct {
	URI              string `yaml:"uri"`
	Name             string `yaml:"name"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds search engine connection settings.
type SearchConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds reindex, retry and pagination settings.
type IndexConfig struct {
	Name               string `yaml:"name"` // default: database.name
	BatchSize          int    `yaml:"batch_size"`
	ReindexConcurrency int    `yaml:"reindex_concurrency"`
	RetryMaxTries      int    `yaml:"retry_max_tries"`
	RetryIntervalMs    int    `yaml:"retry_interval_ms"`
	DefaultPageSize    int    `yaml:"default_page_size"`
	MaxPageSize        int    `yaml:"max_page_size"`
}

// TimeoutsConfig holds per-call timeouts in milliseconds.
type TimeoutsConfig struct {
	StoreMs     int `yaml:"store_ms"`
	SearchMs    int `yaml:"search_ms"`
	IndexHookMs int `yaml:"index_hook_ms"`
}

// APIConfig holds URL bases for generated links.
type APIConfig struct {
	BaseURL      string `yaml:"base_url"`      // image url base
	APIBaseURL   string `yaml:"api_base_url"`  // url/html_url base, image fallback
	InstanceName string `yaml:"instance_name"` // export filename prefix
}

// ImagesConfig holds the local image store settings.
type ImagesConfig struct {
	Dir string `yaml:"dir"`
}

// CollectionConfig holds per-collection settings.
type CollectionConfig struct {
	DefaultLanguage string         `yaml:"default_language"`
	Index           string         `yaml:"index"`
	Type            string         `yaml:"type"`
	Fields          map[string]any `yaml:"fields"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.Driver == "" {
		c.Search.Driver = "redis"
	}
	if c.Search.ReadinessTimeout <= 0 {
		c.Search.ReadinessTimeout = 10
	}
	if c.Index.Name == "" {
		c.Index.Name = c.Database.Name
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 2000
	}
	if c.Index.ReindexConcurrency <= 0 {
		c.Index.ReindexConcurrency = 4
	}
	if c.Index.RetryMaxTries <= 0 {
		c.Index.RetryMaxTries = 3
	}
	if c.Index.RetryIntervalMs <= 0 {
		c.Index.RetryIntervalMs = 200
	}
	if c.Index.DefaultPageSize <= 0 {
		c.Index.DefaultPageSize = 30
	}
	if c.Index.MaxPageSize <= 0 {
		c.Index.MaxPageSize = 200
	}
	if c.Timeouts.StoreMs <= 0 {
		c.Timeouts.StoreMs = 5000
	}
	if c.Timeouts.SearchMs <= 0 {
		c.Timeouts.SearchMs = 5000
	}
	if c.Timeouts.IndexHookMs <= 0 {
		c.Timeouts.IndexHookMs = 10000
	}
	if c.Images.Dir == "" {
		c.Images.Dir = "files"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.URI == "" {
		return fmt.Errorf("database.uri is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Search.Driver != "redis" && c.Search.Driver != "valkey" {
		return fmt.Errorf("search.driver must be \"redis\" or \"valkey\", got %q", c.Search.Driver)
	}
	if len(c.Search.Addrs) == 0 {
		return fmt.Errorf("search.addrs is required")
	}
	if c.Index.DefaultPageSize > c.Index.MaxPageSize {
		return fmt.Errorf("index.default_page_size (%d) exceeds index.max_page_size (%d)",
			c.Index.DefaultPageSize, c.Index.MaxPageSize)
	}
	for name, col := range c.Collections {
		if (col.Index == "") != (col.Type == "") {
			return fmt.Errorf("collections.%s: index and type must be set together", name)
		}
	}
	return nil
}

// Registry builds the collection registry from the collections section.
// Known collections without an entry keep their defaults.
func (c *Config) Registry() (*collection.Registry, error) {
	cols := make([]collection.Collection, 0, len(c.Collections))
	for name, cc := range c.Collections {
		opts := []collection.Option{collection.WithDefaultLanguage(cc.DefaultLanguage)}
		if cc.Index != "" {
			opts = append(opts, collection.WithIndex(cc.Index, cc.Type))
		}
		if len(cc.Fields) > 0 {
			opts = append(opts, collection.WithFields(fields.Spec(cc.Fields)))
		}
		col, err := collection.New(name, opts...)
		if err != nil {
			return nil, fmt.Errorf("collections.%s: %w", name, err)
		}
		cols = append(cols, col)
	}
	return collection.NewRegistry(cols...), nil
}

// Duration converts a millisecond setting.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
