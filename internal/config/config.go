package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Provider    ProviderConfig            `json:"provider" yaml:"provider"`
	Upload      UploadConfig              `json:"upload" yaml:"upload"`
	Feedback    FeedbackConfig            `json:"feedback" yaml:"feedback"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Log         LogConfig                 `json:"log" yaml:"log"`
	Client      ClientConfig              `json:"client" yaml:"client"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address"`
}

// ProviderConfig selects the capability provider. Name is one of
// mock, openai, claude, gemini.
type ProviderConfig struct {
	Name           string `json:"name" yaml:"name"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Model          string `json:"model" yaml:"model"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxTokens      int    `json:"max_tokens" yaml:"max_tokens"`
	WebSearch      bool   `json:"web_search" yaml:"web_search"`
}

type UploadConfig struct {
	Dir                  string   `json:"dir" yaml:"dir"`
	MaxBytes             int64    `json:"max_bytes" yaml:"max_bytes"`
	MaxConcurrent        int64    `json:"max_concurrent" yaml:"max_concurrent"`
	AcceptedTypes        []string `json:"accepted_types" yaml:"accepted_types"`
	TTLMinutes           int      `json:"ttl_minutes" yaml:"ttl_minutes"`
	CleanIntervalMinutes int      `json:"clean_interval_minutes" yaml:"clean_interval_minutes"`
}

// FeedbackConfig picks the append-only store: memory, file, sqlite3, mysql or redis.
type FeedbackConfig struct {
	Backend   string `json:"backend" yaml:"backend"`
	Path      string `json:"path" yaml:"path"`
	StreamKey string `json:"stream_key" yaml:"stream_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

// ClientConfig drives the resilient client used by the submit command.
type ClientConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

const (
	DefaultServerAddress   = ":8000"
	DefaultUploadDir       = "./data/uploads"
	DefaultMaxUploadBytes  = 10 << 20
	DefaultMaxConcurrent   = 8
	DefaultProviderTimeout = 30 * time.Second
	DefaultClientTimeout   = 10 * time.Second
	DefaultTTL             = 24 * time.Hour
	DefaultCleanInterval   = time.Hour
)

// Default returns a configuration usable without any file: mock provider,
// in-memory feedback, uploads under ./data/uploads.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error. YAML is used for .yaml/.yml files,
// JSON otherwise. SMARTSDLC_* environment variables override file values.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, data, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base := filepath.Dir(absPath)
	cfg.Upload.Dir = resolve(base, cfg.Upload.Dir)
	if cfg.Feedback.Path != "" {
		cfg.Feedback.Path = resolve(base, cfg.Feedback.Path)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = resolve(base, cfg.Log.File)
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (c *Config) applyEnv() {
	envStr("SMARTSDLC_ADDR", &c.BasicConfig.ServerAddress)
	envStr("SMARTSDLC_PROVIDER", &c.Provider.Name)
	envStr("SMARTSDLC_PROVIDER_BASE_URL", &c.Provider.BaseURL)
	envStr("SMARTSDLC_PROVIDER_MODEL", &c.Provider.Model)
	envStr("SMARTSDLC_PROVIDER_API_KEY", &c.Provider.APIKey)
	envInt("SMARTSDLC_PROVIDER_TIMEOUT_SECONDS", &c.Provider.TimeoutSeconds)
	envStr("SMARTSDLC_UPLOAD_DIR", &c.Upload.Dir)
	if v, ok := os.LookupEnv("SMARTSDLC_UPLOAD_MAX_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Upload.MaxBytes = n
		}
	}
	envStr("SMARTSDLC_FEEDBACK_BACKEND", &c.Feedback.Backend)
	envStr("SMARTSDLC_FEEDBACK_PATH", &c.Feedback.Path)
	envStr("SMARTSDLC_LOG_LEVEL", &c.Log.Level)
	envStr("SMARTSDLC_LOG_FILE", &c.Log.File)
	envStr("SMARTSDLC_CLIENT_BASE_URL", &c.Client.BaseURL)
	envInt("SMARTSDLC_CLIENT_TIMEOUT_SECONDS", &c.Client.TimeoutSeconds)
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "mock"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = DefaultUploadDir
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = DefaultMaxUploadBytes
	}
	if c.Upload.MaxConcurrent <= 0 {
		c.Upload.MaxConcurrent = DefaultMaxConcurrent
	}
	if len(c.Upload.AcceptedTypes) == 0 {
		c.Upload.AcceptedTypes = []string{"application/pdf"}
	}
	if c.Feedback.Backend == "" {
		c.Feedback.Backend = "memory"
	}
	if c.Feedback.StreamKey == "" {
		c.Feedback.StreamKey = "smartsdlc:feedback"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8000"
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Feedback.Backend) {
	case "memory", "redis":
	case "file":
		if c.Feedback.Path == "" {
			return fmt.Errorf("feedback.path must be configured for the file backend")
		}
	case "sqlite", "sqlite3", "mysql":
		if _, ok := c.Databases[c.Feedback.Backend]; !ok {
			return fmt.Errorf("database config for %s not found", c.Feedback.Backend)
		}
	default:
		return fmt.Errorf("unsupported feedback backend: %s", c.Feedback.Backend)
	}
	return nil
}

// ProviderTimeout is the deadline the gateway imposes on each provider call.
func (c *Config) ProviderTimeout() time.Duration {
	if c.Provider.TimeoutSeconds <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// ClientTimeout bounds the live attempt of the resilient client.
func (c *Config) ClientTimeout() time.Duration {
	if c.Client.TimeoutSeconds <= 0 {
		return DefaultClientTimeout
	}
	return time.Duration(c.Client.TimeoutSeconds) * time.Second
}

func (c *Config) UploadTTL() time.Duration {
	if c.Upload.TTLMinutes <= 0 {
		return DefaultTTL
	}
	return time.Duration(c.Upload.TTLMinutes) * time.Minute
}

func (c *Config) UploadCleanInterval() time.Duration {
	if c.Upload.CleanIntervalMinutes <= 0 {
		return DefaultCleanInterval
	}
	return time.Duration(c.Upload.CleanIntervalMinutes) * time.Minute
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
