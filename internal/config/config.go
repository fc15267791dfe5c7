// Package config holds all scooply configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all scooply configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// SQLite storage
	Database DatabaseConfig `yaml:"database"`

	// Hosted auth platform
	Platform PlatformConfig `yaml:"platform"`

	// Gemini integration
	AI AIConfig `yaml:"ai"`

	// Image blob storage
	Media MediaConfig `yaml:"media"`

	// Cart behavior
	Cart CartConfig `yaml:"cart"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PlatformConfig configures the hosted backend platform that owns
// authentication. Tokens are verified against it, never minted locally.
type PlatformConfig struct {
	BaseURL        string `yaml:"base_url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	VerifyTimeout  string `yaml:"verify_timeout"`
	CacheTTL       string `yaml:"cache_ttl"`
}

// AIConfig configures the Gemini analyzer and embedding engine.
type AIConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	DownloadTimeout string `yaml:"download_timeout"`
	Enabled         bool   `yaml:"enabled"`
}

// MediaConfig configures the image blob store.
type MediaConfig struct {
	Dir           string `yaml:"dir"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// CartConfig configures cart behavior.
type CartConfig struct {
	MaxItemQuantity int64  `yaml:"max_item_quantity"`
	GuestTTL        string `yaml:"guest_ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "scooply",
		Version: "1.0.0",

		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
			PublicBaseURL:   "http://localhost:8090",
		},

		Database: DatabaseConfig{
			Path: "data/scooply.db",
		},

		Platform: PlatformConfig{
			BaseURL:       "http://localhost:54321",
			VerifyTimeout: "10s",
			CacheTTL:      "5m",
		},

		AI: AIConfig{
			Model:           "gemini-2.5-flash",
			EmbeddingModel:  "gemini-embedding-001",
			DownloadTimeout: "20s",
			Enabled:         true,
		},

		Media: MediaConfig{
			Dir:           "data/media",
			MaxUploadSize: 8 << 20, // 8 MiB
		},

		Cart: CartConfig{
			MaxItemQuantity: 99,
			GuestTTL:        "720h", // 30 days
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "scooply.log",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.AI.APIKey = key
	}
	if url := os.Getenv("PLATFORM_URL"); url != "" {
		c.Platform.BaseURL = url
	}
	if key := os.Getenv("PLATFORM_SERVICE_KEY"); key != "" {
		c.Platform.ServiceRoleKey = key
	}
	if addr := os.Getenv("SCOOPLY_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("SCOOPLY_DB"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("SCOOPLY_MEDIA_DIR"); dir != "" {
		c.Media.Dir = dir
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetVerifyTimeout returns the auth verification timeout as a duration.
func (c *Config) GetVerifyTimeout() time.Duration {
	return parseDuration(c.Platform.VerifyTimeout, 10*time.Second)
}

// GetAuthCacheTTL returns the identity cache TTL as a duration.
func (c *Config) GetAuthCacheTTL() time.Duration {
	return parseDuration(c.Platform.CacheTTL, 5*time.Minute)
}

// GetDownloadTimeout returns the image download timeout as a duration.
func (c *Config) GetDownloadTimeout() time.Duration {
	return parseDuration(c.AI.DownloadTimeout, 20*time.Second)
}

// GetGuestCartTTL returns how long a guest cart lives before the sweep
// removes it.
func (c *Config) GetGuestCartTTL() time.Duration {
	return parseDuration(c.Cart.GuestTTL, 720*time.Hour)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address not configured")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path not configured")
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform base URL not configured (set PLATFORM_URL)")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("AI enabled but no API key configured (set GEMINI_API_KEY)")
	}
	if c.Cart.MaxItemQuantity <= 0 {
		return fmt.Errorf("cart max item quantity must be positive")
	}
	return nil
}
