// Package config loads and validates the server configuration with the
// precedence: flags, environment variables, config file, defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modaio/stylist/agent"
	"github.com/modaio/stylist/collab"
	"github.com/modaio/stylist/fusion"
	"github.com/modaio/stylist/index"
	"github.com/modaio/stylist/persistence"
	"github.com/modaio/stylist/session"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`

	// Catalog points at the product CSV ingested on first start.
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	Persistence persistence.Config  `yaml:"persistence" json:"persistence"`
	Index       index.CatalogConfig `yaml:"index" json:"index"`
	Fusion      fusion.Config       `yaml:"fusion" json:"fusion"`
	Session     session.Config      `yaml:"session" json:"session"`
	Agent       agent.Config        `yaml:"agent" json:"agent"`

	Collaborators CollaboratorsConfig `yaml:"collaborators" json:"collaborators"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// MaxUploadBytes caps multipart bodies (images, audio).
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes"`
}

// CatalogConfig locates the catalog source.
type CatalogConfig struct {
	CSVPath   string `yaml:"csv_path" json:"csv_path"`
	Dimension int    `yaml:"dimension" json:"dimension"`
}

// CollaboratorsConfig groups the external service clients.
type CollaboratorsConfig struct {
	Embedder    collab.EmbedderConfig    `yaml:"embedder" json:"embedder"`
	Chat        collab.ChatConfig        `yaml:"chat" json:"chat"`
	Transcriber collab.TranscriberConfig `yaml:"transcriber" json:"transcriber"`
	TryOn       collab.TryOnConfig       `yaml:"tryon" json:"tryon"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Catalog: CatalogConfig{
			Dimension: 512,
		},
		Persistence: persistence.Config{
			Type: persistence.StoreTypeMemory,
		},
		Index:   index.DefaultCatalogConfig(),
		Fusion:  fusion.DefaultConfig(),
		Session: session.DefaultConfig(),
		Agent:   agent.DefaultConfig(),
		Collaborators: CollaboratorsConfig{
			Embedder:    collab.DefaultEmbedderConfig(),
			Chat:        collab.DefaultChatConfig(),
			Transcriber: collab.DefaultTranscriberConfig(),
			TryOn:       collab.DefaultTryOnConfig(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file merged over defaults, then
// applies environment overrides and validates.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath = filepath.Join(homeDir, ".stylist.yml")
		}
	}

	if configPath != "" {
		if err := loadConfigFromFile(configPath, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	loadConfigFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadConfigFromFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadConfigFromEnv(cfg *Config) {
	if host := os.Getenv("STYLIST_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("STYLIST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p < 65536 {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("STYLIST_CATALOG_CSV"); path != "" {
		cfg.Catalog.CSVPath = path
	}
	if backend := os.Getenv("STYLIST_PERSISTENCE_BACKEND"); backend != "" {
		cfg.Persistence.Type = persistence.StoreType(backend)
	}
	if path := os.Getenv("STYLIST_PERSISTENCE_PATH"); path != "" {
		cfg.Persistence.Path = path
	}
	if key := os.Getenv("STYLIST_EMBEDDER_API_KEY"); key != "" {
		cfg.Collaborators.Embedder.APIKey = key
	}
	if url := os.Getenv("STYLIST_EMBEDDER_BASE_URL"); url != "" {
		cfg.Collaborators.Embedder.BaseURL = url
	}
	if key := os.Getenv("STYLIST_CHAT_API_KEY"); key != "" {
		cfg.Collaborators.Chat.APIKey = key
	}
	if key := os.Getenv("STYLIST_TRANSCRIBER_API_KEY"); key != "" {
		cfg.Collaborators.Transcriber.APIKey = key
	}
	if key := os.Getenv("STYLIST_TRYON_API_KEY"); key != "" {
		cfg.Collaborators.TryOn.APIKey = key
	}
	if url := os.Getenv("STYLIST_TRYON_BASE_URL"); url != "" {
		cfg.Collaborators.TryOn.BaseURL = url
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Catalog.Dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", c.Catalog.Dimension)
	}
	if err := persistence.ValidateConfig(c.Persistence); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}
	if c.Fusion.TextWeight < 0 || c.Fusion.ImageWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	if c.Fusion.TextWeight == 0 && c.Fusion.ImageWeight == 0 {
		return fmt.Errorf("fusion weights must not both be zero")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl must be non-negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
