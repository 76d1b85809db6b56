package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaio/stylist/persistence"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 512, cfg.Catalog.Dimension)
	assert.Equal(t, persistence.StoreTypeMemory, cfg.Persistence.Type)
	assert.Equal(t, float32(0.6), cfg.Fusion.TextWeight)
	assert.Equal(t, float32(0.4), cfg.Fusion.ImageWeight)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stylist.yml")
	content := `
server:
  port: 9090
catalog:
  csv_path: /data/products.csv
  dimension: 768
persistence:
  type: bolt
  path: /data/stylist.db
fusion:
  text_weight: 0.7
  image_weight: 0.3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/data/products.csv", cfg.Catalog.CSVPath)
	assert.Equal(t, 768, cfg.Catalog.Dimension)
	assert.Equal(t, persistence.StoreTypeBolt, cfg.Persistence.Type)
	assert.Equal(t, float32(0.7), cfg.Fusion.TextWeight)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 2000, cfg.Index.ScanThreshold)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STYLIST_PORT", "7070")
	t.Setenv("STYLIST_CATALOG_CSV", "/env/products.csv")
	t.Setenv("STYLIST_PERSISTENCE_BACKEND", "badger")
	t.Setenv("STYLIST_PERSISTENCE_PATH", "/env/badger")
	t.Setenv("STYLIST_EMBEDDER_API_KEY", "embed-key")
	t.Setenv("STYLIST_TRYON_BASE_URL", "https://tryon.example")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/env/products.csv", cfg.Catalog.CSVPath)
	assert.Equal(t, persistence.StoreTypeBadger, cfg.Persistence.Type)
	assert.Equal(t, "/env/badger", cfg.Persistence.Path)
	assert.Equal(t, "embed-key", cfg.Collaborators.Embedder.APIKey)
	assert.Equal(t, "https://tryon.example", cfg.Collaborators.TryOn.BaseURL)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad dimension", func(c *Config) { c.Catalog.Dimension = -1 }},
		{"bolt without path", func(c *Config) {
			c.Persistence.Type = persistence.StoreTypeBolt
			c.Persistence.Path = ""
		}},
		{"negative fusion weight", func(c *Config) { c.Fusion.TextWeight = -0.1 }},
		{"zero fusion weights", func(c *Config) {
			c.Fusion.TextWeight = 0
			c.Fusion.ImageWeight = 0
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
