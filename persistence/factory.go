package persistence

import (
	"fmt"
)

// StoreType identifies a persistence backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBolt   StoreType = "bolt"
	StoreTypeBadger StoreType = "badger"
)

// Config selects and locates a persistence backend.
type Config struct {
	Type StoreType `yaml:"type" json:"type"`
	Path string    `yaml:"path" json:"path"`
}

// ValidateConfig checks a persistence configuration.
func ValidateConfig(cfg Config) error {
	switch cfg.Type {
	case StoreTypeMemory:
		return nil
	case StoreTypeBolt:
		if cfg.Path == "" {
			return fmt.Errorf("bolt persistence requires a path")
		}
		return nil
	case StoreTypeBadger:
		return nil // empty path means in-memory badger
	default:
		return fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}

// NewStore creates a persistence backend from configuration.
func NewStore(cfg Config) (Store, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeBolt:
		return NewBoltStore(cfg.Path)
	case StoreTypeBadger:
		return NewBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
