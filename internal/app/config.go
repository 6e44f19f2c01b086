package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SchemasPath  string // hcl manifests
	StackPath    string // hcl declarations
	DefaultsPath string // yaml tier defaults, optional

	Tier    string
	OutPath string
	Format  string // "hcl" or "json"
	Tree    bool

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.SchemasPath == "" {
		return nil, errors.New("SchemasPath is a required configuration field and cannot be empty")
	}
	if cfg.StackPath == "" {
		return nil, errors.New("StackPath is a required configuration field and cannot be empty")
	}
	if cfg.Format == "" {
		cfg.Format = "hcl"
	}
	if cfg.Format != "hcl" && cfg.Format != "json" {
		return nil, fmt.Errorf("Format must be %q or %q, got %q", "hcl", "json", cfg.Format)
	}
	if cfg.Tier == "" {
		cfg.Tier = "development"
	}

	return &cfg, nil
}
