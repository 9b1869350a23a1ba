package duckbot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dresos/duckbot/guard"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	if cfg.OwnerID == 0 {
		return fmt.Errorf("owner_id is required")
	}

	switch cfg.Blacklist.Backend {
	case BackendMemory, "":
	case BackendSQLite:
	case BackendPostgres, BackendRedis:
		if cfg.Blacklist.DSN == "" {
			return fmt.Errorf("blacklist backend %q requires a dsn", cfg.Blacklist.Backend)
		}
	default:
		return fmt.Errorf("unknown blacklist backend: %q", cfg.Blacklist.Backend)
	}

	if cfg.Search.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Search.Timeout); err != nil {
			return fmt.Errorf("invalid search timeout %q: %w", cfg.Search.Timeout, err)
		}
	}
	if cfg.Search.Retry.BackoffBase != "" {
		if _, err := time.ParseDuration(cfg.Search.Retry.BackoffBase); err != nil {
			return fmt.Errorf("invalid retry backoff base %q: %w", cfg.Search.Retry.BackoffBase, err)
		}
	}
	if cfg.Search.Retry.Attempts < 0 || cfg.Search.Retry.Attempts > 10 {
		return fmt.Errorf("retry attempts must be between 0 and 10, got %d", cfg.Search.Retry.Attempts)
	}
	if cfg.Search.RateLimit.PerSecond < 0 || cfg.Search.RateLimit.Burst < 0 {
		return fmt.Errorf("search rate limit values must not be negative")
	}
	if cfg.WarnThreshold < 0 {
		return fmt.Errorf("warn_threshold must not be negative")
	}

	switch cfg.Audit.Backend {
	case AuditNone, AuditSQLite:
	case AuditPostgres:
		if cfg.Audit.DSN == "" {
			return fmt.Errorf("audit backend %q requires a dsn", cfg.Audit.Backend)
		}
	default:
		return fmt.Errorf("unknown audit backend: %q", cfg.Audit.Backend)
	}

	for _, fc := range cfg.Filters {
		if fc.Name == "" {
			return fmt.Errorf("filter entries require a name")
		}
	}
	return nil
}

// LoadFilters builds the guard chain from the configuration. With no filter
// entries the built-in ip-query filter is enabled by default, so a bare
// config still refuses IP-disclosure queries.
func LoadFilters(cfg Config) (*guard.Chain, error) {
	chain := guard.NewChain()

	entries := cfg.Filters
	if len(entries) == 0 {
		entries = []FilterConfig{{Name: "ip-query", Enabled: true}}
	}

	for _, fc := range entries {
		if !fc.Enabled {
			continue
		}
		factory, ok := guard.GetFactory(fc.Name)
		if !ok {
			return nil, fmt.Errorf("unknown filter: %s", fc.Name)
		}
		f := factory()
		if err := f.Init(fc.Config); err != nil {
			return nil, fmt.Errorf("filter %s init failed: %w", fc.Name, err)
		}
		chain.Add(f)
	}
	return chain, nil
}
