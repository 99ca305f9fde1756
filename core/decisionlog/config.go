package decisionlog

import "fmt"

// Config defines settings for the decision log.
type Config struct {
	// Backend selects the store: "jsonl", "sqlite" or "none".
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "none" {
		c.Path = "recommendations.jsonl"
		if c.Backend == "sqlite" {
			c.Path = "recommendations.db"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("decision_log: path is required")
		}
	case "none":
	default:
		return fmt.Errorf("decision_log: unknown backend %s", c.Backend)
	}
	return nil
}

// Open returns the configured store.
func Open(c Config) (Store, error) {
	switch c.Backend {
	case "jsonl":
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	case "none", "":
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("decision_log: unknown backend %s", c.Backend)
}
