package recommend

import (
	"fmt"
	"time"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/scoring"
)

// Config defines engine settings.
type Config struct {
	// ModelDir holds the persisted artifact files.
	ModelDir string `json:"model_dir"`
	Trees    int    `json:"trees"`
	MaxDepth int    `json:"max_depth"`
	Seed     int64  `json:"seed"`
	// MinEligible is the number of eligible bookings required to start a run.
	MinEligible int `json:"min_eligible"`
	// MinSamples is the number of assembled rows required to fit.
	MinSamples int `json:"min_samples"`
	// LabelSource is "keywords" or "rating".
	LabelSource LabelSource `json:"label_source"`
	// FallbackFormula is "rating" or "capacity".
	FallbackFormula Formula        `json:"fallback_formula"`
	DefaultLimit    int            `json:"default_limit"`
	MaxLimit        int            `json:"max_limit"`
	DefaultLocation model.Location `json:"default_location"`
	// Timezone is an IANA name used for hour and weekday features.
	Timezone string `json:"timezone"`
}

// SetDefaults applies defaults to zero fields.
func (c *Config) SetDefaults() {
	if c.ModelDir == "" {
		c.ModelDir = "."
	}
	def := scoring.DefaultForestParams()
	if c.Trees == 0 {
		c.Trees = def.Trees
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	if c.MinEligible == 0 {
		c.MinEligible = 5
	}
	if c.MinSamples == 0 {
		c.MinSamples = 3
	}
	if c.LabelSource == "" {
		c.LabelSource = LabelKeywords
	}
	if c.FallbackFormula == "" {
		c.FallbackFormula = FormulaRating
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 5
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 50
	}
	if c.DefaultLocation == (model.Location{}) {
		c.DefaultLocation = model.DefaultLocation
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if err := c.ForestParams().Validate(); err != nil {
		return err
	}
	if c.MinEligible < 1 || c.MinSamples < 1 {
		return fmt.Errorf("min_eligible and min_samples must be positive")
	}
	if c.MinSamples > c.MinEligible {
		return fmt.Errorf("min_samples (%d) exceeds min_eligible (%d)", c.MinSamples, c.MinEligible)
	}
	switch c.LabelSource {
	case LabelKeywords, LabelRating:
	default:
		return fmt.Errorf("unknown label_source %q", c.LabelSource)
	}
	switch c.FallbackFormula {
	case FormulaRating, FormulaCapacity:
	default:
		return fmt.Errorf("unknown fallback_formula %q", c.FallbackFormula)
	}
	if c.DefaultLimit < 1 || c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("invalid limits: default %d max %d", c.DefaultLimit, c.MaxLimit)
	}
	if !c.DefaultLocation.Valid() {
		return fmt.Errorf("invalid default_location")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// ForestParams maps the settings onto the forest hyperparameters.
func (c Config) ForestParams() scoring.ForestParams {
	p := scoring.DefaultForestParams()
	p.Trees = c.Trees
	p.MaxDepth = c.MaxDepth
	p.Seed = c.Seed
	return p
}

// Limit clamps a requested result size to [1, MaxLimit]. Non-positive
// requests take DefaultLimit.
func (c Config) Limit(requested int) int {
	if requested <= 0 {
		return c.DefaultLimit
	}
	if requested > c.MaxLimit {
		return c.MaxLimit
	}
	return requested
}

// Location returns the configured timezone, or time.Local when it does not
// resolve.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Clock returns a wall clock in the configured timezone.
func (c Config) Clock() func() time.Time {
	loc := c.Location()
	return func() time.Time { return time.Now().In(loc) }
}
