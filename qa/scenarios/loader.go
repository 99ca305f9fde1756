// Package scenarios runs declarative end-to-end recommendation scenarios
// against an in-memory station database.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evreco/infra/stationdb"
)

// RequestDef is one recommendation request and what it must return.
type RequestDef struct {
	Lat         float64  `yaml:"lat"`
	Lng         float64  `yaml:"lng"`
	ChargerType string   `yaml:"charger_type"`
	Limit       int      `yaml:"limit"`
	Expected    Expected `yaml:"expected"`
}

// Expected lists assertions on a result. Zero fields are not checked.
type Expected struct {
	Source         string  `yaml:"source"`
	FallbackReason string  `yaml:"fallback_reason"`
	Count          *int    `yaml:"count"`
	Top            int64   `yaml:"top"`
	Order          []int64 `yaml:"order"`
	Excludes       []int64 `yaml:"excludes"`
}

type Scenario struct {
	Name            string             `yaml:"name"`
	Description     string             `yaml:"description,omitempty"`
	Now             time.Time          `yaml:"now"`
	FallbackFormula string             `yaml:"fallback_formula,omitempty"`
	Fixtures        stationdb.Fixtures `yaml:"fixtures"`
	Train           bool               `yaml:"train"`
	ExpectTrained   bool               `yaml:"expect_trained"`
	Requests        []RequestDef       `yaml:"requests"`
	// Fallbacks is the expected total of the fallback counter after all requests.
	Fallbacks *int `yaml:"fallbacks"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
