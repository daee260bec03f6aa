// Package config validates the simulator's startup configuration, modeled
// on the teacher's config_validator.go.
package config

import (
	"errors"
	"fmt"

	"github.com/example/mesisim/internal/coherence"
)

// Config is everything the CLI gathers before the engine can be built.
type Config struct {
	TracePrefix string
	Geometry    coherence.Geometry
	NumCores    int
	OutputPath  string
	Debug       bool
}

// DefaultNumCores matches the trace format's default quad-core layout
// (spec.md §6).
const DefaultNumCores = 4

// Validate applies the structural checks of spec.md §7(d) and populates
// defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.TracePrefix == "" {
		return errors.New("trace file prefix must not be empty")
	}
	if cfg.NumCores <= 0 {
		cfg.NumCores = DefaultNumCores
	}
	if cfg.Geometry.Assoc <= 0 {
		return fmt.Errorf("associativity (E) must be positive, got %d", cfg.Geometry.Assoc)
	}
	if cfg.Geometry.SetBits+cfg.Geometry.BlockBits > 32 {
		return fmt.Errorf(
			"set-index bits (%d) + block-offset bits (%d) exceed 32",
			cfg.Geometry.SetBits, cfg.Geometry.BlockBits,
		)
	}
	return nil
}
