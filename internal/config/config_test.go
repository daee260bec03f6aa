package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/mesisim/internal/coherence"
)

func TestValidateDefaultsNumCores(t *testing.T) {
	cfg := &Config{TracePrefix: "t", Geometry: coherence.Geometry{SetBits: 1, Assoc: 2, BlockBits: 2}}
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultNumCores, cfg.NumCores)
}

func TestValidateRejectsEmptyPrefix(t *testing.T) {
	cfg := &Config{Geometry: coherence.Geometry{Assoc: 2}}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsNonPositiveAssoc(t *testing.T) {
	cfg := &Config{TracePrefix: "t", Geometry: coherence.Geometry{SetBits: 1, Assoc: 0, BlockBits: 2}}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsOversizedGeometry(t *testing.T) {
	cfg := &Config{TracePrefix: "t", Geometry: coherence.Geometry{SetBits: 20, Assoc: 2, BlockBits: 20}}
	require.Error(t, Validate(cfg))
}

func TestValidateNilConfig(t *testing.T) {
	require.Error(t, Validate(nil))
}
