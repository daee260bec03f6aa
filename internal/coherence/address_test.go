package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeometryValidate(t *testing.T) {
	g := Geometry{SetBits: 2, Assoc: 2, BlockBits: 5}
	require.NoError(t, g.Validate())

	bad := Geometry{SetBits: 20, Assoc: 2, BlockBits: 20}
	require.Error(t, bad.Validate())
}

func TestGeometryDecode(t *testing.T) {
	g := Geometry{SetBits: 2, Assoc: 2, BlockBits: 5}
	require.Equal(t, 4, g.NumSets())
	require.Equal(t, 32, g.BlockSize())

	// addr = 0b...tag... setidx(2 bits) blockoffset(5 bits)
	addr := uint32(0x1<<7 | 0x2<<5 | 0x3)
	tag, set, off := g.Decode(addr)
	require.Equal(t, uint32(0x1), tag)
	require.Equal(t, uint32(0x2), set)
	require.Equal(t, uint32(0x3), off)
}
