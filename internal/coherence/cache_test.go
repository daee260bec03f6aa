package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/mesisim/internal/bus"
	"github.com/example/mesisim/internal/hooks"
)

func geom() Geometry {
	return Geometry{SetBits: 1, Assoc: 2, BlockBits: 2} // block size 4, 2 sets, 2-way
}

func TestColdReadNoSharing(t *testing.T) {
	c0 := New(0, geom(), nil)

	res := c0.Request(Read, 0x00000000, nil, 0)
	require.False(t, res.Hit)
	require.Equal(t, bus.Read, res.Transaction)
	require.Equal(t, 101, res.ExecCycles)
	require.Equal(t, Exclusive, res.State)
	require.Equal(t, 4, res.Bytes)
	require.Zero(t, c0.Stats().Invalidations)
}

func TestSecondReaderInducesShared(t *testing.T) {
	c0, c1 := New(0, geom(), nil), New(1, geom(), nil)
	c0.Request(Read, 0x0, nil, 0)

	res := c1.Request(Read, 0x0, []*Cache{c0}, 0)
	require.False(t, res.Hit)
	require.Equal(t, bus.Read, res.Transaction)
	require.Equal(t, 3, res.ExecCycles) // 2*1+1
	require.Equal(t, Shared, res.State)
	require.Equal(t, 4, res.Bytes)
	require.Equal(t, Shared, c0.GetState(0x0))
	require.Equal(t, Shared, c1.GetState(0x0))
	require.Zero(t, c0.Stats().Invalidations+c1.Stats().Invalidations)
}

func TestWriteOnSharedInducesInvalidation(t *testing.T) {
	c0, c1 := New(0, geom(), nil), New(1, geom(), nil)
	c0.Request(Read, 0x0, nil, 0)
	c1.Request(Read, 0x0, []*Cache{c0}, 0)

	res := c0.Request(Write, 0x0, []*Cache{c1}, 0)
	require.True(t, res.Hit)
	require.Equal(t, bus.Upgrade, res.Transaction)
	require.Equal(t, 1, res.ExecCycles)
	require.Equal(t, Modified, res.State)
	require.Equal(t, 4, res.Bytes)
	require.Equal(t, 1, c1.Stats().Invalidations)
	require.Equal(t, Invalid, c1.GetState(0x0))
}

func TestWriteMissWithRemoteModified(t *testing.T) {
	c0, c2 := New(0, geom(), nil), New(2, geom(), nil)
	c0.Request(Read, 0x0, nil, 0)
	c0.Request(Write, 0x0, nil, 0) // silent E->M upgrade, no others

	res := c2.Request(Write, 0x0, []*Cache{c0}, 0)
	require.False(t, res.Hit)
	require.Equal(t, bus.ReadExclusive, res.Transaction)
	require.Equal(t, 201, res.ExecCycles) // 100+1 + 100 dirty flush
	require.Equal(t, Modified, res.State)
	require.Equal(t, 1, c0.Stats().Invalidations)
	require.Equal(t, Invalid, c0.GetState(0x0))
	require.Equal(t, 1, c0.Stats().Writebacks)
	require.Equal(t, 12, res.Bytes) // invalidation msg + dirty data + memory fetch
}

func TestReadSnoopOnModifiedSupplierRecordsWriteback(t *testing.T) {
	c0, c1 := New(0, geom(), nil), New(1, geom(), nil)
	c0.Request(Read, 0x0, nil, 0)
	c0.Request(Write, 0x0, nil, 0) // silent E->M upgrade, no others

	res := c1.Request(Read, 0x0, []*Cache{c0}, 0)
	require.False(t, res.Hit)
	require.Equal(t, Shared, res.State)
	require.Equal(t, Shared, c0.GetState(0x0)) // demoted by the snoop
	require.Equal(t, 1, c0.Stats().Writebacks)
	require.Equal(t, 8, res.Bytes) // dirty writeback data + c2c transfer
}

func TestLRUEvictionOfModified(t *testing.T) {
	c0 := New(0, geom(), nil)
	c0.Request(Write, 0x00000000, nil, 0)        // set 0, way 0
	c0.Request(Write, 0x00000010, nil, 0)        // set 0, way 1 (fills the set)
	res := c0.Request(Write, 0x00000020, nil, 0) // set 0, evicts the LRU victim (Modified)

	require.Equal(t, 1, c0.Stats().Writebacks)
	require.Equal(t, 1, c0.Stats().Evictions)
	require.Equal(t, 201, res.ExecCycles) // 100+1 base + 100 writeback penalty
}

func TestBlockSizeOneStillChargesOneExecCycle(t *testing.T) {
	c0, c1 := New(0, Geometry{SetBits: 1, Assoc: 2, BlockBits: 0}, nil), New(1, Geometry{SetBits: 1, Assoc: 2, BlockBits: 0}, nil)
	c0.Request(Read, 0x0, nil, 0)
	res := c1.Request(Read, 0x0, []*Cache{c0}, 0)
	require.Equal(t, 1, res.ExecCycles) // 2*(1/4) = 0, floor division, +1 execute
}

func TestIdempotentReadsAfterFirstMiss(t *testing.T) {
	c0 := New(0, geom(), nil)
	first := c0.Request(Read, 0x0, nil, 0)
	require.False(t, first.Hit)

	for i := 0; i < 5; i++ {
		res := c0.Request(Read, 0x0, nil, 0)
		require.True(t, res.Hit)
		require.Equal(t, 1, res.ExecCycles)
	}
}

func TestInvalidTransitionPanics(t *testing.T) {
	c0 := New(0, geom(), nil)
	set := c0.sets[0]
	set.lines[0] = cacheLine{valid: true, tag: 0, state: Invalid, lruStamp: 1}

	require.PanicsWithValue(t, ErrInvalidTransition, func() {
		c0.serviceHit(set, 0, Write, 0x0, nil, 0)
	})
}

func TestDebugDumpReportsLineState(t *testing.T) {
	c0 := New(0, geom(), nil)
	c0.Request(Read, 0x0, nil, 0)

	dump := c0.DebugDump()
	require.Contains(t, dump, "core 0")
	require.Contains(t, dump, "state=E")
}

func TestHitsPlusMissesEqualsReadsPlusWrites(t *testing.T) {
	c0 := New(0, geom(), nil)
	c0.Request(Read, 0x0, nil, 0)
	c0.Request(Read, 0x0, nil, 0)
	c0.Request(Write, 0x10, nil, 0)

	st := c0.Stats()
	require.Equal(t, st.Reads+st.Writes, st.Hits+st.Misses)
}

func TestTransitionHookFiresOnMissAndSnoopedInvalidation(t *testing.T) {
	hb := hooks.New()
	var events []hooks.TransitionEvent
	hb.OnTransition(func(ev hooks.TransitionEvent) { events = append(events, ev) })

	c0, c1 := New(0, geom(), hb), New(1, geom(), hb)
	c0.Request(Read, 0x0, nil, 1) // I -> E
	c1.Request(Write, 0x0, []*Cache{c0}, 2)

	require.Len(t, events, 3)
	require.Equal(t, "I", events[0].From)
	require.Equal(t, "E", events[0].To) // c0's cold read miss
	require.Equal(t, "E", events[1].From)
	require.Equal(t, "I", events[1].To) // c0's line snooped-invalidated by c1's write miss
	require.Equal(t, "I", events[2].From)
	require.Equal(t, "M", events[2].To) // c1's own write miss
}
