package coherence

import (
	"fmt"
	"strings"

	"github.com/example/mesisim/internal/bus"
	"github.com/example/mesisim/internal/hooks"
)

// ErrInvalidTransition marks an unreachable combination of state and event in
// the MESI dispatch table — an assertion failure, not a recoverable error
// (spec.md §7(c)).
var ErrInvalidTransition = fmt.Errorf("coherence: impossible MESI transition")

// Stats are the per-core counters the cache itself is responsible for
// updating while it classifies and services requests (spec.md §4.3).
type Stats struct {
	Reads         int
	Writes        int
	Hits          int
	Misses        int
	Evictions     int
	Writebacks    int
	Invalidations int
	DataTraffic   int
}

// Result is what a cache reports back to the engine after processing one
// core request: whether it hit, the line's resulting state, the cycles to
// charge the requester, how long (if at all) the bus transaction holds the
// bus, and the bytes it added to bus traffic.
type Result struct {
	Hit           bool
	State         MESIState
	ExecCycles    int
	BusHoldCycles int
	Bytes         int
	Transaction   bus.Kind
}

// Cache is one core's private, write-back, set-associative L1 cache running
// the MESI protocol.
type Cache struct {
	id   int
	geom Geometry
	sets []*CacheSet

	stamp uint64
	stats Stats
	hooks *hooks.Broker
}

// New builds a cache with all lines invalid. hb may be nil.
func New(id int, geom Geometry, hb *hooks.Broker) *Cache {
	sets := make([]*CacheSet, geom.NumSets())
	for i := range sets {
		sets[i] = newCacheSet(geom.Assoc)
	}
	return &Cache{id: id, geom: geom, sets: sets, hooks: hb}
}

// emitTransition fires the transition hook when from and to differ,
// grounded in the teacher's nil-receiver-safe broker convention.
func (c *Cache) emitTransition(cycle int, addr uint32, from, to MESIState, reason string) {
	if from == to {
		return
	}
	c.hooks.EmitTransition(hooks.TransitionEvent{
		Cycle:   cycle,
		Core:    c.id,
		Address: addr,
		From:    from.String(),
		To:      to.String(),
		Reason:  reason,
	})
}

// ID returns the owning core's id.
func (c *Cache) ID() int { return c.id }

// Stats returns a copy of the cache's accumulated counters.
func (c *Cache) Stats() Stats { return c.stats }

// DebugDump renders every set's line states, grounded in the original
// simulator's Cache::printState — used only for --debug tracing.
func (c *Cache) DebugDump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cache state for core %d:\n", c.id)
	for i, set := range c.sets {
		fmt.Fprintf(&b, "  set %d:\n", i)
		for j, line := range set.lines {
			fmt.Fprintf(&b, "    line %d: valid=%v tag=%d state=%s lruStamp=%d\n",
				j, line.valid, line.tag, line.state, line.lruStamp)
		}
	}
	return b.String()
}

// GetState reports the MESI state of addr in this cache (Invalid if absent).
func (c *Cache) GetState(addr uint32) MESIState {
	tag, setIdx, _ := c.geom.Decode(addr)
	idx, found := c.sets[setIdx].find(tag)
	if !found {
		return Invalid
	}
	return c.sets[setIdx].lines[idx].state
}

// Request classifies and services one core reference, consulting others (the
// engine's shared, non-owning view of every other cache) for snoop
// responses. It implements the transition and cost table of spec.md §4.3.
// cycle is the engine's current global cycle, used only to stamp transition
// hook events.
func (c *Cache) Request(op Op, addr uint32, others []*Cache, cycle int) Result {
	tag, setIdx, _ := c.geom.Decode(addr)
	set := c.sets[setIdx]
	idx, hit := set.find(tag)

	if op == Read {
		c.stats.Reads++
	} else {
		c.stats.Writes++
	}

	if hit {
		return c.serviceHit(set, idx, op, addr, others, cycle)
	}
	return c.serviceMiss(set, tag, op, addr, others, cycle)
}

func (c *Cache) serviceHit(set *CacheSet, idx int, op Op, addr uint32, others []*Cache, cycle int) Result {
	c.stats.Hits++
	line := &set.lines[idx]
	from := line.state

	switch {
	case op == Read:
		c.stamp++
		set.touch(idx, c.stamp)
		return Result{Hit: true, State: line.state, ExecCycles: 1}

	case op == Write && (line.state == Exclusive || line.state == Modified):
		line.state = Modified
		c.stamp++
		set.touch(idx, c.stamp)
		c.emitTransition(cycle, addr, from, Modified, "write hit")
		return Result{Hit: true, State: Modified, ExecCycles: 1}

	case op == Write && line.state == Shared:
		bytes := c.snoopOthers(bus.Upgrade, addr, others, cycle)
		line.state = Modified
		c.stamp++
		set.touch(idx, c.stamp)
		c.emitTransition(cycle, addr, from, Modified, "write hit on shared, bus upgrade")
		return Result{
			Hit: true, State: Modified, ExecCycles: 1, BusHoldCycles: 1,
			Bytes: bytes, Transaction: bus.Upgrade,
		}

	default:
		panic(ErrInvalidTransition)
	}
}

func (c *Cache) serviceMiss(set *CacheSet, tag uint32, op Op, addr uint32, others []*Cache, cycle int) Result {
	c.stats.Misses++

	blockSize := c.geom.BlockSize()
	n := blockSize / 4

	var (
		cost  int
		bytes int
		txn   bus.Kind
		final MESIState
	)

	if op == Read {
		txn = bus.Read
		supplied := false
		for _, o := range others {
			out := o.snoop(bus.Read, addr, cycle)
			if out.suppliedData {
				supplied = true
				if out.wasModified {
					bytes += blockSize // writeback data, simultaneous with the transfer
				}
			}
		}
		if supplied {
			bytes += blockSize // cache-to-cache transfer itself
			cost = 2*n + 1
			final = Shared
		} else {
			bytes += blockSize // memory fetch
			cost = 100 + 1
			final = Exclusive
		}
	} else {
		txn = bus.ReadExclusive
		dirtyFlush := false
		for _, o := range others {
			out := o.snoop(bus.ReadExclusive, addr, cycle)
			if out.invalidated {
				bytes += blockSize // coherence/invalidation message
			}
			if out.wasModified {
				dirtyFlush = true
				bytes += blockSize // dirty writeback data
			}
		}
		bytes += blockSize // memory fetch, mandated regardless of remote state (§9 Open Question i)
		cost = 100 + 1
		if dirtyFlush {
			cost += 100
		}
		final = Modified
	}

	victimIdx := set.pickVictim()
	victim := &set.lines[victimIdx]
	if victim.valid {
		c.stats.Evictions++
		if victim.state == Modified {
			c.stats.Writebacks++
			bytes += blockSize
			cost += 100
		}
		_, setIdx, _ := c.geom.Decode(addr)
		victimAddr := victim.tag<<(c.geom.BlockBits+c.geom.SetBits) | setIdx<<c.geom.BlockBits
		c.emitTransition(cycle, victimAddr, victim.state, Invalid, "eviction")
		victim.invalidate()
	}

	c.stamp++
	victim.valid = true
	victim.tag = tag
	victim.state = final
	victim.lruStamp = c.stamp

	c.stats.DataTraffic += bytes

	c.emitTransition(cycle, addr, Invalid, final, op.String()+" miss")

	return Result{
		Hit: false, State: final, ExecCycles: cost, BusHoldCycles: cost,
		Bytes: bytes, Transaction: txn,
	}
}

// snoopOthers issues kind against every other cache and returns the bytes
// added to bus traffic by their responses (used for BusUpgrade, which never
// supplies data — only invalidates Shared peers).
func (c *Cache) snoopOthers(kind bus.Kind, addr uint32, others []*Cache, cycle int) int {
	bytes := 0
	for _, o := range others {
		out := o.snoop(kind, addr, cycle)
		if out.invalidated {
			bytes += c.geom.BlockSize()
		}
	}
	c.stats.DataTraffic += bytes
	return bytes
}

// snoopOutcome is what a cache reports about its own line when queried by a
// peer's bus transaction.
type snoopOutcome struct {
	hadLine      bool
	suppliedData bool
	wasModified  bool
	invalidated  bool
}

// snoop applies kind to this cache's own line for addr, per the per-state
// reactions of spec.md §4.3's transition table, and returns what happened so
// the requester can price its transaction. Snoops are instantaneous for the
// responder (spec.md §9, Open Question iii) — any latency is charged only to
// the requester.
func (c *Cache) snoop(kind bus.Kind, addr uint32, cycle int) snoopOutcome {
	tag, setIdx, _ := c.geom.Decode(addr)
	set := c.sets[setIdx]
	idx, found := set.find(tag)
	if !found {
		return snoopOutcome{}
	}
	line := &set.lines[idx]
	from := line.state
	wasModified := line.state == Modified

	switch kind {
	case bus.Read:
		supplied := line.state.CanProvideData()
		if supplied {
			line.state = Shared
		}
		if wasModified {
			c.stats.Writebacks++
		}
		c.emitTransition(cycle, addr, from, line.state, "snooped read")
		return snoopOutcome{hadLine: true, suppliedData: supplied, wasModified: wasModified}

	case bus.ReadExclusive, bus.Upgrade:
		invalidated := line.valid
		if wasModified {
			c.stats.Writebacks++
		}
		if invalidated {
			c.stats.Invalidations++
			line.invalidate()
			c.emitTransition(cycle, addr, from, Invalid, "snooped invalidation")
		}
		return snoopOutcome{hadLine: true, wasModified: wasModified, invalidated: invalidated}

	default:
		return snoopOutcome{}
	}
}
