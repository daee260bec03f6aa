// Package engine drives the global cycle clock: it pulls one pending
// instruction per core from the trace collaborator, arbitrates bus access
// among cores contending for a coherence transaction, dispatches requests to
// each core's cache, and charges cycles, grounded in the teacher's
// simulator.go / cycle_coordinator.go main-loop idiom but rewritten as a
// single-threaded, explicit-clock loop (spec.md §5 forbids the teacher's
// goroutine-per-component rendezvous: runs must be deterministic and
// reproducible without any OS-scheduling nondeterminism).
package engine

import (
	"errors"
	"io"
	"strings"

	"github.com/example/mesisim/internal/bus"
	"github.com/example/mesisim/internal/coherence"
	"github.com/example/mesisim/internal/hooks"
	"github.com/example/mesisim/internal/trace"
)

// CoreStats is everything the report needs about one core at termination.
type CoreStats struct {
	Reads         int
	Writes        int
	Hits          int
	Misses        int
	Evictions     int
	Writebacks    int
	Invalidations int
	DataTraffic   int
	ActiveCycles  int
	IdleCycles    int
}

// Instructions returns reads + writes, i.e. total references serviced.
func (s CoreStats) Instructions() int { return s.Reads + s.Writes }

// MissRate returns misses / (hits + misses) as a percentage, 0 if no refs.
func (s CoreStats) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return 100 * float64(s.Misses) / float64(total)
}

// coreState is the engine's bookkeeping for one core (spec.md §3, "Engine
// state").
type coreState struct {
	id       int
	source   trace.Source
	cache    *coherence.Cache
	others   []*coherence.Cache
	pending  *trace.Instruction
	finished bool

	blockedUntil int // cycle the current execution window ends; meaningful only while blocked
	blocked      bool
	readyAt      int

	active int
	idle   int
}

// Engine is the global clock, the single shared view of every cache, and the
// bus all cores contend for.
type Engine struct {
	cycle int
	bus   *bus.Bus
	cores []*coreState
	hooks *hooks.Broker
}

// New builds an engine with one core per entry in sources, all sharing geom's
// cache geometry, each fed by its own source. hb may be nil.
func New(geom coherence.Geometry, sources []trace.Source, hb *hooks.Broker) *Engine {
	caches := make([]*coherence.Cache, len(sources))
	for i := range sources {
		caches[i] = coherence.New(i, geom, hb)
	}

	e := &Engine{
		bus:   bus.New(),
		hooks: hb,
	}

	for i, src := range sources {
		others := make([]*coherence.Cache, 0, len(caches)-1)
		for j, c := range caches {
			if j != i {
				others = append(others, c)
			}
		}
		e.cores = append(e.cores, &coreState{
			id:     i,
			source: src,
			cache:  caches[i],
			others: others,
		})
	}
	return e
}

// Run executes the simulation to completion: every core's trace is consumed
// until exhausted, per spec.md §4.5. It returns the first fatal trace error
// encountered, if any.
func (e *Engine) Run() error {
	for _, cs := range e.cores {
		if err := e.fetch(cs); err != nil {
			return err
		}
	}

	for {
		if e.allFinished() {
			return nil
		}
		e.cycle++

		if _, busy := e.bus.Owner(); busy && e.bus.IsFree(e.cycle) {
			e.bus.Release()
		}

		for _, cs := range e.cores {
			if cs.finished || !cs.blocked {
				continue
			}
			if cs.blockedUntil <= e.cycle {
				cs.blocked = false
				if err := e.fetch(cs); err != nil {
					return err
				}
				cs.readyAt = e.cycle
			}
		}

		executed := e.runLocalHits()
		if busCore := e.arbitrateAndRun(); busCore >= 0 {
			executed[busCore] = true
		}

		for _, cs := range e.cores {
			if cs.finished || cs.blocked {
				continue
			}
			if executed[cs.id] {
				continue
			}
			cs.idle++
		}
	}
}

// fetch pulls the next instruction for cs, marking it finished on EOF.
func (e *Engine) fetch(cs *coreState) error {
	instr, err := cs.source.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			cs.finished = true
			cs.pending = nil
			return nil
		}
		cs.finished = true
		cs.pending = nil
		return err
	}
	cs.pending = &instr
	return nil
}

func (e *Engine) allFinished() bool {
	for _, cs := range e.cores {
		if !cs.finished {
			return false
		}
	}
	return true
}

// needsBus reports whether cs's pending reference would require a bus
// transaction: every miss does, and so does a write hit on a Shared line
// (BusUpgrade). Everything else — a read hit, or a write hit on
// Exclusive/Modified — is a pure local hit (spec.md §4.5).
func needsBus(cs *coreState) bool {
	state := cs.cache.GetState(cs.pending.Address)
	if !state.IsValid() {
		return true
	}
	if cs.pending.Op == coherence.Write && state == coherence.Shared {
		return true
	}
	return false
}

// runLocalHits executes every eligible core whose pending reference is a
// pure local hit. These bypass arbitration entirely because they never touch
// the bus (spec.md §4.5's documented modeling choice); each core's cache is
// independent, so running them in core-id order is as deterministic as any
// other order.
func (e *Engine) runLocalHits() map[int]bool {
	executed := make(map[int]bool)
	for _, cs := range e.cores {
		if !e.eligible(cs) {
			continue
		}
		if needsBus(cs) {
			continue
		}
		e.service(cs)
		executed[cs.id] = true
	}
	return executed
}

// arbitrateAndRun grants the bus to at most one core this cycle among those
// whose pending reference needs it, per the arbitration policy of spec.md
// §4.5: smallest request_ready_cycle, ties broken by smallest core id. It
// returns the granted core's id, or -1 if none ran.
func (e *Engine) arbitrateAndRun() int {
	if !e.bus.IsFree(e.cycle) {
		return -1
	}

	best := -1
	for _, cs := range e.cores {
		if !e.eligible(cs) || !needsBus(cs) {
			continue
		}
		if best == -1 {
			best = cs.id
			continue
		}
		bestCore := e.cores[best]
		if cs.readyAt < bestCore.readyAt || (cs.readyAt == bestCore.readyAt && cs.id < bestCore.id) {
			best = cs.id
		}
	}
	if best == -1 {
		return -1
	}

	e.service(e.cores[best])
	return best
}

func (e *Engine) eligible(cs *coreState) bool {
	return !cs.finished && !cs.blocked && cs.pending != nil && cs.readyAt <= e.cycle
}

// service dispatches cs's pending reference to its cache, reserves the bus
// if a transaction was issued, and charges the resulting cycles.
func (e *Engine) service(cs *coreState) {
	instr := *cs.pending
	result := cs.cache.Request(instr.Op, instr.Address, cs.others, e.cycle)

	if result.BusHoldCycles > 0 {
		e.bus.Acquire(cs.id, e.cycle+result.BusHoldCycles)
		e.bus.AddTraffic(result.Bytes)
	}

	cs.blockedUntil = e.cycle + result.ExecCycles
	cs.blocked = true
	cs.active += result.ExecCycles
	cs.pending = nil

	if result.Transaction != bus.None {
		e.hooks.EmitTransaction(hooks.TransactionEvent{
			Cycle:     e.cycle,
			Core:      cs.id,
			Kind:      result.Transaction,
			Address:   instr.Address,
			Bytes:     result.Bytes,
			HoldCycle: result.BusHoldCycles,
		})
	}
}

// Cycle returns the current global cycle.
func (e *Engine) Cycle() int { return e.cycle }

// BusTransactions returns the total number of bus transactions issued.
func (e *Engine) BusTransactions() int { return e.bus.Transactions() }

// BusTrafficBytes returns the total bytes moved over the bus.
func (e *Engine) BusTrafficBytes() int { return e.bus.TrafficBytes() }

// DebugDump renders the final cache state of every core, grounded in the
// original simulator's Cache::printState (spec.md §9's supplemented debug
// dump feature).
func (e *Engine) DebugDump() string {
	var b strings.Builder
	for _, cs := range e.cores {
		b.WriteString(cs.cache.DebugDump())
	}
	return b.String()
}

// CoreStats returns termination statistics for every core, in core-id order.
func (e *Engine) CoreStats() []CoreStats {
	out := make([]CoreStats, len(e.cores))
	for i, cs := range e.cores {
		st := cs.cache.Stats()
		out[i] = CoreStats{
			Reads:         st.Reads,
			Writes:        st.Writes,
			Hits:          st.Hits,
			Misses:        st.Misses,
			Evictions:     st.Evictions,
			Writebacks:    st.Writebacks,
			Invalidations: st.Invalidations,
			DataTraffic:   st.DataTraffic,
			ActiveCycles:  cs.active,
			IdleCycles:    cs.idle,
		}
	}
	return out
}
