// Package bus implements the single arbitrated snooping bus that serializes
// coherence transactions between per-core caches.
package bus

// Kind tags the four coherence transactions a cache can issue on the bus.
type Kind int

const (
	// None means no transaction was issued (a local hit).
	None Kind = iota
	// Read fetches a block for sharing (read miss).
	Read
	// ReadExclusive fetches a block with intent to modify (write miss).
	ReadExclusive
	// Upgrade promotes a Shared line to Modified without a data fetch,
	// invalidating every other cache's copy.
	Upgrade
	// Writeback flushes an evicted Modified victim to memory.
	Writeback
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Read:
		return "BusRead"
	case ReadExclusive:
		return "BusReadX"
	case Upgrade:
		return "BusUpgrade"
	case Writeback:
		return "Writeback"
	default:
		return "Unknown"
	}
}

// Transaction is one coherence transaction in flight on the bus.
type Transaction struct {
	Kind      Kind
	Address   uint32
	Requester int
}

// ownership tracks which core currently holds the bus and until when.
type ownership struct {
	busy   bool
	owner  int
	freeAt int
}

// Bus is the central arbitrated snooping bus. It does not decide who gets to
// use it next (that is the engine's arbitration policy, §4.5 of the
// specification) — it only tracks current ownership and the running traffic
// and transaction counters, per spec.md §4.4.
type Bus struct {
	own ownership

	transactions int
	trafficBytes int
}

// New creates a free bus with zeroed counters.
func New() *Bus {
	return &Bus{}
}

// IsFree reports whether the bus is free at the given cycle.
func (b *Bus) IsFree(atCycle int) bool {
	if !b.own.busy {
		return true
	}
	return atCycle >= b.own.freeAt
}

// Release marks the bus free. It is idempotent.
func (b *Bus) Release() {
	b.own = ownership{}
}

// Acquire grants the bus to core for [now, freeAt). It counts as one
// transaction regardless of freeAt (one acquire == one transaction, per
// spec.md §4.4).
func (b *Bus) Acquire(core int, freeAt int) {
	b.own = ownership{busy: true, owner: core, freeAt: freeAt}
	b.transactions++
}

// Owner returns the current owner core id and whether the bus is busy.
func (b *Bus) Owner() (core int, busy bool) {
	return b.own.owner, b.own.busy
}

// FreeAt returns the cycle at which the bus becomes free again.
func (b *Bus) FreeAt() int {
	return b.own.freeAt
}

// AddTraffic accumulates bytes moved over the bus from any call site
// (memory fetch, cache-to-cache transfer, writeback, or coherence message).
func (b *Bus) AddTraffic(bytes int) {
	b.trafficBytes += bytes
}

// Transactions returns the total number of transactions ever acquired.
func (b *Bus) Transactions() int {
	return b.transactions
}

// TrafficBytes returns the total bytes ever reported via AddTraffic.
func (b *Bus) TrafficBytes() int {
	return b.trafficBytes
}
