// Package hooks is a small plugin broker for simulator instrumentation,
// trimmed from the teacher's general-purpose hooks/broker.go down to the two
// events this simulator actually needs to observe: bus transactions and
// MESI state transitions.
package hooks

import "github.com/example/mesisim/internal/bus"

// TransactionEvent describes one issued bus transaction.
type TransactionEvent struct {
	Cycle     int
	Core      int
	Kind      bus.Kind
	Address   uint32
	Bytes     int
	HoldCycle int
}

// TransitionEvent describes one cache line changing MESI state.
type TransitionEvent struct {
	Cycle   int
	Core    int
	Address uint32
	From    string
	To      string
	Reason  string
}

// TransactionHook observes issued bus transactions.
type TransactionHook func(TransactionEvent)

// TransitionHook observes MESI state transitions.
type TransitionHook func(TransitionEvent)

// Broker fans a simulation event out to every registered hook. A nil
// *Broker is always safe to call into (same nil-receiver-safe convention as
// the teacher's PluginBroker).
type Broker struct {
	transactionHooks []TransactionHook
	transitionHooks  []TransitionHook
}

// New creates an empty broker.
func New() *Broker {
	return &Broker{}
}

// OnTransaction registers h to run on every issued bus transaction.
func (b *Broker) OnTransaction(h TransactionHook) {
	if b == nil || h == nil {
		return
	}
	b.transactionHooks = append(b.transactionHooks, h)
}

// OnTransition registers h to run on every MESI state transition.
func (b *Broker) OnTransition(h TransitionHook) {
	if b == nil || h == nil {
		return
	}
	b.transitionHooks = append(b.transitionHooks, h)
}

// EmitTransaction fires every registered transaction hook.
func (b *Broker) EmitTransaction(ev TransactionEvent) {
	if b == nil {
		return
	}
	for _, h := range b.transactionHooks {
		h(ev)
	}
}

// EmitTransition fires every registered transition hook.
func (b *Broker) EmitTransition(ev TransitionEvent) {
	if b == nil {
		return
	}
	for _, h := range b.transitionHooks {
		h(ev)
	}
}
