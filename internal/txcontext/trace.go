// Package txcontext implements per-transaction execution: scheduling
// the notified/inline action graph, running each action's apply
// context, billing CPU/NET/RAM usage, and producing a transaction
// trace
package txcontext

import (
	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// ActionTrace records one scheduled action's execution: the action
// itself, who it ran against, where it came from in the notification/
// inline graph, and (once executed) its receipt and RAM deltas.
type ActionTrace struct {
	TransactionID                          xcrypto.Id
	BlockNum                                uint32
	Action                                  action.Action
	Receiver                                name.Name
	ContextFree                             bool
	ActionOrdinal                           uint32
	CreatorActionOrdinal                    uint32
	ClosestUnnotifiedAncestorActionOrdinal  uint32
	Receipt                                 *action.Receipt
	ElapsedMicros                           uint32
	AccountRAMDeltas                        map[name.Name]int64
	Executed                                bool
}

// Trace is the full per-transaction execution record: one ActionTrace
// per scheduled action (original actions plus every notification and
// inline action they produced), in schedule order.
type Trace struct {
	ID            xcrypto.Id
	BlockNum      uint32
	ActionTraces  []ActionTrace
	NetUsageBytes uint64
	Status        Status
}

// Status mirrors TransactionStatus: whether the transaction committed
// or was rejected.
type Status int

const (
	StatusExecuted Status = iota
	StatusFailed
)
