// Package ledger records order placements for the dashboard and post-run analysis.
package ledger

import (
	"sync"
	"time"
)

// Order status values.
const (
	StatusPlaced    = "PLACED"
	StatusRejected  = "REJECTED"
	StatusSimulated = "SIMULATED"
)

// Order is one recorded placement attempt. Rejected orders carry the venue's
// reason; simulated ones come from dry runs.
type Order struct {
	ID           string    `json:"id,omitempty"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Option       string    `json:"option"`
	Strike       int       `json:"strike"`
	Lots         int       `json:"lots"`
	Quantity     int       `json:"quantity"`
	TriggerPrice float64   `json:"trigger_price"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Ts           time.Time `json:"ts"`
}

// Recorder consumes order records.
type Recorder interface {
	Record(Order)
}

// Ledger stores orders in memory for quick inspection.
type Ledger struct {
	mu     sync.Mutex
	orders []Order
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{orders: make([]Order, 0, capacity)}
}

// Record appends an order to the ledger.
func (l *Ledger) Record(order Order) {
	l.mu.Lock()
	l.orders = append(l.orders, order)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded orders.
func (l *Ledger) Snapshot() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Reset clears all stored orders.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.orders = l.orders[:0]
	l.mu.Unlock()
}
