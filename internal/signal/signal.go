// Package signal standardizes payloads shared between the price feed and the engine.
package signal

import "time"

// Side identifies which option leg a sell signal targets.
type Side string

const (
	// SidePut sells a put below the market.
	SidePut Side = "PUT"
	// SideCall sells a call above the market.
	SideCall Side = "CALL"
)

// Suffix returns the option-type suffix used when composing trading symbols.
func (s Side) Suffix() string {
	if s == SideCall {
		return "CE"
	}
	return "PE"
}

// Tick carries one sampled price of the underlying future contract.
type Tick struct {
	Price float64
	Ts    time.Time
}

// Signal is a sell instruction produced by the engine for a single tick. It is
// consumed immediately by the executor and never stored.
type Signal struct {
	Side       Side
	Strike     int
	Lots       int
	Symbol     string
	Multiplier int     // gap-units crossed in this trigger
	Price      float64 // price that triggered the sell
	Ts         time.Time
}
