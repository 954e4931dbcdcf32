// Package risk applies guard-rails outside the engine's own multiplier ceiling.
package risk

// Limits caps how much size a single trigger may submit.
type Limits struct {
	MaxLotsPerTrade int
}

// Allow reports whether an order of the given lot count may proceed. A zero or
// negative cap disables the check.
func (l Limits) Allow(lots int) bool {
	return l.MaxLotsPerTrade <= 0 || lots <= l.MaxLotsPerTrade
}
