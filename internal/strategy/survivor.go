// Package strategy contains the gap-threshold signal engine that decides when to
// sell option contracts as the underlying drifts.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/metrics"
	"github.com/shankartiwary/Momentum-trading-bot/internal/signal"
)

// ErrNoInitialPrice is returned when the engine cannot anchor its reference levels.
var ErrNoInitialPrice = errors.New("no usable initial price")

// Config holds the immutable knobs of the Survivor engine, supplied once at
// construction.
type Config struct {
	Underlying string
	Expiry     string

	// Optional overrides for the initial reference levels; when nil both sides
	// anchor to the first observed price.
	PutStartLevel  *float64
	CallStartLevel *float64

	PutGap  float64
	CallGap float64

	PutSymbolOffset  float64
	CallSymbolOffset float64

	PutLotMultiplier  int
	CallLotMultiplier int

	PutResetGap  float64
	CallResetGap float64

	SellMultiplierCeiling int
	StrikeRoundingStep    int
}

// Survivor tracks one reference level per side and sells out-of-the-money options
// whenever price drifts more than a configured gap beyond a reference. The put
// reference only climbs and the call reference only falls, except when the reset
// pass pulls a level back toward price after a trigger. Put and call state never
// read or mutate each other.
type Survivor struct {
	cfg Config
	log zerolog.Logger

	mu          sync.Mutex
	putRef      float64
	callRef     float64
	putPending  bool
	callPending bool
}

// Snapshot is a copy of the mutable engine state for dashboards and logs.
type Snapshot struct {
	PutReference     float64 `json:"put_reference"`
	CallReference    float64 `json:"call_reference"`
	PutPendingReset  bool    `json:"put_pending_reset"`
	CallPendingReset bool    `json:"call_pending_reset"`
}

// New anchors both reference levels to the configured start overrides, falling
// back to the supplied initial price. A non-positive initial price means the feed
// never produced a sample and construction fails.
func New(cfg Config, initialPrice float64, log zerolog.Logger) (*Survivor, error) {
	if initialPrice <= 0 {
		return nil, ErrNoInitialPrice
	}
	cfg.Underlying = strings.ToUpper(cfg.Underlying)
	cfg.Expiry = strings.ToUpper(cfg.Expiry)

	s := &Survivor{cfg: cfg, log: log, putRef: initialPrice, callRef: initialPrice}
	if cfg.PutStartLevel != nil && *cfg.PutStartLevel > 0 {
		s.putRef = *cfg.PutStartLevel
	}
	if cfg.CallStartLevel != nil && *cfg.CallStartLevel > 0 {
		s.callRef = *cfg.CallStartLevel
	}
	log.Info().Float64("put_ref", s.putRef).Float64("call_ref", s.callRef).Msg("survivor engine initialized")
	return s, nil
}

// OnTick runs one full evaluation pass in strict order: put check, call check,
// then the reset pass. Ticks must arrive from a single goroutine in sample order;
// the mutex only guards concurrent Snapshot readers.
func (s *Survivor) OnTick(tk signal.Tick) []signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []signal.Signal
	if sig := s.evalPut(tk); sig != nil {
		out = append(out, *sig)
	}
	if sig := s.evalCall(tk); sig != nil {
		out = append(out, *sig)
	}
	s.applyResets(tk.Price)
	return out
}

func (s *Survivor) evalPut(tk signal.Tick) *signal.Signal {
	if tk.Price <= s.putRef {
		return nil
	}
	diff := math.Round(tk.Price - s.putRef)
	if diff <= s.cfg.PutGap {
		return nil
	}
	mult := int(diff / s.cfg.PutGap)
	if s.breachesCeiling(signal.SidePut, mult) {
		return nil
	}

	// Advance by exact gap multiples rather than snapping to price, so partial
	// crossings left over accumulate into the next trigger.
	s.putRef += s.cfg.PutGap * float64(mult)
	s.putPending = true

	strike := s.roundStrike(tk.Price - s.cfg.PutSymbolOffset)
	sig := s.sellSignal(signal.SidePut, strike, mult*s.cfg.PutLotMultiplier, mult, tk)
	return &sig
}

func (s *Survivor) evalCall(tk signal.Tick) *signal.Signal {
	if tk.Price >= s.callRef {
		return nil
	}
	diff := math.Round(s.callRef - tk.Price)
	if diff <= s.cfg.CallGap {
		return nil
	}
	mult := int(diff / s.cfg.CallGap)
	if s.breachesCeiling(signal.SideCall, mult) {
		return nil
	}

	s.callRef -= s.cfg.CallGap * float64(mult)
	s.callPending = true

	strike := s.roundStrike(tk.Price + s.cfg.CallSymbolOffset)
	sig := s.sellSignal(signal.SideCall, strike, mult*s.cfg.CallLotMultiplier, mult, tk)
	return &sig
}

// breachesCeiling suppresses a trigger whose multiplier exceeds the configured
// ceiling. The reference level and pending-reset flag stay untouched; the breach
// is only reported.
func (s *Survivor) breachesCeiling(side signal.Side, mult int) bool {
	if mult <= s.cfg.SellMultiplierCeiling {
		return false
	}
	metrics.SuppressedTotal.WithLabelValues(string(side)).Inc()
	s.log.Warn().
		Str("side", string(side)).
		Int("multiplier", mult).
		Int("ceiling", s.cfg.SellMultiplierCeiling).
		Msg("sell multiplier breached ceiling, trade suppressed")
	return true
}

// applyResets pulls a reference back toward price once it has retraced beyond the
// reset gap. Only evaluated after at least one trigger on that side.
func (s *Survivor) applyResets(price float64) {
	if s.putPending && s.putRef-price > s.cfg.PutResetGap {
		s.log.Info().Float64("from", s.putRef).Float64("to", price+s.cfg.PutResetGap).Msg("put reference reset")
		s.putRef = price + s.cfg.PutResetGap
		s.putPending = false
	}
	if s.callPending && price-s.callRef > s.cfg.CallResetGap {
		s.log.Info().Float64("from", s.callRef).Float64("to", price-s.cfg.CallResetGap).Msg("call reference reset")
		s.callRef = price - s.cfg.CallResetGap
		s.callPending = false
	}
}

// roundStrike snaps a target price to the nearest strike on the ladder.
// math.Round gives round-half-away-from-zero, so 25125 with a 50-point step maps
// to 25150.
func (s *Survivor) roundStrike(target float64) int {
	step := s.cfg.StrikeRoundingStep
	return int(math.Round(target/float64(step))) * step
}

func (s *Survivor) sellSignal(side signal.Side, strike, lots, mult int, tk signal.Tick) signal.Signal {
	symbol := fmt.Sprintf("%s%s%d%s", s.cfg.Underlying, s.cfg.Expiry, strike, side.Suffix())
	metrics.SignalsTotal.WithLabelValues(string(side)).Inc()
	s.log.Info().
		Str("side", string(side)).
		Str("symbol", symbol).
		Int("lots", lots).
		Float64("price", tk.Price).
		Msg("sell triggered")
	return signal.Signal{
		Side:       side,
		Strike:     strike,
		Lots:       lots,
		Symbol:     symbol,
		Multiplier: mult,
		Price:      tk.Price,
		Ts:         tk.Ts,
	}
}

// Snapshot returns a copy of the reference levels and pending-reset flags.
func (s *Survivor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PutReference:     s.putRef,
		CallReference:    s.callRef,
		PutPendingReset:  s.putPending,
		CallPendingReset: s.callPending,
	}
}
