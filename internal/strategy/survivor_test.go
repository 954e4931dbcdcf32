package strategy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/signal"
)

func testConfig() Config {
	return Config{
		Underlying:            "NIFTY",
		Expiry:                "25SEP",
		PutGap:                100,
		CallGap:               100,
		PutSymbolOffset:       200,
		CallSymbolOffset:      200,
		PutLotMultiplier:      1,
		CallLotMultiplier:     1,
		PutResetGap:           150,
		CallResetGap:          150,
		SellMultiplierCeiling: 3,
		StrikeRoundingStep:    50,
	}
}

func newEngine(t *testing.T, cfg Config, initial float64) *Survivor {
	t.Helper()
	engine, err := New(cfg, initial, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return engine
}

func tick(price float64) signal.Tick {
	return signal.Tick{Price: price, Ts: time.Now()}
}

func TestNewRequiresInitialPrice(t *testing.T) {
	if _, err := New(testConfig(), 0, zerolog.Nop()); err != ErrNoInitialPrice {
		t.Fatalf("expected ErrNoInitialPrice, got %v", err)
	}
}

func TestNewAppliesStartOverrides(t *testing.T) {
	cfg := testConfig()
	putStart, callStart := 24800.0, 25200.0
	cfg.PutStartLevel = &putStart
	cfg.CallStartLevel = &callStart

	engine := newEngine(t, cfg, 25000)
	snap := engine.Snapshot()
	if snap.PutReference != 24800 || snap.CallReference != 25200 {
		t.Fatalf("overrides not applied: %+v", snap)
	}
}

func TestEqualityNeverTriggers(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)
	if sigs := engine.OnTick(tick(25000)); len(sigs) != 0 {
		t.Fatalf("expected no signal at reference price, got %+v", sigs)
	}
	// A tie on the gap itself must not trigger either: diff == gap is not > gap.
	if sigs := engine.OnTick(tick(25100)); len(sigs) != 0 {
		t.Fatalf("expected no signal at exact gap distance, got %+v", sigs)
	}
	snap := engine.Snapshot()
	if snap.PutReference != 25000 {
		t.Fatalf("reference moved on non-trigger tick: %+v", snap)
	}
}

func TestPutTriggerGapMultiples(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	sigs := engine.OnTick(tick(25250))
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	sig := sigs[0]
	if sig.Side != signal.SidePut {
		t.Fatalf("expected put signal, got %s", sig.Side)
	}
	if sig.Multiplier != 2 || sig.Lots != 2 {
		t.Fatalf("expected multiplier=2 lots=2, got multiplier=%d lots=%d", sig.Multiplier, sig.Lots)
	}
	snap := engine.Snapshot()
	if snap.PutReference != 25200 {
		t.Fatalf("expected put reference 25200, got %.2f", snap.PutReference)
	}
	if !snap.PutPendingReset {
		t.Fatalf("expected put pending reset after trigger")
	}
}

func TestPutStrikeDerivation(t *testing.T) {
	cfg := testConfig()
	engine := newEngine(t, cfg, 25000)

	sigs := engine.OnTick(tick(25340))
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	// 25340 - 200 = 25140, nearest 50-multiple is 25150
	if sigs[0].Strike != 25150 {
		t.Fatalf("expected strike 25150, got %d", sigs[0].Strike)
	}
	if sigs[0].Symbol != "NIFTY25SEP25150PE" {
		t.Fatalf("unexpected symbol %s", sigs[0].Symbol)
	}
}

func TestCallTriggerMirrorsPut(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	sigs := engine.OnTick(tick(24749))
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	sig := sigs[0]
	if sig.Side != signal.SideCall {
		t.Fatalf("expected call signal, got %s", sig.Side)
	}
	if sig.Multiplier != 2 || sig.Lots != 2 {
		t.Fatalf("expected multiplier=2 lots=2, got %d/%d", sig.Multiplier, sig.Lots)
	}
	// 24749 + 200 = 24949, nearest 50-multiple is 24950
	if sig.Strike != 24950 || sig.Symbol != "NIFTY25SEP24950CE" {
		t.Fatalf("unexpected strike/symbol: %d %s", sig.Strike, sig.Symbol)
	}
	snap := engine.Snapshot()
	if snap.CallReference != 24800 {
		t.Fatalf("expected call reference 24800, got %.2f", snap.CallReference)
	}
	if snap.PutReference != 25000 {
		t.Fatalf("call trigger must not move the put reference: %.2f", snap.PutReference)
	}
}

func TestCeilingBreachSuppressesWithoutStateChange(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	// 450 points is 4 gap-units against a ceiling of 3.
	if sigs := engine.OnTick(tick(25450)); len(sigs) != 0 {
		t.Fatalf("expected suppressed trigger, got %+v", sigs)
	}
	snap := engine.Snapshot()
	if snap.PutReference != 25000 {
		t.Fatalf("suppressed trigger moved the reference: %.2f", snap.PutReference)
	}
	if snap.PutPendingReset {
		t.Fatalf("suppressed trigger must not set the pending-reset flag")
	}

	// With the flag never set, even a deep retracement leaves the reference alone.
	engine.OnTick(tick(24000))
	if snap := engine.Snapshot(); snap.PutReference != 25000 {
		t.Fatalf("reset ran without a prior trigger: %.2f", snap.PutReference)
	}
}

func TestPutResetAfterRetracement(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	engine.OnTick(tick(25250)) // trigger, reference now 25200, pending set
	engine.OnTick(tick(25100)) // 100-point retrace, below the 150 reset gap
	snap := engine.Snapshot()
	if snap.PutReference != 25200 || !snap.PutPendingReset {
		t.Fatalf("small retrace must leave the reference: %+v", snap)
	}

	engine.OnTick(tick(25000)) // 200-point retrace, beyond the reset gap
	snap = engine.Snapshot()
	if snap.PutReference != 25150 {
		t.Fatalf("expected reset to 25000+150, got %.2f", snap.PutReference)
	}
	if snap.PutPendingReset {
		t.Fatalf("expected pending-reset flag cleared")
	}
}

func TestCallResetAfterRetracement(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	engine.OnTick(tick(24749)) // trigger, call reference now 24800
	engine.OnTick(tick(25000)) // 200-point bounce, beyond the 150 reset gap
	snap := engine.Snapshot()
	if snap.CallReference != 24850 {
		t.Fatalf("expected reset to 25000-150, got %.2f", snap.CallReference)
	}
	if snap.CallPendingReset {
		t.Fatalf("expected pending-reset flag cleared")
	}
}

func TestSidesAreIndependent(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	prices := []float64{25050, 25150, 25300, 25500, 25800}
	for _, px := range prices {
		for _, sig := range engine.OnTick(tick(px)) {
			if sig.Side == signal.SideCall {
				t.Fatalf("upward drift emitted a call signal at %.0f", px)
			}
		}
	}
	snap := engine.Snapshot()
	if snap.CallReference != 25000 || snap.CallPendingReset {
		t.Fatalf("upward drift mutated call state: %+v", snap)
	}
}

func TestReferenceMonotonicBetweenResets(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	prices := []float64{25010, 25120, 25090, 25260, 25180, 25400, 25330, 25610}
	prevPut := engine.Snapshot().PutReference
	for _, px := range prices {
		engine.OnTick(tick(px))
		snap := engine.Snapshot()
		// No tick in this sequence retraces past the reset gap, so the put
		// reference must never fall.
		if snap.PutReference < prevPut {
			t.Fatalf("put reference decreased from %.2f to %.2f at %.0f", prevPut, snap.PutReference, px)
		}
		prevPut = snap.PutReference
	}
}

func TestRepeatedPartialCrossingsAccumulate(t *testing.T) {
	engine := newEngine(t, testConfig(), 25000)

	// 25101 crosses one gap (diff 101 > 100); reference advances to 25100 only,
	// keeping the 1-point remainder in play for the next crossing.
	sigs := engine.OnTick(tick(25101))
	if len(sigs) != 1 || sigs[0].Multiplier != 1 {
		t.Fatalf("expected single-gap trigger, got %+v", sigs)
	}
	if snap := engine.Snapshot(); snap.PutReference != 25100 {
		t.Fatalf("expected reference 25100, got %.2f", snap.PutReference)
	}

	sigs = engine.OnTick(tick(25201))
	if len(sigs) != 1 || sigs[0].Multiplier != 1 {
		t.Fatalf("expected follow-up trigger, got %+v", sigs)
	}
}
