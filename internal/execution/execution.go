// Package execution handles order lifecycle and interaction with the venue.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/broker"
	"github.com/shankartiwary/Momentum-trading-bot/internal/ledger"
	"github.com/shankartiwary/Momentum-trading-bot/internal/metrics"
	"github.com/shankartiwary/Momentum-trading-bot/internal/signal"
)

// ErrInstrumentNotFound flags a signal whose symbol is absent from the scrip
// master. The signal is dropped; the engine state that produced it stays
// committed.
var ErrInstrumentNotFound = errors.New("instrument not found")

// Directory resolves trading symbols to tradable instruments.
type Directory interface {
	Instrument(symbol string) (broker.Instrument, bool)
}

// Venue accepts order placements.
type Venue interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error)
}

// StaticDirectory resolves every symbol with a fixed lot size; used for stub and
// dry runs where no scrip master is available.
type StaticDirectory struct {
	LotSize int
}

// Instrument always resolves.
func (d StaticDirectory) Instrument(symbol string) (broker.Instrument, bool) {
	return broker.Instrument{Symbol: symbol, LotSize: d.LotSize}, true
}

// Executor turns engine signals into venue orders and order records.
type Executor struct {
	dir            Directory
	venue          Venue
	defaultLotSize int
	dryRun         bool
	log            zerolog.Logger
}

// NewExecutor wires the instrument directory and venue for order submission.
func NewExecutor(dir Directory, venue Venue, defaultLotSize int, dryRun bool, log zerolog.Logger) *Executor {
	return &Executor{dir: dir, venue: venue, defaultLotSize: defaultLotSize, dryRun: dryRun, log: log}
}

// Sell resolves and submits one sell signal. The returned order reflects the
// placement outcome; a non-nil error never undoes the engine state that produced
// the signal. For ErrInstrumentNotFound the returned order is empty and nothing
// should be recorded.
func (e *Executor) Sell(ctx context.Context, sig signal.Signal) (ledger.Order, error) {
	inst, ok := e.dir.Instrument(sig.Symbol)
	if !ok {
		metrics.OrdersTotal.WithLabelValues(string(sig.Side), "not_found").Inc()
		return ledger.Order{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, sig.Symbol)
	}

	lotSize := inst.LotSize
	if lotSize <= 0 {
		lotSize = e.defaultLotSize
	}
	qty := sig.Lots * lotSize

	order := ledger.Order{
		Symbol:       sig.Symbol,
		Side:         "SELL",
		Option:       string(sig.Side),
		Strike:       sig.Strike,
		Lots:         sig.Lots,
		Quantity:     qty,
		TriggerPrice: sig.Price,
		Ts:           time.Now().UTC(),
	}

	if e.dryRun {
		order.ID = fmt.Sprintf("DRY-%d", order.Ts.UnixNano())
		order.Status = ledger.StatusSimulated
		metrics.OrdersTotal.WithLabelValues(string(sig.Side), "simulated").Inc()
		e.log.Info().Str("symbol", sig.Symbol).Int("qty", qty).Msg("dry run, order not sent")
		return order, nil
	}

	id, err := e.venue.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   sig.Symbol,
		Token:    inst.Token,
		Side:     "SELL",
		Quantity: qty,
	})
	if err != nil {
		order.Status = ledger.StatusRejected
		order.Reason = err.Error()
		metrics.OrdersTotal.WithLabelValues(string(sig.Side), "rejected").Inc()
		return order, err
	}

	order.ID = id
	order.Status = ledger.StatusPlaced
	metrics.OrdersTotal.WithLabelValues(string(sig.Side), "placed").Inc()
	return order, nil
}
