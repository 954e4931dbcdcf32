// Package bot wires the feed, engine, and executor into the polling driver loop.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/execution"
	"github.com/shankartiwary/Momentum-trading-bot/internal/ledger"
	"github.com/shankartiwary/Momentum-trading-bot/internal/metrics"
	"github.com/shankartiwary/Momentum-trading-bot/internal/risk"
	"github.com/shankartiwary/Momentum-trading-bot/internal/signal"
	"github.com/shankartiwary/Momentum-trading-bot/internal/strategy"
)

// Seller submits one sell signal; implemented by *execution.Executor.
type Seller interface {
	Sell(ctx context.Context, sig signal.Signal) (ledger.Order, error)
}

// Status is the snapshot the dashboard and websocket stream render.
type Status struct {
	Running   bool              `json:"running"`
	DryRun    bool              `json:"dry_run"`
	LastPrice float64           `json:"last_price"`
	LastTick  time.Time         `json:"last_tick"`
	Engine    strategy.Snapshot `json:"engine"`
}

// Runner owns the tick loop. Exactly one Run call may drive a given engine at a
// time; all sharing with dashboards happens through snapshots and the hub.
type Runner struct {
	engine *strategy.Survivor
	seller Seller
	limits risk.Limits
	book   *ledger.Ledger
	rec    ledger.Recorder // optional persistent sink
	hub    *Hub[Status]
	dryRun bool
	log    zerolog.Logger

	mu     sync.RWMutex
	status Status
}

// NewRunner assembles the driver around an initialized engine.
func NewRunner(engine *strategy.Survivor, seller Seller, limits risk.Limits, book *ledger.Ledger, rec ledger.Recorder, dryRun bool, log zerolog.Logger) *Runner {
	r := &Runner{
		engine: engine,
		seller: seller,
		limits: limits,
		book:   book,
		rec:    rec,
		hub:    NewHub[Status](),
		dryRun: dryRun,
		log:    log,
	}
	r.status = Status{DryRun: dryRun, Engine: engine.Snapshot()}
	return r
}

// Run consumes ticks until the context is canceled. Order placement outcomes are
// recorded but never fed back into the engine.
func (r *Runner) Run(ctx context.Context, ticks <-chan signal.Tick) error {
	r.setRunning(true)
	defer r.setRunning(false)
	r.log.Info().Bool("dry_run", r.dryRun).Msg("driver loop started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("driver loop stopped")
			return ctx.Err()
		case tk := <-ticks:
			r.handleTick(ctx, tk)
		}
	}
}

func (r *Runner) handleTick(ctx context.Context, tk signal.Tick) {
	for _, sig := range r.engine.OnTick(tk) {
		r.dispatch(ctx, sig)
	}

	snap := r.engine.Snapshot()
	metrics.LastPrice.Set(tk.Price)
	metrics.PutReference.Set(snap.PutReference)
	metrics.CallReference.Set(snap.CallReference)

	r.mu.Lock()
	r.status.LastPrice = tk.Price
	r.status.LastTick = tk.Ts
	r.status.Engine = snap
	st := r.status
	r.mu.Unlock()
	r.hub.Broadcast(st)
}

func (r *Runner) dispatch(ctx context.Context, sig signal.Signal) {
	if !r.limits.Allow(sig.Lots) {
		r.log.Warn().Str("symbol", sig.Symbol).Int("lots", sig.Lots).Msg("risk limit exceeded, order skipped")
		return
	}

	order, err := r.seller.Sell(ctx, sig)
	if err != nil {
		if errors.Is(err, execution.ErrInstrumentNotFound) {
			// The reference advance that produced this signal stays committed.
			r.log.Error().Err(err).Msg("signal dropped")
			return
		}
		r.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("order rejected")
	}
	r.record(order)
}

func (r *Runner) record(order ledger.Order) {
	r.book.Record(order)
	if r.rec != nil {
		r.rec.Record(order)
	}
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	r.status.Running = running
	st := r.status
	r.mu.Unlock()
	r.hub.Broadcast(st)
}

// Status returns the latest broadcast snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Orders returns a copy of the order ledger.
func (r *Runner) Orders() []ledger.Order {
	return r.book.Snapshot()
}

// Subscribe registers a status stream subscriber.
func (r *Runner) Subscribe(buffer int) *Subscription[Status] {
	return r.hub.Subscribe(buffer)
}

// Unsubscribe removes a status stream subscriber.
func (r *Runner) Unsubscribe(sub *Subscription[Status]) {
	r.hub.Unsubscribe(sub)
}
