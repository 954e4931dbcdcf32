// Package feed hosts the poll-driven price sources that drive the engine.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/metrics"
	"github.com/shankartiwary/Momentum-trading-bot/internal/signal"
)

const (
	// ProviderBroker polls the broker's future quote endpoint at a fixed interval.
	ProviderBroker = "broker"
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
)

// StubBasePrice is where the synthetic provider starts drifting from.
const StubBasePrice = 25000.0

const (
	defaultPollInterval = 10 * time.Second
	stubStep            = 7.5
)

// PriceSource supplies the latest traded price of the underlying future.
type PriceSource interface {
	FutureLTP(ctx context.Context) (float64, error)
}

// Feed is a pluggable poll-driven tick source.
type Feed struct {
	provider string
	source   PriceSource
	interval time.Duration
	log      zerolog.Logger
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithPollInterval overrides the default polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// NewFeed constructs a feed backed by the requested provider. The source may be
// nil for the stub provider.
func NewFeed(provider string, source PriceSource, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderBroker
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		source:   source,
		interval: defaultPollInterval,
		log:      log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run pushes ticks onto the provided channel until the context is canceled.
// Exactly one tick per poll interval; a failed or empty fetch skips the tick and
// the loop continues.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Tick) error {
	switch f.provider {
	case ProviderStub:
		return f.runStub(ctx, out)
	default:
		return f.runBroker(ctx, out)
	}
}

func (f *Feed) runBroker(ctx context.Context, out chan<- signal.Tick) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			price, err := f.source.FutureLTP(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				metrics.FeedFailuresTotal.Inc()
				f.log.Warn().Err(err).Msg("price fetch failed, skipping tick")
				continue
			}
			select {
			case out <- signal.Tick{Price: price, Ts: ts}:
				metrics.TicksTotal.Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- signal.Tick) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	px := StubBasePrice
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += stubStep
			select {
			case out <- signal.Tick{Price: px, Ts: ts}:
				metrics.TicksTotal.Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// InitialPrice fetches the anchor price for engine construction, retrying
// exactly once after the supplied delay before giving up.
func InitialPrice(ctx context.Context, source PriceSource, retryDelay time.Duration) (float64, error) {
	price, err := source.FutureLTP(ctx)
	if err == nil && price > 0 {
		return price, nil
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(retryDelay):
	}

	price, err = source.FutureLTP(ctx)
	if err != nil {
		return 0, fmt.Errorf("initial price unavailable: %w", err)
	}
	if price <= 0 {
		return 0, errors.New("initial price unavailable: feed returned zero")
	}
	return price, nil
}
