package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shankartiwary/Momentum-trading-bot/internal/bot"
	"github.com/shankartiwary/Momentum-trading-bot/internal/broker"
	"github.com/shankartiwary/Momentum-trading-bot/internal/config"
	"github.com/shankartiwary/Momentum-trading-bot/internal/dashboard"
	"github.com/shankartiwary/Momentum-trading-bot/internal/execution"
	"github.com/shankartiwary/Momentum-trading-bot/internal/feed"
	"github.com/shankartiwary/Momentum-trading-bot/internal/ledger"
	"github.com/shankartiwary/Momentum-trading-bot/internal/metrics"
	"github.com/shankartiwary/Momentum-trading-bot/internal/risk"
	sig "github.com/shankartiwary/Momentum-trading-bot/internal/signal"
	"github.com/shankartiwary/Momentum-trading-bot/internal/strategy"
	"github.com/shankartiwary/Momentum-trading-bot/internal/util"
)

var (
	cfgFile  string
	dryRun   bool
	provider string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "survivor",
		Short: "Gap-threshold index option selling bot",
		Long:  `Polls the underlying future, sells the gap-derived put/call strikes, and serves a dashboard plus Prometheus metrics.`,
		Run:   runBot,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/survivor.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log and record orders without sending them to the broker")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "tick source (broker or stub), overrides the config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) {
	// Credentials usually live in .env rather than the config file.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Normalize()
	cfg.OverlayEnv()
	if dryRun {
		cfg.App.DryRun = true
	}
	if provider != "" {
		cfg.App.FeedProvider = provider
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		client *broker.Client
		anchor float64
		dir    execution.Directory
		venue  execution.Venue
		funds  dashboard.FundsSource
		src    feed.PriceSource
	)

	switch cfg.App.FeedProvider {
	case feed.ProviderStub:
		// No broker session offline, so orders are always simulated.
		cfg.App.DryRun = true
		anchor = feed.StubBasePrice
		dir = execution.StaticDirectory{LotSize: cfg.Survivor.DefaultLotSize}
		log.Info().Msg("stub provider selected, forcing dry run")
	default:
		client = broker.NewClient(
			broker.Credentials{
				APIKey:     cfg.Broker.APIKey,
				ClientCode: cfg.Broker.ClientCode,
				Password:   cfg.Broker.Password,
				TOTPSecret: cfg.Broker.TOTPSecret,
			},
			cfg.Survivor.Underlying, cfg.Survivor.Expiry,
			util.Component(log, "broker"),
			broker.WithBaseURL(cfg.Broker.BaseURL),
			broker.WithInstrumentURL(cfg.Broker.InstrumentURL),
		)
		if err := client.Login(ctx); err != nil {
			log.Fatal().Err(err).Msg("broker login failed")
		}
		anchor, err = feed.InitialPrice(ctx, client, 2*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("could not establish the starting price")
		}
		dir, venue, funds, src = client, client, client, client
	}

	engine, err := strategy.New(strategy.Config{
		Underlying:            cfg.Survivor.Underlying,
		Expiry:                cfg.Survivor.Expiry,
		PutStartLevel:         cfg.Survivor.PutStartLevel,
		CallStartLevel:        cfg.Survivor.CallStartLevel,
		PutGap:                cfg.Survivor.PutGap,
		CallGap:               cfg.Survivor.CallGap,
		PutSymbolOffset:       cfg.Survivor.PutSymbolOffset,
		CallSymbolOffset:      cfg.Survivor.CallSymbolOffset,
		PutLotMultiplier:      cfg.Survivor.PutLotMultiplier,
		CallLotMultiplier:     cfg.Survivor.CallLotMultiplier,
		PutResetGap:           cfg.Survivor.PutResetGap,
		CallResetGap:          cfg.Survivor.CallResetGap,
		SellMultiplierCeiling: cfg.Survivor.SellMultiplierCeiling,
		StrikeRoundingStep:    cfg.Survivor.StrikeRoundingStep,
	}, anchor, util.Component(log, "engine"))
	if err != nil {
		log.Fatal().Err(err).Msg("engine construction failed")
	}

	book := ledger.NewLedger(512)
	var rec ledger.Recorder
	if cfg.Ledger.OrdersPath != "" {
		jsonl, err := ledger.NewJSONLRecorder(cfg.Ledger.OrdersPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Ledger.OrdersPath).Msg("open order log")
		}
		defer jsonl.Close()
		rec = jsonl
	}

	exec := execution.NewExecutor(dir, venue, cfg.Survivor.DefaultLotSize, cfg.App.DryRun, util.Component(log, "execution"))
	limits := risk.Limits{MaxLotsPerTrade: cfg.Risk.MaxLotsPerTrade}
	runner := bot.NewRunner(engine, exec, limits, book, rec, cfg.App.DryRun, util.Component(log, "runner"))

	dash := dashboard.NewServer(runner, funds, util.Component(log, "dashboard"), cfg.App.DashboardAddr)
	go func() {
		if err := dash.Start(); err != nil {
			log.Error().Err(err).Msg("dashboard stopped")
		}
	}()

	ticks := make(chan sig.Tick, 64)
	poll := time.Duration(cfg.App.PollInterval) * time.Millisecond
	go func() {
		tickSrc := feed.NewFeed(cfg.App.FeedProvider, src, util.Component(log, "feed"), feed.WithPollInterval(poll))
		if err := tickSrc.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	snap := engine.Snapshot()
	log.Info().
		Str("underlying", cfg.Survivor.Underlying).
		Str("expiry", cfg.Survivor.Expiry).
		Float64("put_ref", snap.PutReference).
		Float64("call_ref", snap.CallReference).
		Bool("dry_run", cfg.App.DryRun).
		Msg("survivor engine started")

	if err := runner.Run(ctx, ticks); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("runner stopped")
	}
	log.Info().Msg("shutting down")
}
