package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shankartiwary/Momentum-trading-bot/internal/config"
)

const defaultConfigPath = "config/survivor.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Normalize()

	for {
		fmt.Println("\n=== Survivor Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit gap and lot settings")
		fmt.Println("3) Edit risk and app settings")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch bot")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editGaps(reader, cfg)
		case "3":
			editRiskApp(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchBot(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				reloaded.Normalize()
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Underlying: %s %s\n", cfg.Survivor.Underlying, cfg.Survivor.Expiry)
	fmt.Printf("Put gap: %.0f | reset gap: %.0f | offset: %.0f | lot multiplier: %d\n",
		cfg.Survivor.PutGap, cfg.Survivor.PutResetGap, cfg.Survivor.PutSymbolOffset, cfg.Survivor.PutLotMultiplier)
	fmt.Printf("Call gap: %.0f | reset gap: %.0f | offset: %.0f | lot multiplier: %d\n",
		cfg.Survivor.CallGap, cfg.Survivor.CallResetGap, cfg.Survivor.CallSymbolOffset, cfg.Survivor.CallLotMultiplier)
	fmt.Printf("Sell multiplier ceiling: %d | strike step: %d | lot size: %d\n",
		cfg.Survivor.SellMultiplierCeiling, cfg.Survivor.StrikeRoundingStep, cfg.Survivor.DefaultLotSize)
	fmt.Printf("Max lots per trade: %d\n", cfg.Risk.MaxLotsPerTrade)
	fmt.Printf("Feed provider: %s | poll interval: %dms | dry run: %v\n",
		cfg.App.FeedProvider, cfg.App.PollInterval, cfg.App.DryRun)
	fmt.Printf("Dashboard: %s | metrics: %s\n", cfg.App.DashboardAddr, cfg.App.MetricsAddr)
	if cfg.Ledger.OrdersPath != "" {
		fmt.Printf("Order log: %s\n", cfg.Ledger.OrdersPath)
	}
}

func editGaps(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Gaps / Lots ---")
	cfg.Survivor.PutGap = promptFloat(reader, "Put gap (points)", cfg.Survivor.PutGap)
	cfg.Survivor.CallGap = promptFloat(reader, "Call gap (points)", cfg.Survivor.CallGap)
	cfg.Survivor.PutResetGap = promptFloat(reader, "Put reset gap (points)", cfg.Survivor.PutResetGap)
	cfg.Survivor.CallResetGap = promptFloat(reader, "Call reset gap (points)", cfg.Survivor.CallResetGap)
	cfg.Survivor.PutSymbolOffset = promptFloat(reader, "Put strike offset (points)", cfg.Survivor.PutSymbolOffset)
	cfg.Survivor.CallSymbolOffset = promptFloat(reader, "Call strike offset (points)", cfg.Survivor.CallSymbolOffset)
	cfg.Survivor.PutLotMultiplier = promptInt(reader, "Put lot multiplier", cfg.Survivor.PutLotMultiplier)
	cfg.Survivor.CallLotMultiplier = promptInt(reader, "Call lot multiplier", cfg.Survivor.CallLotMultiplier)
}

func editRiskApp(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk / App ---")
	cfg.Survivor.SellMultiplierCeiling = promptInt(reader, "Sell multiplier ceiling", cfg.Survivor.SellMultiplierCeiling)
	cfg.Risk.MaxLotsPerTrade = promptInt(reader, "Max lots per trade (0 = unlimited)", cfg.Risk.MaxLotsPerTrade)
	cfg.App.PollInterval = promptInt(reader, "Poll interval (ms)", cfg.App.PollInterval)
	fmt.Printf("Dry run [%v] (y/n, blank to keep): ", cfg.App.DryRun)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.App.DryRun = strings.EqualFold(strings.TrimSpace(line), "y")
	}
}

func launchBot(reader *bufio.Reader) {
	fmt.Println("Launching bot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/survivor", "--config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptInt(reader *bufio.Reader, label string, current int) int {
	fmt.Printf("%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.Atoi(line)
	if err != nil {
		fmt.Printf("invalid number, keeping %d\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
