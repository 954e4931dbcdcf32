// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as addresses, polling cadence,
// and logging level.
type App struct {
	Name          string `yaml:"name"`
	Env           string `yaml:"env"`
	MetricsAddr   string `yaml:"metrics_addr"`
	DashboardAddr string `yaml:"dashboard_addr"`
	LogLevel      string `yaml:"log_level"`
	FeedProvider  string `yaml:"feed_provider"`
	PollInterval  int    `yaml:"poll_interval_ms"`
	DryRun        bool   `yaml:"dry_run"`
}

// Broker describes the SmartAPI connectivity and credential parameters. The
// credential fields are normally left blank here and supplied through the
// environment instead.
type Broker struct {
	BaseURL       string `yaml:"base_url"`
	InstrumentURL string `yaml:"instrument_url"`
	APIKey        string `yaml:"api_key"`
	ClientCode    string `yaml:"client_code"`
	Password      string `yaml:"password"`
	TOTPSecret    string `yaml:"totp_secret"`
}

// Survivor groups the gap-threshold engine knobs.
type Survivor struct {
	Underlying            string   `yaml:"underlying"`
	Expiry                string   `yaml:"expiry"`
	PutStartLevel         *float64 `yaml:"put_start_level"`
	CallStartLevel        *float64 `yaml:"call_start_level"`
	PutGap                float64  `yaml:"put_gap"`
	CallGap               float64  `yaml:"call_gap"`
	PutSymbolOffset       float64  `yaml:"put_symbol_offset"`
	CallSymbolOffset      float64  `yaml:"call_symbol_offset"`
	PutLotMultiplier      int      `yaml:"put_lot_multiplier"`
	CallLotMultiplier     int      `yaml:"call_lot_multiplier"`
	PutResetGap           float64  `yaml:"put_reset_gap"`
	CallResetGap          float64  `yaml:"call_reset_gap"`
	SellMultiplierCeiling int      `yaml:"sell_multiplier_ceiling"`
	DefaultLotSize        int      `yaml:"default_lot_size"`
	StrikeRoundingStep    int      `yaml:"strike_rounding_step"`
}

// Risk encodes guard-rails applied outside the engine's own ceiling.
type Risk struct {
	MaxLotsPerTrade int `yaml:"max_lots_per_trade"`
}

// Ledger configures order record keeping.
type Ledger struct {
	OrdersPath string `yaml:"orders_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
// Unknown keys in the file are ignored.
type Config struct {
	App      App      `yaml:"app"`
	Broker   Broker   `yaml:"broker"`
	Survivor Survivor `yaml:"survivor"`
	Risk     Risk     `yaml:"risk"`
	Ledger   Ledger   `yaml:"ledger"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize fills zero-valued optional fields with working defaults.
func (c *Config) Normalize() {
	if c.App.MetricsAddr == "" {
		c.App.MetricsAddr = ":9100"
	}
	if c.App.DashboardAddr == "" {
		c.App.DashboardAddr = ":8080"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.FeedProvider == "" {
		c.App.FeedProvider = "broker"
	}
	if c.App.PollInterval <= 0 {
		c.App.PollInterval = 10000
	}
	if c.Survivor.SellMultiplierCeiling <= 0 {
		c.Survivor.SellMultiplierCeiling = 3
	}
	if c.Survivor.StrikeRoundingStep <= 0 {
		c.Survivor.StrikeRoundingStep = 50
	}
	if c.Survivor.DefaultLotSize <= 0 {
		c.Survivor.DefaultLotSize = 75
	}
}

// OverlayEnv replaces broker credentials with values from the environment when
// present, so secrets stay out of the YAML file.
func (c *Config) OverlayEnv() {
	if v := os.Getenv("SMARTAPI_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("SMARTAPI_CLIENT_CODE"); v != "" {
		c.Broker.ClientCode = v
	}
	if v := os.Getenv("SMARTAPI_PASSWORD"); v != "" {
		c.Broker.Password = v
	}
	if v := os.Getenv("SMARTAPI_TOTP_SECRET"); v != "" {
		c.Broker.TOTPSecret = v
	}
}

// Validate rejects configs missing the keys the engine cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Survivor.Underlying == "" {
		missing = append(missing, "survivor.underlying")
	}
	if c.Survivor.Expiry == "" {
		missing = append(missing, "survivor.expiry")
	}
	if c.Survivor.PutGap <= 0 {
		missing = append(missing, "survivor.put_gap")
	}
	if c.Survivor.CallGap <= 0 {
		missing = append(missing, "survivor.call_gap")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
}
