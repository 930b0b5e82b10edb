package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"signalbot/internal/md"
	"signalbot/internal/strategy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeRun      Mode = "run"
	ModeSchedule Mode = "schedule"
	ModeScan     Mode = "scan"
)

// ScanStrategy is the screen evaluated in scan mode.
const ScanStrategy = "bullish"

const defaultConfigPath = "config.yaml"

type OrderConfig struct {
	Qty               *int     `yaml:"qty"`
	Value             *float64 `yaml:"value"`
	StopLossPct       *float64 `yaml:"stop_loss_pct"`
	TakeProfitPct     *float64 `yaml:"take_profit_pct"`
	SellQty           *int     `yaml:"sell_qty"`
	SellValue         *float64 `yaml:"sell_value"`
	TimeInForce       string   `yaml:"time_in_force"`
	ConfirmProtective bool     `yaml:"confirm_protective"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

type RiskConfig struct {
	MaxQty      int           `yaml:"max_qty"`
	MaxNotional float64       `yaml:"max_notional"`
	Cooldown    time.Duration `yaml:"cooldown"`
	KillSwitch  bool          `yaml:"kill_switch"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Config struct {
	Mode         Mode            `yaml:"mode"`
	Strategy     string          `yaml:"strategy"`
	Params       strategy.Params `yaml:"params"`
	Tickers      []string        `yaml:"tickers"`
	TickersFile  string          `yaml:"tickers_file"`
	Workers      int             `yaml:"workers"`
	Trade        bool            `yaml:"trade"`
	LookbackDays int             `yaml:"lookback_days"`
	Timeframe    string          `yaml:"timeframe"`
	Feed         string          `yaml:"feed"`
	Schedule     string          `yaml:"schedule"`
	RunOnStart   bool            `yaml:"run_on_start"`

	Order OrderConfig `yaml:"order"`
	Retry RetryConfig `yaml:"retry"`
	Risk  RiskConfig  `yaml:"risk"`
	Redis RedisConfig `yaml:"redis"`

	DecisionsPath string `yaml:"decisions_path"`
	MetricsAddr   string `yaml:"metrics_addr"`
	Tracing       bool   `yaml:"tracing"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`

	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

func Defaults() Config {
	return Config{
		Mode:         ModeRun,
		Strategy:     "rsi_macd",
		Workers:      4,
		LookbackDays: 120,
		Timeframe:    "1Day",
		Feed:         "iex",
		Schedule:     "0 35 9 * * 1-5",
		Order:        OrderConfig{TimeInForce: "gtc"},
		Retry:        RetryConfig{MaxAttempts: 5, Delay: 15 * time.Second},
		Redis:        RedisConfig{TTL: 12 * time.Hour},
		LogLevel:     "info",
		LogFormat:    "json",
		BaseURL:      "https://paper-api.alpaca.markets",
	}
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML config file, a .env file, the environment and command-line flags.
func Load(args []string) (Config, error) {
	cfg := Defaults()

	fset := flag.NewFlagSet("bot", flag.ContinueOnError)
	configPath := fset.String("config", defaultConfigPath, "path to YAML config file")
	envFile := fset.String("env-file", ".env", "path to .env file")
	mode := fset.String("mode", "", "run mode: run, schedule or scan")
	strat := fset.String("strategy", "", "strategy: "+strings.Join(strategy.Names(), ", "))
	tickers := fset.String("tickers", "", "comma separated ticker list")
	tickersFile := fset.String("tickers-file", "", "file with one ticker per line")
	trade := fset.Bool("trade", false, "place orders for BUY/SELL signals")
	workers := fset.Int("workers", 0, "concurrent tickers")
	lookback := fset.Int("lookback-days", 0, "days of history to fetch")
	feed := fset.String("feed", "", "market data feed: iex or sip")
	schedule := fset.String("schedule", "", "cron spec (with seconds) for schedule mode")
	qty := fset.Int("qty", 0, "shares per buy")
	value := fset.Float64("value", 0, "dollar value per buy")
	stopLoss := fset.Float64("stop-loss", 0, "stop loss fraction below the fill price")
	takeProfit := fset.Float64("take-profit", 0, "take profit fraction above the fill price")
	killSwitch := fset.Bool("kill-switch", false, "if true, never place orders")
	decisionsPath := fset.String("decisions-path", "", "append decisions to this NDJSON file")
	metricsAddr := fset.String("metrics-addr", "", "serve prometheus metrics on this address")
	redisAddr := fset.String("redis-addr", "", "redis address for the shared bar cache")
	tracing := fset.Bool("tracing", false, "write OpenTelemetry spans to stderr")
	logLevel := fset.String("log-level", "", "debug, info, warn or error")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}
	set := map[string]bool{}
	fset.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := loadFile(*configPath, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || set["config"] {
			return cfg, err
		}
	}
	if err := loadDotEnv(*envFile); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)

	if set["mode"] {
		cfg.Mode = Mode(*mode)
	}
	if set["strategy"] {
		cfg.Strategy = *strat
	}
	if set["tickers"] {
		cfg.Tickers = strings.Split(*tickers, ",")
	}
	if set["tickers-file"] {
		cfg.TickersFile = *tickersFile
	}
	if set["trade"] {
		cfg.Trade = *trade
	}
	if set["workers"] {
		cfg.Workers = *workers
	}
	if set["lookback-days"] {
		cfg.LookbackDays = *lookback
	}
	if set["feed"] {
		cfg.Feed = *feed
	}
	if set["schedule"] {
		cfg.Schedule = *schedule
	}
	if set["qty"] {
		cfg.Order.Qty = qty
	}
	if set["value"] {
		cfg.Order.Value = value
	}
	if set["stop-loss"] {
		cfg.Order.StopLossPct = stopLoss
	}
	if set["take-profit"] {
		cfg.Order.TakeProfitPct = takeProfit
	}
	if set["kill-switch"] {
		cfg.Risk.KillSwitch = *killSwitch
	}
	if set["decisions-path"] {
		cfg.DecisionsPath = *decisionsPath
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = *metricsAddr
	}
	if set["redis-addr"] {
		cfg.Redis.Addr = *redisAddr
	}
	if set["tracing"] {
		cfg.Tracing = *tracing
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}

	if cfg.Mode == ModeScan {
		cfg.Strategy = ScanStrategy
		cfg.Trade = false
	}
	if cfg.TickersFile != "" {
		fromFile, err := readTickers(cfg.TickersFile)
		if err != nil {
			return cfg, err
		}
		cfg.Tickers = append(cfg.Tickers, fromFile...)
	}
	cfg.Tickers = normalizeTickers(cfg.Tickers)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv sets variables from path that are not already in the
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing = on
		}
	}
}

// readTickers reads one symbol per line, skipping blank lines and # comments.
func readTickers(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read tickers: %w", err)
	}
	defer file.Close()

	var tickers []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			tickers = append(tickers, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tickers: %w", err)
	}
	return tickers, nil
}

func normalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func validate(cfg Config) error {
	switch cfg.Mode {
	case ModeRun, ModeSchedule, ModeScan:
	default:
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if !slices.Contains(strategy.Names(), cfg.Strategy) {
		return fmt.Errorf("unknown strategy: %s", cfg.Strategy)
	}
	if len(cfg.Tickers) == 0 {
		return fmt.Errorf("no tickers configured: set tickers or tickers_file")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if cfg.LookbackDays <= 0 {
		return fmt.Errorf("lookback-days must be > 0")
	}
	if _, err := md.ParseTimeframe(cfg.Timeframe); err != nil {
		return err
	}
	if cfg.Feed != "iex" && cfg.Feed != "sip" {
		return fmt.Errorf("invalid feed: %s", cfg.Feed)
	}
	if cfg.Mode == ModeSchedule && cfg.Schedule == "" {
		return fmt.Errorf("schedule mode needs a schedule")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	if cfg.Trade {
		if cfg.Order.Qty == nil && cfg.Order.Value == nil {
			return fmt.Errorf("trading needs order qty or value")
		}
		if cfg.Order.Qty != nil && *cfg.Order.Qty <= 0 {
			return fmt.Errorf("order qty must be > 0")
		}
		if cfg.Order.Value != nil && *cfg.Order.Value <= 0 {
			return fmt.Errorf("order value must be > 0")
		}
	}
	for name, pct := range map[string]*float64{"stop-loss": cfg.Order.StopLossPct, "take-profit": cfg.Order.TakeProfitPct} {
		if pct != nil && (*pct <= 0 || *pct >= 1) {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if cfg.Order.TimeInForce != "gtc" && cfg.Order.TimeInForce != "day" {
		return fmt.Errorf("invalid time in force: %s", cfg.Order.TimeInForce)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be > 0")
	}
	if cfg.Retry.Delay < 0 {
		return fmt.Errorf("retry delay must be >= 0")
	}
	if cfg.Risk.MaxQty < 0 || cfg.Risk.MaxNotional < 0 {
		return fmt.Errorf("risk limits must be >= 0")
	}
	if cfg.Risk.Cooldown < 0 {
		return fmt.Errorf("cooldown must be >= 0")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}
