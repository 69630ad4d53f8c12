// Package ops loads and validates the runtime configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"main/internal/exchange"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Database      DatabaseConfig      `json:"database"`
	Exchange      ExchangeConfig      `json:"exchange"`
	Bot           BotConfig           `json:"bot"`
	Fees          map[string]float64  `json:"fees"`
	Observability ObservabilityConfig `json:"observability"`
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"sslMode"`
}

// ExchangeConfig describes the trading venue and its credentials.
// Key and secret may be left empty in the file and supplied through
// the EXCHANGE_API_KEY / EXCHANGE_API_SECRET environment variables.
type ExchangeConfig struct {
	Name       string `json:"name"`
	Ticker     string `json:"ticker"`
	Account    string `json:"account"`
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	BaseURL    string `json:"baseUrl"`
	RecvWindow int64  `json:"recvWindowMillis"`
}

// BotConfig selects the bot row and tunes the loop cadence.
type BotConfig struct {
	ID             uint64 `json:"id"`
	IntervalMillis int64  `json:"intervalMillis"`
	SettleSeconds  int64  `json:"settleSeconds"`
}

// ObservabilityConfig captures the optional metrics and profiling
// endpoints.
type ObservabilityConfig struct {
	MetricsAddr   string `json:"metricsAddr"`
	PyroscopeURL  string `json:"pyroscopeUrl"`
	PyroscopeName string `json:"pyroscopeName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Database      DatabaseConfig
	Exchange      ExchangeConfig
	Bot           BotConfig
	Fees          exchange.FeeSchedule
	Observability ObservabilityConfig
}

// Interval is the per-iteration sleep of the decision loops.
func (b BotConfig) Interval() time.Duration {
	return time.Duration(b.IntervalMillis) * time.Millisecond
}

// SettleDelay is the one-time pause before the first iteration.
func (b BotConfig) SettleDelay() time.Duration {
	return time.Duration(b.SettleSeconds) * time.Second
}

// Load reads a JSON config file, applies environment overrides and
// validates the result.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Loaded{}, err
	}

	fees := exchange.DefaultFees()
	for name, rate := range cfg.Fees {
		fees[name] = rate
	}

	return Loaded{
		Database:      cfg.Database,
		Exchange:      cfg.Exchange,
		Bot:           cfg.Bot,
		Fees:          fees,
		Observability: cfg.Observability,
	}, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.Key = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.Secret = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Bot.IntervalMillis <= 0 {
		cfg.Bot.IntervalMillis = 500
	}
	if cfg.Bot.SettleSeconds <= 0 {
		cfg.Bot.SettleSeconds = 5
	}
	if cfg.Exchange.Account == "" {
		cfg.Exchange.Account = "main"
	}
	if cfg.Observability.MetricsAddr == "" {
		cfg.Observability.MetricsAddr = ":9090"
	}
	if cfg.Observability.PyroscopeName == "" {
		cfg.Observability.PyroscopeName = "spread-bot"
	}
}

func validate(cfg FileConfig) error {
	if cfg.Bot.ID == 0 {
		return fmt.Errorf("bot id is required")
	}
	if cfg.Exchange.Name == "" {
		return fmt.Errorf("exchange name is empty")
	}
	if !strings.Contains(cfg.Exchange.Ticker, "/") {
		return fmt.Errorf("ticker must look like BASE/QUOTE, got %q", cfg.Exchange.Ticker)
	}
	if cfg.Exchange.Key == "" || cfg.Exchange.Secret == "" {
		return fmt.Errorf("exchange credentials are missing")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is empty")
	}
	for name, rate := range cfg.Fees {
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("fee rate for %s out of range: %v", name, rate)
		}
	}
	return nil
}
