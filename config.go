package ledgerx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	IDs struct {
		Kind string `yaml:"kind"`
		Node int64  `yaml:"node"`
	} `yaml:"ids"`
	// Currencies maps currency codes to their number of fractional digits.
	Currencies map[string]int32 `yaml:"currencies"`
	Rates      struct {
		Base string `yaml:"base"`
		// Table holds units per one unit of Base, as decimal strings.
		Table   map[string]string `yaml:"table"`
		URL     string            `yaml:"url"`
		Timeout time.Duration     `yaml:"timeout"`
		// CacheTTL is how long a fetched rate table is reused.
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"rates"`
	Breaker struct {
		MaxRequests         uint32        `yaml:"max_requests"`
		Interval            time.Duration `yaml:"interval"`
		Timeout             time.Duration `yaml:"timeout"`
		ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	} `yaml:"breaker"`
	// Limits caps in-flight requests per operation: create, show, deposit,
	// withdraw, transfer, split, statement. Zero or absent means unlimited.
	Limits map[string]int64    `yaml:"limits"`
	Seed   []CreateAccountReq `yaml:"seed"`
}

const (
	EnvAddr     = "LEDGERX_ADDR"
	EnvLogLevel = "LEDGERX_LOG_LEVEL"
	EnvRatesURL = "LEDGERX_RATES_URL"
)

// LoadConfig reads the YAML file at path, then applies overrides from the
// environment. A .env file in the working directory is loaded if present.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func DecodeConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = zerolog.InfoLevel.String()
	}
	if c.IDs.Kind == "" {
		c.IDs.Kind = IDKindSnowflake
	}
	if c.Rates.Timeout == 0 {
		c.Rates.Timeout = 5 * time.Second
	}
	if c.Rates.CacheTTL == 0 {
		c.Rates.CacheTTL = time.Minute
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvAddr); ok {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Server.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvRatesURL); ok {
		c.Rates.URL = v
	}
}

func (c *Config) IDGenerator() (IDGenerator, error) {
	return NewIDGenerator(c.IDs.Kind, c.IDs.Node)
}

// CurrencyService builds the configured rate source behind a circuit
// breaker. With a rates URL the remote source is used, otherwise the static
// table.
func (c *Config) CurrencyService(log *zerolog.Logger) (CurrencyService, error) {
	table := make(map[string]decimal.Decimal, len(c.Rates.Table))
	for code, v := range c.Rates.Table {
		r, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", code, err)
		}
		table[code] = r
	}
	static, err := NewStaticCurrencies(c.Currencies, c.Rates.Base, table)
	if err != nil {
		return nil, err
	}

	var cs CurrencyService = static
	if c.Rates.URL != "" {
		client := &http.Client{Timeout: c.Rates.Timeout}
		cs = NewRemoteRates(static, c.Rates.URL, client, log).WithCacheTTL(c.Rates.CacheTTL)
	}
	return NewCurrencyBreaker(cs, c.BreakerSettings(log)), nil
}

func (c *Config) BreakerSettings(log *zerolog.Logger) gobreaker.Settings {
	failures := c.Breaker.ConsecutiveFailures
	return gobreaker.Settings{
		Name:        "rates",
		MaxRequests: c.Breaker.MaxRequests,
		Interval:    c.Breaker.Interval,
		Timeout:     c.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			}
		},
	}
}

func (c *Config) ServiceLimits() *ServiceLimits {
	sem := func(op string) *semaphore.Weighted {
		n := c.Limits[op]
		if n <= 0 {
			return nil
		}
		return semaphore.NewWeighted(n)
	}
	return &ServiceLimits{
		CreateAccount: sem("create"),
		Show:          sem("show"),
		Deposit:       sem("deposit"),
		Withdraw:      sem("withdraw"),
		Transfer:      sem("transfer"),
		Split:         sem("split"),
		Statement:     sem("statement"),
	}
}
