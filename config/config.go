// Package config loads and persists the strategy parameters. The file is
// re-read at the top of every poll cycle, so edits (including dashboard
// commands) take effect on the next iteration without a restart.
package config

import (
	"os"
	"sync"
	"time"

	"github.com/pasiu/gridbot/internal/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TradingModeEnv selects DRY (simulated fills) vs live/paper connectivity.
// Anything other than "LIVE" and "PAPER" keeps orders local.
const TradingModeEnv = "TRADING_MODE"

// StakeMode selects how the per-cycle trade notional is derived.
const (
	StakeModeFixed   = "fixed"
	StakeModePercent = "percent"
)

// File is the on-disk YAML form of the configuration.
type File struct {
	Symbols         []string `yaml:"symbols"`
	BuyDropPercent  float64  `yaml:"buy_drop_percent"`
	SellRisePercent float64  `yaml:"sell_rise_percent"`
	StakeSettings   struct {
		Mode          string  `yaml:"mode"`
		FixedAmount   float64 `yaml:"fixed_amount"`
		PercentAmount float64 `yaml:"percent_amount"`
	} `yaml:"stake_settings"`
	Currency             string  `yaml:"currency"`
	CheckIntervalSeconds int     `yaml:"check_interval"`
	ProfitMode           string  `yaml:"profit_mode"`
	AlwaysOn             *bool   `yaml:"always_on"`
	AlwaysOnAmount       float64 `yaml:"always_on_amount"`
	KeepProfitShares     *bool   `yaml:"keep_profit_shares"`
}

// StakeSettings is the resolved stake policy.
type StakeSettings struct {
	Mode          string
	FixedAmount   decimal.Decimal
	PercentAmount decimal.Decimal
}

// Config is the resolved configuration for one poll cycle. It is a value:
// callers receive their own copy and thread it into every component call, so
// no cycle can observe a mid-flight reload.
type Config struct {
	Symbols          []string
	BuyDropPercent   decimal.Decimal
	SellRisePercent  decimal.Decimal
	Stake            StakeSettings
	Currency         string
	CheckInterval    time.Duration
	ProfitMode       domain.ProfitMode
	AlwaysOn         bool
	AlwaysOnAmount   decimal.Decimal
	KeepProfitShares bool

	// DryRun comes from the TRADING_MODE environment variable, never the file.
	DryRun bool
}

// DefaultFile returns the built-in parameters used when no config file exists.
func DefaultFile() File {
	var f File
	f.Symbols = []string{"AAPL", "TSLA", "NVDA", "AMZN", "META", "GOOGL", "MCD", "HOOD"}
	f.BuyDropPercent = 1.0
	f.SellRisePercent = 2.0
	f.StakeSettings.Mode = StakeModeFixed
	f.StakeSettings.FixedAmount = 10.0
	f.StakeSettings.PercentAmount = 1.0
	f.Currency = "USD"
	f.CheckIntervalSeconds = 60
	f.ProfitMode = string(domain.ProfitTake)
	alwaysOn := true
	f.AlwaysOn = &alwaysOn
	f.AlwaysOnAmount = 1.0
	keep := true
	f.KeepProfitShares = &keep
	return f
}

// ToConfig resolves the file form into the runtime form.
func (f File) ToConfig(dryRun bool) Config {
	defaults := DefaultFile()

	if len(f.Symbols) == 0 {
		f.Symbols = defaults.Symbols
	}
	if f.CheckIntervalSeconds <= 0 {
		f.CheckIntervalSeconds = defaults.CheckIntervalSeconds
	}
	if f.Currency == "" {
		f.Currency = defaults.Currency
	}

	mode := f.StakeSettings.Mode
	if mode != StakeModeFixed && mode != StakeModePercent {
		mode = StakeModeFixed
	}

	profitMode := domain.ProfitMode(f.ProfitMode)
	if profitMode != domain.ProfitLeave {
		profitMode = domain.ProfitTake
	}

	alwaysOn := true
	if f.AlwaysOn != nil {
		alwaysOn = *f.AlwaysOn
	}
	keepProfitShares := true
	if f.KeepProfitShares != nil {
		keepProfitShares = *f.KeepProfitShares
	}

	return Config{
		Symbols:         f.Symbols,
		BuyDropPercent:  decimal.NewFromFloat(f.BuyDropPercent),
		SellRisePercent: decimal.NewFromFloat(f.SellRisePercent),
		Stake: StakeSettings{
			Mode:          mode,
			FixedAmount:   decimal.NewFromFloat(f.StakeSettings.FixedAmount),
			PercentAmount: decimal.NewFromFloat(f.StakeSettings.PercentAmount),
		},
		Currency:         f.Currency,
		CheckInterval:    time.Duration(f.CheckIntervalSeconds) * time.Second,
		ProfitMode:       profitMode,
		AlwaysOn:         alwaysOn,
		AlwaysOnAmount:   decimal.NewFromFloat(f.AlwaysOnAmount),
		KeepProfitShares: keepProfitShares,
		DryRun:           dryRun,
	}
}

// Store owns all reads and writes of the config file. The bot process is the
// single writer; dashboard commands go through Update so file writes are
// serialized. An external process editing the file concurrently is still a
// last-writer-wins race, so run exactly one gridbot per config file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewStore creates a config store for the given file path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the current configuration. A missing or unreadable file falls
// back to the built-in defaults; Load never fails the cycle.
func (s *Store) Load() Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadFileLocked().ToConfig(DryRunFromEnv())
}

// Update applies mutate to the on-disk form and writes it back.
func (s *Store) Update(mutate func(*File)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.loadFileLocked()
	mutate(&f)

	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", s.path)
	}
	return nil
}

func (s *Store) loadFileLocked() File {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read config file, using defaults",
				zap.String("path", s.path), zap.Error(err))
		}
		return DefaultFile()
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		s.logger.Warn("failed to parse config file, using defaults",
			zap.String("path", s.path), zap.Error(err))
		return DefaultFile()
	}
	return f
}

// DryRunFromEnv reports whether the process runs without live orders.
func DryRunFromEnv() bool {
	mode := os.Getenv(TradingModeEnv)
	return mode != "LIVE" && mode != "PAPER"
}
