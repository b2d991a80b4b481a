package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pasiu/gridbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.yaml"), nil)

	cfg := store.Load()
	require.Equal(t, []string{"AAPL", "TSLA", "NVDA", "AMZN", "META", "GOOGL", "MCD", "HOOD"}, cfg.Symbols)
	require.True(t, cfg.BuyDropPercent.Equal(decimal.NewFromFloat(1.0)))
	require.True(t, cfg.SellRisePercent.Equal(decimal.NewFromFloat(2.0)))
	require.Equal(t, StakeModeFixed, cfg.Stake.Mode)
	require.Equal(t, domain.ProfitTake, cfg.ProfitMode)
	require.True(t, cfg.AlwaysOn)
	require.True(t, cfg.KeepProfitShares)
}

func TestLoad_BrokenFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	store := NewStore(path, nil)
	cfg := store.Load()
	require.Equal(t, DefaultFile().Symbols, cfg.Symbols)
}

func TestLoad_ReadsFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
symbols: [AAPL, MSFT]
buy_drop_percent: 2.5
sell_rise_percent: 4.0
stake_settings:
  mode: percent
  fixed_amount: 20
  percent_amount: 3
profit_mode: LEAVE
always_on: false
check_interval: 30
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	store := NewStore(path, nil)
	cfg := store.Load()

	require.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols)
	require.True(t, cfg.BuyDropPercent.Equal(decimal.NewFromFloat(2.5)))
	require.Equal(t, StakeModePercent, cfg.Stake.Mode)
	require.True(t, cfg.Stake.PercentAmount.Equal(decimal.NewFromFloat(3)))
	require.Equal(t, domain.ProfitLeave, cfg.ProfitMode)
	require.False(t, cfg.AlwaysOn)
	require.Equal(t, float64(30), cfg.CheckInterval.Seconds())
}

func TestUpdate_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewStore(path, nil)

	err := store.Update(func(f *File) {
		f.Symbols = []string{"TSLA"}
		f.BuyDropPercent = 3.0
	})
	require.NoError(t, err)

	cfg := store.Load()
	require.Equal(t, []string{"TSLA"}, cfg.Symbols)
	require.True(t, cfg.BuyDropPercent.Equal(decimal.NewFromFloat(3.0)))
}

func TestUpdate_PreservesUnrelatedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewStore(path, nil)

	require.NoError(t, store.Update(func(f *File) {
		f.SellRisePercent = 5.0
	}))
	require.NoError(t, store.Update(func(f *File) {
		f.Symbols = append(f.Symbols, "IBM")
	}))

	cfg := store.Load()
	require.True(t, cfg.SellRisePercent.Equal(decimal.NewFromFloat(5.0)))
	require.Contains(t, cfg.Symbols, "IBM")
}

func TestToConfig_InvalidModesFallBack(t *testing.T) {
	f := DefaultFile()
	f.StakeSettings.Mode = "bogus"
	f.ProfitMode = "bogus"

	cfg := f.ToConfig(true)
	require.Equal(t, StakeModeFixed, cfg.Stake.Mode)
	require.Equal(t, domain.ProfitTake, cfg.ProfitMode)
}

func TestDryRunFromEnv(t *testing.T) {
	t.Setenv(TradingModeEnv, "")
	require.True(t, DryRunFromEnv())

	t.Setenv(TradingModeEnv, "DRY")
	require.True(t, DryRunFromEnv())

	t.Setenv(TradingModeEnv, "LIVE")
	require.False(t, DryRunFromEnv())
}
