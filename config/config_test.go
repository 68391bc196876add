package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetYaml(t *testing.T) {
	path := writeConfig(t, `
pair: BTC_USDT
pullback_percent: "5"
profit_target_percent: "0.4"
use_ema_filter: true
trailing_stop: true
trailing_stop_percent: "2.5"
poll_interval: 30s
listen_addr: ":9090"
`)

	cfg, err := getYaml(path)
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", cfg.Pair.Symbol())
	require.True(t, cfg.PullbackPercent.Equal(decimal.NewFromInt(5)))
	require.True(t, cfg.ProfitTargetPercent.Equal(decimal.RequireFromString("0.4")))
	require.True(t, cfg.UseEmaFilter)
	require.True(t, cfg.TrailingStopEnabled)
	require.True(t, cfg.TrailingStopPercent.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, 30*time.Second, cfg.PollInterval)
	require.Equal(t, ":9090", cfg.ListenAddr)
}

func TestGetYamlDefaults(t *testing.T) {
	path := writeConfig(t, `
pair: ETH_USDT
pullback_percent: "3"
profit_target_percent: "1"
`)

	cfg, err := getYaml(path)
	require.NoError(t, err)
	require.True(t, cfg.TrailingStopPercent.Equal(decimal.RequireFromString(DefaultTrailingStopPercent)))
	require.Equal(t, DefaultPollInterval, cfg.PollInterval)
	require.Equal(t, DefaultListenAddr, cfg.ListenAddr)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := fromTmp(ConfigTmp{
			Pair:                "BTC_USDT",
			PullbackPercent:     "5",
			ProfitTargetPercent: "1",
		})
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.PullbackPercent = decimal.Zero
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.ProfitTargetPercent = decimal.NewFromInt(-1)
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.TrailingStopPercent = decimal.Zero
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Pair.To = ""
	require.Error(t, cfg.Validate())

	require.NoError(t, base().Validate())
}

func TestPairFromString(t *testing.T) {
	pair, err := PairFromString("BTC_USDT")
	require.NoError(t, err)
	require.Equal(t, "BTC", pair.From)
	require.Equal(t, "USDT", pair.To)

	for _, bad := range []string{"", "BTCUSDT", "BTC_", "_USDT", "A_B_C"} {
		_, err := PairFromString(bad)
		require.Error(t, err, "pair %q", bad)
	}
}
