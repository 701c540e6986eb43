package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
data:
  root: /tmp/mocat-data
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/mocat-data", cfg.Data.Root)
	// 未给出的字段取默认值
	assert.Equal(t, "data/results.db", cfg.Data.ResultDB)
	assert.Equal(t, "upstox", cfg.Fetch.Source)
	assert.Equal(t, 25, cfg.Fetch.RatePerMin)
	assert.Equal(t, 60, cfg.Chart.BucketSec)
	assert.Equal(t, 2.0, cfg.Chart.Smoothing)
	assert.Equal(t, "simple", cfg.Chart.SmoothPriceAveragingMethod)
	assert.Equal(t, 11, cfg.Chart.SmoothPricePeriod)
	assert.Equal(t, "09:20:00", cfg.Trade.MinEntryTime)
	assert.Equal(t, "fixed", cfg.Trade.StoplossType)
	assert.Equal(t, "grid", cfg.Optimise.Engine)
	assert.Equal(t, 8, cfg.Optimise.Workers)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
fetch:
  source: binance
  rate_per_min: 50
chart:
  bucket_sec: 20
  smooth_price_averaging_method: exponential
  smooth_price_period: 7
trade:
  trend_line_time_period_in_sec: 300
  min_entry_time: "09:48:00"
  entry_conditions:
    - max_variance: 6.5
      min_abs_trend_slope: 0.175
    - max_variance: 24.7
      min_abs_price_momentum: 0.06
optimise:
  engine: genetic
  workers: 4
  space_file: configs/search_space.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Fetch.Source)
	assert.Equal(t, 50, cfg.Fetch.RatePerMin)
	assert.Equal(t, 20, cfg.Chart.BucketSec)
	assert.Equal(t, "exponential", cfg.Chart.SmoothPriceAveragingMethod)
	assert.Equal(t, 7, cfg.Chart.SmoothPricePeriod)
	assert.Equal(t, 300, cfg.Trade.TrendLineTimePeriodSec)
	assert.Equal(t, "09:48:00", cfg.Trade.MinEntryTime)
	require.Len(t, cfg.Trade.EntryConditions, 2)
	assert.Equal(t, 6.5, cfg.Trade.EntryConditions[0].MaxVariance)
	assert.Equal(t, 0.06, cfg.Trade.EntryConditions[1].MinAbsPriceMomentum)
	assert.Equal(t, "genetic", cfg.Optimise.Engine)
	assert.Equal(t, "configs/search_space.yaml", cfg.Optimise.SpaceFile)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"chart:\n  smooth_price_averaging_method: hull\n",
		"trade:\n  min_entry_time: \"9 o'clock\"\n",
		"trade:\n  stoploss_type: trailing\n",
		"fetch:\n  source: nse\n",
		"optimise:\n  engine: annealing\n",
	}
	for _, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, content)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
