package backtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocat/internal/market"
)

func sampleChartConfig() ChartConfig {
	return ChartConfig{
		SmoothPriceAveragingMethod: "simple",
		SmoothPricePeriod:          11,
		SmoothPriceEMAPeriod:       20,
		SmoothSlopeAveragingMethod: "exponential",
		SmoothSlopePeriod:          35,
		SmoothSlopeEMAPeriod:       45,
	}
}

func sampleTradeConfig() TradeConfig {
	return TradeConfig{
		TrendLineTimePeriodSec: 120,
		MinEntryTime:           market.NewClockTime(9, 48, 0),
		EntryConditions: []EntryCondition{
			{MaxVariance: 6.5, MinAbsTrendSlope: 0.175, MinAbsPriceSlope: 24.7, MinAbsPriceMomentum: 5.37},
			{MaxVariance: 4.5, MinAbsTrendSlope: 0.35, MinAbsPriceSlope: 5.2, MinAbsPriceMomentum: 2.69},
			{MaxVariance: 0.5, MinAbsTrendSlope: 0.55, MinAbsPriceSlope: 1.9, MinAbsPriceMomentum: 0.129},
		},
		ExitCondition: ExitCondition{
			ProfitTargetType:   FixedExit,
			ProfitTargetPoints: 20,
			StoplossType:       FixedExit,
			StoplossPoints:     10,
		},
	}
}

func TestChartConfigJSONRoundTrip(t *testing.T) {
	cfg := sampleChartConfig()
	raw, err := cfg.ToJSON()
	require.NoError(t, err)

	back, err := ChartConfigFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestTradeConfigJSONRoundTrip(t *testing.T) {
	cfg := sampleTradeConfig()
	raw, err := cfg.ToJSON()
	require.NoError(t, err)

	back, err := TradeConfigFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
	assert.Equal(t, market.NewClockTime(9, 48, 0), back.MinEntryTime)
	assert.Len(t, back.EntryConditions, 3)
}

func TestTradeConfigFromJSONRejectsGarbage(t *testing.T) {
	_, err := TradeConfigFromJSON("{not json")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExitConditionValidate(t *testing.T) {
	cfg := sampleTradeConfig()
	assert.NoError(t, cfg.ExitCondition.validate())

	cfg.ExitCondition.StoplossType = "trailing"
	assert.ErrorIs(t, cfg.ExitCondition.validate(), ErrInvalidConfig)

	cfg = sampleTradeConfig()
	cfg.ExitCondition.ProfitTargetType = "atr"
	assert.ErrorIs(t, cfg.ExitCondition.validate(), ErrInvalidConfig)
}

func TestPricingConfigRejectsUnknownMethod(t *testing.T) {
	cfg := sampleChartConfig()
	cfg.SmoothSlopeAveragingMethod = "hull"
	_, err := cfg.PricingConfig(2)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptimisedParamsFileRoundTrip(t *testing.T) {
	params := OptimisedParams{
		Market:      market.Nifty,
		ChartConfig: sampleChartConfig(),
		TradeConfig: sampleTradeConfig(),
	}

	path := filepath.Join(t.TempDir(), "optimised_params.json")
	require.NoError(t, params.WriteFile(path))

	back, err := ReadOptimisedParams(path)
	require.NoError(t, err)
	assert.Equal(t, params, back)
}
