package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocat/internal/market"
)

func testSeries(t *testing.T, prices []float64) *Series {
	t.Helper()
	base := time.Date(2024, 10, 1, 9, 15, 0, 0, market.IST)
	ticks := make([]market.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = market.Tick{Timestamp: base.Add(time.Duration(i) * time.Minute), Price: p}
	}
	s, err := FromTicks(market.Nifty, ticks)
	require.NoError(t, err)
	return s
}

func testConfig() Config {
	return Config{
		SmoothPriceMethod:    Simple,
		SmoothPricePeriod:    3,
		SmoothPriceEMAPeriod: 3,
		SmoothSlopeMethod:    Simple,
		SmoothSlopePeriod:    3,
		SmoothSlopeEMAPeriod: 3,
		Smoothing:            DefaultSmoothing,
	}
}

func TestStageBeforeDependencyFails(t *testing.T) {
	s := testSeries(t, []float64{100, 101, 102, 103, 104})

	// smooth_price 还没算就求 slope
	err := CalcSlope(s)
	assert.ErrorIs(t, err, ErrDependencyNotReady)

	err = CalcSmoothSlope(s, Simple, 3, DefaultSmoothing)
	assert.ErrorIs(t, err, ErrDependencyNotReady)
}

func TestApplyRunsCascadeInOrder(t *testing.T) {
	s := testSeries(t, []float64{100, 101, 102, 103, 104, 105, 104, 103, 102, 101})
	require.NoError(t, Apply(s, testConfig()))

	for _, stage := range []Stage{
		StageSmoothPrice, StageSmoothPriceEMA, StageSlope,
		StageSmoothSlope, StageSmoothSlopeEMA, StageMomentum,
	} {
		assert.True(t, s.Has(stage), "stage %s", stage)
	}
	assert.False(t, s.Has(StageMomentumRate))

	for i, p := range s.Points {
		assert.InDelta(t, p.SmoothPrice-p.SmoothPriceEMA, p.Slope, 1e-9, "slope at %d", i)
		assert.InDelta(t, p.SmoothSlope-p.SmoothSlopeEMA, p.Momentum, 1e-9, "momentum at %d", i)
	}
}

func TestApplyWithMomentumStages(t *testing.T) {
	cfg := testConfig()
	cfg.SmoothMomentumMethod = Simple
	cfg.SmoothMomentumPeriod = 3
	cfg.SmoothMomentumEMAPeriod = 3

	s := testSeries(t, []float64{100, 101, 102, 103, 104, 105, 104, 103, 102, 101})
	require.NoError(t, Apply(s, cfg))

	assert.True(t, s.Has(StageSmoothMomentum))
	assert.True(t, s.Has(StageSmoothMomentumEMA))
	assert.True(t, s.Has(StageMomentumRate))
	for i, p := range s.Points {
		assert.InDelta(t, p.SmoothMomentum-p.SmoothMomentumEMA, p.MomentumRate, 1e-9, "rate at %d", i)
	}
}

func TestApplyOnEmptySeriesFails(t *testing.T) {
	_, err := FromTicks(market.Nifty, nil)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestFromCandlesUsesAvgPrice(t *testing.T) {
	base := time.Date(2024, 10, 1, 9, 15, 0, 0, market.IST)
	candles := []market.Candle{{
		Open: 100, High: 104, Low: 98, Close: 102,
		Start: base, End: base.Add(time.Minute),
	}}
	s, err := FromCandles(market.Nifty, candles)
	require.NoError(t, err)
	assert.InDelta(t, 101.0, s.Points[0].TickPrice, 1e-9)
	assert.Equal(t, 100.0, s.Points[0].Open)
}

func TestCacheInsertOnce(t *testing.T) {
	cache := NewCache()
	base := time.Date(2024, 10, 1, 9, 15, 0, 0, market.IST)
	key := CacheKey(market.Nifty, base, base.Add(time.Hour), testConfig())

	_, ok := cache.Get(key)
	assert.False(t, ok)

	first := testSeries(t, []float64{1, 2, 3})
	second := testSeries(t, []float64{4, 5, 6})

	stored := cache.Add(key, first)
	assert.Same(t, first, stored)

	// 同键再写入是 no-op，保留首次写入的值
	stored = cache.Add(key, second)
	assert.Same(t, first, stored)

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestCacheKeyDependsOnConfigAndRange(t *testing.T) {
	base := time.Date(2024, 10, 1, 9, 15, 0, 0, market.IST)
	cfg := testConfig()

	k1 := CacheKey(market.Nifty, base, base.Add(time.Hour), cfg)
	k2 := CacheKey(market.BankNifty, base, base.Add(time.Hour), cfg)
	assert.NotEqual(t, k1, k2)

	cfg.SmoothPricePeriod = 5
	k3 := CacheKey(market.Nifty, base, base.Add(time.Hour), cfg)
	assert.NotEqual(t, k1, k3)

	k4 := CacheKey(market.Nifty, base, base.Add(2*time.Hour), cfg)
	assert.NotEqual(t, k3, k4)
}
