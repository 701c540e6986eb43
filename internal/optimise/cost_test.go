package optimise

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocat/internal/backtest"
	"mocat/internal/market"
)

type fetchFunc func(ctx context.Context, req market.TickRequest) ([]market.Tick, error)

func (f fetchFunc) Ticks(ctx context.Context, req market.TickRequest) ([]market.Tick, error) {
	return f(ctx, req)
}

var testDay = time.Date(2024, 10, 1, 0, 0, 0, 0, market.IST)

// risePlungeTicks 先加速上涨后急跌，每 20 秒一个 tick，用来制造
// 一笔确定性止损交易。
func risePlungeTicks(day time.Time) []market.Tick {
	prices := make([]float64, 0, 12)
	for k := 0; k < 10; k++ {
		prices = append(prices, 100+0.5*float64(k*k))
	}
	prices = append(prices, 50, 45)

	base := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, market.IST)
	ticks := make([]market.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = market.Tick{Timestamp: base.Add(time.Duration(i) * 20 * time.Second), Price: p}
	}
	return ticks
}

func testEngine() *backtest.Engine {
	return backtest.NewEngine(backtest.EngineConfig{
		Fetcher: fetchFunc(func(ctx context.Context, req market.TickRequest) ([]market.Tick, error) {
			return risePlungeTicks(testDay), nil
		}),
		BucketSec: 20,
	})
}

func testFixedInputs() FixedInputs {
	return FixedInputs{
		Market: market.Nifty,
		DateTimeRanges: []DateTimeRange{{
			StartDate: testDay,
			StartTime: market.NewClockTime(10, 0, 0),
			EndDate:   testDay,
			EndTime:   market.NewClockTime(10, 4, 0),
		}},
		BaseChart: backtest.ChartConfig{
			SmoothPriceAveragingMethod: "simple",
			SmoothPricePeriod:          2,
			SmoothPriceEMAPeriod:       2,
			SmoothSlopeAveragingMethod: "simple",
			SmoothSlopePeriod:          2,
			SmoothSlopeEMAPeriod:       2,
		},
		BaseTrade: backtest.TradeConfig{
			TrendLineTimePeriodSec: 600,
			MinEntryTime:           market.NewClockTime(9, 20, 0),
			EntryConditions:        []backtest.EntryCondition{{MaxVariance: 1e9}},
			ExitCondition: backtest.ExitCondition{
				ProfitTargetType:   backtest.FixedExit,
				ProfitTargetPoints: 1000,
				StoplossType:       backtest.FixedExit,
				StoplossPoints:     5,
			},
		},
		Purpose: "search",
	}
}

func TestEvaluateCostIsNegatedGain(t *testing.T) {
	ev := NewEvaluator(testEngine(), testFixedInputs())

	cand, err := ev.Evaluate(context.Background(), Assignment{})
	require.NoError(t, err)
	// 唯一一笔交易止损 -5 点，代价为 +5
	assert.Equal(t, 1, cand.TradeCount)
	assert.Equal(t, 1, cand.LosingTradeCount)
	assert.Equal(t, 5.0, cand.Cost)
	require.NotNil(t, cand.SuccessRate)
	assert.Equal(t, 0.0, *cand.SuccessRate)
	require.Len(t, cand.Results, 1)
}

func TestEvaluateRangeMinEntryTimeOverride(t *testing.T) {
	fixed := testFixedInputs()
	// 区间级的入场时刻晚于全部行情，整个区间不可能入场
	fixed.DateTimeRanges[0].MinEntryTime = market.NewClockTime(11, 0, 0)
	ev := NewEvaluator(testEngine(), fixed)

	cand, err := ev.Evaluate(context.Background(), Assignment{})
	require.NoError(t, err)
	assert.Zero(t, cand.TradeCount)
	assert.Nil(t, cand.SuccessRate)
	assert.Equal(t, 0.0, cand.Cost)
}

func TestBindChartAndTradeKeys(t *testing.T) {
	ev := NewEvaluator(nil, testFixedInputs())

	chart, trade, err := ev.bind(Assignment{
		"chart_config_smooth_price_averaging_method": "exponential",
		"chart_config_smooth_price_period":           11,
		"chart_config_smooth_slope_ema_period":       45,
		"trend_line_time_period_in_sec":              300,
		"exit_condition_profit_target_points":        17.5,
		"exit_condition_stoploss_type":               "fixed",
	})
	require.NoError(t, err)
	assert.Equal(t, "exponential", chart.SmoothPriceAveragingMethod)
	assert.Equal(t, 11, chart.SmoothPricePeriod)
	assert.Equal(t, 45, chart.SmoothSlopeEMAPeriod)
	assert.Equal(t, 300, trade.TrendLineTimePeriodSec)
	assert.Equal(t, 17.5, trade.ExitCondition.ProfitTargetPoints)

	// 未覆盖的字段保持基准值
	assert.Equal(t, 2, chart.SmoothPriceEMAPeriod)
	assert.Equal(t, 5.0, trade.ExitCondition.StoplossPoints)
}

func TestBindEntryConditionKeys(t *testing.T) {
	ev := NewEvaluator(nil, testFixedInputs())

	_, trade, err := ev.bind(Assignment{
		"entry_condition_1_max_variance":        6.5,
		"entry_condition_2_min_abs_trend_slope": 0.175,
	})
	require.NoError(t, err)
	// 第二档不存在时自动补齐
	require.Len(t, trade.EntryConditions, 2)
	assert.Equal(t, 6.5, trade.EntryConditions[0].MaxVariance)
	assert.Equal(t, 0.175, trade.EntryConditions[1].MinAbsTrendSlope)

	// 基准配置不被搜索赋值污染
	assert.Len(t, ev.fixed.BaseTrade.EntryConditions, 1)
	assert.Equal(t, 1e9, ev.fixed.BaseTrade.EntryConditions[0].MaxVariance)
}

func TestBindEntryConditionCount(t *testing.T) {
	ev := NewEvaluator(nil, testFixedInputs())

	_, trade, err := ev.bind(Assignment{"entry_condition_count": 3})
	require.NoError(t, err)
	require.Len(t, trade.EntryConditions, 3)
	assert.Equal(t, 1e9, trade.EntryConditions[0].MaxVariance)

	_, trade, err = ev.bind(Assignment{"entry_condition_count": 0})
	require.NoError(t, err)
	assert.Empty(t, trade.EntryConditions)
}

func TestBindRejectsBadKeys(t *testing.T) {
	ev := NewEvaluator(nil, testFixedInputs())

	_, _, err := ev.bind(Assignment{"no_such_parameter": 1})
	assert.ErrorIs(t, err, backtest.ErrInvalidConfig)

	_, _, err = ev.bind(Assignment{"entry_condition_0_max_variance": 1.0})
	assert.ErrorIs(t, err, backtest.ErrInvalidConfig)

	_, _, err = ev.bind(Assignment{"chart_config_smooth_price_period": "eleven"})
	assert.ErrorIs(t, err, backtest.ErrInvalidConfig)
}

func TestCandidateCloneIsDeep(t *testing.T) {
	ev := NewEvaluator(testEngine(), testFixedInputs())
	cand, err := ev.Evaluate(context.Background(), Assignment{"trend_line_time_period_in_sec": 600})
	require.NoError(t, err)

	clone := cand.Clone()
	clone.Assignment["trend_line_time_period_in_sec"] = 1
	clone.Results[0].Daily[0].Trades[0].Gain = 999
	*clone.SuccessRate = 77

	assert.Equal(t, 600, cand.Assignment["trend_line_time_period_in_sec"])
	assert.Equal(t, -5.0, cand.Results[0].Daily[0].Trades[0].Gain)
	assert.Equal(t, 0.0, *cand.SuccessRate)
}
