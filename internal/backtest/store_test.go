package backtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocat/internal/market"
)

func sampleResult() *Result {
	day := time.Date(2024, 10, 1, 0, 0, 0, 0, market.IST)
	rate := 50.0
	return &Result{
		ID:        "bt-1",
		Market:    market.Nifty,
		Purpose:   "unit",
		StartDate: day,
		StartTime: market.SessionOpen,
		EndDate:   day,
		EndTime:   market.SessionClose,
		ChartConfig: ChartConfig{
			SmoothPriceAveragingMethod: "simple",
			SmoothPricePeriod:          11,
			SmoothPriceEMAPeriod:       20,
			SmoothSlopeAveragingMethod: "simple",
			SmoothSlopePeriod:          35,
			SmoothSlopeEMAPeriod:       45,
		},
		TradeConfig: TradeConfig{
			TrendLineTimePeriodSec: 120,
			MinEntryTime:           market.NewClockTime(9, 20, 0),
			EntryConditions:        []EntryCondition{{MaxVariance: 6.5}},
			ExitCondition: ExitCondition{
				ProfitTargetType:   FixedExit,
				ProfitTargetPoints: 20,
				StoplossType:       FixedExit,
				StoplossPoints:     10,
			},
		},
		Daily: []*DailyResult{
			{
				Date:              day,
				StartTime:         market.SessionOpen,
				EndTime:           market.SessionClose,
				ExpectedDirection: DirectionUp,
				Trades: []Trade{
					{
						Date:              day,
						ExpectedDirection: DirectionUp,
						EntryTime:         market.NewClockTime(10, 0, 0),
						EntryPrice:        100,
						EntryReason:       "trendline ok",
						ExitTime:          market.NewClockTime(10, 30, 0),
						ExitPrice:         120,
						ExitReason:        ExitReasonTargetHit,
						Gain:              20,
					},
					{
						Date:              day,
						ExpectedDirection: DirectionUp,
						EntryTime:         market.NewClockTime(11, 0, 0),
						EntryPrice:        130,
						EntryReason:       "trendline ok",
						ExitTime:          market.NewClockTime(11, 5, 0),
						ExitPrice:         120,
						ExitReason:        ExitReasonStoplossHit,
						Gain:              -10,
					},
				},
				TradeCount:        2,
				WinningTradeCount: 1,
				LosingTradeCount:  1,
				SuccessRate:       &rate,
			},
			{
				Date:              day,
				StartTime:         market.SessionOpen,
				EndTime:           market.SessionClose,
				ExpectedDirection: DirectionDown,
			},
		},
		TradeCount:        2,
		WinningTradeCount: 1,
		LosingTradeCount:  1,
		SuccessRate:       &rate,
	}
}

func TestSaveBacktestWritesAllRows(t *testing.T) {
	store, err := OpenResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)

	result := sampleResult()
	require.NoError(t, store.SaveBacktest(context.Background(), result))

	var bt backtestModel
	require.NoError(t, store.db.First(&bt, "id = ?", result.ID).Error)
	assert.Equal(t, "NIFTY", bt.Market)
	assert.Equal(t, "2024-10-01", bt.StartDate)
	assert.Equal(t, "09:15:00", bt.StartTime)
	assert.Equal(t, 2, bt.TradeCount)
	require.NotNil(t, bt.SuccessRate)
	assert.Equal(t, 50.0, *bt.SuccessRate)
	assert.Contains(t, string(bt.ChartConfig), `"smooth_price_period":11`)

	var dailies []dailyBacktestModel
	require.NoError(t, store.db.Where("backtest_id = ?", result.ID).Find(&dailies).Error)
	require.Len(t, dailies, 2)

	var trades []tradeModel
	require.NoError(t, store.db.Where("backtest_id = ?", result.ID).Order("id").Find(&trades).Error)
	require.Len(t, trades, 2)
	assert.Equal(t, "10:00:00", trades[0].EntryTime)
	assert.Equal(t, ExitReasonTargetHit, trades[0].ExitReason)
	assert.Equal(t, -10.0, trades[1].Gain)
	// 交易挂在所属日结果之下
	assert.Equal(t, dailies[0].ID, trades[0].DailyBacktestID)
}

func TestSaveOptimisationWritesSummaryAndResults(t *testing.T) {
	store, err := OpenResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)

	result := sampleResult()
	rate := 50.0
	record := OptimisationRecord{
		ID:                "opt-1",
		Engine:            "grid",
		Market:            "NIFTY",
		Purpose:           "search",
		TradeCount:        2,
		WinningTradeCount: 1,
		LosingTradeCount:  1,
		SuccessRate:       &rate,
		ChartConfig:       result.ChartConfig,
		TradeConfig:       result.TradeConfig,
		StartedAt:         time.Now().Add(-time.Minute),
		FinishedAt:        time.Now(),
	}
	require.NoError(t, store.SaveOptimisation(context.Background(), record, []*Result{result}))

	var opt optimisationModel
	require.NoError(t, store.db.First(&opt, "id = ?", record.ID).Error)
	assert.Equal(t, "grid", opt.Engine)
	assert.Contains(t, string(opt.TradeConfig), `"trend_line_time_period_in_sec":120`)

	// 最优候选对应的回测结果同事务落库
	var count int64
	require.NoError(t, store.db.Model(&backtestModel{}).Where("id = ?", result.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestOpenResultStoreRejectsEmptyPath(t *testing.T) {
	_, err := OpenResultStore("   ")
	assert.Error(t, err)
}
