package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mocat/internal/logger"
	"mocat/internal/market"
	"mocat/internal/pricing"
)

// TickFetcher 为行情读取接口，由 market.Service 实现。
type TickFetcher interface {
	Ticks(ctx context.Context, req market.TickRequest) ([]market.Tick, error)
}

// Input 为一次回测的全部输入。
type Input struct {
	Market      market.Market
	StartDate   time.Time
	StartTime   market.ClockTime
	EndDate     time.Time
	EndTime     market.ClockTime
	ChartConfig ChartConfig
	TradeConfig TradeConfig
	Purpose     string
}

// InputFromParamsFile 用落盘的最优参数和给定测试区间组装输入。
func InputFromParamsFile(path string, startDate, endDate time.Time, startTime, endTime market.ClockTime) (Input, error) {
	params, err := ReadOptimisedParams(path)
	if err != nil {
		return Input{}, err
	}
	return Input{
		Market:      params.Market,
		StartDate:   startDate,
		StartTime:   startTime,
		EndDate:     endDate,
		EndTime:     endTime,
		ChartConfig: params.ChartConfig,
		TradeConfig: params.TradeConfig,
		Purpose:     fmt.Sprintf("replay %s", path),
	}, nil
}

// Engine 驱动回测：逐日取行情、聚合、跑指标流水线，再分别按
// UP/DOWN 扫描同一条已标注序列。
type Engine struct {
	fetcher   TickFetcher
	cache     *pricing.Cache
	bucketSec int
	smoothing float64
}

type EngineConfig struct {
	Fetcher TickFetcher
	// BucketSec 为 K 线桶长，0 取 60 秒。
	BucketSec int
	// Smoothing 为 EMA 平滑常数 K，0 取 pricing.DefaultSmoothing。
	Smoothing float64
}

func NewEngine(cfg EngineConfig) *Engine {
	bucket := cfg.BucketSec
	if bucket <= 0 {
		bucket = 60
	}
	smoothing := cfg.Smoothing
	if smoothing == 0 {
		smoothing = pricing.DefaultSmoothing
	}
	return &Engine{
		fetcher:   cfg.Fetcher,
		cache:     pricing.NewCache(),
		bucketSec: bucket,
		smoothing: smoothing,
	}
}

// Run 执行整个区间的回测。单日的行情错误只丢弃当日结果，配置
// 类错误让整次回测失败。
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	pricingCfg, err := in.ChartConfig.PricingConfig(e.smoothing)
	if err != nil {
		return nil, err
	}
	if err := in.TradeConfig.ExitCondition.validate(); err != nil {
		return nil, err
	}

	result := &Result{
		ID:          uuid.NewString(),
		Market:      in.Market,
		Purpose:     in.Purpose,
		StartDate:   in.StartDate,
		StartTime:   in.StartTime,
		EndDate:     in.EndDate,
		EndTime:     in.EndTime,
		ChartConfig: in.ChartConfig,
		TradeConfig: in.TradeConfig,
	}

	for day := in.StartDate; !day.After(in.EndDate); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		startTime, endTime := dayWindow(day, in)
		series, err := e.daySeries(ctx, in.Market, day, startTime, endTime, pricingCfg)
		if err != nil {
			if isConfigError(err) {
				return nil, err
			}
			logger.Warnf("回测跳过 %s %s: %v", in.Market, day.Format("2006-01-02"), err)
			continue
		}

		for _, direction := range []Direction{DirectionUp, DirectionDown} {
			daily, err := e.runDay(series, day, startTime, endTime, direction, in.TradeConfig)
			if err != nil {
				return nil, err
			}
			result.addDaily(daily)
		}
	}

	result.finalise()
	return result, nil
}

// dayWindow 返回某天的扫描窗口：首尾日用全局起止时刻，中间日用
// 完整交易时段。
func dayWindow(day time.Time, in Input) (market.ClockTime, market.ClockTime) {
	start := market.SessionOpen
	end := market.SessionClose
	if day.Equal(in.StartDate) {
		start = in.StartTime
	}
	if day.Equal(in.EndDate) {
		end = in.EndTime
	}
	return start, end
}

// daySeries 取出当天窗口内的已标注序列，优先走缓存。同一键的
// 序列算好后不再变更，可被并发任务共享。
func (e *Engine) daySeries(
	ctx context.Context,
	m market.Market,
	day time.Time,
	startTime, endTime market.ClockTime,
	cfg pricing.Config,
) (*pricing.Series, error) {
	start := startTime.At(day)
	end := endTime.At(day)

	key := pricing.CacheKey(m, start, end, cfg)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	ticks, err := e.fetcher.Ticks(ctx, market.TickRequest{Market: m, Start: start, End: end})
	if err != nil {
		return nil, err
	}
	candles, err := market.Aggregate(ticks, e.bucketSec)
	if err != nil {
		return nil, err
	}
	series, err := pricing.FromCandles(m, candles)
	if err != nil {
		return nil, err
	}
	if err := pricing.Apply(series, cfg); err != nil {
		return nil, err
	}
	return e.cache.Add(key, series), nil
}

// runDay 在同一条序列上按单一方向扫描。扫描从头开始找入场，入场
// 后从下一个点起找出场，出场后严格跳到出场点之后继续，不允许持
// 仓重叠。序列结束仍未出场的交易按最后一个点的价格强制平仓。
func (e *Engine) runDay(
	series *pricing.Series,
	day time.Time,
	startTime, endTime market.ClockTime,
	direction Direction,
	cfg TradeConfig,
) (*DailyResult, error) {
	catcher, err := newMoveCatcher(direction)
	if err != nil {
		return nil, err
	}

	daily := &DailyResult{
		Date:              day,
		StartTime:         startTime,
		EndTime:           endTime,
		ExpectedDirection: direction,
	}

	points := series.Points
	n := len(points)
	i := 0
	for i < n-1 {
		enter, entryReason, err := catcher.shouldEnter(series, i, cfg)
		if err != nil {
			return nil, err
		}
		if !enter {
			i++
			continue
		}

		trade := Trade{
			Date:              day,
			ExpectedDirection: direction,
			EntryTime:         points[i].Clock(),
			EntryPrice:        points[i].Open,
			EntryReason:       entryReason,
		}

		for j := i + 1; j < n; j++ {
			exit, exitReason, err := catcher.shouldExit(trade.EntryPrice, series, j, cfg)
			if err != nil {
				return nil, err
			}
			if !exit && j < n-1 {
				continue
			}
			if !exit {
				exitReason = ExitReasonSeriesEnd
			}
			trade.ExitTime = points[j].Clock()
			trade.ExitReason = exitReason
			trade.ExitPrice = catcher.exitPrice(trade.EntryPrice, series, j, exitReason, cfg)
			trade.Gain = catcher.gain(trade.EntryPrice, trade.ExitPrice)

			daily.addTrade(trade, catcher.isWinning(trade.Gain, cfg))
			i = j + 1
			break
		}
	}

	daily.finalise()
	return daily, nil
}

func isConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, pricing.ErrDependencyNotReady)
}
