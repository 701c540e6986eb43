package app

import (
	"context"
	"fmt"
	"time"

	"mocat/internal/backtest"
	"mocat/internal/config"
	"mocat/internal/logger"
	"mocat/internal/market"
	"mocat/internal/optimise"
	"mocat/internal/pricing"
)

// App 把配置装配成可运行的回测/搜索服务。
type App struct {
	cfg     *config.Config
	engine  *backtest.Engine
	store   *backtest.ResultStore
	fetcher *market.Service
}

// NewApp 按配置装配全部组件。
func NewApp(cfg *config.Config) (*App, error) {
	tickStore, err := market.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("打开行情库失败: %w", err)
	}

	sources := map[string]market.TickSource{
		"upstox":  market.NewUpstoxSource(cfg.Fetch.UpstoxBaseURL),
		"binance": market.NewBinanceSource(nil),
	}
	fetcher, err := market.NewService(market.ServiceConfig{
		Store:           tickStore,
		Sources:         sources,
		DefaultSource:   cfg.Fetch.Source,
		RateLimitPerMin: cfg.Fetch.RatePerMin,
		MaxConcurrent:   cfg.Fetch.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("装配行情服务失败: %w", err)
	}

	resultStore, err := backtest.OpenResultStore(cfg.Data.ResultDB)
	if err != nil {
		return nil, fmt.Errorf("打开结果库失败: %w", err)
	}

	engine := backtest.NewEngine(backtest.EngineConfig{
		Fetcher:   fetcher,
		BucketSec: cfg.Chart.BucketSec,
		Smoothing: cfg.Chart.Smoothing,
	})

	return &App{
		cfg:     cfg,
		engine:  engine,
		store:   resultStore,
		fetcher: fetcher,
	}, nil
}

// RunOptions 为一次命令行调用的范围参数。
type RunOptions struct {
	Market    market.Market
	StartDate time.Time
	EndDate   time.Time
	StartTime market.ClockTime
	EndTime   market.ClockTime
	Purpose   string
	// ParamsFile 为 replay 模式的最优参数文件。
	ParamsFile string
}

// RunBacktest 用配置文件里的基准参数跑一次回测并落库。
func (a *App) RunBacktest(ctx context.Context, opts RunOptions) error {
	chartCfg, tradeCfg, err := a.baseConfigs()
	if err != nil {
		return err
	}

	result, err := a.engine.Run(ctx, backtest.Input{
		Market:      opts.Market,
		StartDate:   opts.StartDate,
		StartTime:   opts.StartTime,
		EndDate:     opts.EndDate,
		EndTime:     opts.EndTime,
		ChartConfig: chartCfg,
		TradeConfig: tradeCfg,
		Purpose:     opts.Purpose,
	})
	if err != nil {
		return err
	}

	logSummary(result)
	return a.store.SaveBacktest(ctx, result)
}

// RunOptimise 按搜索空间文件跑参数搜索，最优参数落盘并入库。
func (a *App) RunOptimise(ctx context.Context, opts RunOptions) error {
	registry, err := optimise.NewRegistry(a.cfg.Optimise.SpaceFile)
	if err != nil {
		return err
	}
	snap := registry.Snapshot()

	engineName := snap.Engine
	if engineName == "" {
		engineName = a.cfg.Optimise.Engine
	}
	workers := snap.Workers
	if workers <= 0 {
		workers = a.cfg.Optimise.Workers
	}
	searchEngine, err := optimise.NewEngine(engineName, workers)
	if err != nil {
		return err
	}

	chartCfg, tradeCfg, err := a.baseConfigs()
	if err != nil {
		return err
	}
	fixed := optimise.FixedInputs{
		Market: opts.Market,
		DateTimeRanges: []optimise.DateTimeRange{{
			StartDate:    opts.StartDate,
			StartTime:    opts.StartTime,
			EndDate:      opts.EndDate,
			EndTime:      opts.EndTime,
			MinEntryTime: tradeCfg.MinEntryTime,
		}},
		BaseChart: chartCfg,
		BaseTrade: tradeCfg,
		Purpose:   opts.Purpose,
	}

	ev := optimise.NewEvaluator(a.engine, fixed)
	coord := optimise.NewCoordinator()

	if err := optimise.PreloadCache(ctx, a.engine, fixed); err != nil {
		logger.Warnf("缓存预热失败: %v", err)
	}

	result, err := optimise.Run(ctx, searchEngine, snap.Space, ev, coord)
	if err != nil {
		return err
	}

	params := result.OptimisedParams(opts.Market)
	if err := params.WriteFile(a.cfg.Optimise.ParamsOut); err != nil {
		return fmt.Errorf("写最优参数文件失败: %w", err)
	}
	logger.Infof("最优参数已写入 %s", a.cfg.Optimise.ParamsOut)

	return a.store.SaveOptimisation(ctx, result.Record(opts.Market, opts.Purpose), result.Best.Results)
}

// RunReplay 读取落盘的最优参数，在给定测试区间上复跑。
func (a *App) RunReplay(ctx context.Context, opts RunOptions) error {
	in, err := backtest.InputFromParamsFile(
		opts.ParamsFile, opts.StartDate, opts.EndDate, opts.StartTime, opts.EndTime)
	if err != nil {
		return err
	}
	if opts.Market != "" {
		in.Market = opts.Market
	}

	result, err := a.engine.Run(ctx, in)
	if err != nil {
		return err
	}

	logSummary(result)
	return a.store.SaveBacktest(ctx, result)
}

// baseConfigs 把文件配置翻译成回测实体。
func (a *App) baseConfigs() (backtest.ChartConfig, backtest.TradeConfig, error) {
	chartCfg := backtest.ChartConfig{
		SmoothPriceAveragingMethod: a.cfg.Chart.SmoothPriceAveragingMethod,
		SmoothPricePeriod:          a.cfg.Chart.SmoothPricePeriod,
		SmoothPriceEMAPeriod:       a.cfg.Chart.SmoothPriceEMAPeriod,
		SmoothSlopeAveragingMethod: a.cfg.Chart.SmoothSlopeAveragingMethod,
		SmoothSlopePeriod:          a.cfg.Chart.SmoothSlopePeriod,
		SmoothSlopeEMAPeriod:       a.cfg.Chart.SmoothSlopeEMAPeriod,
		SmoothMomentumPeriod:       a.cfg.Chart.SmoothMomentumPeriod,
		SmoothMomentumEMAPeriod:    a.cfg.Chart.SmoothMomentumEMAPeriod,
	}

	minEntry, err := market.ParseClockTime(a.cfg.Trade.MinEntryTime)
	if err != nil {
		return backtest.ChartConfig{}, backtest.TradeConfig{}, err
	}
	tiers := make([]backtest.EntryCondition, len(a.cfg.Trade.EntryConditions))
	for i, tier := range a.cfg.Trade.EntryConditions {
		tiers[i] = backtest.EntryCondition{
			MaxVariance:         tier.MaxVariance,
			MinAbsTrendSlope:    tier.MinAbsTrendSlope,
			MinAbsPriceSlope:    tier.MinAbsPriceSlope,
			MinAbsPriceMomentum: tier.MinAbsPriceMomentum,
		}
	}
	tradeCfg := backtest.TradeConfig{
		TrendLineTimePeriodSec: a.cfg.Trade.TrendLineTimePeriodSec,
		MinEntryTime:           minEntry,
		EntryConditions:        tiers,
		ExitCondition: backtest.ExitCondition{
			ProfitTargetType:   a.cfg.Trade.ProfitTargetType,
			ProfitTargetPoints: a.cfg.Trade.ProfitTargetPoints,
			StoplossType:       a.cfg.Trade.StoplossType,
			StoplossPoints:     a.cfg.Trade.StoplossPoints,
		},
	}

	// 基准配置自身必须能通过流水线参数检查
	if _, err := chartCfg.PricingConfig(pricing.DefaultSmoothing); err != nil {
		return backtest.ChartConfig{}, backtest.TradeConfig{}, err
	}
	return chartCfg, tradeCfg, nil
}

func logSummary(result *backtest.Result) {
	rate := "n/a"
	if result.SuccessRate != nil {
		rate = fmt.Sprintf("%.2f%%", *result.SuccessRate)
	}
	logger.Infof("回测完成: market=%s trades=%d winning=%d losing=%d success_rate=%s gain=%.2f",
		result.Market, result.TradeCount, result.WinningTradeCount,
		result.LosingTradeCount, rate, result.TotalGain())
}
