package optimise

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mocat/internal/backtest"
	"mocat/internal/logger"
	"mocat/internal/market"
)

// Result 为一次参数搜索的最终产物。
type Result struct {
	ID         string
	Engine     string
	Best       *Candidate
	Evaluated  time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// OptimisedParams 把最优候选转成可落盘、可复跑的参数文件。
func (r *Result) OptimisedParams(m market.Market) backtest.OptimisedParams {
	return backtest.OptimisedParams{
		Market:      m,
		ChartConfig: r.Best.ChartConfig,
		TradeConfig: r.Best.TradeConfig,
	}
}

// Record 组装待入库的搜索摘要。
func (r *Result) Record(m market.Market, purpose string) backtest.OptimisationRecord {
	return backtest.OptimisationRecord{
		ID:                r.ID,
		Engine:            r.Engine,
		Market:            string(m),
		Purpose:           purpose,
		TradeCount:        r.Best.TradeCount,
		WinningTradeCount: r.Best.WinningTradeCount,
		LosingTradeCount:  r.Best.LosingTradeCount,
		SuccessRate:       r.Best.SuccessRate,
		ChartConfig:       r.Best.ChartConfig,
		TradeConfig:       r.Best.TradeConfig,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
	}
}

// Run 执行一次完整的参数搜索。引擎跑完后从协调器取出最优候选。
func Run(ctx context.Context, engine Engine, space Space, ev *Evaluator, coord *Coordinator) (*Result, error) {
	started := time.Now()
	logger.InfoBlock(fmt.Sprintf("参数搜索: engine=%s axes=%d", engine.Name(), len(space)))

	if err := engine.Search(ctx, space, ev, coord); err != nil {
		return nil, err
	}

	best := coord.Best()
	if best == nil {
		return nil, fmt.Errorf("%w: 搜索结束但没有任何有效候选", backtest.ErrInvalidConfig)
	}

	finished := time.Now()
	metric, _ := best.Metric()
	logger.Infof("搜索完成: engine=%s success_rate=%.2f cost=%.2f 用时=%s",
		engine.Name(), metric, best.Cost, finished.Sub(started).Round(time.Second))

	return &Result{
		ID:         uuid.NewString(),
		Engine:     engine.Name(),
		Best:       best,
		Evaluated:  finished.Sub(started),
		StartedAt:  started,
		FinishedAt: finished,
	}, nil
}

// PreloadCache 在搜索开始前把各区间每天的行情按基准配置跑一遍，
// 填满价格缓存，让并发任务直接命中。
func PreloadCache(ctx context.Context, engine *backtest.Engine, fixed FixedInputs) error {
	for _, rng := range fixed.DateTimeRanges {
		_, err := engine.Run(ctx, backtest.Input{
			Market:      fixed.Market,
			StartDate:   rng.StartDate,
			StartTime:   rng.StartTime,
			EndDate:     rng.EndDate,
			EndTime:     rng.EndTime,
			ChartConfig: fixed.BaseChart,
			TradeConfig: fixed.BaseTrade,
			Purpose:     "cache preload",
		})
		if err != nil {
			return err
		}
	}
	return nil
}
