package optimise

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"mocat/internal/backtest"
	"mocat/internal/market"
)

// DateTimeRange 为一段回测区间及其当日交易起始时刻。
type DateTimeRange struct {
	StartDate    time.Time
	StartTime    market.ClockTime
	EndDate      time.Time
	EndTime      market.ClockTime
	MinEntryTime market.ClockTime
}

// FixedInputs 为搜索期间保持不变的输入。搜索轴覆盖不到的配置
// 字段取这里的基准值。
type FixedInputs struct {
	Market         market.Market
	DateTimeRanges []DateTimeRange
	BaseChart      backtest.ChartConfig
	BaseTrade      backtest.TradeConfig
	Purpose        string
}

// Candidate 为一次完整评估的产物。
type Candidate struct {
	Assignment  Assignment
	ChartConfig backtest.ChartConfig
	TradeConfig backtest.TradeConfig
	Results     []*backtest.Result

	TradeCount        int
	WinningTradeCount int
	LosingTradeCount  int
	SuccessRate       *float64
	// Cost 为负的点数净收益，越小越好。
	Cost float64
}

// Clone 返回不与评估方共享任何可变状态的深拷贝。
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.Assignment = c.Assignment.Clone()
	out.Results = make([]*backtest.Result, len(c.Results))
	for i, r := range c.Results {
		cp := *r
		cp.Daily = make([]*backtest.DailyResult, len(r.Daily))
		for j, d := range r.Daily {
			dc := *d
			dc.Trades = append([]backtest.Trade(nil), d.Trades...)
			if d.SuccessRate != nil {
				v := *d.SuccessRate
				dc.SuccessRate = &v
			}
			cp.Daily[j] = &dc
		}
		if r.SuccessRate != nil {
			v := *r.SuccessRate
			cp.SuccessRate = &v
		}
		out.Results[i] = &cp
	}
	if c.SuccessRate != nil {
		v := *c.SuccessRate
		out.SuccessRate = &v
	}
	return &out
}

// Metric 返回用于比较候选的成功率；没有交易时 ok 为 false。
func (c *Candidate) Metric() (float64, bool) {
	if c == nil || c.SuccessRate == nil {
		return 0, false
	}
	return *c.SuccessRate, true
}

// Evaluator 把参数赋值翻译成回测输入并执行，是全部搜索引擎共用
// 的代价函数。
type Evaluator struct {
	engine *backtest.Engine
	fixed  FixedInputs
}

func NewEvaluator(engine *backtest.Engine, fixed FixedInputs) *Evaluator {
	return &Evaluator{engine: engine, fixed: fixed}
}

// Evaluate 在全部固定区间上回测一次参数赋值。
func (e *Evaluator) Evaluate(ctx context.Context, assignment Assignment) (*Candidate, error) {
	chartCfg, tradeCfg, err := e.bind(assignment)
	if err != nil {
		return nil, err
	}

	cand := &Candidate{
		Assignment:  assignment.Clone(),
		ChartConfig: chartCfg,
		TradeConfig: tradeCfg,
	}

	var totalGain float64
	for _, rng := range e.fixed.DateTimeRanges {
		trade := tradeCfg
		if rng.MinEntryTime != 0 {
			trade.MinEntryTime = rng.MinEntryTime
		}

		result, err := e.engine.Run(ctx, backtest.Input{
			Market:      e.fixed.Market,
			StartDate:   rng.StartDate,
			StartTime:   rng.StartTime,
			EndDate:     rng.EndDate,
			EndTime:     rng.EndTime,
			ChartConfig: chartCfg,
			TradeConfig: trade,
			Purpose:     e.fixed.Purpose,
		})
		if err != nil {
			return nil, err
		}

		cand.Results = append(cand.Results, result)
		cand.TradeCount += result.TradeCount
		cand.WinningTradeCount += result.WinningTradeCount
		cand.LosingTradeCount += result.LosingTradeCount
		totalGain += result.TotalGain()
	}

	if cand.TradeCount > 0 {
		rate := float64(cand.WinningTradeCount) / float64(cand.TradeCount) * 100
		cand.SuccessRate = &rate
	}
	cand.Cost = -totalGain
	return cand, nil
}

var entryConditionKey = regexp.MustCompile(`^entry_condition_(\d+)_(max_variance|min_abs_trend_slope|min_abs_price_slope|min_abs_price_momentum)$`)

// bind 把一次赋值套到基准配置上。未知键是配置错误。
func (e *Evaluator) bind(assignment Assignment) (backtest.ChartConfig, backtest.TradeConfig, error) {
	chart := e.fixed.BaseChart
	trade := e.fixed.BaseTrade
	trade.EntryConditions = append([]backtest.EntryCondition(nil), trade.EntryConditions...)

	if _, ok := assignment["entry_condition_count"]; ok {
		count, err := assignment.Int("entry_condition_count")
		if err != nil {
			return chart, trade, err
		}
		trade.EntryConditions = resizeTiers(trade.EntryConditions, count)
	}

	for key := range assignment {
		var err error
		switch key {
		case "entry_condition_count":
			// 已处理
		case "chart_config_smooth_price_averaging_method":
			chart.SmoothPriceAveragingMethod, err = assignment.String(key)
		case "chart_config_smooth_price_period":
			chart.SmoothPricePeriod, err = assignment.Int(key)
		case "chart_config_smooth_price_ema_period":
			chart.SmoothPriceEMAPeriod, err = assignment.Int(key)
		case "chart_config_smooth_slope_averaging_method":
			chart.SmoothSlopeAveragingMethod, err = assignment.String(key)
		case "chart_config_smooth_slope_period":
			chart.SmoothSlopePeriod, err = assignment.Int(key)
		case "chart_config_smooth_slope_ema_period":
			chart.SmoothSlopeEMAPeriod, err = assignment.Int(key)
		case "chart_config_smooth_momentum_period":
			chart.SmoothMomentumPeriod, err = assignment.Int(key)
		case "chart_config_smooth_momentum_ema_period":
			chart.SmoothMomentumEMAPeriod, err = assignment.Int(key)
		case "trend_line_time_period_in_sec":
			trade.TrendLineTimePeriodSec, err = assignment.Int(key)
		case "exit_condition_profit_target_type":
			trade.ExitCondition.ProfitTargetType, err = assignment.String(key)
		case "exit_condition_profit_target_points":
			trade.ExitCondition.ProfitTargetPoints, err = assignment.Float(key)
		case "exit_condition_stoploss_type":
			trade.ExitCondition.StoplossType, err = assignment.String(key)
		case "exit_condition_stoploss_points":
			trade.ExitCondition.StoplossPoints, err = assignment.Float(key)
		default:
			err = e.bindEntryCondition(&trade, assignment, key)
		}
		if err != nil {
			return chart, trade, err
		}
	}
	return chart, trade, nil
}

func (e *Evaluator) bindEntryCondition(trade *backtest.TradeConfig, assignment Assignment, key string) error {
	m := entryConditionKey.FindStringSubmatch(key)
	if m == nil {
		return fmt.Errorf("%w: 未知搜索参数 %s", backtest.ErrInvalidConfig, key)
	}
	tier, _ := strconv.Atoi(m[1])
	if tier < 1 {
		return fmt.Errorf("%w: 入场档序号 %s 不合法", backtest.ErrInvalidConfig, key)
	}
	if tier > len(trade.EntryConditions) {
		trade.EntryConditions = resizeTiers(trade.EntryConditions, tier)
	}

	val, err := assignment.Float(key)
	if err != nil {
		return err
	}
	cond := &trade.EntryConditions[tier-1]
	switch m[2] {
	case "max_variance":
		cond.MaxVariance = val
	case "min_abs_trend_slope":
		cond.MinAbsTrendSlope = val
	case "min_abs_price_slope":
		cond.MinAbsPriceSlope = val
	case "min_abs_price_momentum":
		cond.MinAbsPriceMomentum = val
	}
	return nil
}

func resizeTiers(tiers []backtest.EntryCondition, count int) []backtest.EntryCondition {
	if count <= len(tiers) {
		return tiers[:count]
	}
	out := make([]backtest.EntryCondition, count)
	copy(out, tiers)
	return out
}
