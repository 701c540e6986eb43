package backtest

import (
	"errors"
	"fmt"
	"time"

	"mocat/internal/analysis/trend"
	"mocat/internal/pricing"
)

// Direction 为预期行情方向。
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

const (
	ExitReasonStoplossHit = "sl_hit"
	ExitReasonTargetHit   = "target_hit"
	ExitReasonSeriesEnd   = "series_end"
)

// moveCatcher 是单方向的进出场决策器。UP 与 DOWN 互为符号镜像，
// 共用趋势线窗口逻辑。
type moveCatcher interface {
	shouldEnter(s *pricing.Series, i int, cfg TradeConfig) (bool, string, error)
	shouldExit(entryPrice float64, s *pricing.Series, j int, cfg TradeConfig) (bool, string, error)
	exitPrice(entryPrice float64, s *pricing.Series, j int, reason string, cfg TradeConfig) float64
	isWinning(gain float64, cfg TradeConfig) bool
	gain(entryPrice, exitPrice float64) float64
}

func newMoveCatcher(direction Direction) (moveCatcher, error) {
	switch direction {
	case DirectionUp:
		return upMoveCatcher{}, nil
	case DirectionDown:
		return downMoveCatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: 未知方向 %q", ErrInvalidConfig, direction)
	}
}

// trailingTrendline 对第 i 个点往前 window 秒的窗口做趋势线拟合。
func trailingTrendline(s *pricing.Series, i int, cfg TradeConfig) (trend.Line, error) {
	ts := s.Timestamps()
	start := trend.WindowStart(ts, i, time.Duration(cfg.TrendLineTimePeriodSec)*time.Second)
	values := make([]float64, 0, i-start+1)
	for j := start; j <= i; j++ {
		values = append(values, s.Points[j].TickPrice)
	}
	return trend.Fit(values)
}

type upMoveCatcher struct{}

func (upMoveCatcher) shouldEnter(s *pricing.Series, i int, cfg TradeConfig) (bool, string, error) {
	p := s.Points[i]
	if !p.Clock().After(cfg.MinEntryTime) {
		return false, fmt.Sprintf("entry not allowed before min entry time %s", cfg.MinEntryTime), nil
	}

	line, err := trailingTrendline(s, i, cfg)
	if errors.Is(err, trend.ErrShortWindow) {
		return false, "trend window too short", nil
	}
	if err != nil {
		return false, "", err
	}
	for _, cond := range cfg.EntryConditions {
		if line.Variance <= cond.MaxVariance &&
			line.Slope >= cond.MinAbsTrendSlope &&
			p.Slope >= cond.MinAbsPriceSlope &&
			p.Momentum >= cond.MinAbsPriceMomentum {
			reason := fmt.Sprintf(
				"trendline: variance %v <= %v slope %v >= %v, price chart: slope %v >= %v momentum %v >= %v",
				line.Variance, cond.MaxVariance, line.Slope, cond.MinAbsTrendSlope,
				p.Slope, cond.MinAbsPriceSlope, p.Momentum, cond.MinAbsPriceMomentum)
			return true, reason, nil
		}
	}
	return false, "no entry criteria met", nil
}

func (upMoveCatcher) shouldExit(entryPrice float64, s *pricing.Series, j int, cfg TradeConfig) (bool, string, error) {
	if err := cfg.ExitCondition.validate(); err != nil {
		return false, "", err
	}
	cur := s.Points[j].TickPrice
	if cur <= entryPrice-cfg.ExitCondition.StoplossPoints {
		return true, ExitReasonStoplossHit, nil
	}
	if cur >= entryPrice+cfg.ExitCondition.ProfitTargetPoints {
		return true, ExitReasonTargetHit, nil
	}
	return false, "no exit condition met", nil
}

func (upMoveCatcher) exitPrice(entryPrice float64, s *pricing.Series, j int, reason string, cfg TradeConfig) float64 {
	switch reason {
	case ExitReasonStoplossHit:
		return entryPrice - cfg.ExitCondition.StoplossPoints
	case ExitReasonTargetHit:
		return entryPrice + cfg.ExitCondition.ProfitTargetPoints
	default:
		return s.Points[j].TickPrice
	}
}

func (upMoveCatcher) isWinning(gain float64, cfg TradeConfig) bool {
	return gain >= cfg.ExitCondition.ProfitTargetPoints
}

func (upMoveCatcher) gain(entryPrice, exitPrice float64) float64 {
	return exitPrice - entryPrice
}

type downMoveCatcher struct{}

func (downMoveCatcher) shouldEnter(s *pricing.Series, i int, cfg TradeConfig) (bool, string, error) {
	p := s.Points[i]
	if !p.Clock().After(cfg.MinEntryTime) {
		return false, fmt.Sprintf("entry not allowed before min entry time %s", cfg.MinEntryTime), nil
	}

	line, err := trailingTrendline(s, i, cfg)
	if errors.Is(err, trend.ErrShortWindow) {
		return false, "trend window too short", nil
	}
	if err != nil {
		return false, "", err
	}
	for _, cond := range cfg.EntryConditions {
		if line.Variance <= cond.MaxVariance &&
			line.Slope <= -cond.MinAbsTrendSlope &&
			p.Slope <= -cond.MinAbsPriceSlope &&
			p.Momentum <= -cond.MinAbsPriceMomentum {
			reason := fmt.Sprintf(
				"trendline: variance %v <= %v slope %v <= %v, price chart: slope %v <= %v momentum %v <= %v",
				line.Variance, cond.MaxVariance, line.Slope, -cond.MinAbsTrendSlope,
				p.Slope, -cond.MinAbsPriceSlope, p.Momentum, -cond.MinAbsPriceMomentum)
			return true, reason, nil
		}
	}
	return false, "no entry criteria met", nil
}

func (downMoveCatcher) shouldExit(entryPrice float64, s *pricing.Series, j int, cfg TradeConfig) (bool, string, error) {
	if err := cfg.ExitCondition.validate(); err != nil {
		return false, "", err
	}
	cur := s.Points[j].TickPrice
	if cur >= entryPrice+cfg.ExitCondition.StoplossPoints {
		return true, ExitReasonStoplossHit, nil
	}
	if cur <= entryPrice-cfg.ExitCondition.ProfitTargetPoints {
		return true, ExitReasonTargetHit, nil
	}
	return false, "no exit condition met", nil
}

func (downMoveCatcher) exitPrice(entryPrice float64, s *pricing.Series, j int, reason string, cfg TradeConfig) float64 {
	switch reason {
	case ExitReasonStoplossHit:
		return entryPrice + cfg.ExitCondition.StoplossPoints
	case ExitReasonTargetHit:
		return entryPrice - cfg.ExitCondition.ProfitTargetPoints
	default:
		return s.Points[j].TickPrice
	}
}

func (downMoveCatcher) isWinning(gain float64, cfg TradeConfig) bool {
	return gain >= cfg.ExitCondition.ProfitTargetPoints
}

func (downMoveCatcher) gain(entryPrice, exitPrice float64) float64 {
	return entryPrice - exitPrice
}
