package pricing

import (
	"errors"
	"fmt"
	"time"

	"mocat/internal/market"
)

var (
	// ErrEmptySeries 表示价格序列为空。
	ErrEmptySeries = errors.New("价格序列为空")
	// ErrDependencyNotReady 表示某指标阶段在其输入字段计算完成之前
	// 被执行，属于编码/配置错误，不做重试。
	ErrDependencyNotReady = errors.New("指标依赖尚未计算")
)

// Stage 标识流水线各阶段写入的字段。
type Stage string

const (
	StageTickPrice         Stage = "tick_price"
	StageSmoothPrice       Stage = "smooth_price"
	StageSmoothPriceEMA    Stage = "smooth_price_ema"
	StageSlope             Stage = "slope"
	StageSmoothSlope       Stage = "smooth_slope"
	StageSmoothSlopeEMA    Stage = "smooth_slope_ema"
	StageMomentum          Stage = "momentum"
	StageSmoothMomentum    Stage = "smooth_momentum"
	StageSmoothMomentumEMA Stage = "smooth_momentum_ema"
	StageMomentumRate      Stage = "momentum_rate"
)

// Point 是序列中一个采样时刻的全部字段。原始字段由数据层填写，
// 指标字段按依赖顺序由流水线填写。
type Point struct {
	Timestamp time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	TickPrice float64

	SmoothPrice    float64
	SmoothPriceEMA float64
	Slope          float64
	SmoothSlope    float64
	SmoothSlopeEMA float64
	Momentum       float64

	SmoothMomentum    float64
	SmoothMomentumEMA float64
	MomentumRate      float64
}

// Clock 返回该点在 IST 下的当日时刻。
func (p Point) Clock() market.ClockTime {
	return market.ClockOf(p.Timestamp.In(market.IST))
}

// Series 是时间升序的价格序列及其阶段完成标记。
type Series struct {
	Market market.Market
	Points []Point

	done map[Stage]struct{}
}

func newSeries(m market.Market, points []Point) *Series {
	s := &Series{
		Market: m,
		Points: points,
		done:   make(map[Stage]struct{}),
	}
	s.markDone(StageTickPrice)
	return s
}

// FromCandles 把 K 线序列转成价格序列；代表价取 (O+H+L+C)/4。
func FromCandles(m market.Market, candles []market.Candle) (*Series, error) {
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}
	points := make([]Point, len(candles))
	for i, c := range candles {
		points[i] = Point{
			Timestamp: c.Start,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			TickPrice: c.AvgPrice(),
		}
	}
	return newSeries(m, points), nil
}

// FromTicks 把原始 tick 直接转成价格序列（每个 tick 一个点）。
func FromTicks(m market.Market, ticks []market.Tick) (*Series, error) {
	if len(ticks) == 0 {
		return nil, ErrEmptySeries
	}
	points := make([]Point, len(ticks))
	for i, t := range ticks {
		points[i] = Point{
			Timestamp: t.Timestamp,
			Open:      t.Price,
			High:      t.Price,
			Low:       t.Price,
			Close:     t.Price,
			TickPrice: t.Price,
		}
	}
	return newSeries(m, points), nil
}

// Has 报告某个阶段是否已完成。
func (s *Series) Has(stage Stage) bool {
	_, ok := s.done[stage]
	return ok
}

func (s *Series) markDone(stage Stage) {
	if s.done == nil {
		s.done = make(map[Stage]struct{})
	}
	s.done[stage] = struct{}{}
}

// requires 校验阶段依赖，任一依赖未完成即返回 ErrDependencyNotReady。
func (s *Series) requires(target Stage, deps ...Stage) error {
	if len(s.Points) == 0 {
		return fmt.Errorf("%s: %w", target, ErrEmptySeries)
	}
	for _, dep := range deps {
		if !s.Has(dep) {
			return fmt.Errorf("计算 %s 需要先完成 %s: %w", target, dep, ErrDependencyNotReady)
		}
	}
	return nil
}

// Timestamps 返回各点时间戳（升序），供趋势线窗口检索使用。
func (s *Series) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		ts[i] = p.Timestamp
	}
	return ts
}

func (s *Series) field(get func(Point) float64) []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = get(p)
	}
	return vals
}
