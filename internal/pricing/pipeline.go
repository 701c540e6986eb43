package pricing

import "fmt"

// Config 描述指标流水线的全部参数。动量三段（smooth_momentum、
// smooth_momentum_ema、momentum_rate）仅在两个动量周期都给出时执行。
type Config struct {
	SmoothPriceMethod    Method
	SmoothPricePeriod    int
	SmoothPriceEMAPeriod int

	SmoothSlopeMethod    Method
	SmoothSlopePeriod    int
	SmoothSlopeEMAPeriod int

	SmoothMomentumMethod    Method
	SmoothMomentumPeriod    int
	SmoothMomentumEMAPeriod int

	// Smoothing 为 EMA 平滑常数 K；0 表示取 DefaultSmoothing。
	Smoothing float64
}

// WithMomentum 报告动量三段是否启用。
func (c Config) WithMomentum() bool {
	return c.SmoothMomentumPeriod > 0 && c.SmoothMomentumEMAPeriod > 0
}

// Apply 按依赖顺序在序列上执行全部阶段。
func Apply(s *Series, cfg Config) error {
	if err := CalcSmoothPrice(s, cfg.SmoothPriceMethod, cfg.SmoothPricePeriod, cfg.Smoothing); err != nil {
		return err
	}
	if err := CalcSmoothPriceEMA(s, cfg.SmoothPriceEMAPeriod, cfg.Smoothing); err != nil {
		return err
	}
	if err := CalcSlope(s); err != nil {
		return err
	}
	if err := CalcSmoothSlope(s, cfg.SmoothSlopeMethod, cfg.SmoothSlopePeriod, cfg.Smoothing); err != nil {
		return err
	}
	if err := CalcSmoothSlopeEMA(s, cfg.SmoothSlopeEMAPeriod, cfg.Smoothing); err != nil {
		return err
	}
	if err := CalcMomentum(s); err != nil {
		return err
	}
	if !cfg.WithMomentum() {
		return nil
	}
	method := cfg.SmoothMomentumMethod
	if method == "" {
		method = Simple
	}
	if err := CalcSmoothMomentum(s, method, cfg.SmoothMomentumPeriod, cfg.Smoothing); err != nil {
		return err
	}
	if err := CalcSmoothMomentumEMA(s, cfg.SmoothMomentumEMAPeriod, cfg.Smoothing); err != nil {
		return err
	}
	return CalcMomentumRate(s)
}

// CalcSmoothPrice 对原始代表价做平滑。
func CalcSmoothPrice(s *Series, method Method, period int, smoothing float64) error {
	if err := s.requires(StageSmoothPrice, StageTickPrice); err != nil {
		return err
	}
	vals, err := smooth(method, s.field(func(p Point) float64 { return p.TickPrice }), period, smoothing)
	if err != nil {
		return fmt.Errorf("smooth_price: %w", err)
	}
	for i := range s.Points {
		s.Points[i].SmoothPrice = vals[i]
	}
	s.markDone(StageSmoothPrice)
	return nil
}

// CalcSmoothPriceEMA 对 smooth_price 再做一次 EMA。
func CalcSmoothPriceEMA(s *Series, period int, smoothing float64) error {
	if err := s.requires(StageSmoothPriceEMA, StageSmoothPrice); err != nil {
		return err
	}
	vals, err := EMA(s.field(func(p Point) float64 { return p.SmoothPrice }), period, smoothing)
	if err != nil {
		return fmt.Errorf("smooth_price_ema: %w", err)
	}
	for i := range s.Points {
		s.Points[i].SmoothPriceEMA = vals[i]
	}
	s.markDone(StageSmoothPriceEMA)
	return nil
}

// CalcSlope 按点求 smooth_price 与其 EMA 的差。
func CalcSlope(s *Series) error {
	if err := s.requires(StageSlope, StageSmoothPrice, StageSmoothPriceEMA); err != nil {
		return err
	}
	for i := range s.Points {
		s.Points[i].Slope = s.Points[i].SmoothPrice - s.Points[i].SmoothPriceEMA
	}
	s.markDone(StageSlope)
	return nil
}

func CalcSmoothSlope(s *Series, method Method, period int, smoothing float64) error {
	if err := s.requires(StageSmoothSlope, StageSlope); err != nil {
		return err
	}
	vals, err := smooth(method, s.field(func(p Point) float64 { return p.Slope }), period, smoothing)
	if err != nil {
		return fmt.Errorf("smooth_slope: %w", err)
	}
	for i := range s.Points {
		s.Points[i].SmoothSlope = vals[i]
	}
	s.markDone(StageSmoothSlope)
	return nil
}

func CalcSmoothSlopeEMA(s *Series, period int, smoothing float64) error {
	if err := s.requires(StageSmoothSlopeEMA, StageSmoothSlope); err != nil {
		return err
	}
	vals, err := EMA(s.field(func(p Point) float64 { return p.SmoothSlope }), period, smoothing)
	if err != nil {
		return fmt.Errorf("smooth_slope_ema: %w", err)
	}
	for i := range s.Points {
		s.Points[i].SmoothSlopeEMA = vals[i]
	}
	s.markDone(StageSmoothSlopeEMA)
	return nil
}

// CalcMomentum 按点求 smooth_slope 与其 EMA 的差。
func CalcMomentum(s *Series) error {
	if err := s.requires(StageMomentum, StageSmoothSlope, StageSmoothSlopeEMA); err != nil {
		return err
	}
	for i := range s.Points {
		s.Points[i].Momentum = s.Points[i].SmoothSlope - s.Points[i].SmoothSlopeEMA
	}
	s.markDone(StageMomentum)
	return nil
}

func CalcSmoothMomentum(s *Series, method Method, period int, smoothing float64) error {
	if err := s.requires(StageSmoothMomentum, StageMomentum); err != nil {
		return err
	}
	vals, err := smooth(method, s.field(func(p Point) float64 { return p.Momentum }), period, smoothing)
	if err != nil {
		return fmt.Errorf("smooth_momentum: %w", err)
	}
	for i := range s.Points {
		s.Points[i].SmoothMomentum = vals[i]
	}
	s.markDone(StageSmoothMomentum)
	return nil
}

func CalcSmoothMomentumEMA(s *Series, period int, smoothing float64) error {
	if err := s.requires(StageSmoothMomentumEMA, StageSmoothMomentum); err != nil {
		return err
	}
	vals, err := EMA(s.field(func(p Point) float64 { return p.SmoothMomentum }), period, smoothing)
	if err != nil {
		return fmt.Errorf("smooth_momentum_ema: %w", err)
	}
	for i := range s.Points {
		s.Points[i].SmoothMomentumEMA = vals[i]
	}
	s.markDone(StageSmoothMomentumEMA)
	return nil
}

// CalcMomentumRate 按点求 smooth_momentum 与其 EMA 的差。
func CalcMomentumRate(s *Series) error {
	if err := s.requires(StageMomentumRate, StageSmoothMomentum, StageSmoothMomentumEMA); err != nil {
		return err
	}
	for i := range s.Points {
		s.Points[i].MomentumRate = s.Points[i].SmoothMomentum - s.Points[i].SmoothMomentumEMA
	}
	s.markDone(StageMomentumRate)
	return nil
}
