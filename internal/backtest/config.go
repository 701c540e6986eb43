package backtest

import (
	"encoding/json"
	"fmt"
	"os"

	"mocat/internal/market"
	"mocat/internal/pricing"
)

// FixedExit 是目前唯一支持的出场类型：固定点数距离。
const FixedExit = "fixed"

// ChartConfig 为指标流水线参数。字段名与持久化格式一一对应，
// 序列化必须无损往返。
type ChartConfig struct {
	SmoothPriceAveragingMethod string `json:"smooth_price_averaging_method" mapstructure:"smooth_price_averaging_method"`
	SmoothPricePeriod          int    `json:"smooth_price_period" mapstructure:"smooth_price_period"`
	SmoothPriceEMAPeriod       int    `json:"smooth_price_ema_period" mapstructure:"smooth_price_ema_period"`
	SmoothSlopeAveragingMethod string `json:"smooth_slope_averaging_method" mapstructure:"smooth_slope_averaging_method"`
	SmoothSlopePeriod          int    `json:"smooth_slope_period" mapstructure:"smooth_slope_period"`
	SmoothSlopeEMAPeriod       int    `json:"smooth_slope_ema_period" mapstructure:"smooth_slope_ema_period"`

	SmoothMomentumPeriod    int `json:"smooth_momentum_period,omitempty" mapstructure:"smooth_momentum_period"`
	SmoothMomentumEMAPeriod int `json:"smooth_momentum_ema_period,omitempty" mapstructure:"smooth_momentum_ema_period"`
}

// PricingConfig 把图表参数翻译成流水线配置。
func (c ChartConfig) PricingConfig(smoothing float64) (pricing.Config, error) {
	priceMethod, err := pricing.ParseMethod(c.SmoothPriceAveragingMethod)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	slopeMethod, err := pricing.ParseMethod(c.SmoothSlopeAveragingMethod)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return pricing.Config{
		SmoothPriceMethod:       priceMethod,
		SmoothPricePeriod:       c.SmoothPricePeriod,
		SmoothPriceEMAPeriod:    c.SmoothPriceEMAPeriod,
		SmoothSlopeMethod:       slopeMethod,
		SmoothSlopePeriod:       c.SmoothSlopePeriod,
		SmoothSlopeEMAPeriod:    c.SmoothSlopeEMAPeriod,
		SmoothMomentumMethod:    pricing.Simple,
		SmoothMomentumPeriod:    c.SmoothMomentumPeriod,
		SmoothMomentumEMAPeriod: c.SmoothMomentumEMAPeriod,
		Smoothing:               smoothing,
	}, nil
}

func (c ChartConfig) ToJSON() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func ChartConfigFromJSON(raw string) (ChartConfig, error) {
	var c ChartConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ChartConfig{}, fmt.Errorf("%w: chart config: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

// EntryCondition 是一档入场规则。任一档全部阈值满足即可入场，
// 按声明顺序逐档尝试，先命中者生效。
type EntryCondition struct {
	MaxVariance         float64 `json:"max_variance" mapstructure:"max_variance"`
	MinAbsTrendSlope    float64 `json:"min_abs_trend_slope" mapstructure:"min_abs_trend_slope"`
	MinAbsPriceSlope    float64 `json:"min_abs_price_slope" mapstructure:"min_abs_price_slope"`
	MinAbsPriceMomentum float64 `json:"min_abs_price_momentum" mapstructure:"min_abs_price_momentum"`
}

// ExitCondition 目前只支持 fixed 点数距离；其他类型是配置错误，
// 不做静默回退。
type ExitCondition struct {
	ProfitTargetType   string  `json:"profit_target_type" mapstructure:"profit_target_type"`
	ProfitTargetPoints float64 `json:"profit_target_points" mapstructure:"profit_target_points"`
	StoplossType       string  `json:"stoploss_type" mapstructure:"stoploss_type"`
	StoplossPoints     float64 `json:"stoploss_points" mapstructure:"stoploss_points"`
}

func (e ExitCondition) validate() error {
	if e.StoplossType != FixedExit {
		return fmt.Errorf("%w: 出场类型 %q 不支持", ErrInvalidConfig, e.StoplossType)
	}
	if e.ProfitTargetType != FixedExit {
		return fmt.Errorf("%w: 出场类型 %q 不支持", ErrInvalidConfig, e.ProfitTargetType)
	}
	return nil
}

// TradeConfig 为交易规则参数。
type TradeConfig struct {
	TrendLineTimePeriodSec int              `json:"trend_line_time_period_in_sec" mapstructure:"trend_line_time_period_in_sec"`
	MinEntryTime           market.ClockTime `json:"min_entry_time" mapstructure:"min_entry_time"`
	EntryConditions        []EntryCondition `json:"entry_conditions" mapstructure:"entry_conditions"`
	ExitCondition          ExitCondition    `json:"exit_condition" mapstructure:"exit_condition"`
}

func (c TradeConfig) ToJSON() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func TradeConfigFromJSON(raw string) (TradeConfig, error) {
	var c TradeConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return TradeConfig{}, fmt.Errorf("%w: trade config: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

// OptimisedParams 是参数搜索落盘的最优配置文件，可在测试区间上
// 直接复跑。
type OptimisedParams struct {
	Market      market.Market `json:"market"`
	ChartConfig ChartConfig   `json:"chart_config"`
	TradeConfig TradeConfig   `json:"trade_config"`
}

func (p OptimisedParams) WriteFile(path string) error {
	raw, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func ReadOptimisedParams(path string) (OptimisedParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return OptimisedParams{}, err
	}
	var p OptimisedParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return OptimisedParams{}, fmt.Errorf("%w: optimised params %s: %v", ErrInvalidConfig, path, err)
	}
	return p, nil
}
