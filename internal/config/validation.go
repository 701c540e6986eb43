package config

import (
	"fmt"

	"mocat/internal/market"
	"mocat/internal/pricing"
)

func validate(cfg *Config) error {
	if _, err := pricing.ParseMethod(cfg.Chart.SmoothPriceAveragingMethod); err != nil {
		return fmt.Errorf("chart.smooth_price_averaging_method: %w", err)
	}
	if _, err := pricing.ParseMethod(cfg.Chart.SmoothSlopeAveragingMethod); err != nil {
		return fmt.Errorf("chart.smooth_slope_averaging_method: %w", err)
	}
	if _, err := market.ParseClockTime(cfg.Trade.MinEntryTime); err != nil {
		return fmt.Errorf("trade.min_entry_time: %w", err)
	}
	if cfg.Trade.ProfitTargetType != "fixed" {
		return fmt.Errorf("trade.profit_target_type %q is not supported", cfg.Trade.ProfitTargetType)
	}
	if cfg.Trade.StoplossType != "fixed" {
		return fmt.Errorf("trade.stoploss_type %q is not supported", cfg.Trade.StoplossType)
	}
	switch cfg.Fetch.Source {
	case "upstox", "binance":
	default:
		return fmt.Errorf("fetch.source %q is not supported", cfg.Fetch.Source)
	}
	switch cfg.Optimise.Engine {
	case "grid", "genetic", "bayesian", "de":
	default:
		return fmt.Errorf("optimise.engine %q is not supported", cfg.Optimise.Engine)
	}
	return nil
}
