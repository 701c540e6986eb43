package config

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Data.Root == "" {
		c.Data.Root = "data"
	}
	if c.Data.ResultDB == "" {
		c.Data.ResultDB = "data/results.db"
	}
	if c.Fetch.Source == "" {
		c.Fetch.Source = "upstox"
	}
	if c.Fetch.RatePerMin <= 0 {
		c.Fetch.RatePerMin = 25
	}
	if c.Fetch.MaxConcurrent <= 0 {
		c.Fetch.MaxConcurrent = 4
	}
	if c.Chart.BucketSec <= 0 {
		c.Chart.BucketSec = 60
	}
	if c.Chart.Smoothing == 0 {
		c.Chart.Smoothing = 2
	}
	if c.Chart.SmoothPriceAveragingMethod == "" {
		c.Chart.SmoothPriceAveragingMethod = "simple"
	}
	if c.Chart.SmoothPricePeriod <= 0 {
		c.Chart.SmoothPricePeriod = 11
	}
	if c.Chart.SmoothPriceEMAPeriod <= 0 {
		c.Chart.SmoothPriceEMAPeriod = 20
	}
	if c.Chart.SmoothSlopeAveragingMethod == "" {
		c.Chart.SmoothSlopeAveragingMethod = "simple"
	}
	if c.Chart.SmoothSlopePeriod <= 0 {
		c.Chart.SmoothSlopePeriod = 35
	}
	if c.Chart.SmoothSlopeEMAPeriod <= 0 {
		c.Chart.SmoothSlopeEMAPeriod = 45
	}
	if c.Trade.TrendLineTimePeriodSec <= 0 {
		c.Trade.TrendLineTimePeriodSec = 120
	}
	if c.Trade.MinEntryTime == "" {
		c.Trade.MinEntryTime = "09:20:00"
	}
	if c.Trade.ProfitTargetType == "" {
		c.Trade.ProfitTargetType = "fixed"
	}
	if c.Trade.ProfitTargetPoints == 0 {
		c.Trade.ProfitTargetPoints = 20
	}
	if c.Trade.StoplossType == "" {
		c.Trade.StoplossType = "fixed"
	}
	if c.Trade.StoplossPoints == 0 {
		c.Trade.StoplossPoints = 10
	}
	if c.Optimise.Engine == "" {
		c.Optimise.Engine = "grid"
	}
	if c.Optimise.Workers <= 0 {
		c.Optimise.Workers = 8
	}
	if c.Optimise.ParamsOut == "" {
		c.Optimise.ParamsOut = "optimised_params.json"
	}
}
