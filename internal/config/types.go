package config

// Config 为进程级配置，来自 YAML 文件。
type Config struct {
	Log      LogConfig      `toml:"log"`
	Data     DataConfig     `toml:"data"`
	Fetch    FetchConfig    `toml:"fetch"`
	Chart    ChartConfig    `toml:"chart"`
	Trade    TradeConfig    `toml:"trade"`
	Optimise OptimiseConfig `toml:"optimise"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type DataConfig struct {
	// Root 为行情库根目录，按市场分文件存放。
	Root string `toml:"root"`
	// ResultDB 为回测与搜索结果库路径。
	ResultDB string `toml:"result_db"`
}

type FetchConfig struct {
	// Source 为默认行情源，upstox 或 binance。
	Source        string `toml:"source"`
	RatePerMin    int    `toml:"rate_per_min"`
	MaxConcurrent int    `toml:"max_concurrent"`
	// UpstoxBaseURL 留空取官方地址。
	UpstoxBaseURL string `toml:"upstox_base_url"`
}

type ChartConfig struct {
	BucketSec int     `toml:"bucket_sec"`
	Smoothing float64 `toml:"smoothing"`

	SmoothPriceAveragingMethod string `toml:"smooth_price_averaging_method"`
	SmoothPricePeriod          int    `toml:"smooth_price_period"`
	SmoothPriceEMAPeriod       int    `toml:"smooth_price_ema_period"`
	SmoothSlopeAveragingMethod string `toml:"smooth_slope_averaging_method"`
	SmoothSlopePeriod          int    `toml:"smooth_slope_period"`
	SmoothSlopeEMAPeriod       int    `toml:"smooth_slope_ema_period"`
	SmoothMomentumPeriod       int    `toml:"smooth_momentum_period"`
	SmoothMomentumEMAPeriod    int    `toml:"smooth_momentum_ema_period"`
}

type EntryTier struct {
	MaxVariance         float64 `toml:"max_variance"`
	MinAbsTrendSlope    float64 `toml:"min_abs_trend_slope"`
	MinAbsPriceSlope    float64 `toml:"min_abs_price_slope"`
	MinAbsPriceMomentum float64 `toml:"min_abs_price_momentum"`
}

type TradeConfig struct {
	TrendLineTimePeriodSec int         `toml:"trend_line_time_period_in_sec"`
	MinEntryTime           string      `toml:"min_entry_time"`
	EntryConditions        []EntryTier `toml:"entry_conditions"`
	ProfitTargetType       string      `toml:"profit_target_type"`
	ProfitTargetPoints     float64     `toml:"profit_target_points"`
	StoplossType           string      `toml:"stoploss_type"`
	StoplossPoints         float64     `toml:"stoploss_points"`
}

type OptimiseConfig struct {
	Engine    string `toml:"engine"`
	Workers   int    `toml:"workers"`
	SpaceFile string `toml:"space_file"`
	// ParamsOut 为最优参数落盘路径，复跑模式从这里读。
	ParamsOut string `toml:"params_out"`
}
