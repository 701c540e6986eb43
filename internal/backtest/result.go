package backtest

import (
	"time"

	"mocat/internal/market"
)

// Trade 为一笔已完成或进行中的交易。入场时创建，出场字段只在
// 出场时填写一次，之后不再变更。
type Trade struct {
	Date              time.Time        `json:"date"`
	ExpectedDirection Direction        `json:"expected_direction"`
	EntryTime         market.ClockTime `json:"entry_time"`
	EntryPrice        float64          `json:"entry_price"`
	EntryReason       string           `json:"entry_reason"`
	ExitTime          market.ClockTime `json:"exit_time"`
	ExitPrice         float64          `json:"exit_price"`
	ExitReason        string           `json:"exit_reason"`
	Gain              float64          `json:"gain"`
}

// DailyResult 为单日单方向的回测结果。
type DailyResult struct {
	Date              time.Time        `json:"date"`
	StartTime         market.ClockTime `json:"start_time"`
	EndTime           market.ClockTime `json:"end_time"`
	ExpectedDirection Direction        `json:"expected_direction"`
	Trades            []Trade          `json:"trades"`
	TradeCount        int              `json:"trade_count"`
	WinningTradeCount int              `json:"winning_trade_count"`
	LosingTradeCount  int              `json:"losing_trade_count"`
	// SuccessRate 在没有交易时为 nil，不取零值。
	SuccessRate *float64 `json:"success_rate"`
}

func (d *DailyResult) addTrade(t Trade, winning bool) {
	d.Trades = append(d.Trades, t)
	d.TradeCount++
	if winning {
		d.WinningTradeCount++
	} else {
		d.LosingTradeCount++
	}
}

func (d *DailyResult) finalise() {
	d.SuccessRate = successRate(d.WinningTradeCount, d.TradeCount)
}

// Result 为整个回测区间的汇总结果。
type Result struct {
	ID                string           `json:"id"`
	Market            market.Market    `json:"market"`
	Purpose           string           `json:"purpose,omitempty"`
	StartDate         time.Time        `json:"start_date"`
	StartTime         market.ClockTime `json:"start_time"`
	EndDate           time.Time        `json:"end_date"`
	EndTime           market.ClockTime `json:"end_time"`
	ChartConfig       ChartConfig      `json:"chart_config"`
	TradeConfig       TradeConfig      `json:"trade_config"`
	Daily             []*DailyResult   `json:"daily"`
	TradeCount        int              `json:"trade_count"`
	WinningTradeCount int              `json:"winning_trade_count"`
	LosingTradeCount  int              `json:"losing_trade_count"`
	SuccessRate       *float64         `json:"success_rate"`
}

func (r *Result) addDaily(d *DailyResult) {
	r.Daily = append(r.Daily, d)
	r.TradeCount += d.TradeCount
	r.WinningTradeCount += d.WinningTradeCount
	r.LosingTradeCount += d.LosingTradeCount
}

func (r *Result) finalise() {
	r.SuccessRate = successRate(r.WinningTradeCount, r.TradeCount)
}

// TotalGain 返回全部交易的点数净收益。
func (r *Result) TotalGain() float64 {
	var sum float64
	for _, d := range r.Daily {
		for _, t := range d.Trades {
			sum += t.Gain
		}
	}
	return sum
}

// successRate 在 count 为零时返回 nil，永不触发除零。
func successRate(winning, count int) *float64 {
	if count == 0 {
		return nil
	}
	rate := float64(winning) / float64(count) * 100
	return &rate
}
