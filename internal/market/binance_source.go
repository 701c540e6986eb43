package market

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

const binanceBucketSec = 60

// BinanceSource 把 Binance 现货 1m K 线展开为 tick 序列，
// 用于在标的存在等价永续/现货符号时做离线回测数据源。
type BinanceSource struct {
	client  *binance.Client
	symbols map[Market]string
}

func NewBinanceSource(symbols map[Market]string) *BinanceSource {
	return &BinanceSource{
		client:  binance.NewClient("", ""),
		symbols: symbols,
	}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, req TickRequest) ([]Tick, error) {
	symbol, ok := b.symbols[req.Market]
	if !ok {
		return nil, fmt.Errorf("市场 %s 未配置 binance 符号: %w", req.Market, ErrUpstream)
	}
	start := req.Start.UnixMilli()
	end := req.End.UnixMilli()

	var out []Tick
	for start < end {
		klines, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(start).
			EndTime(end).
			Limit(1000).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines: %v: %w", err, ErrUpstream)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			candle, err := klineToCandle(k)
			if err != nil {
				return nil, err
			}
			out = append(out, candle.Ticks(binanceBucketSec)...)
		}
		last := klines[len(klines)-1]
		if last.CloseTime <= start {
			break
		}
		start = last.CloseTime + 1
	}
	return out, nil
}

func klineToCandle(k *binance.Kline) (Candle, error) {
	open, err := parsePrice(k.Open)
	if err != nil {
		return Candle{}, err
	}
	high, err := parsePrice(k.High)
	if err != nil {
		return Candle{}, err
	}
	low, err := parsePrice(k.Low)
	if err != nil {
		return Candle{}, err
	}
	closing, err := parsePrice(k.Close)
	if err != nil {
		return Candle{}, err
	}
	return Candle{
		Open:  open,
		High:  high,
		Low:   low,
		Close: closing,
		Start: time.UnixMilli(k.OpenTime).In(IST),
		End:   time.UnixMilli(k.CloseTime).In(IST),
	}, nil
}

// parsePrice 经 decimal 中转，避免交易所返回的十进制字符串
// 直接走 ParseFloat 时静默吞掉格式错误。
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("价格字段解析失败 %q: %w", s, ErrUpstream)
	}
	f, _ := d.Float64()
	return f, nil
}
