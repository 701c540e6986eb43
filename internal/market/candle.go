package market

import (
	"errors"
	"time"
)

// ErrEmptyInput 表示聚合/回测的输入序列为空。
var ErrEmptyInput = errors.New("输入序列为空")

// Tick 是一条带时间戳的成交/报价记录，构造后不再修改。
type Tick struct {
	Timestamp time.Time
	Price     float64
}

// Candle 是固定时间桶上的 OHLC 聚合。仅在聚合过程中被修改，
// 输出后视为只读。
type Candle struct {
	Seq   int // 桶序号，从 0 开始
	Open  float64
	High  float64
	Low   float64
	Close float64
	Start time.Time
	End   time.Time
}

// AvgPrice 返回 (O+H+L+C)/4，作为该桶的代表价参与指标计算。
func (c Candle) AvgPrice() float64 {
	return (c.Open + c.High + c.Low + c.Close) / 4
}

func (c *Candle) fold(t Tick) {
	if t.Price < c.Low {
		c.Low = t.Price
	}
	if t.Price > c.High {
		c.High = t.Price
	}
	c.Close = t.Price
	c.End = t.Timestamp
}

func newCandle(seq int, t Tick) Candle {
	return Candle{
		Seq:   seq,
		Open:  t.Price,
		High:  t.Price,
		Low:   t.Price,
		Close: t.Price,
		Start: t.Timestamp,
		End:   t.Timestamp,
	}
}

// Aggregate 把按时间升序排列的 tick 折叠为长度 bucketSec 秒的 K 线。
// 第一根 K 线从首个 tick 的时间戳开桶；某个 tick 距当前桶起点
// 已满 bucketSec 时，当前桶关闭并以该 tick 开新桶。
// 结尾未满桶的 K 线同样会被输出：丢弃它会让当日最后一段行情
// 从所有下游指标中消失。
func Aggregate(ticks []Tick, bucketSec int) ([]Candle, error) {
	if len(ticks) == 0 {
		return nil, ErrEmptyInput
	}
	if bucketSec <= 0 {
		return nil, errors.New("bucketSec 需 > 0")
	}
	bucket := time.Duration(bucketSec) * time.Second

	cur := newCandle(0, ticks[0])
	var out []Candle
	for _, t := range ticks[1:] {
		if t.Timestamp.Sub(cur.Start) >= bucket {
			out = append(out, cur)
			cur = newCandle(cur.Seq+1, t)
			continue
		}
		cur.fold(t)
	}
	out = append(out, cur)
	return out, nil
}

// Ticks 把一根 K 线展开为桶内的 4 个代表 tick（O/H/L/C 按时间均布），
// 用同样的桶长重新聚合可以还原原 K 线。
func (c Candle) Ticks(bucketSec int) []Tick {
	step := time.Duration(bucketSec) * time.Second / 4
	return []Tick{
		{Timestamp: c.Start, Price: c.Open},
		{Timestamp: c.Start.Add(step), Price: c.High},
		{Timestamp: c.Start.Add(2 * step), Price: c.Low},
		{Timestamp: c.Start.Add(3 * step), Price: c.Close},
	}
}
