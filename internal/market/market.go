package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Market 表示可回测的标的指数。
type Market string

const (
	Nifty     Market = "NIFTY"
	BankNifty Market = "BANKNIFTY"
)

// ParseMarket 返回标准化市场标识。
func ParseMarket(input string) (Market, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case string(Nifty):
		return Nifty, nil
	case string(BankNifty):
		return BankNifty, nil
	default:
		return "", fmt.Errorf("未知市场: %s", input)
	}
}

func (m Market) String() string { return string(m) }

// IST 为交易时区；所有外部时间戳进入系统前先归一到该时区。
var IST = time.FixedZone("IST", 5*3600+30*60)

const clockLayout = "15:04:05"

// ClockTime 表示当日内的时刻（自午夜起的秒数），用于交易时段边界比较。
type ClockTime int

func NewClockTime(h, m, s int) ClockTime {
	return ClockTime(h*3600 + m*60 + s)
}

// ParseClockTime 解析 "HH:MM:SS" 格式。
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("时刻格式应为 HH:MM:SS: %w", err)
	}
	return NewClockTime(t.Hour(), t.Minute(), t.Second()), nil
}

// ClockOf 取时间戳在其所在时区下的当日时刻。
func ClockOf(t time.Time) ClockTime {
	return NewClockTime(t.Hour(), t.Minute(), t.Second())
}

func (c ClockTime) String() string {
	h := int(c) / 3600
	m := int(c) % 3600 / 60
	s := int(c) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (c ClockTime) Before(other ClockTime) bool { return c < other }
func (c ClockTime) After(other ClockTime) bool  { return c > other }

// At 将时刻落到某一天上（day 的时区保持不变）。
func (c ClockTime) At(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(c)/3600, int(c)%3600/60, int(c)%60, 0, day.Location())
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// 交易时段默认边界。
var (
	SessionOpen     = NewClockTime(9, 15, 0)
	SessionClose    = NewClockTime(15, 30, 0)
	DefaultMinEntry = NewClockTime(9, 20, 0)
)
