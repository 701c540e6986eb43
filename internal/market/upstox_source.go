package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

const (
	upstoxBucketSec = 60
	upstoxTSLayout  = "2006-01-02T15:04:05-07:00"
	dateLayout      = "2006-01-02"
)

var upstoxInstruments = map[Market]string{
	Nifty:     "NSE_INDEX|Nifty 50",
	BankNifty: "NSE_INDEX|Nifty Bank",
}

// UpstoxSource 拉取 Upstox 历史 1 分钟 K 线并展开为 tick。
// 响应为 {"status":"success","data":{"candles":[[ts,o,h,l,c,vol,oi],...]}}，
// candles 按时间倒序返回。
type UpstoxSource struct {
	baseURL string
	client  *http.Client
}

func NewUpstoxSource(base string) *UpstoxSource {
	if base == "" {
		base = "https://api.upstox.com"
	}
	return &UpstoxSource{
		baseURL: base,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (u *UpstoxSource) Name() string { return "upstox" }

func (u *UpstoxSource) Fetch(ctx context.Context, req TickRequest) ([]Tick, error) {
	instrument, ok := upstoxInstruments[req.Market]
	if !ok {
		return nil, fmt.Errorf("市场 %s 未配置 upstox instrument: %w", req.Market, ErrUpstream)
	}
	endpoint := fmt.Sprintf("%s/v2/historical-candle/%s/1minute/%s/%s",
		u.baseURL,
		url.PathEscape(instrument),
		req.End.In(IST).Format(dateLayout),
		req.Start.In(IST).Format(dateLayout),
	)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	resp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstox 请求失败: %v: %w", err, ErrUpstream)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstox 返回状态码 %d: %w", resp.StatusCode, ErrUpstream)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 upstox 响应失败: %v: %w", err, ErrUpstream)
	}
	return parseUpstoxCandles(body, req)
}

func parseUpstoxCandles(body []byte, req TickRequest) ([]Tick, error) {
	root := gjson.ParseBytes(body)
	if status := root.Get("status").String(); status != "success" {
		return nil, fmt.Errorf("upstox status=%q: %w", status, ErrUpstream)
	}
	rows := root.Get("data.candles").Array()

	// 倒序响应翻转为时间升序后展开。
	var out []Tick
	for i := len(rows) - 1; i >= 0; i-- {
		cols := rows[i].Array()
		if len(cols) < 5 {
			return nil, fmt.Errorf("upstox candle 字段不足: %s: %w", rows[i].Raw, ErrUpstream)
		}
		ts, err := time.Parse(upstoxTSLayout, cols[0].String())
		if err != nil {
			return nil, fmt.Errorf("upstox 时间戳解析失败 %q: %w", cols[0].String(), ErrUpstream)
		}
		ts = ts.In(IST)
		if ts.Before(req.Start) || ts.After(req.End) {
			continue
		}
		candle := Candle{
			Open:  cols[1].Float(),
			High:  cols[2].Float(),
			Low:   cols[3].Float(),
			Close: cols[4].Float(),
			Start: ts,
			End:   ts.Add(upstoxBucketSec * time.Second),
		}
		out = append(out, candle.Ticks(upstoxBucketSec)...)
	}
	return out, nil
}
