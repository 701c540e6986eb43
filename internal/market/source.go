package market

import (
	"context"
	"errors"
	"time"
)

// ErrUpstream 表示上游行情源不可用或返回非成功状态。
var ErrUpstream = errors.New("上游行情源不可用")

// TickRequest 描述一次历史行情拉取（闭区间，IST 时区）。
type TickRequest struct {
	Market Market
	Start  time.Time
	End    time.Time
}

// TickSource 统一不同行情源的历史拉取行为。实现以分钟级 K 线
// 为粒度拉取后展开为 tick；时间戳在返回前归一到 IST。
type TickSource interface {
	Fetch(ctx context.Context, req TickRequest) ([]Tick, error)
	Name() string
}
