package pricing

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"mocat/internal/market"
)

// Cache 缓存已算好指标的序列。键由市场、时间范围和指标参数推导，
// 同一键只允许写入一次，并发读取无锁。
type Cache struct {
	entries sync.Map
}

func NewCache() *Cache {
	return &Cache{}
}

// CacheKey 生成序列缓存键。
func CacheKey(m market.Market, start, end time.Time, cfg Config) string {
	raw := fmt.Sprintf("%s|%d|%d|%s%d%d|%s%d%d|%s%d%d|%g",
		m, start.Unix(), end.Unix(),
		cfg.SmoothPriceMethod, cfg.SmoothPricePeriod, cfg.SmoothPriceEMAPeriod,
		cfg.SmoothSlopeMethod, cfg.SmoothSlopePeriod, cfg.SmoothSlopeEMAPeriod,
		cfg.SmoothMomentumMethod, cfg.SmoothMomentumPeriod, cfg.SmoothMomentumEMAPeriod,
		cfg.Smoothing)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Get 返回键对应的序列，未命中时返回 false。
func (c *Cache) Get(key string) (*Series, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Series), true
}

// Add 写入序列并返回实际存放的值。键已存在时保留旧值不覆盖。
func (c *Cache) Add(key string, s *Series) *Series {
	v, _ := c.entries.LoadOrStore(key, s)
	return v.(*Series)
}
