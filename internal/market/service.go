package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mocat/internal/logger"

	"golang.org/x/time/rate"
)

// ServiceConfig 配置行情服务。
type ServiceConfig struct {
	Store           *Store
	Sources         map[string]TickSource
	DefaultSource   string
	RateLimitPerMin int
	MaxConcurrent   int
}

// Service 提供 read-through 的历史 tick 访问：优先读本地库，
// 缺数据时经限流器走远端源补齐并回写。
type Service struct {
	store         *Store
	sources       map[string]TickSource
	defaultSource string

	limiter *rate.Limiter
	sem     chan struct{}

	mu       sync.Mutex
	fetching map[string]struct{}
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	ratePerSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		ratePerSec = 8
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	svc := &Service{
		store:         cfg.Store,
		sources:       make(map[string]TickSource),
		defaultSource: strings.ToLower(cfg.DefaultSource),
		limiter:       rate.NewLimiter(ratePerSec, 1),
		sem:           make(chan struct{}, maxConcurrent),
		fetching:      make(map[string]struct{}),
	}
	for k, v := range cfg.Sources {
		svc.sources[strings.ToLower(k)] = v
	}
	if svc.defaultSource == "" {
		for k := range svc.sources {
			svc.defaultSource = k
			break
		}
	}
	return svc, nil
}

// Ticks 返回请求区间内的 tick。本地无数据且配置了远端源时先补
// 齐再返回；远端失败以 ErrUpstream 包装上抛。
func (s *Service) Ticks(ctx context.Context, req TickRequest) ([]Tick, error) {
	m, start, end := req.Market, req.Start, req.End
	ticks, err := s.store.RangeTicks(ctx, m, start, end)
	if err != nil {
		return nil, err
	}
	if len(ticks) > 0 {
		return ticks, nil
	}
	src := s.sources[s.defaultSource]
	if src == nil {
		return nil, fmt.Errorf("本地无 %s %s 数据且未配置行情源: %w",
			m, start.Format(dateLayout), ErrUpstream)
	}
	if err := s.fill(ctx, src, m, start, end); err != nil {
		return nil, err
	}
	return s.store.RangeTicks(ctx, m, start, end)
}

func (s *Service) fill(ctx context.Context, src TickSource, m Market, start, end time.Time) error {
	key := fmt.Sprintf("%s@%d-%d", m, start.UnixMilli(), end.UnixMilli())
	s.mu.Lock()
	if _, busy := s.fetching[key]; busy {
		s.mu.Unlock()
		// 并发请求同一段区间时简单等待前一次补齐完成。
		return s.waitFill(ctx, key)
	}
	s.fetching[key] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.fetching, key)
		s.mu.Unlock()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	logger.Infof("[market] 从 %s 拉取 %s %s ~ %s", src.Name(), m,
		start.Format(time.DateTime), end.Format(time.DateTime))
	ticks, err := src.Fetch(ctx, TickRequest{Market: m, Start: start, End: end})
	if err != nil {
		return err
	}
	n, err := s.store.InsertTicks(ctx, m, ticks)
	if err != nil {
		return err
	}
	logger.Debugf("[market] 回写 %d 条 tick (%s)", n, m)
	return nil
}

func (s *Service) waitFill(ctx context.Context, key string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			_, busy := s.fetching[key]
			s.mu.Unlock()
			if !busy {
				return nil
			}
		}
	}
}
