package optimise

import (
	"context"
	"errors"

	"mocat/internal/backtest"
	"mocat/internal/logger"
)

// GridEngine 对全部轴做笛卡尔积枚举。递归下降逐轴展开，每个
// 叶子构造一份全新的赋值并作为独立任务并发派发。
type GridEngine struct {
	// Workers 为同时评估的任务上限，0 取 8。
	Workers int
}

func (g *GridEngine) Name() string { return "grid" }

func (g *GridEngine) Search(ctx context.Context, space Space, ev *Evaluator, coord *Coordinator) error {
	if err := space.Validate(); err != nil {
		return err
	}

	workers := g.Workers
	if workers <= 0 {
		workers = 8
	}
	sem := make(chan struct{}, workers)

	logger.Infof("网格搜索开始: %d 条轴, %d 种组合", len(space), space.Combinations())

	g.descend(ctx, space, 0, Assignment{}, ev, coord, sem)
	coord.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// descend 递归枚举第 i 条轴。partial 在每个叶子处克隆，任务之间
// 不共享赋值对象。
func (g *GridEngine) descend(
	ctx context.Context,
	space Space,
	i int,
	partial Assignment,
	ev *Evaluator,
	coord *Coordinator,
	sem chan struct{},
) {
	if coord.Cancelled() || ctx.Err() != nil {
		return
	}

	if i == len(space) {
		g.dispatch(ctx, partial.Clone(), ev, coord, sem)
		return
	}

	axis := space[i]
	for _, val := range axis.Candidates() {
		partial[axis.Name] = val
		g.descend(ctx, space, i+1, partial, ev, coord, sem)
	}
	delete(partial, axis.Name)
}

func (g *GridEngine) dispatch(
	ctx context.Context,
	assignment Assignment,
	ev *Evaluator,
	coord *Coordinator,
	sem chan struct{},
) {
	coord.Add(1)
	go func() {
		defer coord.Done()

		sem <- struct{}{}
		defer func() { <-sem }()

		if coord.Cancelled() || ctx.Err() != nil {
			return
		}

		cand, err := ev.Evaluate(ctx, assignment)
		if err != nil {
			if errors.Is(err, backtest.ErrInvalidConfig) {
				// 单个赋值的配置错误只让该任务失败
				logger.Warnf("网格任务参数不合法: %v", err)
				return
			}
			logger.Errorf("网格任务失败, 终止搜索: %v", err)
			coord.Cancel()
			return
		}
		coord.Offer(cand)
	}()
}
