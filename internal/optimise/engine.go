package optimise

import (
	"context"
	"fmt"

	"mocat/internal/backtest"
)

// Engine 为可互换的参数搜索策略。四种实现共用同一个代价函数和
// 协调器。
type Engine interface {
	Name() string
	Search(ctx context.Context, space Space, ev *Evaluator, coord *Coordinator) error
}

// NewEngine 按名字构造搜索引擎。
func NewEngine(name string, workers int) (Engine, error) {
	switch name {
	case "grid":
		return &GridEngine{Workers: workers}, nil
	case "genetic":
		return &GeneticEngine{Workers: workers}, nil
	case "bayesian":
		return &BayesianEngine{}, nil
	case "de":
		return &DifferentialEvolution{Workers: workers}, nil
	default:
		return nil, fmt.Errorf("%w: 搜索引擎 %q 未知", backtest.ErrInvalidConfig, name)
	}
}
