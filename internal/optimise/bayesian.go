package optimise

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"mocat/internal/backtest"
	"mocat/internal/logger"
)

// BayesianEngine 做序贯的基于模型的搜索：在每条轴的候选集上维护
// 已观测代价的均值，下一个评估点在逐轴择优与随机探索之间权衡。
// 评估预算固定，评估本身串行。
type BayesianEngine struct {
	Budget      int
	ExploreProb float64
	Seed        int64
}

func (b *BayesianEngine) Name() string { return "bayesian" }

type axisModel struct {
	sum   map[int]float64
	count map[int]int
}

func (m *axisModel) observe(idx int, cost float64) {
	m.sum[idx] += cost
	m.count[idx]++
}

// bestIndex 返回观测均值最低的候选下标；没有任何观测时返回 -1。
func (m *axisModel) bestIndex() int {
	best, bestMean := -1, math.Inf(1)
	for idx, cnt := range m.count {
		mean := m.sum[idx] / float64(cnt)
		if mean < bestMean {
			best, bestMean = idx, mean
		}
	}
	return best
}

func (b *BayesianEngine) Search(ctx context.Context, space Space, ev *Evaluator, coord *Coordinator) error {
	if err := space.Validate(); err != nil {
		return err
	}

	budget := b.Budget
	if budget <= 0 {
		budget = 20
	}
	explore := b.ExploreProb
	if explore == 0 {
		explore = 0.3
	}
	seed := b.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	candidates := make([][]any, len(space))
	models := make([]*axisModel, len(space))
	for i, axis := range space {
		candidates[i] = axis.Candidates()
		models[i] = &axisModel{sum: make(map[int]float64), count: make(map[int]int)}
	}

	for call := 0; call < budget; call++ {
		if coord.Cancelled() || ctx.Err() != nil {
			break
		}

		genes := make([]int, len(space))
		for i := range space {
			idx := models[i].bestIndex()
			if idx < 0 || rng.Float64() < explore {
				idx = rng.Intn(len(candidates[i]))
			}
			genes[i] = idx
		}

		assignment := genesToAssignment(space, candidates, genes)
		cand, err := ev.Evaluate(ctx, assignment)
		if err != nil {
			if errors.Is(err, backtest.ErrInvalidConfig) {
				logger.Warnf("贝叶斯评估参数不合法: %v", err)
				continue
			}
			coord.Cancel()
			return err
		}

		for i, idx := range genes {
			models[i].observe(idx, cand.Cost)
		}
		coord.Offer(cand)
		logger.Infof("贝叶斯搜索第 %d/%d 次评估, 代价 %.2f", call+1, budget, cand.Cost)
	}

	return ctx.Err()
}
