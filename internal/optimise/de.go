package optimise

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"mocat/internal/backtest"
	"mocat/internal/logger"
)

// DifferentialEvolution 在轴区间上做 DE/rand/1/bin 连续搜索。
// 试探向量折回各轴最近的合法候选后才评估，枚举轴按下标空间
// 参与差分。
type DifferentialEvolution struct {
	Workers        int
	Generations    int
	PopulationSize int
	// Weight 为差分放大系数 F。
	Weight float64
	// CrossoverProb 为二项交叉概率 CR。
	CrossoverProb float64
	Seed          int64
}

func (d *DifferentialEvolution) Name() string { return "de" }

type deMember struct {
	vec  []float64
	cost float64
}

func (d *DifferentialEvolution) Search(ctx context.Context, space Space, ev *Evaluator, coord *Coordinator) error {
	if err := space.Validate(); err != nil {
		return err
	}

	generations := d.Generations
	if generations <= 0 {
		generations = 50
	}
	popSize := d.PopulationSize
	if popSize < 4 {
		popSize = 20
	}
	weight := d.Weight
	if weight == 0 {
		weight = 0.8
	}
	crossover := d.CrossoverProb
	if crossover == 0 {
		crossover = 0.9
	}
	seed := d.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	dims := len(space)
	population := make([]deMember, popSize)
	for i := range population {
		vec := make([]float64, dims)
		for j, axis := range space {
			lo, hi := axis.Bounds()
			vec[j] = lo + rng.Float64()*(hi-lo)
		}
		population[i] = deMember{vec: vec, cost: math.Inf(1)}
	}

	if err := d.evaluate(ctx, space, population, ev, coord); err != nil {
		return err
	}

	for gen := 0; gen < generations; gen++ {
		if coord.Cancelled() || ctx.Err() != nil {
			break
		}

		trials := make([]deMember, popSize)
		for i := range population {
			a, b, c := pickThree(rng, popSize, i)
			forced := rng.Intn(dims)

			vec := make([]float64, dims)
			for j, axis := range space {
				lo, hi := axis.Bounds()
				if j == forced || rng.Float64() < crossover {
					v := population[a].vec[j] + weight*(population[b].vec[j]-population[c].vec[j])
					vec[j] = math.Max(lo, math.Min(hi, v))
				} else {
					vec[j] = population[i].vec[j]
				}
			}
			trials[i] = deMember{vec: vec, cost: math.Inf(1)}
		}

		if err := d.evaluate(ctx, space, trials, ev, coord); err != nil {
			return err
		}

		improved := 0
		for i := range population {
			if trials[i].cost <= population[i].cost {
				population[i] = trials[i]
				improved++
			}
		}
		logger.Infof("差分进化第 %d/%d 代, %d 个个体改进", gen+1, generations, improved)
	}

	coord.Wait()
	return ctx.Err()
}

func (d *DifferentialEvolution) evaluate(
	ctx context.Context,
	space Space,
	members []deMember,
	ev *Evaluator,
	coord *Coordinator,
) error {
	workers := d.Workers
	if workers <= 0 {
		workers = 8
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range members {
		member := &members[i]
		eg.Go(func() error {
			assignment := make(Assignment, len(space))
			for j, axis := range space {
				assignment[axis.Name] = axis.Snap(member.vec[j])
			}

			cand, err := ev.Evaluate(gctx, assignment)
			if err != nil {
				if errors.Is(err, backtest.ErrInvalidConfig) {
					member.cost = math.Inf(1)
					return nil
				}
				coord.Cancel()
				return err
			}
			member.cost = cand.Cost
			coord.Offer(cand)
			return nil
		})
	}
	return eg.Wait()
}

// pickThree 取三个互不相同且不等于 self 的下标。
func pickThree(rng *rand.Rand, n, self int) (int, int, int) {
	picked := make([]int, 0, 3)
	for len(picked) < 3 {
		idx := rng.Intn(n)
		if idx == self {
			continue
		}
		dup := false
		for _, p := range picked {
			if p == idx {
				dup = true
				break
			}
		}
		if !dup {
			picked = append(picked, idx)
		}
	}
	return picked[0], picked[1], picked[2]
}
