package optimise

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mocat/internal/backtest"
	"mocat/internal/logger"
)

// GeneticEngine 在轴候选的下标空间上做遗传搜索：排名选择、均匀
// 交叉、随机变异，固定代数。适应度取负代价。
type GeneticEngine struct {
	Workers        int
	Generations    int
	PopulationSize int
	ParentCount    int
	CrossoverProb  float64
	MutationProb   float64
	Seed           int64
}

func (g *GeneticEngine) Name() string { return "genetic" }

type genome struct {
	genes []int
	cost  float64
	cand  *Candidate
	valid bool
}

func (g *GeneticEngine) Search(ctx context.Context, space Space, ev *Evaluator, coord *Coordinator) error {
	if err := space.Validate(); err != nil {
		return err
	}

	generations := g.Generations
	if generations <= 0 {
		generations = 20
	}
	popSize := g.PopulationSize
	if popSize <= 0 {
		popSize = 30
	}
	parents := g.ParentCount
	if parents <= 1 {
		parents = popSize / 2
	}
	crossover := g.CrossoverProb
	if crossover == 0 {
		crossover = 0.8
	}
	mutation := g.MutationProb
	if mutation == 0 {
		mutation = 0.2
	}
	seed := g.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	candidates := make([][]any, len(space))
	for i, axis := range space {
		candidates[i] = axis.Candidates()
	}

	population := make([]genome, popSize)
	for i := range population {
		population[i] = genome{genes: randomGenes(rng, candidates)}
	}

	for gen := 0; gen < generations; gen++ {
		if coord.Cancelled() || ctx.Err() != nil {
			break
		}

		if err := g.evaluate(ctx, space, candidates, population, ev, coord); err != nil {
			return err
		}

		// 按代价升序排名，排名越靠前被选中概率越高
		sort.SliceStable(population, func(a, b int) bool {
			return population[a].cost < population[b].cost
		})
		logger.Infof("遗传搜索第 %d/%d 代, 最优代价 %.2f", gen+1, generations, population[0].cost)

		next := make([]genome, 0, popSize)
		for len(next) < popSize {
			p1 := population[rankPick(rng, parents)]
			p2 := population[rankPick(rng, parents)]

			child := make([]int, len(p1.genes))
			copy(child, p1.genes)
			if rng.Float64() < crossover {
				for i := range child {
					if rng.Float64() < 0.5 {
						child[i] = p2.genes[i]
					}
				}
			}
			for i := range child {
				if rng.Float64() < mutation {
					child[i] = rng.Intn(len(candidates[i]))
				}
			}
			next = append(next, genome{genes: child})
		}
		population = next
	}

	coord.Wait()
	return ctx.Err()
}

// evaluate 并发评估一代种群。参数不合法只淘汰该个体，其他错误
// 终止整个搜索。
func (g *GeneticEngine) evaluate(
	ctx context.Context,
	space Space,
	candidates [][]any,
	population []genome,
	ev *Evaluator,
	coord *Coordinator,
) error {
	workers := g.Workers
	if workers <= 0 {
		workers = 8
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range population {
		member := &population[i]
		eg.Go(func() error {
			assignment := genesToAssignment(space, candidates, member.genes)
			cand, err := ev.Evaluate(gctx, assignment)
			if err != nil {
				if errors.Is(err, backtest.ErrInvalidConfig) {
					member.cost = math.Inf(1)
					member.valid = false
					return nil
				}
				coord.Cancel()
				return err
			}
			member.cost = cand.Cost
			member.cand = cand
			member.valid = true
			coord.Offer(cand)
			return nil
		})
	}
	return eg.Wait()
}

func randomGenes(rng *rand.Rand, candidates [][]any) []int {
	genes := make([]int, len(candidates))
	for i := range genes {
		genes[i] = rng.Intn(len(candidates[i]))
	}
	return genes
}

// rankPick 对前 parents 名做线性排名加权抽样，排名 r 的权重为
// parents-r。
func rankPick(rng *rand.Rand, parents int) int {
	total := parents * (parents + 1) / 2
	draw := rng.Intn(total)
	for r := 0; r < parents; r++ {
		draw -= parents - r
		if draw < 0 {
			return r
		}
	}
	return parents - 1
}

func genesToAssignment(space Space, candidates [][]any, genes []int) Assignment {
	out := make(Assignment, len(space))
	for i, axis := range space {
		out[axis.Name] = candidates[i][genes[i]]
	}
	return out
}
