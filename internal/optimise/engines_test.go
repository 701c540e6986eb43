package optimise

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocat/internal/backtest"
)

func TestNewEngine(t *testing.T) {
	for _, name := range []string{"grid", "genetic", "bayesian", "de"} {
		engine, err := NewEngine(name, 4)
		require.NoError(t, err)
		assert.Equal(t, name, engine.Name())
	}

	_, err := NewEngine("simulated_annealing", 4)
	assert.ErrorIs(t, err, backtest.ErrInvalidConfig)
}

func TestGeneticSearchConvergesOnTarget(t *testing.T) {
	ev := NewEvaluator(testEngine(), testFixedInputs())
	coord := NewCoordinator()
	ga := &GeneticEngine{
		Workers:        2,
		Generations:    3,
		PopulationSize: 8,
		CrossoverProb:  0.8,
		MutationProb:   0.2,
		Seed:           1,
	}

	require.NoError(t, ga.Search(context.Background(), Space{targetAxis()}, ev, coord))

	best := coord.Best()
	require.NotNil(t, best)
	assert.InDelta(t, 200.0/3, *best.SuccessRate, 1e-9)
}

func TestBayesianSearchConvergesOnTarget(t *testing.T) {
	ev := NewEvaluator(testEngine(), testFixedInputs())
	coord := NewCoordinator()
	bayes := &BayesianEngine{Budget: 20, ExploreProb: 1, Seed: 1}

	require.NoError(t, bayes.Search(context.Background(), Space{targetAxis()}, ev, coord))

	best := coord.Best()
	require.NotNil(t, best)
	assert.InDelta(t, 200.0/3, *best.SuccessRate, 1e-9)
}

func TestDifferentialEvolutionConvergesOnTarget(t *testing.T) {
	ev := NewEvaluator(testEngine(), testFixedInputs())
	coord := NewCoordinator()
	de := &DifferentialEvolution{
		Workers:        2,
		Generations:    3,
		PopulationSize: 8,
		Seed:           1,
	}

	require.NoError(t, de.Search(context.Background(), Space{targetAxis()}, ev, coord))

	best := coord.Best()
	require.NotNil(t, best)
	assert.InDelta(t, 200.0/3, *best.SuccessRate, 1e-9)
}

func TestRankPickStaysWithinParents(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		r := rankPick(rng, 5)
		assert.GreaterOrEqual(t, r, 0)
		assert.Less(t, r, 5)
	}
}

func TestPickThreeDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		a, b, c := pickThree(rng, 6, 2)
		assert.NotEqual(t, 2, a)
		assert.NotEqual(t, 2, b)
		assert.NotEqual(t, 2, c)
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
		assert.NotEqual(t, b, c)
	}
}
