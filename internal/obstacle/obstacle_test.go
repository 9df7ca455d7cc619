package obstacle

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestTargetReference(t *testing.T) {
	assert.Equal(t, 60, DefaultParams().Target())
	assert.Equal(t, 0, Params{Faces: 6, GridSize: 10, Density: 0}.Target())
	assert.Equal(t, 599, Params{Faces: 6, GridSize: 10, Density: 1}.Target(), "capped below the full surface")
	assert.Equal(t, 180, Params{Faces: 6, GridSize: 10, Density: 0.3}.Target())
	assert.Equal(t, 0, Params{Faces: 6, GridSize: 10, Density: math.NaN()}.Target())
	assert.Equal(t, 0, Params{Faces: 6, GridSize: 10, Density: math.Inf(1)}.Target())
	assert.Equal(t, 0, Params{Faces: 6, GridSize: 10, Density: math.Inf(-1)}.Target())
}

func TestGenerateNonFiniteDensity(t *testing.T) {
	start := Position{Face: cube.Front}
	for _, s := range []Strategy{StrategyRejection, StrategyShuffle, StrategyAuto} {
		p := Params{Faces: 6, GridSize: 10, Density: math.NaN(), Strategy: s}
		f := Generate(p, start, seeded(1))
		assert.Equal(t, 0, f.Len(), "%s", s)
		assert.Equal(t, 0, f.Shortfall(), "%s", s)
	}
}

func TestGenerateReferenceCount(t *testing.T) {
	start := Position{Face: cube.Front, X: 0, Y: 0}
	for seed := uint64(0); seed < 50; seed++ {
		f := Generate(DefaultParams(), start, seeded(seed))
		assert.Equal(t, 60, f.Len(), "seed %d", seed)
		assert.Equal(t, 0, f.Shortfall(), "seed %d", seed)
		assert.Equal(t, StrategyRejection, f.Strategy())
		assert.LessOrEqual(t, f.Attempts(), 600)
	}
}

func TestGenerateNeverBlocksStart(t *testing.T) {
	// A tiny 1×1 cube at full density: the only free cell is the start.
	p := Params{Faces: 6, GridSize: 1, Density: 0.99, Strategy: StrategyRejection}
	for seed := uint64(0); seed < 100; seed++ {
		start := Position{Face: cube.Face(seed % 6)}
		f := Generate(p, start, seeded(seed))
		assert.False(t, f.HasObstacle(start.Face, 0, 0), "seed %d blocked the start", seed)
		assert.LessOrEqual(t, f.Len(), p.Target())
	}
}

func TestGenerateNoDuplicates(t *testing.T) {
	p := Params{Faces: 6, GridSize: 4, Density: 0.4, Strategy: StrategyRejection}
	f := Generate(p, Position{Face: cube.Top, X: 1, Y: 2}, seeded(7))
	seen := map[cube.Obstacle]bool{}
	for _, o := range f.All() {
		require.False(t, seen[o], "duplicate %v", o)
		seen[o] = true
	}
	assert.Equal(t, f.Len(), len(seen))
}

func TestRejectionShortfallIsReported(t *testing.T) {
	// 95% of a 2×2 cube leaves rejection sampling with a budget it can
	// exhaust; whatever it places must be reported consistently.
	p := Params{Faces: 6, GridSize: 2, Density: 0.95, Strategy: StrategyRejection}
	for seed := uint64(0); seed < 30; seed++ {
		f := Generate(p, Position{Face: cube.Front}, seeded(seed))
		assert.Equal(t, p.Target(), f.Len()+f.Shortfall())
		assert.LessOrEqual(t, f.Attempts(), attemptFactor*p.Target())
	}
}

func TestShuffleIsExact(t *testing.T) {
	p := Params{Faces: 6, GridSize: 3, Density: 0.9, Strategy: StrategyShuffle}
	start := Position{Face: cube.Back, X: 1, Y: 1}
	f := Generate(p, start, seeded(3))
	assert.Equal(t, p.Target(), f.Len())
	assert.Equal(t, 0, f.Shortfall())
	assert.False(t, f.HasObstacle(cube.Back, 1, 1))
}

func TestAutoSwitchesStrategy(t *testing.T) {
	low := Generate(Params{Faces: 6, GridSize: 5, Density: 0.2}, Position{}, seeded(1))
	high := Generate(Params{Faces: 6, GridSize: 5, Density: 0.8}, Position{}, seeded(1))
	assert.Equal(t, StrategyRejection, low.Strategy())
	assert.Equal(t, StrategyShuffle, high.Strategy())
	assert.Equal(t, 0, high.Shortfall())
}

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	a := Generate(DefaultParams(), Position{}, seeded(42))
	b := Generate(DefaultParams(), Position{}, seeded(42))
	assert.ElementsMatch(t, a.All(), b.All())
}

func TestHasObstacleIsPermissive(t *testing.T) {
	f, err := FromObstacles(10, []cube.Obstacle{{Face: cube.Left, X: 3, Y: 4}}, Position{})
	require.NoError(t, err)

	assert.True(t, f.HasObstacle(cube.Left, 3, 4))
	assert.False(t, f.HasObstacle(cube.Left, 4, 3))
	assert.False(t, f.HasObstacle(cube.Face(42), 3, 4))
	assert.False(t, f.HasObstacle(cube.Face(-1), 3, 4))
	assert.False(t, f.HasObstacle(cube.Left, -1, 4))
	assert.False(t, f.HasObstacle(cube.Left, 3, 10))
}

func TestOnFaceProjection(t *testing.T) {
	list := []cube.Obstacle{
		{Face: cube.Top, X: 1, Y: 1},
		{Face: cube.Top, X: 2, Y: 1},
		{Face: cube.Bottom, X: 0, Y: 9},
	}
	f, err := FromObstacles(10, list, Position{})
	require.NoError(t, err)

	assert.Len(t, f.OnFace(cube.Top), 2)
	assert.Len(t, f.OnFace(cube.Bottom), 1)
	assert.Empty(t, f.OnFace(cube.Front))
	assert.Nil(t, f.OnFace(cube.Face(8)))
	assert.ElementsMatch(t, list, f.All())

	// Projections are copies.
	top := f.OnFace(cube.Top)
	top[0] = cube.Obstacle{Face: cube.Front}
	assert.ElementsMatch(t, list, f.All())
}

func TestFromObstaclesValidates(t *testing.T) {
	start := Position{Face: cube.Front, X: 0, Y: 0}

	_, err := FromObstacles(10, []cube.Obstacle{start}, start)
	assert.ErrorIs(t, err, ErrStartBlocked)

	dup := cube.Obstacle{Face: cube.Right, X: 1, Y: 1}
	_, err = FromObstacles(10, []cube.Obstacle{dup, dup}, start)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = FromObstacles(10, []cube.Obstacle{{Face: cube.Right, X: 10, Y: 1}}, start)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = FromObstacles(0, nil, start)
	assert.ErrorIs(t, err, cube.ErrInvalidGridSize)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyAuto, StrategyRejection, StrategyShuffle} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("poisson")
	assert.Error(t, err)
}
