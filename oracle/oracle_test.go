package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

// stencilScop is a 2-deep nest carrying dependences on both loops, as in
// A[i][j] = A[i-1][j] + A[i][j-1].
func stencilScop() *schedule.Scop {
	s := &schedule.Scop{
		Name: "scop0",
		IVs:  []string{"i", "j"},
		Extents: []schedule.Extent{
			{IV: "i", Low: "0", High: "N"},
			{IV: "j", Low: "0", High: "N"},
		},
		Statements: []schedule.Statement{
			{ID: 0, Name: "S0", IVs: []string{"i", "j"}},
		},
		Deps: []schedule.Dependence{
			{Src: 0, Dst: 0, Distance: []int{1, 0}},
			{Src: 0, Dst: 0, Distance: []int{0, 1}},
		},
	}
	schedule.Build(s, schedule.Band(
		[]schedule.Row{schedule.UnitRow(2, 0), schedule.UnitRow(2, 1)},
		[]int{0}))
	return s
}

// chainScop is two sequential loops with a loop-independent dependence from
// the first statement to the second.
func chainScop() *schedule.Scop {
	s := &schedule.Scop{
		Name:    "scop0",
		IVs:     []string{"i"},
		Extents: []schedule.Extent{{IV: "i", Low: "0", High: "N"}},
		Statements: []schedule.Statement{
			{ID: 0, Name: "S0", IVs: []string{"i"}},
			{ID: 1, Name: "S1", IVs: []string{"i"}},
		},
		Deps: []schedule.Dependence{
			{Src: 0, Dst: 1, Distance: []int{0}},
		},
	}
	schedule.Build(s, schedule.Sequence(
		schedule.Band([]schedule.Row{schedule.UnitRow(1, 0)}, []int{0}),
		schedule.Band([]schedule.Row{schedule.UnitRow(1, 0)}, []int{1}),
	))
	return s
}

func TestCheckPristine(t *testing.T) {
	ctx := context.Background()
	var o Distance

	legal, err := o.Check(ctx, stencilScop().Tree())
	require.NoError(t, err)
	assert.True(t, legal)

	legal, err = o.Check(ctx, chainScop().Tree())
	require.NoError(t, err)
	assert.True(t, legal)
}

func TestReverseCarryingLoopIllegal(t *testing.T) {
	tr := stencilScop().Tree()
	n, err := tr.Node(1)
	require.NoError(t, err)
	require.NoError(t, n.NegateRow(0))

	legal, err := Distance{}.Check(context.Background(), tr)
	require.NoError(t, err)
	assert.False(t, legal, "reversing a dependence-carrying loop must be illegal")
}

func TestInterchangeStencilLegal(t *testing.T) {
	tr := stencilScop().Tree()
	n, err := tr.Node(1)
	require.NoError(t, err)
	require.NoError(t, n.SwapRows(0, 1))

	legal, err := Distance{}.Check(context.Background(), tr)
	require.NoError(t, err)
	assert.True(t, legal, "both distances stay lexicographically positive")
}

func TestCheckParallel(t *testing.T) {
	ctx := context.Background()
	var o Distance

	tr := stencilScop().Tree()
	ok, err := o.CheckParallel(ctx, tr, 1, 0)
	require.NoError(t, err)
	assert.False(t, ok, "row 0 carries the (1,0) dependence")

	ok, err = o.CheckParallel(ctx, tr, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok, "row 1 carries the (0,1) dependence")

	// Drop the j-carried dependence: the inner loop becomes parallel.
	s := stencilScop()
	s.Deps = s.Deps[:1]
	ok, err = o.CheckParallel(ctx, s.Tree(), 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = o.CheckParallel(ctx, tr, 0, 0)
	assert.ErrorIs(t, err, schedule.ErrNotBand)
}

func TestStaticOracle(t *testing.T) {
	ctx := context.Background()
	tr := chainScop().Tree()

	legal, err := Static{Legal: false}.Check(ctx, tr)
	require.NoError(t, err)
	assert.False(t, legal)

	legal, err = Static{Legal: true}.CheckParallel(ctx, tr, 2, 0)
	require.NoError(t, err)
	assert.True(t, legal)
}
