package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeScop models three sequential loops over i, each carrying one
// statement, with the loop-independent dependences of the chain
// A[i] = i; A[i] += 1; A[i] *= 2.
func threeScop() *Scop {
	s := &Scop{
		Name:    "scop0",
		IVs:     []string{"i"},
		Extents: []Extent{{IV: "i", Low: "0", High: "1024"}},
		Statements: []Statement{
			{ID: 0, Name: "S0", Text: "A[i] = i;", IVs: []string{"i"}},
			{ID: 1, Name: "S1", Text: "A[i] = A[i] + 1;", IVs: []string{"i"}},
			{ID: 2, Name: "S2", Text: "A[i] = A[i] * 2;", IVs: []string{"i"}},
		},
		Deps: []Dependence{
			{Src: 0, Dst: 1, Distance: []int{0}},
			{Src: 1, Dst: 2, Distance: []int{0}},
			{Src: 0, Dst: 2, Distance: []int{0}},
		},
	}
	Build(s,
		Sequence(
			Band([]Row{UnitRow(1, 0)}, []int{0}),
			Band([]Row{UnitRow(1, 0)}, []int{1}),
			Band([]Row{UnitRow(1, 0)}, []int{2}),
		))
	return s
}

// nestScop models a 2-deep perfect nest with dependences carried by both
// loops, as in A[i][j] = A[i-1][j] + A[i][j-1].
func nestScop() *Scop {
	s := &Scop{
		Name: "scop0",
		IVs:  []string{"i", "j"},
		Extents: []Extent{
			{IV: "i", Low: "0", High: "N"},
			{IV: "j", Low: "0", High: "N"},
		},
		Params: []string{"N"},
		Statements: []Statement{
			{ID: 0, Name: "S0", Text: "A[i][j] = A[i-1][j] + A[i][j-1];", IVs: []string{"i", "j"}},
		},
		Deps: []Dependence{
			{Src: 0, Dst: 0, Distance: []int{1, 0}},
			{Src: 0, Dst: 0, Distance: []int{0, 1}},
		},
	}
	Build(s, Band([]Row{UnitRow(2, 0), UnitRow(2, 1)}, []int{0}))
	return s
}

func TestNodeIndexing(t *testing.T) {
	tr := threeScop().Tree()
	require.Equal(t, 5, tr.Len())

	kinds := []Kind{KindDomain, KindSequence, KindBand, KindBand, KindBand}
	for i, want := range kinds {
		n, err := tr.Node(i)
		require.NoError(t, err)
		assert.Equal(t, want, n.Kind(), "node %d", i)
		assert.Equal(t, i, n.Index)
	}

	_, err := tr.Node(5)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = tr.Node(-1)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestStatementsAggregate(t *testing.T) {
	tr := threeScop().Tree()
	root, err := tr.Node(0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, root.Statements())

	seq, err := tr.Node(1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seq.Statements())

	band, err := tr.Node(3)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, band.Statements())
}

func TestTileRow(t *testing.T) {
	tr := threeScop().Tree()
	n, err := tr.Node(2)
	require.NoError(t, err)
	require.Equal(t, []int{0}, n.UntiledRows())

	require.NoError(t, n.TileRow(0, 32))
	n, err = tr.Node(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n.Dims())
	assert.True(t, n.Tiled(0))
	assert.True(t, n.Tiled(1))
	assert.Empty(t, n.UntiledRows())

	tile, err := n.Row(0)
	require.NoError(t, err)
	assert.Equal(t, 32, tile.Step)
	assert.False(t, tile.Point)
	point, err := n.Row(1)
	require.NoError(t, err)
	assert.True(t, point.Point)

	assert.Error(t, n.TileRow(0, 16), "tiling a tile row must fail")
	assert.Error(t, n.TileRow(0, 0), "tile size below 1 must fail")
}

func TestRowMutators(t *testing.T) {
	tr := nestScop().Tree()
	n, err := tr.Node(1)
	require.NoError(t, err)

	require.NoError(t, n.SwapRows(0, 1))
	r0, _ := n.Row(0)
	assert.Equal(t, []int{0, 1}, r0.Coeffs)

	require.NoError(t, n.SwapRows(0, 1))
	require.NoError(t, n.NegateRow(0))
	r0, _ = n.Row(0)
	assert.Equal(t, []int{-1, 0}, r0.Coeffs)
	require.NoError(t, n.NegateRow(0))

	require.NoError(t, n.SkewRow(1, 0, 2))
	r1, _ := n.Row(1)
	assert.Equal(t, []int{2, 1}, r1.Coeffs)

	require.NoError(t, n.ShiftRow(0, 5))
	r0, _ = n.Row(0)
	assert.Equal(t, 5, r0.Shift)

	require.NoError(t, n.MarkParallel(1))
	r1, _ = n.Row(1)
	assert.True(t, r1.Parallel)

	require.NoError(t, n.SetLoopType(0, LoopUnroll))
	r0, _ = n.Row(0)
	assert.Equal(t, LoopUnroll, r0.Loop)

	assert.ErrorIs(t, n.SwapRows(0, 7), ErrBadRow)
	assert.Error(t, n.SkewRow(0, 0, 1))
}

func TestSplitBand(t *testing.T) {
	tr := nestScop().Tree()
	n, err := tr.Node(1)
	require.NoError(t, err)
	require.NoError(t, n.SplitBand(1))

	require.Equal(t, 3, tr.Len())
	outer, err := tr.Node(1)
	require.NoError(t, err)
	assert.Equal(t, 1, outer.Dims())
	assert.Equal(t, []int{0}, outer.Statements(), "outer band aggregates the inner statements")

	inner, err := tr.Node(2)
	require.NoError(t, err)
	assert.Equal(t, KindBand, inner.Kind())
	assert.Equal(t, 1, inner.Dims())
	assert.Equal(t, []int{0}, inner.Statements())
}

func TestFuseChildren(t *testing.T) {
	tr := threeScop().Tree()
	seq, err := tr.Node(1)
	require.NoError(t, err)
	require.NoError(t, seq.FuseChildren(0, 1))

	require.Equal(t, 4, tr.Len())
	seq, err = tr.Node(1)
	require.NoError(t, err)
	require.Equal(t, 2, seq.NumChildren())

	fused, err := tr.Node(2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, fused.Statements())

	// Fusing the remaining pair collapses the sequence into the band.
	require.NoError(t, seq.FuseChildren(0, 1))
	require.Equal(t, 2, tr.Len())
	band, err := tr.Node(1)
	require.NoError(t, err)
	assert.Equal(t, KindBand, band.Kind())
	assert.Equal(t, []int{0, 1, 2}, band.Statements())
}

func TestSnapshotRestore(t *testing.T) {
	tr := threeScop().Tree()
	before := tr.Serialize()
	snap := tr.Snapshot()

	n, err := tr.Node(2)
	require.NoError(t, err)
	require.NoError(t, n.TileRow(0, 64))
	tr.SetModified(true)
	require.NotEqual(t, before, tr.Serialize())

	tr.Restore(snap)
	assert.Equal(t, before, tr.Serialize())
	assert.Equal(t, snap.Sum(), tr.Fingerprint())
	assert.False(t, tr.Modified())
}
