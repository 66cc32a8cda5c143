package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("Transmogrify")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestBoundsPerKind(t *testing.T) {
	tr := nest2Scop().Tree()
	band, err := tr.Node(1)
	require.NoError(t, err)

	b, err := Bounds(Tile, band)
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.True(t, b[0].Contains(1))
	assert.True(t, b[0].Contains(1<<19))
	assert.False(t, b[0].Contains(0))
	assert.False(t, b[0].Contains(1<<20))

	b, err = Bounds(Interchange, band)
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, []int{0, 1}, b[0].Choices)

	b, err = Bounds(Skew, band)
	require.NoError(t, err)
	require.Len(t, b, 3)
	assert.True(t, b[2].Contains(DefaultLow))
	assert.True(t, b[2].Contains(DefaultHigh-1))
	assert.False(t, b[2].Contains(DefaultHigh))

	b, err = Bounds(Split, band)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, b[0].Choices, "split points exclude 0")

	b, err = Bounds(SetLoopType, band)
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Len(t, b[1].Choices, len(schedule.LoopTypes()))
}

func TestSetParallelBoundsShrink(t *testing.T) {
	tr := nest2Scop().Tree()
	band, err := tr.Node(1)
	require.NoError(t, err)
	require.NoError(t, band.MarkParallel(0))

	band, err = tr.Node(1)
	require.NoError(t, err)
	b, err := Bounds(SetParallel, band)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, b[0].Choices, "already-parallel rows drop out")

	require.NoError(t, band.MarkParallel(1))
	band, _ = tr.Node(1)
	assert.False(t, Valid(SetParallel, band), "fully parallel bands have nothing left to mark")
}

func TestFuseRequiresMatchingExtents(t *testing.T) {
	s := &schedule.Scop{
		Name: "scop0",
		IVs:  []string{"i", "j"},
		Extents: []schedule.Extent{
			{IV: "i", Low: "0", High: "N"},
			{IV: "j", Low: "0", High: "M"},
		},
		Statements: []schedule.Statement{
			{ID: 0, Name: "S0", IVs: []string{"i"}},
			{ID: 1, Name: "S1", IVs: []string{"j"}},
		},
	}
	schedule.Build(s, schedule.Sequence(
		schedule.Band([]schedule.Row{schedule.UnitRow(2, 0)}, []int{0}),
		schedule.Band([]schedule.Row{schedule.UnitRow(2, 1)}, []int{1}),
	))
	seq, err := s.Tree().Node(1)
	require.NoError(t, err)
	assert.False(t, Valid(Fuse, seq), "trip counts differ")

	s.Extents[1].High = "N"
	assert.True(t, Valid(Fuse, seq))
}

func TestBoundWithout(t *testing.T) {
	b := Enum(0, 1, 2)
	assert.Equal(t, []int{0, 2}, b.Without(1).Choices)
	r := Range(0, 8)
	assert.Equal(t, r, r.Without(3), "ranges are unaffected")
}
