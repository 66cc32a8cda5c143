package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	run, err := s.CreateRun(ctx, "gemm", 42)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "gemm", run.Scenario)
	assert.EqualValues(t, 42, run.Seed)

	steps := sampleSteps()
	for i := range steps {
		steps[i].RunID = run.ID
		sched := ""
		if steps[i].Outcome == OutcomeLegal {
			sched = "scop: scop0\niterators: [i, j]\n"
		}
		require.NoError(t, s.RecordStep(ctx, steps[i], sched))
	}

	back, err := s.Steps(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, back, len(steps))
	for i, st := range back {
		assert.Equal(t, steps[i].Step, st.Step)
		assert.Equal(t, steps[i].NodeIdx, st.NodeIdx)
		assert.Equal(t, steps[i].Transform, st.Transform)
		assert.Equal(t, steps[i].Args, st.Args)
		assert.Equal(t, steps[i].Outcome, st.Outcome)
		assert.Equal(t, steps[i].Runtime, st.Runtime)
		assert.Equal(t, steps[i].Detail, st.Detail)
		assert.Equal(t, steps[i].CompileMS, st.CompileMS)
	}
}

func TestStoreBest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	run, err := s.CreateRun(ctx, "bench", 1)
	require.NoError(t, err)

	at := time.Now().UTC()
	rt := []struct {
		runtime float64
		outcome Outcome
	}{
		{2.5, OutcomeLegal},
		{0.9, OutcomeLegal},
		{0, OutcomeIllegal},
		{1.4, OutcomeLegal},
		{0, OutcomeInvalid},
	}
	for i, r := range rt {
		require.NoError(t, s.RecordStep(ctx, Step{
			RunID: run.ID, Step: i, Transform: "Tile",
			Outcome: r.outcome, Runtime: r.runtime, CreatedAt: at,
		}, ""))
	}

	best, err := s.Best(ctx, run.ID, 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, 0.9, best[0].Runtime)
	assert.Equal(t, 1, best[0].Step)
	assert.Equal(t, 1.4, best[1].Runtime)
}

func TestStoreClose(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.CreateRun(context.Background(), "after-close", 1)
	assert.Error(t, err)
}

func TestStoreSchedule(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	run, err := s.CreateRun(ctx, "sched", 7)
	require.NoError(t, err)

	text := "scop: scop0\niterators: [i]\ntree:\n  kind: band\n"
	require.NoError(t, s.RecordStep(ctx, Step{
		RunID: run.ID, Step: 0, Transform: "Shift",
		Outcome: OutcomeLegal, CreatedAt: time.Now().UTC(),
	}, text))
	require.NoError(t, s.RecordStep(ctx, Step{
		RunID: run.ID, Step: 1, Transform: "Reverse",
		Outcome: OutcomeIllegal, CreatedAt: time.Now().UTC(),
	}, ""))

	back, err := s.Schedule(ctx, run.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, text, back, "schedule text must survive compression")

	empty, err := s.Schedule(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.Schedule(ctx, run.ID, 99)
	assert.Error(t, err)
}
