package codegen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit-xyz/go-loopkit/oracle"
	"github.com/loopkit-xyz/go-loopkit/schedule"
	"github.com/loopkit-xyz/go-loopkit/source"
	"github.com/loopkit-xyz/go-loopkit/transform"
)

const tiledFixture = `/// TRANSFORMATION: ('Tile', 2, [32])
/// #include <stdio.h>
///
/// int main() {
///   int A[1024];
/// #pragma scop
///   for (int i_t = 0; i_t < 1024; i_t += 32) {
///     for (int i = i_t; i < i_t + 32 && i < 1024; i++) {
///       A[i] = i;
///     }
///   }
///   for (int i = 0; i < 1024; i++) {
///     A[i] = A[i] + 1;
///   }
///   for (int i = 0; i < 1024; i++) {
///     A[i] = A[i] * 2;
///   }
/// #pragma endscop
///   printf("%d\n", A[0]);
///   return 0;
/// }
#include <stdio.h>

int main() {
  int A[1024];
#pragma scop
  for (int i = 0; i < 1024; i++) {
    A[i] = i;
  }
  for (int i = 0; i < 1024; i++) {
    A[i] = A[i] + 1;
  }
  for (int i = 0; i < 1024; i++) {
    A[i] = A[i] * 2;
  }
#pragma endscop
  printf("%d\n", A[0]);
  return 0;
}
`

func mustParse(t *testing.T, src string) *source.File {
	t.Helper()
	f, err := source.Parse("test.c", []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, f.Scops)
	return f
}

func oneLoop(t *testing.T) (*source.File, *schedule.Scop) {
	t.Helper()
	f := mustParse(t, `
#pragma scop
  for (int i = 0; i < 1024; i++) {
    A[i] = i;
  }
#pragma endscop
`)
	return f, f.Scops[0]
}

// Applies the fixture's annotated transformation, regenerates the file and
// compares it line by line against the comment-marked expectation.
func TestAnnotatedTileEndToEnd(t *testing.T) {
	f := mustParse(t, tiledFixture)
	ann, ok := f.Annotation()
	require.True(t, ok)

	eng := transform.New(oracle.Distance{})
	res, err := eng.Apply(context.Background(), f.Scops[0].Tree(), ann.NodeIdx, ann.Kind, ann.Args)
	require.NoError(t, err)
	require.Equal(t, transform.ResultLegal, res)

	code, err := File(f)
	require.NoError(t, err)

	var got []string
	for _, line := range strings.Split(strings.TrimSuffix(code, "\n"), "\n") {
		if strings.HasPrefix(line, "///") {
			continue
		}
		got = append(got, line)
	}
	assert.Equal(t, f.ExpectedLines(), got)
}

func TestUnmodifiedPassThrough(t *testing.T) {
	f := mustParse(t, tiledFixture)
	code, err := File(f)
	require.NoError(t, err)
	assert.Equal(t, f.Text, code)
}

func TestReverseRendersDescending(t *testing.T) {
	_, s := oneLoop(t)
	n, err := s.Tree().Node(1)
	require.NoError(t, err)
	require.NoError(t, n.NegateRow(0))

	code, err := Scop(s)
	require.NoError(t, err)
	assert.Equal(t, "  for (int i = 1024 - 1; i >= 0; i--) {\n    A[i] = i;\n  }\n", code)
}

func TestReversedTileLoops(t *testing.T) {
	_, s := oneLoop(t)
	n, err := s.Tree().Node(1)
	require.NoError(t, err)
	require.NoError(t, n.NegateRow(0))
	require.NoError(t, n.TileRow(0, 16))

	code, err := Scop(s)
	require.NoError(t, err)
	assert.Contains(t, code, "for (int i_t = 1024 - 1; i_t >= 0; i_t -= 16) {")
	assert.Contains(t, code, "for (int i = i_t; i > i_t - 16 && i >= 0; i--) {")
}

func TestPragmas(t *testing.T) {
	_, s := oneLoop(t)
	n, err := s.Tree().Node(1)
	require.NoError(t, err)
	require.NoError(t, n.MarkParallel(0))

	code, err := Scop(s)
	require.NoError(t, err)
	assert.Equal(t, "  #pragma omp parallel for\n  for (int i = 0; i < 1024; i++) {\n    A[i] = i;\n  }\n", code)

	require.NoError(t, n.SetLoopType(0, schedule.LoopUnroll))
	code, err = Scop(s)
	require.NoError(t, err)
	assert.Contains(t, code, "#pragma unroll\n")
}

func TestFusedStatementsShareIterator(t *testing.T) {
	f := mustParse(t, `
#pragma scop
  for (int i = 0; i < 256; i++) {
    A[i] = i;
  }
  for (int j = 0; j < 256; j++) {
    B[j] = j + 1;
  }
#pragma endscop
`)
	s := f.Scops[0]
	seq, err := s.Tree().Node(1)
	require.NoError(t, err)
	require.Equal(t, schedule.KindSequence, seq.Kind())
	require.NoError(t, seq.FuseChildren(0, 1))

	code, err := Scop(s)
	require.NoError(t, err)
	assert.Equal(t, "  for (int i = 0; i < 256; i++) {\n    A[i] = i;\n    B[i] = i + 1;\n  }\n", code)
}

func TestCacheHitsAndEviction(t *testing.T) {
	_, s := oneLoop(t)
	c := NewCache(1)

	first, err := c.Render(s)
	require.NoError(t, err)
	again, err := c.Render(s)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)

	n, err := s.Tree().Node(1)
	require.NoError(t, err)
	require.NoError(t, n.TileRow(0, 8))
	_, err = c.Render(s)
	require.NoError(t, err)

	_, misses = c.Stats()
	assert.EqualValues(t, 2, misses)
	assert.Len(t, c.entries, 1)
}
