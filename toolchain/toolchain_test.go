package toolchain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRuntime(t *testing.T) {
	v, err := ExtractRuntime("0.412903\n")
	require.NoError(t, err)
	assert.Equal(t, 0.412903, v)

	v, err = ExtractRuntime("  1.5e-2 extra tokens\n")
	require.NoError(t, err)
	assert.Equal(t, 0.015, v)

	_, err = ExtractRuntime("")
	assert.ErrorIs(t, err, ErrNoRuntime)

	_, err = ExtractRuntime("done\n")
	assert.ErrorIs(t, err, ErrNoRuntime)
}

func TestSimpleApp(t *testing.T) {
	app := Simple{Source: "/tmp/work/step_0001.c"}
	assert.Equal(t, "/tmp/work/step_0001.c", app.SourcePath())
	assert.Equal(t, "/tmp/work/step_0001", app.OutputBinary())
	assert.Equal(t,
		[]string{"gcc", "/tmp/work/step_0001.c", "-o", "/tmp/work/step_0001"},
		app.CompileCmd())
}

func TestPolybenchApp(t *testing.T) {
	app := Polybench{Benchmark: "linear-algebra/blas/gemm", Base: "/opt/polybench"}
	assert.Equal(t,
		filepath.Join("/opt/polybench", "linear-algebra/blas/gemm", "gemm.c"),
		app.SourcePath())
	assert.Equal(t,
		filepath.Join("/opt/polybench", "linear-algebra/blas/gemm", "gemm"),
		app.OutputBinary())

	cmd := app.CompileCmd()
	require.NotEmpty(t, cmd)
	assert.Equal(t, "gcc", cmd[0])
	assert.Contains(t, cmd, filepath.Join("/opt/polybench", "utilities", "polybench.c"))
	assert.Contains(t, cmd, "-DPOLYBENCH_TIME")
	assert.Contains(t, cmd, "-I")
}
