// Package toolchain compiles candidate sources and measures the resulting
// binaries. Measurement trusts the program to print its own runtime; the
// first whitespace-separated token on stdout is parsed as a float.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCompileFailed is returned when the compiler exits nonzero.
	ErrCompileFailed = errors.New("compile failed")

	// ErrMeasureFailed is returned when the measured binary exits nonzero
	// or cannot be started.
	ErrMeasureFailed = errors.New("measurement run failed")

	// ErrNoRuntime is returned when stdout carries no parseable runtime.
	ErrNoRuntime = errors.New("no runtime on stdout")
)

// App describes one measurable program.
type App interface {
	SourcePath() string
	OutputBinary() string
	CompileCmd() []string
}

// Simple is a single-file program compiled with gcc and no extra flags.
type Simple struct {
	Source string
}

func (s Simple) SourcePath() string { return s.Source }

func (s Simple) OutputBinary() string {
	return strings.TrimSuffix(s.Source, filepath.Ext(s.Source))
}

func (s Simple) CompileCmd() []string {
	return []string{"gcc", s.Source, "-o", s.OutputBinary()}
}

// Polybench is one benchmark of the Polybench suite, unpacked under Base.
type Polybench struct {
	Benchmark string // path of the benchmark dir relative to Base
	Base      string
}

func (p Polybench) SourcePath() string {
	name := filepath.Base(p.Benchmark)
	return filepath.Join(p.Base, p.Benchmark, name+".c")
}

func (p Polybench) OutputBinary() string {
	return filepath.Join(p.Base, p.Benchmark, filepath.Base(p.Benchmark))
}

func (p Polybench) utilities() string { return filepath.Join(p.Base, "utilities") }

func (p Polybench) CompileCmd() []string {
	return []string{
		"gcc",
		p.SourcePath(),
		filepath.Join(p.utilities(), "polybench.c"),
		"-I", p.utilities(),
		"-o", p.OutputBinary(),
		"-DPOLYBENCH_TIME",
		"-DPOLYBENCH_USE_RESTRICT",
	}
}

// Runner executes compile and measurement commands with per-step timeouts.
// A zero timeout leaves the caller's context bound in charge.
type Runner struct {
	Log            zerolog.Logger
	CompileTimeout time.Duration
	MeasureTimeout time.Duration
}

// Compile builds the app's binary.
func (r *Runner) Compile(ctx context.Context, app App) error {
	ctx, cancel := r.deadline(ctx, r.CompileTimeout)
	defer cancel()

	cmd := app.CompileCmd()
	r.Log.Debug().Strs("cmd", cmd).Msg("compiling")
	out, err := exec.CommandContext(ctx, cmd[0], cmd[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrCompileFailed, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Measure runs the app's binary once and parses the reported runtime.
func (r *Runner) Measure(ctx context.Context, app App) (float64, error) {
	ctx, cancel := r.deadline(ctx, r.MeasureTimeout)
	defer cancel()

	bin := app.OutputBinary()
	r.Log.Debug().Str("binary", bin).Msg("measuring")
	out, err := exec.CommandContext(ctx, bin).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMeasureFailed, bin, err)
	}
	return ExtractRuntime(string(out))
}

func (r *Runner) deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// ExtractRuntime parses the first stdout token as a runtime in seconds.
func ExtractRuntime(stdout string) (float64, error) {
	fields := strings.Fields(stdout)
	if len(fields) == 0 {
		return 0, ErrNoRuntime
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoRuntime, fields[0])
	}
	return v, nil
}
