// Package explore runs the sample/apply/measure loop: draw a transformation,
// apply it under the legality oracle, regenerate code from the committed
// tree and measure the compiled result, recording a step either way. Illegal
// and invalid draws are logged and skipped; only a failed rollback aborts
// the run.
package explore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopkit-xyz/go-loopkit/codegen"
	"github.com/loopkit-xyz/go-loopkit/results"
	"github.com/loopkit-xyz/go-loopkit/sampler"
	"github.com/loopkit-xyz/go-loopkit/schedule"
	"github.com/loopkit-xyz/go-loopkit/source"
	"github.com/loopkit-xyz/go-loopkit/toolchain"
	"github.com/loopkit-xyz/go-loopkit/transform"
)

// Runner is the compile/measure surface the loop depends on.
type Runner interface {
	Compile(ctx context.Context, app toolchain.App) error
	Measure(ctx context.Context, app toolchain.App) (float64, error)
}

// Config parameterizes one exploration run.
type Config struct {
	Scenario string
	Source   string // path to the annotated C source
	WorkDir  string // candidate sources and binaries are written here
	Seed     int64
	Steps    int
	MaxDraws int // per-step draw budget for the sampling policy
	Log      zerolog.Logger
}

// Explorer drives one run over one source file.
type Explorer struct {
	cfg    Config
	engine *transform.Engine
	policy *sampler.Policy
	runner Runner
	cache  *codegen.Cache
	store  *results.Store // optional
}

// New assembles an explorer. The store may be nil, in which case steps are
// only returned, not persisted.
func New(cfg Config, engine *transform.Engine, runner Runner, store *results.Store) *Explorer {
	policy := sampler.New(cfg.Seed)
	policy.MaxDraws = cfg.MaxDraws
	return &Explorer{
		cfg:    cfg,
		engine: engine,
		policy: policy,
		runner: runner,
		cache:  codegen.NewCache(0),
		store:  store,
	}
}

// Run executes the configured number of steps and returns them in order.
func (e *Explorer) Run(ctx context.Context) ([]results.Step, error) {
	f, err := source.ParseFile(e.cfg.Source)
	if err != nil {
		return nil, err
	}
	scop, err := pickScop(f)
	if err != nil {
		return nil, err
	}
	log := e.cfg.Log.With().Str("scenario", e.cfg.Scenario).Str("scop", scop.Name).Logger()

	var runID string
	if e.store != nil {
		run, err := e.store.CreateRun(ctx, e.cfg.Scenario, e.cfg.Seed)
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}

	var steps []results.Step
	for i := 1; i <= e.cfg.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		step, err := e.step(ctx, f, scop, i)
		step.Scenario = e.cfg.Scenario
		step.RunID = runID
		step.CreatedAt = time.Now().UTC()
		if err != nil {
			return steps, err
		}
		e.logStep(log, step)
		steps = append(steps, step)
		if e.store != nil {
			sched := ""
			if step.Outcome == results.OutcomeLegal {
				sched = scop.Tree().Serialize()
			}
			if err := e.store.RecordStep(ctx, step, sched); err != nil {
				return steps, err
			}
		}
	}
	return steps, nil
}

func (e *Explorer) step(ctx context.Context, f *source.File, scop *schedule.Scop, n int) (results.Step, error) {
	step := results.Step{Step: n, NodeIdx: -1}
	tree := scop.Tree()

	t0 := time.Now()
	prop, err := e.policy.Propose(tree)
	step.SampleMS = ms(t0)
	if err != nil {
		step.Outcome = results.OutcomeInvalid
		step.Detail = err.Error()
		if errors.Is(err, sampler.ErrNoProposal) {
			return step, nil
		}
		return step, err
	}
	step.NodeIdx = prop.NodeIdx
	step.Transform = prop.Kind.String()
	step.Args = prop.Args

	t0 = time.Now()
	res, err := e.engine.Apply(ctx, tree, prop.NodeIdx, prop.Kind, prop.Args)
	step.ApplyMS = ms(t0)
	switch {
	case errors.Is(err, transform.ErrRollbackFailure):
		step.Outcome = results.OutcomeError
		step.Detail = err.Error()
		return step, err
	case errors.Is(err, transform.ErrInvalidArgument):
		step.Outcome = results.OutcomeInvalid
		step.Detail = err.Error()
		return step, nil
	case err != nil:
		step.Outcome = results.OutcomeError
		step.Detail = err.Error()
		return step, nil
	case res == transform.ResultIllegal:
		step.Outcome = results.OutcomeIllegal
		return step, nil
	}

	t0 = time.Now()
	code, err := codegen.FileVia(f, e.cache.Render)
	step.CodegenMS = ms(t0)
	if err != nil {
		step.Outcome = results.OutcomeError
		step.Detail = err.Error()
		return step, nil
	}
	candidate := filepath.Join(e.cfg.WorkDir, fmt.Sprintf("step_%04d.c", n))
	if err := os.WriteFile(candidate, []byte(code), 0o644); err != nil {
		step.Outcome = results.OutcomeError
		step.Detail = err.Error()
		return step, nil
	}
	app := toolchain.Simple{Source: candidate}

	t0 = time.Now()
	err = e.runner.Compile(ctx, app)
	step.CompileMS = ms(t0)
	if err != nil {
		step.Outcome = results.OutcomeError
		step.Detail = err.Error()
		return step, nil
	}

	t0 = time.Now()
	runtime, err := e.runner.Measure(ctx, app)
	step.MeasureMS = ms(t0)
	if err != nil {
		step.Outcome = results.OutcomeError
		step.Detail = err.Error()
		return step, nil
	}

	step.Outcome = results.OutcomeLegal
	step.Runtime = runtime
	return step, nil
}

func (e *Explorer) logStep(log zerolog.Logger, s results.Step) {
	ev := log.Info()
	if s.Outcome == results.OutcomeError {
		ev = log.Warn()
	}
	ev.Int("step", s.Step).
		Int("node", s.NodeIdx).
		Str("transform", s.Transform).
		Ints("args", s.Args).
		Str("outcome", string(s.Outcome)).
		Float64("runtime", s.Runtime).
		Msg("explore step")
}

// pickScop selects the first scop with a transformable tree.
func pickScop(f *source.File) (*schedule.Scop, error) {
	for _, s := range f.Scops {
		if s.Tree().Len() > 1 {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%s: no transformable scop", f.Path)
}

func ms(t0 time.Time) float64 {
	return float64(time.Since(t0)) / float64(time.Millisecond)
}
