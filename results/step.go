// Package results records per-step exploration outcomes, as CSV for quick
// inspection and in SQLite for whole-campaign queries.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Outcome classifies one exploration step.
type Outcome string

const (
	OutcomeLegal   Outcome = "legal"
	OutcomeIllegal Outcome = "illegal"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

// Step is one exploration step: the sampled transformation, its outcome and
// the per-phase timing breakdown.
type Step struct {
	Scenario  string
	RunID     string
	Step      int
	NodeIdx   int
	Transform string
	Args      []int
	Outcome   Outcome
	Runtime   float64 // measured wall time in seconds; 0 when not measured
	Detail    string  // error text for failed steps

	SampleMS  float64
	ApplyMS   float64
	CodegenMS float64
	CompileMS float64
	MeasureMS float64

	CreatedAt time.Time
}

var csvHeader = []string{
	"scenario", "run_id", "step", "node_idx", "transform", "args", "outcome",
	"runtime", "detail", "sample_ms", "apply_ms", "codegen_ms", "compile_ms",
	"measure_ms", "created_at",
}

// WriteCSV writes steps with a header row.
func WriteCSV(w io.Writer, steps []Step) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range steps {
		rec := []string{
			s.Scenario,
			s.RunID,
			strconv.Itoa(s.Step),
			strconv.Itoa(s.NodeIdx),
			s.Transform,
			formatArgs(s.Args),
			string(s.Outcome),
			formatFloat(s.Runtime),
			s.Detail,
			formatFloat(s.SampleMS),
			formatFloat(s.ApplyMS),
			formatFloat(s.CodegenMS),
			formatFloat(s.CompileMS),
			formatFloat(s.MeasureMS),
			s.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write step %d: %w", s.Step, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads steps written by WriteCSV.
func ReadCSV(r io.Reader) ([]Step, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	var steps []Step
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: %d fields, want %d", i+2, len(rec), len(csvHeader))
		}
		s := Step{
			Scenario:  rec[0],
			RunID:     rec[1],
			Transform: rec[4],
			Outcome:   Outcome(rec[6]),
			Detail:    rec[8],
		}
		if s.Step, err = strconv.Atoi(rec[2]); err != nil {
			return nil, fmt.Errorf("row %d: step: %w", i+2, err)
		}
		if s.NodeIdx, err = strconv.Atoi(rec[3]); err != nil {
			return nil, fmt.Errorf("row %d: node_idx: %w", i+2, err)
		}
		if s.Args, err = ParseArgs(rec[5]); err != nil {
			return nil, fmt.Errorf("row %d: args: %w", i+2, err)
		}
		floats := []struct {
			dst *float64
			col int
		}{
			{&s.Runtime, 7}, {&s.SampleMS, 9}, {&s.ApplyMS, 10},
			{&s.CodegenMS, 11}, {&s.CompileMS, 12}, {&s.MeasureMS, 13},
		}
		for _, f := range floats {
			if *f.dst, err = strconv.ParseFloat(rec[f.col], 64); err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", i+2, csvHeader[f.col], err)
			}
		}
		if s.CreatedAt, err = time.Parse(time.RFC3339Nano, rec[14]); err != nil {
			return nil, fmt.Errorf("row %d: created_at: %w", i+2, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func formatArgs(args []int) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, " ")
}

// ParseArgs parses the space-separated argument form used in CSV and SQLite.
func ParseArgs(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
