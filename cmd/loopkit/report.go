package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/loopkit-xyz/go-loopkit/results"
)

func report(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	db := fs.String("db", os.Getenv("LOOPKIT_DB"), "SQLite database to read (instead of a CSV file)")
	runID := fs.String("run", "", "Run ID to report on (required with -db)")
	best := fs.Int("best", 0, "Show only the N fastest legal steps")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: loopkit report [steps.csv] [options]

Print the per-step timing breakdown of an exploration run as a fixed-width
table, from a CSV file or a recorded database run.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	var steps []results.Step
	switch {
	case *db != "":
		if *runID == "" {
			return fmt.Errorf("-run is required with -db")
		}
		store, err := results.Open(*db)
		if err != nil {
			return err
		}
		defer store.Close()
		if *best > 0 {
			steps, err = store.Best(context.Background(), *runID, *best)
		} else {
			steps, err = store.Steps(context.Background(), *runID)
		}
		if err != nil {
			return err
		}
	case fs.NArg() >= 1:
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		if steps, err = results.ReadCSV(f); err != nil {
			return err
		}
	default:
		fs.Usage()
		return fmt.Errorf("a CSV file or -db is required")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "step\tnode\ttransform\targs\toutcome\truntime\tsample\tapply\tcodegen\tcompile\tmeasure\t")
	for _, s := range steps {
		fmt.Fprintf(w, "%d\t%d\t%s\t%v\t%s\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			s.Step, s.NodeIdx, s.Transform, s.Args, s.Outcome, s.Runtime,
			s.SampleMS, s.ApplyMS, s.CodegenMS, s.CompileMS, s.MeasureMS)
	}
	return w.Flush()
}
