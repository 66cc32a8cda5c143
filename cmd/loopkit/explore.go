package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loopkit-xyz/go-loopkit/explore"
	"github.com/loopkit-xyz/go-loopkit/oracle"
	"github.com/loopkit-xyz/go-loopkit/results"
	"github.com/loopkit-xyz/go-loopkit/toolchain"
	"github.com/loopkit-xyz/go-loopkit/transform"
)

func exploreCmd(args []string) error {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	steps := fs.Int("steps", 10, "Number of exploration steps")
	seed := fs.Int64("seed", 42, "Sampling seed")
	scenario := fs.String("scenario", "", "Scenario name (defaults to the source path)")
	workdir := fs.String("workdir", "", "Directory for candidate sources (default: temp dir)")
	db := fs.String("db", os.Getenv("LOOPKIT_DB"), "SQLite database for recorded steps (optional)")
	output := fs.String("output", "", "CSV output file (default: stdout)")
	maxDraws := fs.Int("max-draws", 10000, "Per-step sampling draw budget")
	compileTimeout := fs.Duration("compile-timeout", time.Minute, "Compile timeout per candidate")
	measureTimeout := fs.Duration("measure-timeout", time.Minute, "Measurement timeout per candidate")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: loopkit explore <source.c> [options]

Sample schedule transformations of the first scop, keep the legal ones and
measure the regenerated program.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("source file required")
	}
	src := fs.Arg(0)

	if *scenario == "" {
		*scenario = src
	}
	if *workdir == "" {
		dir, err := os.MkdirTemp("", "loopkit-explore-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		*workdir = dir
	}

	log := logger()
	var store *results.Store
	if *db != "" {
		var err error
		if store, err = results.Open(*db); err != nil {
			return err
		}
		defer store.Close()
	}

	runner := &toolchain.Runner{
		Log:            log,
		CompileTimeout: *compileTimeout,
		MeasureTimeout: *measureTimeout,
	}
	ex := explore.New(explore.Config{
		Scenario: *scenario,
		Source:   src,
		WorkDir:  *workdir,
		Seed:     *seed,
		Steps:    *steps,
		MaxDraws: *maxDraws,
		Log:      log,
	}, transform.New(oracle.Distance{}), runner, store)

	recorded, err := ex.Run(context.Background())
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return results.WriteCSV(out, recorded)
}
