package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/loopkit-xyz/go-loopkit/oracle"
	"github.com/loopkit-xyz/go-loopkit/protocol"
	"github.com/loopkit-xyz/go-loopkit/schedule"
	"github.com/loopkit-xyz/go-loopkit/source"
	"github.com/loopkit-xyz/go-loopkit/transform"
)

func drive(args []string) error {
	fs := flag.NewFlagSet("drive", flag.ExitOnError)
	src := fs.String("source", "", "Annotated C source providing the scop context (required)")
	scopIdx := fs.Int("scop", 0, "Scop index within the source")
	timeout := fs.Duration("timeout", 30*time.Second, "Per-read protocol timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: loopkit drive -source <source.c> <child> [child args...]

Spawn the child process and answer each schedule frame it emits: the frame
is decoded against the source's scop, the source's annotated transformation
is applied under the legality oracle, and the committed schedule is written
back as a single line.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *src == "" || fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("source and child command required")
	}

	f, err := source.ParseFile(*src)
	if err != nil {
		return err
	}
	if *scopIdx < 0 || *scopIdx >= len(f.Scops) {
		return fmt.Errorf("scop %d not in [0, %d)", *scopIdx, len(f.Scops))
	}
	scop := f.Scops[*scopIdx]
	ann, ok := f.Annotation()
	if !ok {
		return fmt.Errorf("%s: no transformation annotation", *src)
	}
	if ann.NodeIdx < 0 {
		return fmt.Errorf("%s: annotation names no node index", *src)
	}

	log := logger()
	engine := transform.New(oracle.Distance{})
	fn := func(fr protocol.Frame) (string, error) {
		tree, err := schedule.Deserialize(scop, fr.Body)
		if err != nil {
			return "", fmt.Errorf("sched[%s]: %w", fr.ID, err)
		}
		res, err := engine.Apply(context.Background(), tree, ann.NodeIdx, ann.Kind, ann.Args)
		if err != nil {
			return "", fmt.Errorf("sched[%s]: %w", fr.ID, err)
		}
		log.Info().Str("id", fr.ID).Str("result", res.String()).Msg("frame transformed")
		return tree.SerializeLine(), nil
	}

	d := &protocol.Driver{Log: log, Timeout: *timeout}
	return d.Run(context.Background(), fn, fs.Arg(0), fs.Args()[1:]...)
}
