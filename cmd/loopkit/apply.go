package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loopkit-xyz/go-loopkit/codegen"
	"github.com/loopkit-xyz/go-loopkit/oracle"
	"github.com/loopkit-xyz/go-loopkit/source"
	"github.com/loopkit-xyz/go-loopkit/transform"
)

func apply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	scopIdx := fs.Int("scop", 0, "Scop index within the source")
	nodeIdx := fs.Int("node", -1, "Node index; -1 uses the source annotation")
	kindName := fs.String("transform", "", "Transformation name; empty uses the source annotation")
	argList := fs.String("args", "", "Comma-separated transformation arguments")
	output := fs.String("output", "", "Output file (default: stdout)")
	force := fs.Bool("force", false, "Keep an illegal transformation instead of rolling back")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: loopkit apply <source.c> [options]

Apply one transformation to a scop and print the regenerated source. With no
-transform flag the source's "/// TRANSFORMATION:" annotation is used.

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

	f, err := source.ParseFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *scopIdx < 0 || *scopIdx >= len(f.Scops) {
		return fmt.Errorf("scop %d not in [0, %d)", *scopIdx, len(f.Scops))
	}
	scop := f.Scops[*scopIdx]

	kind, node, targs, err := resolveTransform(f, *kindName, *nodeIdx, *argList)
	if err != nil {
		return err
	}

	var org oracle.Oracle = oracle.Distance{}
	if *force {
		org = oracle.Static{Legal: true}
	}
	engine := transform.New(org)
	res, err := engine.Apply(context.Background(), scop.Tree(), node, kind, targs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s node=%d args=%v: %s\n", kind, node, targs, res)
	if res != transform.ResultLegal {
		return fmt.Errorf("transformation rejected, source unchanged")
	}

	code, err := codegen.File(f)
	if err != nil {
		return err
	}
	if *output == "" {
		fmt.Print(code)
		return nil
	}
	return os.WriteFile(*output, []byte(code), 0o644)
}

// resolveTransform merges flag values with the source annotation; flags win.
func resolveTransform(f *source.File, kindName string, node int, argList string) (transform.Kind, int, []int, error) {
	var kind transform.Kind
	var targs []int

	ann, hasAnn := f.Annotation()
	if hasAnn {
		kind = ann.Kind
		targs = ann.Args
		if node < 0 {
			node = ann.NodeIdx
		}
	}
	if kindName != "" {
		k, err := transform.ParseKind(kindName)
		if err != nil {
			return 0, 0, nil, err
		}
		kind = k
	} else if !hasAnn {
		return 0, 0, nil, fmt.Errorf("no -transform flag and no annotation in source")
	}
	if argList != "" {
		parsed, err := parseIntCSV(argList)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("bad -args: %w", err)
		}
		targs = parsed
	}
	if node < 0 {
		return 0, 0, nil, fmt.Errorf("no -node flag and no node index in annotation")
	}
	return kind, node, targs, nil
}

func parseIntCSV(s string) ([]int, error) {
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
