package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/loopkit-xyz/go-loopkit/codegen"
	"github.com/loopkit-xyz/go-loopkit/source"
)

func codegenCmd(args []string) error {
	fs := flag.NewFlagSet("codegen", flag.ExitOnError)
	scopIdx := fs.Int("scop", -1, "Render only this scop's body; -1 renders the whole file")
	serialize := fs.Bool("serialize", false, "Print the schedule tree serialization instead of C")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: loopkit codegen <source.c> [options]

Parse a source and regenerate its loop nests from the schedule trees. Useful
for checking what the generator recovers from a region.

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

	if *scopIdx >= 0 {
		if *scopIdx >= len(f.Scops) {
			return fmt.Errorf("scop %d not in [0, %d)", *scopIdx, len(f.Scops))
		}
		scop := f.Scops[*scopIdx]
		if *serialize {
			fmt.Print(scop.Tree().Serialize())
			return nil
		}
		code, err := codegen.Scop(scop)
		if err != nil {
			return err
		}
		fmt.Print(code)
		return nil
	}

	if *serialize {
		for _, scop := range f.Scops {
			fmt.Printf("# %s\n%s", scop.Name, scop.Tree().Serialize())
		}
		return nil
	}
	for _, scop := range f.Scops {
		scop.Tree().SetModified(true) // force regeneration over passthrough
	}
	code, err := codegen.File(f)
	if err != nil {
		return err
	}
	fmt.Print(code)
	return nil
}
