// Package source parses annotated C sources into scops. Regions are
// delimited by "#pragma scop" / "#pragma endscop"; within a region the
// parser accepts canonical counted loops (`for (int i = lo; i < hi; i++)`)
// and plain expression statements. Everything else is rejected rather than
// silently mis-modeled.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

var (
	// ErrUnbalancedPragmas is returned when scop/endscop pragmas do not
	// pair up in order.
	ErrUnbalancedPragmas = errors.New("unbalanced scop pragmas")

	// ErrBadLoopHeader is returned for loop headers outside the canonical
	// counted form.
	ErrBadLoopHeader = errors.New("unsupported loop header")

	// ErrUnsupportedStatement is returned for region statements that are
	// neither loops nor expression statements.
	ErrUnsupportedStatement = errors.New("unsupported statement in scop region")
)

const (
	pragmaBegin = "#pragma scop"
	pragmaEnd   = "#pragma endscop"
)

// Region is the byte span of one scop body, exclusive of the pragma lines.
type Region struct {
	Start int
	End   int
}

// File is one parsed source file with its scops in textual order.
type File struct {
	Path    string
	Text    string
	Scops   []*schedule.Scop
	Regions []Region

	ann      *Annotation
	expected []string
}

// ParseFile reads and parses path.
func ParseFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	f, err := Parse(path, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses src. The name is used only for scop naming and diagnostics.
func Parse(name string, src []byte) (*File, error) {
	f := &File{Path: name, Text: string(src)}
	if err := f.scanComments(); err != nil {
		return nil, err
	}
	regions, err := scanRegions(src)
	if err != nil {
		return nil, err
	}
	f.Regions = regions
	if len(regions) == 0 {
		return f, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse C source: %w", err)
	}
	defer tree.Close()

	for i, reg := range regions {
		items, err := regionItems(tree.RootNode(), src, reg)
		if err != nil {
			return nil, err
		}
		scop, err := buildScop(fmt.Sprintf("scop%d", i), f.Text[reg.Start:reg.End], items)
		if err != nil {
			return nil, err
		}
		f.Scops = append(f.Scops, scop)
	}
	return f, nil
}

// scanRegions locates scop pragma pairs by line scan. Start is the first
// byte after the opening pragma line, End the first byte of the closing
// pragma line.
func scanRegions(src []byte) ([]Region, error) {
	var regions []Region
	open := -1
	off := 0
	for _, line := range strings.SplitAfter(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == pragmaEnd:
			if open < 0 {
				return nil, fmt.Errorf("%w: endscop without scop", ErrUnbalancedPragmas)
			}
			regions = append(regions, Region{Start: open, End: off})
			open = -1
		case trimmed == pragmaBegin:
			if open >= 0 {
				return nil, fmt.Errorf("%w: nested scop pragma", ErrUnbalancedPragmas)
			}
			open = off + len(line)
		}
		off += len(line)
	}
	if open >= 0 {
		return nil, fmt.Errorf("%w: scop without endscop", ErrUnbalancedPragmas)
	}
	return regions, nil
}

// item is one region-level or loop-body construct.
type item struct {
	loop *loopItem
	stmt string // expression statement text when loop is nil
}

// loopItem is one canonical counted loop.
type loopItem struct {
	iv   string
	low  string
	high string // exclusive upper bound, textual
	body []item
}

// regionItems collects the top-level loops and statements of one region.
func regionItems(root *sitter.Node, src []byte, reg Region) ([]item, error) {
	var items []item
	var walk func(n *sitter.Node) error
	walk = func(n *sitter.Node) error {
		if int(n.EndByte()) <= reg.Start || int(n.StartByte()) >= reg.End {
			return nil
		}
		inside := int(n.StartByte()) >= reg.Start && int(n.EndByte()) <= reg.End
		if inside {
			switch n.Type() {
			case "for_statement":
				l, err := buildLoop(n, src)
				if err != nil {
					return err
				}
				items = append(items, item{loop: l})
				return nil
			case "expression_statement":
				items = append(items, item{stmt: n.Content(src)})
				return nil
			case "comment":
				return nil
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if err := walk(n.NamedChild(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return items, nil
}

// buildLoop parses one for_statement and its body.
func buildLoop(n *sitter.Node, src []byte) (*loopItem, error) {
	init := n.ChildByFieldName("initializer")
	cond := n.ChildByFieldName("condition")
	upd := n.ChildByFieldName("update")
	body := n.ChildByFieldName("body")
	if init == nil || cond == nil || upd == nil || body == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadLoopHeader, n.Content(src))
	}
	l, err := parseHeader(init.Content(src), cond.Content(src), upd.Content(src))
	if err != nil {
		return nil, err
	}
	items, err := bodyItems(body, src)
	if err != nil {
		return nil, err
	}
	l.body = items
	return l, nil
}

func bodyItems(body *sitter.Node, src []byte) ([]item, error) {
	if body.Type() != "compound_statement" {
		return singleItem(body, src)
	}
	var items []item
	for i := 0; i < int(body.NamedChildCount()); i++ {
		sub, err := singleItem(body.NamedChild(i), src)
		if err != nil {
			return nil, err
		}
		items = append(items, sub...)
	}
	return items, nil
}

func singleItem(n *sitter.Node, src []byte) ([]item, error) {
	switch n.Type() {
	case "for_statement":
		l, err := buildLoop(n, src)
		if err != nil {
			return nil, err
		}
		return []item{{loop: l}}, nil
	case "expression_statement":
		return []item{{stmt: n.Content(src)}}, nil
	case "comment":
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedStatement, n.Type())
}

// parseHeader accepts the canonical counted form: the initializer
// `[int] iv = low;`, the condition `iv < high` or `iv <= high`, and a
// unit-step update (`iv++`, `++iv`, `iv += 1`, `iv = iv + 1`).
func parseHeader(init, cond, upd string) (*loopItem, error) {
	init = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(init), ";"))
	lhs, low, ok := strings.Cut(init, "=")
	if !ok {
		return nil, fmt.Errorf("%w: initializer %q", ErrBadLoopHeader, init)
	}
	fields := strings.Fields(lhs)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: initializer %q", ErrBadLoopHeader, init)
	}
	iv := fields[len(fields)-1]

	cond = strings.TrimSpace(cond)
	var high string
	if v, rest, ok := strings.Cut(cond, "<="); ok {
		if strings.TrimSpace(v) != iv {
			return nil, fmt.Errorf("%w: condition %q", ErrBadLoopHeader, cond)
		}
		high = strings.TrimSpace(rest) + " + 1"
	} else if v, rest, ok := strings.Cut(cond, "<"); ok {
		if strings.TrimSpace(v) != iv {
			return nil, fmt.Errorf("%w: condition %q", ErrBadLoopHeader, cond)
		}
		high = strings.TrimSpace(rest)
	} else {
		return nil, fmt.Errorf("%w: condition %q", ErrBadLoopHeader, cond)
	}

	if !unitStep(strings.TrimSpace(upd), iv) {
		return nil, fmt.Errorf("%w: update %q", ErrBadLoopHeader, upd)
	}
	return &loopItem{iv: iv, low: strings.TrimSpace(low), high: high}, nil
}

func unitStep(upd, iv string) bool {
	switch strings.ReplaceAll(upd, " ", "") {
	case iv + "++", "++" + iv, iv + "+=1", iv + "=" + iv + "+1":
		return true
	}
	return false
}
