// Package codegen renders C loop nests from schedule trees. Regions whose
// tree was never modified pass through with their original text; modified
// regions are regenerated from the tree.
//
// Generation relies on every transformation applying uniformly to all
// statements of a band: within one band only the scan direction of a row is
// observable, so constant shifts and skew offsets never appear in the
// emitted bounds.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loopkit-xyz/go-loopkit/schedule"
	"github.com/loopkit-xyz/go-loopkit/source"
)

// ErrUnsupportedTree is returned when a tree shape has no C rendering, such
// as a row scanning no unbound iterator.
var ErrUnsupportedTree = errors.New("tree shape not renderable")

const indentStep = "  "

// File renders the whole source file, splicing generated code over every
// region whose tree has been modified.
func File(f *source.File) (string, error) {
	return FileVia(f, Scop)
}

// FileVia renders like File but through the supplied scop renderer, letting
// callers route rendering through a Cache.
func FileVia(f *source.File, render func(*schedule.Scop) (string, error)) (string, error) {
	var b strings.Builder
	prev := 0
	for i, reg := range f.Regions {
		b.WriteString(f.Text[prev:reg.Start])
		scop := f.Scops[i]
		if scop.Tree().Modified() {
			code, err := render(scop)
			if err != nil {
				return "", err
			}
			b.WriteString(code)
		} else {
			b.WriteString(f.Text[reg.Start:reg.End])
		}
		prev = reg.End
	}
	b.WriteString(f.Text[prev:])
	return b.String(), nil
}

// Scop renders the region body for one scop from its schedule tree.
func Scop(s *schedule.Scop) (string, error) {
	root, err := s.Tree().Node(0)
	if err != nil {
		return "", err
	}
	g := &generator{scop: s, depth: 1}
	if err := g.children(root); err != nil {
		return "", err
	}
	return g.b.String(), nil
}

// binding maps one iterator depth to the loop variable scanning it.
type binding struct {
	slot int // global iterator index
	v    string
}

type generator struct {
	scop     *schedule.Scop
	b        strings.Builder
	depth    int
	bindings []binding
}

func (g *generator) line(s string) {
	g.b.WriteString(strings.Repeat(indentStep, g.depth))
	g.b.WriteString(s)
	g.b.WriteByte('\n')
}

func (g *generator) children(n schedule.Node) error {
	for k := 0; k < n.NumChildren(); k++ {
		c, err := n.Child(k)
		if err != nil {
			return err
		}
		if err := g.node(c); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) node(n schedule.Node) error {
	switch n.Kind() {
	case schedule.KindSequence:
		return g.children(n)
	case schedule.KindBand:
		return g.band(n)
	}
	return fmt.Errorf("%w: %s below the root", ErrUnsupportedTree, n.Kind())
}

// band emits one loop per row, then the band's statements or children.
func (g *generator) band(n schedule.Node) error {
	rows := n.Rows()
	opened := 0
	mark := len(g.bindings)
	var tileVar string
	for _, row := range rows {
		slot, coeff, err := g.primary(row)
		if err != nil {
			return err
		}
		iv := g.scop.IVs[slot]
		ext, err := g.scop.Extent(iv)
		if err != nil {
			return err
		}
		g.pragmas(row)
		switch {
		case row.Step > 1 && !row.Point:
			tileVar = iv + "_t"
			g.line(tileLoop(tileVar, ext, row.Step, coeff))
		case row.Point:
			if tileVar == "" {
				return fmt.Errorf("%w: point row without tile row", ErrUnsupportedTree)
			}
			g.line(pointLoop(iv, tileVar, ext, row.Step, coeff))
			tileVar = ""
			g.bindings = append(g.bindings, binding{slot: slot, v: iv})
		default:
			g.line(plainLoop(iv, ext, coeff))
			g.bindings = append(g.bindings, binding{slot: slot, v: iv})
		}
		g.depth++
		opened++
	}

	if n.NumChildren() > 0 {
		if err := g.children(n); err != nil {
			return err
		}
	} else {
		for _, id := range n.Statements() {
			stmt := g.scop.Statements[id]
			text, err := g.substitute(stmt)
			if err != nil {
				return err
			}
			g.line(text)
		}
	}

	for ; opened > 0; opened-- {
		g.depth--
		g.line("}")
	}
	g.bindings = g.bindings[:mark]
	return nil
}

// primary resolves the iterator a row scans: the unique nonzero coefficient
// over iterators not bound by an enclosing loop. The sign of the
// coefficient is the scan direction.
func (g *generator) primary(row schedule.Row) (slot, coeff int, err error) {
	slot = -1
	for k, c := range row.Coeffs {
		if c == 0 || g.bound(k) {
			continue
		}
		if slot >= 0 {
			return 0, 0, fmt.Errorf("%w: row scans several iterators", ErrUnsupportedTree)
		}
		slot, coeff = k, c
	}
	if slot < 0 {
		return 0, 0, fmt.Errorf("%w: row scans no iterator", ErrUnsupportedTree)
	}
	return slot, coeff, nil
}

func (g *generator) bound(slot int) bool {
	for _, b := range g.bindings {
		if b.slot == slot {
			return true
		}
	}
	return false
}

func (g *generator) pragmas(row schedule.Row) {
	if row.Parallel {
		g.line("#pragma omp parallel for")
	}
	if row.Loop == schedule.LoopUnroll {
		g.line("#pragma unroll")
	}
	// Atomic and separate classifications steer AST generation only and
	// have no C surface form.
}

func plainLoop(iv string, ext schedule.Extent, coeff int) string {
	if coeff > 0 {
		return fmt.Sprintf("for (int %s = %s; %s < %s; %s++) {", iv, ext.Low, iv, ext.High, iv)
	}
	return fmt.Sprintf("for (int %s = %s - 1; %s >= %s; %s--) {", iv, ext.High, iv, ext.Low, iv)
}

func tileLoop(v string, ext schedule.Extent, step, coeff int) string {
	if coeff > 0 {
		return fmt.Sprintf("for (int %s = %s; %s < %s; %s += %d) {", v, ext.Low, v, ext.High, v, step)
	}
	return fmt.Sprintf("for (int %s = %s - 1; %s >= %s; %s -= %d) {", v, ext.High, v, ext.Low, v, step)
}

func pointLoop(iv, tileVar string, ext schedule.Extent, step, coeff int) string {
	if coeff > 0 {
		return fmt.Sprintf("for (int %s = %s; %s < %s + %d && %s < %s; %s++) {",
			iv, tileVar, iv, tileVar, step, iv, ext.High, iv)
	}
	return fmt.Sprintf("for (int %s = %s; %s > %s - %d && %s >= %s; %s--) {",
		iv, tileVar, iv, tileVar, step, iv, ext.Low, iv)
}

// substitute rewrites a statement's own iterator names to the loop
// variables of the band rows scheduling it, positionally by depth. For
// statements running under their original loops this is the identity.
func (g *generator) substitute(stmt schedule.Statement) (string, error) {
	if len(stmt.IVs) > len(g.bindings) {
		return "", fmt.Errorf("%w: statement %s under %d loops, needs %d",
			ErrUnsupportedTree, stmt.Name, len(g.bindings), len(stmt.IVs))
	}
	repl := map[string]string{}
	for d, iv := range stmt.IVs {
		repl[iv] = g.bindings[d].v
	}
	return rewriteIdents(stmt.Text, repl), nil
}

func rewriteIdents(s string, repl map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if !isIdentStart(c) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(s) && isIdentChar(s[j]) {
			j++
		}
		tok := s[i:j]
		if to, ok := repl[tok]; ok {
			b.WriteString(to)
		} else {
			b.WriteString(tok)
		}
		i = j
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
