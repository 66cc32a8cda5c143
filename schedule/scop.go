package schedule

import (
	"fmt"
	"strings"
)

// Subscript is one array index expression of the form iv+offset, or a
// constant when IV is empty.
type Subscript struct {
	IV     string
	Offset int
}

// Access is one array reference inside a statement body.
type Access struct {
	Array string
	Index []Subscript
}

// Statement is one statement instance set of the scop.
type Statement struct {
	ID     int
	Name   string   // S0, S1, ...
	Text   string   // original statement text, e.g. "A[i] = A[i] + 1;"
	IVs    []string // enclosing iterators, outermost first
	Writes []Access
	Reads  []Access
}

// Extent describes the iteration range of one iterator. Bounds are kept
// textually (a number or a parameter name) because they are only needed for
// code generation, never for legality.
type Extent struct {
	IV   string
	Low  string
	High string
}

// Dependence is one dependence between two statements, summarized as a
// distance vector over the scop iterators. Iterators not shared by both
// statements contribute a zero component.
type Dependence struct {
	Src      int
	Dst      int
	Distance []int
}

// Scop is one schedule-able program region. It owns exactly one schedule
// tree; the tree is the only mutable part of a scop.
type Scop struct {
	Name       string
	Region     string // original source text of the region
	IVs        []string
	Params     []string
	Extents    []Extent
	Statements []Statement
	Deps       []Dependence

	tree *Tree
}

// Tree returns the scop's schedule tree.
func (s *Scop) Tree() *Tree { return s.tree }

// Extent returns the extent of the named iterator.
func (s *Scop) Extent(iv string) (Extent, error) {
	for _, e := range s.Extents {
		if e.IV == iv {
			return e, nil
		}
	}
	return Extent{}, fmt.Errorf("no extent for iterator %q", iv)
}

// domainText renders the statement instance sets, e.g. "S0[i]; S1[i,j]".
func (s *Scop) domainText() string {
	parts := make([]string, len(s.Statements))
	for i, st := range s.Statements {
		parts[i] = fmt.Sprintf("%s[%s]", st.Name, strings.Join(st.IVs, ","))
	}
	return strings.Join(parts, "; ")
}
