// Package oracle decides whether a mutated schedule tree is legal with
// respect to the scop's dependences. Legality is authoritative here: the
// transform engine treats the oracle as an external call and never second-
// guesses its answer.
package oracle

import (
	"context"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

// Oracle is the legality interface consumed by the transform engine.
type Oracle interface {
	// Check reports whether the tree's current schedule preserves every
	// dependence of its scop.
	Check(ctx context.Context, t *schedule.Tree) (bool, error)

	// CheckParallel reports whether row of the band at nodeIdx carries no
	// dependence and may execute in parallel.
	CheckParallel(ctx context.Context, t *schedule.Tree, nodeIdx, row int) (bool, error)
}

// Static answers every query with a fixed verdict. Useful for tests and for
// driving the engine when dependence information is supplied externally.
type Static struct {
	Legal bool
}

func (s Static) Check(context.Context, *schedule.Tree) (bool, error) { return s.Legal, nil }

func (s Static) CheckParallel(context.Context, *schedule.Tree, int, int) (bool, error) {
	return s.Legal, nil
}

// Distance checks dependences as distance vectors: a schedule is legal when
// every dependence is either resolved by sequence order or carried with a
// positive value by the first band row that separates its endpoints.
type Distance struct{}

type verdict int

const (
	pending verdict = iota
	satisfied
	violated
)

// Check walks the tree once per dependence.
func (Distance) Check(ctx context.Context, t *schedule.Tree) (bool, error) {
	root, err := t.Node(0)
	if err != nil {
		return false, err
	}
	for _, dep := range t.Scop().Deps {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		v, err := resolve(root, dep)
		if err != nil {
			return false, err
		}
		if v == violated {
			return false, nil
		}
	}
	return true, nil
}

// CheckParallel replays the same walk but stops at the marked row: the
// dependence must already be satisfied above it, or have a zero component on
// the row itself.
func (Distance) CheckParallel(ctx context.Context, t *schedule.Tree, nodeIdx, row int) (bool, error) {
	root, err := t.Node(0)
	if err != nil {
		return false, err
	}
	target, err := t.Node(nodeIdx)
	if err != nil {
		return false, err
	}
	if target.Kind() != schedule.KindBand {
		return false, schedule.ErrNotBand
	}
	for _, dep := range t.Scop().Deps {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		carried, err := carriedAt(root, dep, nodeIdx, row)
		if err != nil {
			return false, err
		}
		if carried {
			return false, nil
		}
	}
	return true, nil
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func dot(coeffs, dist []int) int {
	sum := 0
	for i := range coeffs {
		sum += coeffs[i] * dist[i]
	}
	return sum
}

// resolve classifies one dependence under the subtree rooted at n.
func resolve(n schedule.Node, dep schedule.Dependence) (verdict, error) {
	stmts := n.Statements()
	if !contains(stmts, dep.Src) || !contains(stmts, dep.Dst) {
		return satisfied, nil // endpoints not both in scope here
	}
	switch n.Kind() {
	case schedule.KindBand:
		for _, r := range n.Rows() {
			v := dot(r.Coeffs, dep.Distance)
			if v > 0 {
				return satisfied, nil
			}
			if v < 0 {
				return violated, nil
			}
		}
	case schedule.KindSequence:
		src, dst := -1, -1
		for k := 0; k < n.NumChildren(); k++ {
			c, err := n.Child(k)
			if err != nil {
				return pending, err
			}
			cs := c.Statements()
			if contains(cs, dep.Src) {
				src = k
			}
			if contains(cs, dep.Dst) {
				dst = k
			}
		}
		if src != dst {
			if src < dst {
				return satisfied, nil
			}
			return violated, nil
		}
	}
	for k := 0; k < n.NumChildren(); k++ {
		c, err := n.Child(k)
		if err != nil {
			return pending, err
		}
		cs := c.Statements()
		if contains(cs, dep.Src) && contains(cs, dep.Dst) {
			return resolve(c, dep)
		}
	}
	// All schedule components compare equal: the dependence is loop
	// independent and original statement order preserves it.
	return satisfied, nil
}

// carriedAt reports whether dep is carried exactly by the given row of the
// band at nodeIdx, i.e. not satisfied above it and nonzero on it.
func carriedAt(n schedule.Node, dep schedule.Dependence, nodeIdx, row int) (bool, error) {
	stmts := n.Statements()
	if !contains(stmts, dep.Src) || !contains(stmts, dep.Dst) {
		return false, nil
	}
	switch n.Kind() {
	case schedule.KindBand:
		rows := n.Rows()
		for i, r := range rows {
			v := dot(r.Coeffs, dep.Distance)
			if n.Index == nodeIdx && i == row {
				return v != 0, nil
			}
			if v > 0 {
				return false, nil // satisfied before reaching the row
			}
			if v < 0 {
				return false, nil // already illegal; not this row's concern
			}
		}
	case schedule.KindSequence:
		src, dst := -1, -1
		for k := 0; k < n.NumChildren(); k++ {
			c, err := n.Child(k)
			if err != nil {
				return false, err
			}
			cs := c.Statements()
			if contains(cs, dep.Src) {
				src = k
			}
			if contains(cs, dep.Dst) {
				dst = k
			}
		}
		if src != dst {
			return false, nil
		}
	}
	for k := 0; k < n.NumChildren(); k++ {
		c, err := n.Child(k)
		if err != nil {
			return false, err
		}
		cs := c.Statements()
		if contains(cs, dep.Src) && contains(cs, dep.Dst) {
			return carriedAt(c, dep, nodeIdx, row)
		}
	}
	return false, nil
}
