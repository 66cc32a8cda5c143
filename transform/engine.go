package transform

import (
	"context"
	"fmt"

	"github.com/loopkit-xyz/go-loopkit/oracle"
	"github.com/loopkit-xyz/go-loopkit/schedule"
)

// ApplyResult is the outcome of a legality-checked apply.
type ApplyResult int

const (
	// ResultLegal means the mutation was committed.
	ResultLegal ApplyResult = iota
	// ResultIllegal means the legality oracle rejected the mutation and the
	// tree was rolled back to its pre-apply state.
	ResultIllegal
)

// String returns "legal" or "illegal".
func (r ApplyResult) String() string {
	if r == ResultLegal {
		return "legal"
	}
	return "illegal"
}

// Engine applies catalog transformations to a schedule tree under the
// apply/legality-check/rollback protocol. One apply call is atomic from the
// caller's point of view: no caller ever observes an intermediate illegal
// tree. The engine holds no tree state of its own; the tree is the single
// source of truth.
type Engine struct {
	oracle oracle.Oracle
}

// New creates an engine backed by the given legality oracle.
func New(o oracle.Oracle) *Engine {
	return &Engine{oracle: o}
}

// Apply performs kind with args on the node at idx.
//
// Precondition violations (invalid node, argument outside its bound) fail
// with ErrInvalidArgument and leave the tree untouched. An illegal verdict
// from the oracle triggers a synchronous rollback before Apply returns; if
// rollback cannot restore the exact prior state, Apply fails with
// ErrRollbackFailure and the session must be aborted.
func (e *Engine) Apply(ctx context.Context, t *schedule.Tree, idx int, kind Kind, args []int) (ApplyResult, error) {
	entry, err := Lookup(kind)
	if err != nil {
		return ResultIllegal, err
	}
	node, err := t.Node(idx)
	if err != nil {
		return ResultIllegal, err
	}
	if idx == 0 {
		return ResultIllegal, fmt.Errorf("%w: the root domain node is not transformable", ErrInvalidArgument)
	}
	if !entry.Valid(node) {
		return ResultIllegal, fmt.Errorf("%w: %s is not valid on node %d (%s)", ErrInvalidArgument, kind, idx, node.Kind())
	}
	bounds := entry.Bounds(node)
	if len(args) != len(bounds) {
		return ResultIllegal, fmt.Errorf("%w: %s wants %d args, got %d", ErrInvalidArgument, kind, len(bounds), len(args))
	}
	for i, b := range bounds {
		if !b.Contains(args[i]) {
			return ResultIllegal, fmt.Errorf("%w: %s arg %d = %d outside its bound", ErrInvalidArgument, kind, i, args[i])
		}
	}

	snap := t.Snapshot()
	if err := entry.apply(node, args); err != nil {
		t.Restore(snap)
		return ResultIllegal, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	legal, err := e.checkLegality(ctx, t, idx, kind, args)
	if err != nil {
		t.Restore(snap)
		return ResultIllegal, fmt.Errorf("legality check: %w", err)
	}
	if legal {
		t.SetModified(true)
		return ResultLegal, nil
	}

	t.Restore(snap)
	if t.Fingerprint() != snap.Sum() {
		return ResultIllegal, fmt.Errorf("%w: node %d, %s", ErrRollbackFailure, idx, kind)
	}
	return ResultIllegal, nil
}

// checkLegality routes to the oracle. SetLoopType is a pure code-generation
// annotation and commits without an oracle call; SetParallel uses the
// dimension-specific parallel check.
func (e *Engine) checkLegality(ctx context.Context, t *schedule.Tree, idx int, kind Kind, args []int) (bool, error) {
	switch kind {
	case SetLoopType:
		return true, nil
	case SetParallel:
		return e.oracle.CheckParallel(ctx, t, idx, args[0])
	default:
		return e.oracle.Check(ctx, t)
	}
}
