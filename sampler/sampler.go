// Package sampler proposes transformations by a bounded random walk over the
// schedule tree: the cursor drifts one position at a time and transformation
// kinds are drawn uniformly, redrawing until the validity predicate accepts
// the pair. Proposals are never applied here; the caller owns application so
// timing and measurement can be interleaved.
package sampler

import (
	"errors"
	"math/rand"

	"github.com/loopkit-xyz/go-loopkit/schedule"
	"github.com/loopkit-xyz/go-loopkit/transform"
)

// ErrNoProposal is returned when the draw budget is exhausted before a valid
// (node, transformation) pair is found.
var ErrNoProposal = errors.New("no valid proposal within draw budget")

// ErrDegenerateTree is returned for trees with fewer than two nodes; such
// trees have nothing to transform and callers are expected to guard against
// them.
var ErrDegenerateTree = errors.New("tree has no transformable node")

// Proposal is one sampled transformation: target node index, catalog kind
// and concrete arguments, in canonical order.
type Proposal struct {
	NodeIdx int
	Kind    transform.Kind
	Args    []int
}

// TileSizes returns the tile-size set used for sampling: powers of two from
// 32 up to 2^19.
func TileSizes() []int {
	var out []int
	for s := 32; s <= 1<<19; s <<= 1 {
		out = append(out, s)
	}
	return out
}

// Policy is a stateful random-walk sampling policy. It is not safe for
// concurrent use; give each exploration worker its own policy.
type Policy struct {
	rng    *rand.Rand
	cursor int

	// MaxDraws caps the number of (node, transformation) draws per Propose
	// call; 0 means unbounded.
	MaxDraws int
}

// New creates a policy seeded deterministically.
func New(seed int64) *Policy {
	return &Policy{rng: rand.New(rand.NewSource(seed))}
}

// Propose draws a valid (node, transformation, args) triple for the tree.
// The cursor walk never proposes index 0, the root domain node.
func (p *Policy) Propose(t *schedule.Tree) (Proposal, error) {
	n := t.Len()
	if n < 2 {
		return Proposal{}, ErrDegenerateTree
	}
	kinds := transform.Kinds()
	for draws := 0; p.MaxDraws == 0 || draws < p.MaxDraws; draws++ {
		p.cursor += p.rng.Intn(3) - 1
		if p.cursor < 1 {
			p.cursor = 1
		}
		if p.cursor > n-1 {
			p.cursor = n - 1
		}
		kind := kinds[p.rng.Intn(len(kinds))]
		node, err := t.Node(p.cursor)
		if err != nil {
			return Proposal{}, err
		}
		if !transform.Valid(kind, node) {
			continue
		}
		args, err := p.drawArgs(node, kind)
		if errors.Is(err, ErrNoProposal) {
			continue
		}
		if err != nil {
			return Proposal{}, err
		}
		return Proposal{NodeIdx: p.cursor, Kind: kind, Args: args}, nil
	}
	return Proposal{}, ErrNoProposal
}

// drawArgs draws one value per resolved bound. Tile bypasses the generic
// integer domain in favor of the power-of-two tile sizes; the second
// enumeration of Interchange and Fuse excludes the value drawn for the
// first, since both are drawn in the same resolver call.
func (p *Policy) drawArgs(node schedule.Node, kind transform.Kind) ([]int, error) {
	if kind == transform.Tile {
		sizes := TileSizes()
		return []int{sizes[p.rng.Intn(len(sizes))]}, nil
	}
	bounds, err := transform.Bounds(kind, node)
	if err != nil {
		return nil, err
	}
	args := make([]int, 0, len(bounds))
	for i, b := range bounds {
		if i == 1 && (kind == transform.Interchange || kind == transform.Fuse) {
			b = b.Without(args[0])
		}
		if b.IsEnum() {
			if len(b.Choices) == 0 {
				return nil, ErrNoProposal
			}
			args = append(args, b.Choices[p.rng.Intn(len(b.Choices))])
			continue
		}
		args = append(args, b.Low+p.rng.Intn(b.High-b.Low))
	}
	return args, nil
}
