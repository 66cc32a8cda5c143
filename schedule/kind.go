// Package schedule implements the schedule tree for one scop: an ordered,
// flat-indexed view of the loop/band structure of a program region.
// Index 0 is always the domain root and is never transformable.
//
// The tree is the single authoritative state of the region. All mutation is
// expected to go through the transform engine, which snapshots, applies,
// checks legality and rolls back; the exported mutators on Node exist for the
// engine and for tests and skip that protocol.
package schedule

import "fmt"

// Kind classifies a tree node.
type Kind int

const (
	// KindDomain is the root node carrying the iteration domain.
	KindDomain Kind = iota
	// KindBand is one or more nested loop dimensions scheduled as a unit.
	KindBand
	// KindSequence orders sibling subtrees that execute one after another.
	KindSequence
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindBand:
		return "band"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// LoopType is the code-generation classification of one loop dimension.
type LoopType int

const (
	LoopDefault LoopType = iota
	LoopAtomic
	LoopUnroll
	LoopSeparate
)

// LoopTypes lists all loop type tags in a stable order.
func LoopTypes() []LoopType {
	return []LoopType{LoopDefault, LoopAtomic, LoopUnroll, LoopSeparate}
}

// String returns the lower-case name of the loop type.
func (l LoopType) String() string {
	switch l {
	case LoopDefault:
		return "default"
	case LoopAtomic:
		return "atomic"
	case LoopUnroll:
		return "unroll"
	case LoopSeparate:
		return "separate"
	default:
		return fmt.Sprintf("looptype(%d)", int(l))
	}
}

// ParseLoopType converts a loop type name back to its tag.
func ParseLoopType(s string) (LoopType, error) {
	for _, l := range LoopTypes() {
		if l.String() == s {
			return l, nil
		}
	}
	return LoopDefault, fmt.Errorf("unknown loop type %q", s)
}
