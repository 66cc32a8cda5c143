package transform

import (
	"fmt"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

// Kind names one transformation of the fixed catalog.
type Kind int

const (
	Tile Kind = iota
	Interchange
	Reverse
	SetParallel
	Skew
	Shift
	Fuse
	Split
	SetLoopType

	numKinds
)

// Kinds lists the whole catalog in a stable order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

var kindNames = [numKinds]string{
	"Tile", "Interchange", "Reverse", "SetParallel", "Skew", "Shift", "Fuse", "Split", "SetLoopType",
}

// String returns the catalog name of the kind.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a catalog name back to its kind.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Entry is one catalog row: a structural validity predicate, an argument
// bound resolver, and the raw apply operation. Entries are pure descriptions;
// all state lives in the tree.
type Entry struct {
	Valid  func(schedule.Node) bool
	Bounds func(schedule.Node) []Bound
	apply  func(schedule.Node, []int) error
}

func isBand(n schedule.Node) bool { return n.Kind() == schedule.KindBand }

// bandWithRows excludes the zero-dimension leaf bands holding bare
// statements.
func bandWithRows(n schedule.Node) bool { return isBand(n) && n.Dims() >= 1 }

func rowEnum(n schedule.Node) Bound {
	choices := make([]int, n.Dims())
	for i := range choices {
		choices[i] = i
	}
	return Enum(choices...)
}

// fusibleSequence accepts sequences of band children with equal depth whose
// rows scan iterators of identical extents, so fusion preserves trip counts.
func fusibleSequence(n schedule.Node) bool {
	if n.Kind() != schedule.KindSequence || n.NumChildren() < 2 {
		return false
	}
	scop := n.Tree().Scop()
	var first schedule.Node
	for k := 0; k < n.NumChildren(); k++ {
		c, err := n.Child(k)
		if err != nil || c.Kind() != schedule.KindBand {
			return false
		}
		if k == 0 {
			first = c
			continue
		}
		if c.Dims() != first.Dims() {
			return false
		}
		for r := 0; r < c.Dims(); r++ {
			ea, errA := scop.Extent(first.RowIV(r))
			eb, errB := scop.Extent(c.RowIV(r))
			if errA != nil || errB != nil || ea.Low != eb.Low || ea.High != eb.High {
				return false
			}
		}
	}
	return true
}

var catalog = [numKinds]Entry{
	Tile: {
		Valid: func(n schedule.Node) bool {
			return isBand(n) && len(n.UntiledRows()) > 0
		},
		Bounds: func(n schedule.Node) []Bound {
			return []Bound{Range(1, 1 << 20)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.TileRow(n.UntiledRows()[0], args[0])
		},
	},
	Interchange: {
		Valid: func(n schedule.Node) bool { return isBand(n) && n.Dims() >= 2 },
		Bounds: func(n schedule.Node) []Bound {
			return []Bound{rowEnum(n), rowEnum(n)}
		},
		apply: func(n schedule.Node, args []int) error {
			if args[0] == args[1] {
				return fmt.Errorf("interchange rows must differ (got %d)", args[0])
			}
			return n.SwapRows(args[0], args[1])
		},
	},
	Reverse: {
		Valid: bandWithRows,
		Bounds: func(n schedule.Node) []Bound {
			return []Bound{rowEnum(n)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.NegateRow(args[0])
		},
	},
	SetParallel: {
		Valid: func(n schedule.Node) bool {
			if !isBand(n) {
				return false
			}
			for _, r := range n.Rows() {
				if !r.Parallel {
					return true
				}
			}
			return false
		},
		Bounds: func(n schedule.Node) []Bound {
			var choices []int
			for i, r := range n.Rows() {
				if !r.Parallel {
					choices = append(choices, i)
				}
			}
			return []Bound{Enum(choices...)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.MarkParallel(args[0])
		},
	},
	Skew: {
		Valid: func(n schedule.Node) bool { return isBand(n) && n.Dims() >= 2 },
		Bounds: func(n schedule.Node) []Bound {
			return []Bound{rowEnum(n), rowEnum(n), Range(DefaultLow, DefaultHigh)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.SkewRow(args[0], args[1], args[2])
		},
	},
	Shift: {
		Valid: bandWithRows,
		Bounds: func(n schedule.Node) []Bound {
			return []Bound{rowEnum(n), Range(DefaultLow, DefaultHigh)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.ShiftRow(args[0], args[1])
		},
	},
	Fuse: {
		Valid: fusibleSequence,
		Bounds: func(n schedule.Node) []Bound {
			choices := make([]int, n.NumChildren())
			for i := range choices {
				choices[i] = i
			}
			return []Bound{Enum(choices...), Enum(choices...)}
		},
		apply: func(n schedule.Node, args []int) error {
			if args[0] == args[1] {
				return fmt.Errorf("fuse children must differ (got %d)", args[0])
			}
			return n.FuseChildren(args[0], args[1])
		},
	},
	Split: {
		Valid: func(n schedule.Node) bool { return isBand(n) && n.Dims() >= 2 },
		Bounds: func(n schedule.Node) []Bound {
			choices := make([]int, 0, n.Dims()-1)
			for i := 1; i < n.Dims(); i++ {
				choices = append(choices, i)
			}
			return []Bound{Enum(choices...)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.SplitBand(args[0])
		},
	},
	SetLoopType: {
		Valid: bandWithRows,
		Bounds: func(n schedule.Node) []Bound {
			types := schedule.LoopTypes()
			choices := make([]int, len(types))
			for i, l := range types {
				choices[i] = int(l)
			}
			return []Bound{rowEnum(n), Enum(choices...)}
		},
		apply: func(n schedule.Node, args []int) error {
			return n.SetLoopType(args[0], schedule.LoopType(args[1]))
		},
	},
}

func init() {
	// The table must stay exhaustive; a nil entry means a kind was added
	// without its (valid, bounds, apply) triple.
	for k, e := range catalog {
		if e.Valid == nil || e.Bounds == nil || e.apply == nil {
			panic(fmt.Sprintf("transform: incomplete catalog entry for %s", Kind(k)))
		}
	}
}

// Lookup returns the catalog entry for k.
func Lookup(k Kind) (Entry, error) {
	if k < 0 || k >= numKinds {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return catalog[k], nil
}

// Valid reports whether k's structural precondition holds on n.
func Valid(k Kind, n schedule.Node) bool {
	e, err := Lookup(k)
	return err == nil && e.Valid(n)
}

// Bounds resolves the argument domains of k on n, one per argument in the
// order Apply expects them.
func Bounds(k Kind, n schedule.Node) ([]Bound, error) {
	e, err := Lookup(k)
	if err != nil {
		return nil, err
	}
	return e.Bounds(n), nil
}
