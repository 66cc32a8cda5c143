package transform

// Argument domain defaults when the underlying analysis supplies no side.
const (
	DefaultLow  = -64
	DefaultHigh = 64
)

// Bound is the admissible domain of one transformation argument: either a
// half-open integer range [Low, High) or an enumerated set of choices. The
// two cases are distinguished by Choices being non-nil.
type Bound struct {
	Low     int
	High    int
	Choices []int
}

// Range returns an integer range bound [lo, hi).
func Range(lo, hi int) Bound {
	return Bound{Low: lo, High: hi}
}

// Enum returns an enumerated bound over the given choices.
func Enum(choices ...int) Bound {
	if choices == nil {
		choices = []int{}
	}
	return Bound{Choices: choices}
}

// IsEnum reports whether the bound is an enumeration.
func (b Bound) IsEnum() bool { return b.Choices != nil }

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v int) bool {
	if b.IsEnum() {
		for _, c := range b.Choices {
			if c == v {
				return true
			}
		}
		return false
	}
	return v >= b.Low && v < b.High
}

// Without returns the enumeration with value v removed. Range bounds are
// returned unchanged; the exclusion rule only applies to enumerations drawn
// together in a single resolver call.
func (b Bound) Without(v int) Bound {
	if !b.IsEnum() {
		return b
	}
	out := make([]int, 0, len(b.Choices))
	for _, c := range b.Choices {
		if c != v {
			out = append(out, c)
		}
	}
	return Enum(out...)
}
