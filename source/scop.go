package source

import (
	"fmt"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

// scopBuilder assembles one scop from the region items. Iterators are
// registered in a first pass so band rows can be sized over the full
// iterator list; statements and the tree spec are built in a second pass in
// textual order.
type scopBuilder struct {
	scop  *schedule.Scop
	ivIdx map[string]int
	stack []string // enclosing iterators during the spec pass
}

func buildScop(name, region string, items []item) (*schedule.Scop, error) {
	b := &scopBuilder{
		scop:  &schedule.Scop{Name: name, Region: region},
		ivIdx: map[string]int{},
	}
	b.registerIVs(items)
	spec, err := b.specFor(items)
	if err != nil {
		return nil, err
	}
	b.scop.Deps = dependences(b.scop)
	b.collectParams()
	if spec == nil {
		schedule.Build(b.scop)
	} else {
		schedule.Build(b.scop, spec)
	}
	return b.scop, nil
}

func (b *scopBuilder) registerIVs(items []item) {
	for _, it := range items {
		if it.loop == nil {
			continue
		}
		l := it.loop
		if _, ok := b.ivIdx[l.iv]; !ok {
			b.ivIdx[l.iv] = len(b.scop.IVs)
			b.scop.IVs = append(b.scop.IVs, l.iv)
			b.scop.Extents = append(b.scop.Extents, schedule.Extent{
				IV:   l.iv,
				Low:  l.low,
				High: l.high,
			})
		}
		b.registerIVs(l.body)
	}
}

func (b *scopBuilder) specFor(items []item) (*schedule.Spec, error) {
	if len(items) == 0 {
		return nil, nil
	}
	specs := make([]*schedule.Spec, 0, len(items))
	for _, it := range items {
		s, err := b.specForItem(it)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	if len(specs) == 1 {
		return specs[0], nil
	}
	return schedule.Sequence(specs...), nil
}

func (b *scopBuilder) specForItem(it item) (*schedule.Spec, error) {
	if it.loop == nil {
		id, err := b.addStatement(it.stmt)
		if err != nil {
			return nil, err
		}
		return schedule.Band(nil, []int{id}), nil
	}

	// Merge perfectly nested loops into one band.
	cur := it.loop
	var ivs []string
	for {
		ivs = append(ivs, cur.iv)
		if len(cur.body) == 1 && cur.body[0].loop != nil {
			cur = cur.body[0].loop
			continue
		}
		break
	}
	b.stack = append(b.stack, ivs...)
	defer func() { b.stack = b.stack[:len(b.stack)-len(ivs)] }()

	n := len(b.scop.IVs)
	rows := make([]schedule.Row, len(ivs))
	for i, iv := range ivs {
		rows[i] = schedule.UnitRow(n, b.ivIdx[iv])
	}

	leaf := true
	for _, sub := range cur.body {
		if sub.loop != nil {
			leaf = false
		}
	}
	if leaf {
		stmts := make([]int, 0, len(cur.body))
		for _, sub := range cur.body {
			id, err := b.addStatement(sub.stmt)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, id)
		}
		return schedule.Band(rows, stmts), nil
	}
	child, err := b.specFor(cur.body)
	if err != nil {
		return nil, err
	}
	return schedule.Band(rows, nil, child), nil
}

func (b *scopBuilder) addStatement(text string) (int, error) {
	writes, reads, err := parseAccesses(text)
	if err != nil {
		return 0, fmt.Errorf("statement %q: %w", text, err)
	}
	id := len(b.scop.Statements)
	b.scop.Statements = append(b.scop.Statements, schedule.Statement{
		ID:     id,
		Name:   fmt.Sprintf("S%d", id),
		Text:   text,
		IVs:    append([]string(nil), b.stack...),
		Writes: writes,
		Reads:  reads,
	})
	return id, nil
}

// collectParams records identifiers appearing in extent bounds that are not
// iterators, in order of appearance.
func (b *scopBuilder) collectParams() {
	seen := map[string]bool{}
	for _, e := range b.scop.Extents {
		for _, tok := range identTokens(e.Low + " " + e.High) {
			if _, isIV := b.ivIdx[tok]; isIV || seen[tok] {
				continue
			}
			seen[tok] = true
			b.scop.Params = append(b.scop.Params, tok)
		}
	}
}

func identTokens(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		if !identStart(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && identChar(s[j]) {
			j++
		}
		out = append(out, s[i:j])
		i = j
	}
	return out
}

func identStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func identChar(c byte) bool {
	return identStart(c) || (c >= '0' && c <= '9')
}

// dependences summarizes all data dependences between statement pairs as
// distance vectors over the scop iterators. Only uniform accesses (matching
// iterator per subscript position, constant offsets) are analyzable; pairs
// outside that form are skipped.
func dependences(s *schedule.Scop) []schedule.Dependence {
	ivIdx := map[string]int{}
	for i, iv := range s.IVs {
		ivIdx[iv] = i
	}
	seen := map[string]bool{}
	var deps []schedule.Dependence
	for _, si := range s.Statements {
		for _, w := range si.Writes {
			for _, sj := range s.Statements {
				accs := make([]schedule.Access, 0, len(sj.Writes)+len(sj.Reads))
				accs = append(accs, sj.Writes...)
				accs = append(accs, sj.Reads...)
				for _, a := range accs {
					d, ok := distance(w, a, ivIdx, len(s.IVs))
					if !ok {
						continue
					}
					src, dst, dist, ok := orient(si.ID, sj.ID, d)
					if !ok {
						continue
					}
					key := fmt.Sprint(src, dst, dist)
					if seen[key] {
						continue
					}
					seen[key] = true
					deps = append(deps, schedule.Dependence{Src: src, Dst: dst, Distance: dist})
				}
			}
		}
	}
	return deps
}

// distance computes sink-minus-source iteration deltas for two accesses to
// the same array, or reports the pair unanalyzable.
func distance(w, a schedule.Access, ivIdx map[string]int, n int) ([]int, bool) {
	if w.Array != a.Array || len(w.Index) != len(a.Index) {
		return nil, false
	}
	d := make([]int, n)
	set := make([]bool, n)
	for k := range w.Index {
		ws, as := w.Index[k], a.Index[k]
		switch {
		case ws.IV == "" && as.IV == "":
			if ws.Offset != as.Offset {
				return nil, false // distinct elements
			}
		case ws.IV == as.IV:
			slot := ivIdx[ws.IV]
			delta := ws.Offset - as.Offset
			if set[slot] && d[slot] != delta {
				return nil, false
			}
			d[slot] = delta
			set[slot] = true
		default:
			return nil, false // non-uniform pair
		}
	}
	return d, true
}

// orient points the dependence from the earlier-executed instance to the
// later one. Zero vectors between distinct statements are loop-independent
// and follow textual order; a zero self-dependence is no dependence.
func orient(src, dst int, d []int) (int, int, []int, bool) {
	sign := 0
	for _, v := range d {
		if v != 0 {
			if v > 0 {
				sign = 1
			} else {
				sign = -1
			}
			break
		}
	}
	switch {
	case sign > 0:
		return src, dst, d, true
	case sign < 0:
		neg := make([]int, len(d))
		for i, v := range d {
			neg[i] = -v
		}
		return dst, src, neg, true
	case src == dst:
		return 0, 0, nil, false
	case src < dst:
		return src, dst, d, true
	default:
		return dst, src, d, true
	}
}
