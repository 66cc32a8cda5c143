package schedule

import (
	"fmt"

	"lukechampine.com/blake3"
)

// Row is one schedule dimension of a band: a linear expression over the scop
// iterators plus a constant shift. Tiling splits a row into a tile row
// (Step > 1) immediately followed by its point row (Point = true) with the
// same coefficients.
type Row struct {
	Coeffs   []int
	Shift    int
	Step     int // loop stride; > 1 on tile rows
	Point    bool
	Loop     LoopType
	Parallel bool
}

// UnitRow returns a row selecting iterator k out of n, with stride 1.
func UnitRow(n, k int) Row {
	c := make([]int, n)
	c[k] = 1
	return Row{Coeffs: c, Step: 1}
}

// clone deep-copies the row.
func (r Row) clone() Row {
	c := make([]int, len(r.Coeffs))
	copy(c, r.Coeffs)
	r.Coeffs = c
	return r
}

// node is the internal tree node. Domain and sequence nodes carry only
// children; band nodes carry rows and the statements scheduled under them.
type node struct {
	kind     Kind
	rows     []Row
	stmts    []int
	children []*node
}

func (n *node) clone() *node {
	c := &node{kind: n.kind}
	c.rows = make([]Row, len(n.rows))
	for i, r := range n.rows {
		c.rows[i] = r.clone()
	}
	c.stmts = append([]int(nil), n.stmts...)
	c.children = make([]*node, len(n.children))
	for i, ch := range n.children {
		c.children[i] = ch.clone()
	}
	return c
}

// Spec is an immutable description used to build a tree; see Band, Sequence
// and Build.
type Spec struct {
	kind     Kind
	rows     []Row
	stmts    []int
	children []*Spec
}

// Band describes a band node scheduling stmts with the given rows.
func Band(rows []Row, stmts []int, children ...*Spec) *Spec {
	return &Spec{kind: KindBand, rows: rows, stmts: stmts, children: children}
}

// Sequence describes an ordered sequence of sibling subtrees.
func Sequence(children ...*Spec) *Spec {
	return &Spec{kind: KindSequence, children: children}
}

func (s *Spec) toNode() *node {
	n := &node{kind: s.kind, stmts: append([]int(nil), s.stmts...)}
	n.rows = make([]Row, len(s.rows))
	for i, r := range s.rows {
		n.rows[i] = r.clone()
	}
	for _, c := range s.children {
		n.children = append(n.children, c.toNode())
	}
	return n
}

// Tree is the ordered schedule tree of one scop. Nodes are addressed by flat
// pre-order index; index 0 is the domain root.
type Tree struct {
	scop     *Scop
	root     *node
	modified bool

	flat []*node // lazy pre-order cache
}

// Build creates a tree for scop with the given children under the domain
// root, and attaches it to the scop.
func Build(scop *Scop, children ...*Spec) *Tree {
	root := &node{kind: KindDomain}
	for i := range scop.Statements {
		root.stmts = append(root.stmts, i)
	}
	for _, c := range children {
		root.children = append(root.children, c.toNode())
	}
	t := &Tree{scop: scop, root: root}
	scop.tree = t
	return t
}

// Scop returns the owning scop.
func (t *Tree) Scop() *Scop { return t.scop }

// Modified reports whether a transformation has been committed on the tree.
func (t *Tree) Modified() bool { return t.modified }

// SetModified records that the tree diverged from the original schedule.
// Only the transform engine should call this.
func (t *Tree) SetModified(v bool) { t.modified = v }

func (t *Tree) preorder() []*node {
	if t.flat != nil {
		return t.flat
	}
	var walk func(n *node)
	walk = func(n *node) {
		t.flat = append(t.flat, n)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return t.flat
}

// invalidate drops the pre-order cache after any structural change.
func (t *Tree) invalidate() { t.flat = nil }

// Len returns the number of addressable nodes.
func (t *Tree) Len() int { return len(t.preorder()) }

// Node returns the node at the given pre-order index. The returned value is
// a borrowed reference: it must be re-fetched after any transformation that
// changes the tree shape.
func (t *Tree) Node(i int) (Node, error) {
	flat := t.preorder()
	if i < 0 || i >= len(flat) {
		return Node{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, len(flat))
	}
	return Node{tree: t, n: flat[i], Index: i}, nil
}

// Fingerprint hashes the serialized tree. Two trees with equal logical state
// have equal fingerprints.
func (t *Tree) Fingerprint() [32]byte {
	return blake3.Sum256([]byte(t.Serialize()))
}

// Snapshot is a deep copy of the tree state taken before an apply attempt.
type Snapshot struct {
	root     *node
	modified bool
	sum      [32]byte
}

// Sum returns the fingerprint of the snapshotted state.
func (s *Snapshot) Sum() [32]byte { return s.sum }

// Snapshot deep-copies the current tree state.
func (t *Tree) Snapshot() *Snapshot {
	return &Snapshot{root: t.root.clone(), modified: t.modified, sum: t.Fingerprint()}
}

// Restore replaces the tree state with the snapshotted one.
func (t *Tree) Restore(s *Snapshot) {
	t.root = s.root.clone()
	t.modified = s.modified
	t.invalidate()
}

// Node is a borrowed reference to a position in the tree.
type Node struct {
	tree  *Tree
	n     *node
	Index int
}

// Kind returns the node kind.
func (n Node) Kind() Kind { return n.n.kind }

// Dims returns the number of schedule rows of a band, 0 otherwise.
func (n Node) Dims() int { return len(n.n.rows) }

// Row returns a copy of row r.
func (n Node) Row(r int) (Row, error) {
	if err := n.checkRow(r); err != nil {
		return Row{}, err
	}
	return n.n.rows[r].clone(), nil
}

// Rows returns copies of all schedule rows.
func (n Node) Rows() []Row {
	out := make([]Row, len(n.n.rows))
	for i, r := range n.n.rows {
		out[i] = r.clone()
	}
	return out
}

// Tiled reports whether row r already belongs to a tile/point pair.
func (n Node) Tiled(r int) bool {
	row := n.n.rows[r]
	return row.Step > 1 || row.Point
}

// UntiledRows lists the row indices still eligible for tiling.
func (n Node) UntiledRows() []int {
	var out []int
	for i := range n.n.rows {
		if !n.Tiled(i) {
			out = append(out, i)
		}
	}
	return out
}

// Tree returns the owning tree.
func (n Node) Tree() *Tree { return n.tree }

// RowIV returns the iterator scanned by row r: the first iterator with a
// nonzero coefficient, or "" for a constant row.
func (n Node) RowIV(r int) string {
	if r < 0 || r >= len(n.n.rows) {
		return ""
	}
	for i, c := range n.n.rows[r].Coeffs {
		if c != 0 {
			return n.tree.scop.IVs[i]
		}
	}
	return ""
}

// Statements returns the statement IDs scheduled under this node. Sequence
// nodes aggregate their children.
func (n Node) Statements() []int { return stmtSet(n.n) }

func stmtSet(n *node) []int {
	if len(n.stmts) > 0 {
		return append([]int(nil), n.stmts...)
	}
	var out []int
	for _, c := range n.children {
		out = append(out, stmtSet(c)...)
	}
	return out
}

// NumChildren returns the number of direct children.
func (n Node) NumChildren() int { return len(n.n.children) }

// Child returns the k-th direct child as a borrowed reference. The child's
// Index is its flat pre-order index in the tree.
func (n Node) Child(k int) (Node, error) {
	if k < 0 || k >= len(n.n.children) {
		return Node{}, fmt.Errorf("%w: child %d of %d", ErrOutOfRange, k, len(n.n.children))
	}
	child := n.n.children[k]
	for i, cand := range n.tree.preorder() {
		if cand == child {
			return Node{tree: n.tree, n: child, Index: i}, nil
		}
	}
	return Node{}, fmt.Errorf("%w: detached child", ErrOutOfRange)
}

func (n Node) checkBand() error {
	if n.n.kind != KindBand {
		return fmt.Errorf("%w: node %d is %s", ErrNotBand, n.Index, n.n.kind)
	}
	return nil
}

func (n Node) checkRow(r int) error {
	if err := n.checkBand(); err != nil {
		return err
	}
	if r < 0 || r >= len(n.n.rows) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrBadRow, r, len(n.n.rows))
	}
	return nil
}

// ---------------------------------------------------------------
// Structural mutators. These implement the raw tree surgery behind
// the transformation catalog and perform no legality checking.
// ---------------------------------------------------------------

// TileRow splits row r into a tile row with stride size and its point row.
func (n Node) TileRow(r, size int) error {
	if err := n.checkRow(r); err != nil {
		return err
	}
	if size < 1 {
		return fmt.Errorf("tile size %d < 1", size)
	}
	if n.Tiled(r) {
		return fmt.Errorf("row %d already tiled", r)
	}
	row := n.n.rows[r]
	tile := row.clone()
	tile.Step = size
	point := row.clone()
	point.Point = true
	point.Step = size
	rows := make([]Row, 0, len(n.n.rows)+1)
	rows = append(rows, n.n.rows[:r]...)
	rows = append(rows, tile, point)
	rows = append(rows, n.n.rows[r+1:]...)
	n.n.rows = rows
	n.tree.invalidate()
	return nil
}

// SwapRows exchanges two rows of a band.
func (n Node) SwapRows(r1, r2 int) error {
	if err := n.checkRow(r1); err != nil {
		return err
	}
	if err := n.checkRow(r2); err != nil {
		return err
	}
	n.n.rows[r1], n.n.rows[r2] = n.n.rows[r2], n.n.rows[r1]
	return nil
}

// NegateRow reverses the iteration order of row r.
func (n Node) NegateRow(r int) error {
	if err := n.checkRow(r); err != nil {
		return err
	}
	row := &n.n.rows[r]
	for i := range row.Coeffs {
		row.Coeffs[i] = -row.Coeffs[i]
	}
	row.Shift = -row.Shift
	return nil
}

// SkewRow adds factor times row src to row dst.
func (n Node) SkewRow(dst, src, factor int) error {
	if err := n.checkRow(dst); err != nil {
		return err
	}
	if err := n.checkRow(src); err != nil {
		return err
	}
	if dst == src {
		return fmt.Errorf("skew rows must differ (got %d)", dst)
	}
	d, s := &n.n.rows[dst], n.n.rows[src]
	for i := range d.Coeffs {
		d.Coeffs[i] += factor * s.Coeffs[i]
	}
	d.Shift += factor * s.Shift
	return nil
}

// ShiftRow adds a constant to row r.
func (n Node) ShiftRow(r, c int) error {
	if err := n.checkRow(r); err != nil {
		return err
	}
	n.n.rows[r].Shift += c
	return nil
}

// MarkParallel marks row r for parallel execution.
func (n Node) MarkParallel(r int) error {
	if err := n.checkRow(r); err != nil {
		return err
	}
	n.n.rows[r].Parallel = true
	return nil
}

// SetLoopType sets the code-generation loop classification of row r.
func (n Node) SetLoopType(r int, l LoopType) error {
	if err := n.checkRow(r); err != nil {
		return err
	}
	n.n.rows[r].Loop = l
	return nil
}

// SplitBand splits a band before row r into an outer band [0, r) and a new
// inner band [r, Dims()) that inherits the children and statements.
func (n Node) SplitBand(r int) error {
	if err := n.checkBand(); err != nil {
		return err
	}
	if r < 1 || r >= len(n.n.rows) {
		return fmt.Errorf("%w: split at %d of %d", ErrBadRow, r, len(n.n.rows))
	}
	inner := &node{
		kind:     KindBand,
		rows:     n.n.rows[r:],
		stmts:    n.n.stmts,
		children: n.n.children,
	}
	n.n.rows = n.n.rows[:r:r]
	n.n.stmts = nil
	n.n.children = []*node{inner}
	n.tree.invalidate()
	return nil
}

// FuseChildren merges sequence child i2 into child i1, keeping i1's rows and
// subtree and removing i2 from the sequence. A sequence left with a single
// child collapses into that child.
func (n Node) FuseChildren(i1, i2 int) error {
	if n.n.kind != KindSequence {
		return fmt.Errorf("%w: node %d is %s", ErrNotSequence, n.Index, n.n.kind)
	}
	if i1 == i2 || i1 < 0 || i2 < 0 || i1 >= len(n.n.children) || i2 >= len(n.n.children) {
		return fmt.Errorf("%w: fuse %d,%d of %d children", ErrOutOfRange, i1, i2, len(n.n.children))
	}
	a, b := n.n.children[i1], n.n.children[i2]
	if a.kind != KindBand || b.kind != KindBand || len(a.rows) != len(b.rows) {
		return fmt.Errorf("fuse targets must be bands of equal depth")
	}
	a.stmts = append(a.stmts, b.stmts...)
	children := make([]*node, 0, len(n.n.children)-1)
	for i, c := range n.n.children {
		if i != i2 {
			children = append(children, c)
		}
	}
	n.n.children = children
	if len(children) == 1 {
		*n.n = *children[0]
	}
	n.tree.invalidate()
	return nil
}
