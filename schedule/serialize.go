package schedule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// The serialized form is the exact text exchanged with the external process
// and consumed by code generation. It is stable: the same logical tree always
// produces the same text, so rollback and diff-based tests can compare it
// byte for byte.

type rowDoc struct {
	Coeffs   []int  `yaml:"coeffs,flow"`
	Shift    int    `yaml:"shift,omitempty"`
	Step     int    `yaml:"step,omitempty"`
	Point    bool   `yaml:"point,omitempty"`
	Loop     string `yaml:"loop,omitempty"`
	Parallel bool   `yaml:"parallel,omitempty"`
}

type nodeDoc struct {
	Kind     string     `yaml:"kind"`
	Domain   string     `yaml:"domain,omitempty"`
	Schedule []rowDoc   `yaml:"schedule,omitempty"`
	Stmts    []int      `yaml:"stmts,omitempty,flow"`
	Children []*nodeDoc `yaml:"children,omitempty"`
}

type treeDoc struct {
	Scop      string   `yaml:"scop"`
	Iterators []string `yaml:"iterators,flow"`
	Modified  bool     `yaml:"modified,omitempty"`
	Root      *nodeDoc `yaml:"tree"`
}

func rowToDoc(r Row) rowDoc {
	d := rowDoc{Coeffs: append([]int(nil), r.Coeffs...), Shift: r.Shift, Point: r.Point, Parallel: r.Parallel}
	if r.Step != 1 {
		d.Step = r.Step
	}
	if r.Loop != LoopDefault {
		d.Loop = r.Loop.String()
	}
	return d
}

func (t *Tree) nodeToDoc(n *node) *nodeDoc {
	d := &nodeDoc{Kind: n.kind.String()}
	if n.kind == KindDomain {
		d.Domain = t.scop.domainText()
	}
	if n.kind == KindBand {
		d.Stmts = append([]int(nil), n.stmts...)
		for _, r := range n.rows {
			d.Schedule = append(d.Schedule, rowToDoc(r))
		}
	}
	for _, c := range n.children {
		d.Children = append(d.Children, t.nodeToDoc(c))
	}
	return d
}

// Serialize renders the tree as stable YAML text.
func (t *Tree) Serialize() string {
	doc := treeDoc{
		Scop:      t.scop.Name,
		Iterators: append([]string(nil), t.scop.IVs...),
		Modified:  t.modified,
		Root:      t.nodeToDoc(t.root),
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		// Plain structs of ints and strings cannot fail to marshal.
		panic(fmt.Sprintf("schedule: serialize: %v", err))
	}
	return string(out)
}

func docToNode(d *nodeDoc, nIVs int) (*node, error) {
	n := &node{}
	switch d.Kind {
	case "domain":
		n.kind = KindDomain
	case "band":
		n.kind = KindBand
	case "sequence":
		n.kind = KindSequence
	default:
		return nil, fmt.Errorf("unknown node kind %q", d.Kind)
	}
	n.stmts = append([]int(nil), d.Stmts...)
	for _, rd := range d.Schedule {
		if len(rd.Coeffs) != nIVs {
			return nil, fmt.Errorf("row has %d coefficients, scop has %d iterators", len(rd.Coeffs), nIVs)
		}
		r := Row{
			Coeffs:   append([]int(nil), rd.Coeffs...),
			Shift:    rd.Shift,
			Step:     rd.Step,
			Point:    rd.Point,
			Parallel: rd.Parallel,
		}
		if r.Step == 0 {
			r.Step = 1
		}
		if rd.Loop != "" {
			l, err := ParseLoopType(rd.Loop)
			if err != nil {
				return nil, err
			}
			r.Loop = l
		}
		n.rows = append(n.rows, r)
	}
	for _, cd := range d.Children {
		c, err := docToNode(cd, nIVs)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, c)
	}
	return n, nil
}

// Deserialize parses serialized tree text against the given scop and
// replaces the scop's tree with the result.
func Deserialize(scop *Scop, text string) (*Tree, error) {
	var doc treeDoc
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("decode schedule: missing tree")
	}
	if len(doc.Iterators) != len(scop.IVs) {
		return nil, fmt.Errorf("decode schedule: %d iterators, scop has %d", len(doc.Iterators), len(scop.IVs))
	}
	root, err := docToNode(doc.Root, len(scop.IVs))
	if err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if root.kind != KindDomain {
		return nil, fmt.Errorf("decode schedule: root must be a domain node, got %s", root.kind)
	}
	t := &Tree{scop: scop, root: root, modified: doc.Modified}
	scop.tree = t
	return t, nil
}

// SerializeLine renders the tree as a single line of flow-style YAML, the
// form the external process reads back.
func (t *Tree) SerializeLine() string {
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(t.Serialize()), &n); err != nil {
		panic(fmt.Sprintf("schedule: reparse own serialization: %v", err))
	}
	setFlow(&n)
	out, err := yaml.Marshal(&n)
	if err != nil {
		panic(fmt.Sprintf("schedule: flow serialize: %v", err))
	}
	return strings.TrimSpace(string(out))
}

func setFlow(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		setFlow(c)
	}
}
