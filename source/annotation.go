package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/loopkit-xyz/go-loopkit/transform"
)

const (
	annHeader     = "/// TRANSFORMATION: "
	commentMarker = "///"
)

// ErrBadAnnotation is returned for malformed transformation annotations.
var ErrBadAnnotation = errors.New("malformed transformation annotation")

// Annotation is one "/// TRANSFORMATION:" directive: a catalog kind, the
// flat node index to apply it at (-1 when the annotation omits it) and the
// literal arguments.
type Annotation struct {
	Kind    transform.Kind
	NodeIdx int
	Args    []int
}

// Annotation returns the file's transformation directive, if any.
func (f *File) Annotation() (*Annotation, bool) {
	if f.ann == nil {
		return nil, false
	}
	return f.ann, true
}

// ExpectedLines returns the comment-marked expected output lines, stripped
// of the marker.
func (f *File) ExpectedLines() []string {
	return append([]string(nil), f.expected...)
}

// scanComments extracts the annotation and expected lines from the raw text.
func (f *File) scanComments() error {
	for _, line := range strings.Split(f.Text, "\n") {
		switch {
		case strings.HasPrefix(line, annHeader):
			ann, err := parseAnnotation(strings.TrimPrefix(line, annHeader))
			if err != nil {
				return err
			}
			f.ann = ann
		case strings.HasPrefix(line, commentMarker):
			stripped := strings.TrimPrefix(strings.TrimSpace(line), commentMarker)
			stripped = strings.TrimPrefix(stripped, " ")
			f.expected = append(f.expected, stripped)
		}
	}
	return nil
}

// parseAnnotation parses a tuple literal such as ('Tile', 2, [32]) or
// ('Reverse', [0]). The first element names the transformation, an optional
// bare integer selects the node, and the bracketed list carries arguments.
func parseAnnotation(s string) (*Annotation, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := splitTop(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadAnnotation, s)
	}

	name := strings.Trim(parts[0], `'"`)
	kind, err := transform.ParseKind(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAnnotation, err)
	}
	ann := &Annotation{Kind: kind, NodeIdx: -1}

	for _, p := range parts[1:] {
		if strings.HasPrefix(p, "[") {
			args, err := parseIntList(strings.TrimSuffix(strings.TrimPrefix(p, "["), "]"))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadAnnotation, err)
			}
			ann.Args = args
			continue
		}
		idx, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadAnnotation, p)
		}
		ann.NodeIdx = idx
	}
	return ann, nil
}

// splitTop splits on commas outside brackets and quotes.
func splitTop(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
