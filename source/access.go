package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

var subscriptRe = regexp.MustCompile(`^([A-Za-z_]\w*)(?:\s*([+-])\s*(\d+))?$`)

// parseAccesses splits one expression statement into written and read array
// references. A compound assignment operator counts its left side as both.
// References with subscripts outside the iv+const form are dropped from the
// access lists; they carry no analyzable dependence.
func parseAccesses(text string) (writes, reads []schedule.Access, err error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	at, compound := assignAt(text)
	if at < 0 {
		return nil, refs(text), nil
	}
	lhs := text[:at]
	rhs := text[at+1:]
	if compound {
		lhs = text[:at-1]
	}
	writes = refs(lhs)
	if len(writes) == 0 {
		return nil, nil, fmt.Errorf("no array reference on assignment target %q", lhs)
	}
	reads = refs(rhs)
	if compound {
		reads = append(writes[:len(writes):len(writes)], reads...)
	}
	return writes, reads, nil
}

// assignAt finds the top-level assignment operator, returning the index of
// its '=' and whether it is compound (+=, -=, *=, /=, %=). Comparison and
// equality operators do not qualify.
func assignAt(s string) (int, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 {
				switch s[i-1] {
				case '=', '!', '<', '>':
					continue
				case '+', '-', '*', '/', '%':
					return i, true
				}
			}
			return i, false
		}
	}
	return -1, false
}

// refs scans s for identifier-plus-subscript array references.
func refs(s string) []schedule.Access {
	var out []schedule.Access
	for i := 0; i < len(s); {
		if !identStart(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && identChar(s[j]) {
			j++
		}
		name := s[i:j]
		k := skipSpace(s, j)
		if k >= len(s) || s[k] != '[' {
			i = j
			continue
		}
		var idx []schedule.Subscript
		ok := true
		for k < len(s) && s[k] == '[' {
			end := strings.IndexByte(s[k:], ']')
			if end < 0 {
				ok = false
				break
			}
			sub, subErr := parseSubscript(s[k+1 : k+end])
			if subErr != nil {
				ok = false
			}
			idx = append(idx, sub)
			k = skipSpace(s, k+end+1)
		}
		if ok {
			out = append(out, schedule.Access{Array: name, Index: idx})
		}
		i = k
	}
	return out
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// parseSubscript accepts "c", "iv", "iv+c" and "iv-c".
func parseSubscript(s string) (schedule.Subscript, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return schedule.Subscript{Offset: v}, nil
	}
	m := subscriptRe.FindStringSubmatch(s)
	if m == nil {
		return schedule.Subscript{}, fmt.Errorf("unsupported subscript %q", s)
	}
	sub := schedule.Subscript{IV: m[1]}
	if m[3] != "" {
		v, err := strconv.Atoi(m[3])
		if err != nil {
			return schedule.Subscript{}, err
		}
		if m[2] == "-" {
			v = -v
		}
		sub.Offset = v
	}
	return sub, nil
}
