package glob

import (
	"strings"

	"github.com/tidwall/match"
)

// Glob is a parsed pattern. Limits bound an ordered scan to the literal
// prefix of the pattern: Limits[0] is the first possible match and
// Limits[1] the last. Both empty means every string must be considered.
type Glob struct {
	Pattern string
	Desc    bool
	Limits  []string
	IsGlob  bool
}

// Match returns true when str matches pattern.
func Match(pattern, str string) (matched bool, err error) {
	if pattern == "*" {
		return true, nil
	}
	if !match.IsPattern(pattern) {
		return pattern == str, nil
	}
	return match.Match(str, pattern), nil
}

// IsGlob returns true when the pattern has glob characters
func IsGlob(pattern string) bool {
	return match.IsPattern(pattern)
}

// Parse returns a glob structure from the pattern
func Parse(pattern string, desc bool) *Glob {
	g := &Glob{Pattern: pattern, Desc: desc, Limits: []string{"", ""}}
	if strings.HasPrefix(pattern, "*") {
		g.IsGlob = true
		return g
	}
	if pattern == "" {
		return g
	}
	n := 0
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '[' || pattern[i] == '*' || pattern[i] == '?' {
			g.IsGlob = true
			break
		}
		n++
	}
	if n == len(pattern) {
		// plain string, scan exactly one key
		g.Limits = []string{pattern, pattern}
		return g
	}
	prefix := pattern[:n]
	upper := incLastByte(prefix)
	if desc {
		g.Limits = []string{upper, prefix}
	} else {
		g.Limits = []string{prefix, upper}
	}
	return g
}

// incLastByte returns the smallest string greater than every string with
// the given prefix. Trailing 0xff bytes cannot be incremented and are
// dropped.
func incLastByte(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
