package store

import (
	"strings"
	"unicode"
)

// MatchPattern reports whether name matches a QUERY_DIRECTORY search
// pattern. "*" matches any run of characters, "?" matches one, and
// matching ignores case. The DOS wildcards '<', '>' and '"' are treated as
// "*", "?" and "." respectively. An empty pattern matches everything.
func MatchPattern(pattern, name string) bool {
	if pattern == "" || pattern == "*" || pattern == "*.*" {
		return true
	}
	return match([]rune(pattern), []rune(name))
}

func match(p, n []rune) bool {
	// Iterative wildcard match with single-star backtracking.
	var pi, ni int
	star, mark := -1, 0
	for ni < len(n) {
		if pi < len(p) {
			switch c := p[pi]; c {
			case '*', '<':
				star, mark = pi, ni
				pi++
				continue
			case '?', '>':
				pi++
				ni++
				continue
			default:
				if c == '"' {
					c = '.'
				}
				if foldEqual(c, n[ni]) {
					pi++
					ni++
					continue
				}
			}
		}
		if star < 0 {
			return false
		}
		pi = star + 1
		mark++
		ni = mark
	}
	for pi < len(p) && (p[pi] == '*' || p[pi] == '<') {
		pi++
	}
	return pi == len(p)
}

func foldEqual(a, b rune) bool {
	return a == b || unicode.ToUpper(a) == unicode.ToUpper(b)
}

// HasWildcards reports whether pattern contains a search wildcard.
func HasWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, `*?<>"`)
}
