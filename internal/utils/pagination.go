// Package utils holds small helpers shared across layers. Nothing in here
// knows about lessons or HTTP; the handlers use these to turn query-string
// pagination input into bounded integers.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or not
// a plain integer. Query parameters like ?page=abc degrade to the default
// instead of erroring.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds v to [lo, hi]. Callers are expected to pass lo <= hi.
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
