// Package dotted implements dotted-path traversal into decoded JSON
// (map[string]any nesting), used by the forecast generator to pull a
// simulation field and by the resolver to pull a compiled-intel field when
// a flat compiled_fields lookup misses.
package dotted

import "strings"

// Get walks path (e.g. "fx.usd_jpy.p_above_150") through nested
// map[string]any values rooted at root. Returns (nil, false) if any segment
// is missing or the value at an intermediate segment is not a map.
func Get(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
