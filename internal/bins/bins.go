// Package bins validates continuous-to-discrete binning specs and maps
// numeric values to bin IDs under the declared boundary rules.
package bins

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// OutcomeUnknown is what ValueToBin returns when no bin can be assigned.
const OutcomeUnknown = "UNKNOWN"

// Bin is one entry of a bin_spec. A nil Min means unbounded below
// (-infinity); a nil Max means unbounded above (+infinity). Inclusivity
// flags default to a half-open [min, max) interval when omitted:
// include_min true, include_max false.
type Bin struct {
	BinID      string   `json:"bin_id"`
	Label      string   `json:"label,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	IncludeMin *bool    `json:"include_min,omitempty"`
	IncludeMax *bool    `json:"include_max,omitempty"`
}

// Spec is the ordered bin list. Declaration order matters for ValueToBin
// (first match wins); it does not matter for validation.
type Spec struct {
	Bins []Bin `json:"bins"`
}

func (b Bin) includeMin() bool { return b.IncludeMin == nil || *b.IncludeMin }
func (b Bin) includeMax() bool { return b.IncludeMax != nil && *b.IncludeMax }

func loValue(b Bin) float64 {
	if b.Min == nil {
		return math.Inf(-1)
	}
	return *b.Min
}

func hiValue(b Bin) float64 {
	if b.Max == nil {
		return math.Inf(1)
	}
	return *b.Max
}

// Validate returns every structural problem with spec: empty or
// single-entry bin list, duplicate bin IDs, inverted bounds, pairwise
// overlaps, and gaps between the lowest and highest finite boundaries.
// An empty result means valid.
func Validate(spec Spec) []string {
	var errs []string
	if len(spec.Bins) == 0 {
		return []string{"bin_spec has no bins"}
	}
	if len(spec.Bins) < 2 {
		return []string{"bin_spec must have at least 2 bins"}
	}

	seen := map[string]bool{}
	for _, b := range spec.Bins {
		if b.BinID == "" {
			errs = append(errs, "bin_spec entry missing bin_id")
			continue
		}
		if seen[b.BinID] {
			errs = append(errs, fmt.Sprintf("duplicate bin_id %q", b.BinID))
		}
		seen[b.BinID] = true
		if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
			errs = append(errs, fmt.Sprintf("bin %q has min > max", b.BinID))
		}
	}

	errs = append(errs, detectOverlaps(spec.Bins)...)
	errs = append(errs, detectGaps(spec.Bins)...)
	return errs
}

// detectOverlaps considers two bins overlapping iff there exists at least
// one real number satisfying both, accounting for inclusivity at shared
// boundaries.
func detectOverlaps(list []Bin) []string {
	var errs []string
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			a, b := list[i], list[j]
			if intervalsOverlap(a, b) {
				errs = append(errs, fmt.Sprintf("bins %q and %q overlap", a.BinID, b.BinID))
			}
		}
	}
	return errs
}

func intervalsOverlap(a, b Bin) bool {
	aBeforeB := hiValue(a) < loValue(b) || (hiValue(a) == loValue(b) && !(a.includeMax() && b.includeMin()))
	bBeforeA := hiValue(b) < loValue(a) || (hiValue(b) == loValue(a) && !(b.includeMax() && a.includeMin()))
	return !aBeforeB && !bBeforeA
}

// detectGaps walks bins sorted by lower bound and reports any interval
// between finite boundaries left uncovered by every bin.
func detectGaps(list []Bin) []string {
	sorted := append([]Bin(nil), list...)
	sort.Slice(sorted, func(i, j int) bool {
		if loValue(sorted[i]) != loValue(sorted[j]) {
			return loValue(sorted[i]) < loValue(sorted[j])
		}
		return hiValue(sorted[i]) < hiValue(sorted[j])
	})

	var errs []string
	cursorHi := hiValue(sorted[0])
	cursorHiIncl := sorted[0].includeMax()
	for _, b := range sorted[1:] {
		lo := loValue(b)
		if lo > cursorHi {
			errs = append(errs, fmt.Sprintf("gap between coverage ending at %v and bin %q starting at %v", cursorHi, b.BinID, lo))
		} else if lo == cursorHi && !cursorHiIncl && !b.includeMin() {
			errs = append(errs, fmt.Sprintf("gap at boundary %v before bin %q", lo, b.BinID))
		}
		if hiValue(b) > cursorHi {
			cursorHi = hiValue(b)
			cursorHiIncl = b.includeMax()
		} else if hiValue(b) == cursorHi {
			cursorHiIncl = cursorHiIncl || b.includeMax()
		}
	}
	return errs
}

// ValueToBin maps value into a bin ID. Bins are checked in declaration
// order; the first bin that contains value wins. A missing, non-numeric,
// or out-of-coverage value returns (UNKNOWN, reason) with reason
// explaining why.
func ValueToBin(value any, spec Spec) (string, string) {
	if value == nil {
		return OutcomeUnknown, "missing_value"
	}
	v, ok := toFloat64(value)
	if !ok {
		return OutcomeUnknown, "invalid_numeric_value"
	}
	for _, b := range spec.Bins {
		if contains(b, v) {
			return b.BinID, ""
		}
	}
	return OutcomeUnknown, "out_of_range"
}

func contains(b Bin, v float64) bool {
	if b.Min != nil {
		if v < *b.Min {
			return false
		}
		if v == *b.Min && !b.includeMin() {
			return false
		}
	}
	if b.Max != nil {
		if v > *b.Max {
			return false
		}
		if v == *b.Max && !b.includeMax() {
			return false
		}
	}
	return true
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
