// Package baseline builds the lookahead-safe resolution history index and
// derives the climatology and persistence baseline distributions from it.
// internal/scoring calls BuildHistoryIndex for its own baseline comparison
// so forecast-time and score-time baselines never drift apart.
package baseline

import (
	"math"
	"time"

	"github.com/oraclecore/oracle-core/internal/ledger"
)

// Config is a per-event baseline configuration merged with process-wide
// defaults before use.
type Config struct {
	MinHistoryN           int
	WindowDays            int
	SmoothingAlpha        float64
	IncludeUnknown        bool
	PersistenceStickiness float64
	MaxStalenessDays       float64
	StalenessDecay        string // "linear" | "exponential"
	ResolutionModes       []string
	ConfigVersion         string
}

// DefaultConfig is the process-wide default applied when no per-event
// override is present.
func DefaultConfig() Config {
	return Config{
		MinHistoryN:           20,
		WindowDays:            180,
		SmoothingAlpha:        1.0,
		IncludeUnknown:        false,
		PersistenceStickiness: 0.7,
		MaxStalenessDays:      30,
		StalenessDecay:        "linear",
		ResolutionModes:       []string{"external_auto", "external_manual"},
		ConfigVersion:         "1.0.0",
	}
}

// Merge overrides fields of d (the defaults) with any non-zero field of o.
func (d Config) Merge(o Config) Config {
	out := d
	if o.MinHistoryN != 0 {
		out.MinHistoryN = o.MinHistoryN
	}
	if o.WindowDays != 0 {
		out.WindowDays = o.WindowDays
	}
	if o.SmoothingAlpha != 0 {
		out.SmoothingAlpha = o.SmoothingAlpha
	}
	out.IncludeUnknown = out.IncludeUnknown || o.IncludeUnknown
	if o.PersistenceStickiness != 0 {
		out.PersistenceStickiness = o.PersistenceStickiness
	}
	if o.MaxStalenessDays != 0 {
		out.MaxStalenessDays = o.MaxStalenessDays
	}
	if o.StalenessDecay != "" {
		out.StalenessDecay = o.StalenessDecay
	}
	if len(o.ResolutionModes) > 0 {
		out.ResolutionModes = o.ResolutionModes
	}
	if o.ConfigVersion != "" {
		out.ConfigVersion = o.ConfigVersion
	}
	return out
}

// GroupKey identifies one (event_id, horizon_days) history bucket.
type GroupKey struct {
	EventID     string
	HorizonDays int
}

// Index is a lookahead-safe tally of resolution history as of a fixed
// as_of_utc, keyed by (event_id, horizon_days).
type Index struct {
	AsOf   time.Time
	Groups map[GroupKey]*GroupHistory
}

// GroupHistory is the tally for one (event_id, horizon_days) bucket.
type GroupHistory struct {
	CountsByOutcome       map[string]int
	HistoryN              int
	LastResolvedOutcome   string
	LastVerifiedAt        time.Time
	HasLastVerified       bool
	StalenessDays         float64
	ExcludedCountsByReason map[string]int
}

func resolvedModeOf(mode string) string {
	if mode == "" {
		// Legacy resolutions with no resolution_mode are external_auto on
		// read; the record itself is never rewritten.
		return "external_auto"
	}
	return mode
}

func modeAllowed(mode string, accepted []string) bool {
	for _, m := range accepted {
		if m == mode {
			return true
		}
	}
	return false
}

// BuildHistoryIndex scans resolutions (with corrections applied, latest per
// resolution_id wins; corrections recorded after asOf do not apply, so the
// no-lookahead guarantee covers the correction channel too), excludes
// anything resolved after asOf, outside windowDays, in a non-accepted
// resolution_mode, missing resolved_at_utc, or UNKNOWN unless
// includeUnknown, and tallies the rest per (event_id, horizon_days).
func BuildHistoryIndex(resolutions []ledger.ResolutionRecord, corrections []ledger.CorrectionRecord, asOf time.Time, cfg Config) Index {
	merged := ledger.MergeCorrections(resolutions, correctionsBefore(corrections, asOf))

	idx := Index{AsOf: asOf, Groups: make(map[GroupKey]*GroupHistory)}
	windowStart := asOf.AddDate(0, 0, -cfg.WindowDays)

	for _, r := range merged {
		key := GroupKey{EventID: r.EventID, HorizonDays: r.HorizonDays}
		g := idx.Groups[key]
		if g == nil {
			g = &GroupHistory{CountsByOutcome: map[string]int{}, ExcludedCountsByReason: map[string]int{}}
			idx.Groups[key] = g
		}

		if r.ResolvedAtUTC == "" {
			g.ExcludedCountsByReason["missing_resolved_at"]++
			continue
		}
		resolvedAt, err := time.Parse(time.RFC3339, r.ResolvedAtUTC)
		if err != nil {
			g.ExcludedCountsByReason["invalid_resolved_at"]++
			continue
		}
		if resolvedAt.After(asOf) {
			g.ExcludedCountsByReason["future_lookahead"]++
			continue
		}
		if resolvedAt.Before(windowStart) {
			g.ExcludedCountsByReason["outside_window"]++
			continue
		}
		mode := resolvedModeOf(r.ResolutionMode)
		if !modeAllowed(mode, cfg.ResolutionModes) {
			g.ExcludedCountsByReason["mode_"+mode]++
			continue
		}
		if r.ResolvedOutcome == "" {
			g.ExcludedCountsByReason["missing_outcome"]++
			continue
		}
		if r.ResolvedOutcome == "UNKNOWN" && !cfg.IncludeUnknown {
			g.ExcludedCountsByReason["unknown_outcome"]++
			continue
		}

		g.CountsByOutcome[r.ResolvedOutcome]++
		g.HistoryN++
		if !g.HasLastVerified || resolvedAt.After(g.LastVerifiedAt) {
			g.LastVerifiedAt = resolvedAt
			g.HasLastVerified = true
			g.LastResolvedOutcome = r.ResolvedOutcome
		}
	}

	for _, g := range idx.Groups {
		if g.HasLastVerified {
			// Whole days, floored, never negative.
			g.StalenessDays = math.Max(0, math.Floor(asOf.Sub(g.LastVerifiedAt).Hours()/24))
		}
	}
	return idx
}

// correctionsBefore drops corrections recorded after asOf.
func correctionsBefore(corrections []ledger.CorrectionRecord, asOf time.Time) []ledger.CorrectionRecord {
	var out []ledger.CorrectionRecord
	for _, c := range corrections {
		at, err := time.Parse(time.RFC3339, c.CorrectedAtUTC)
		if err != nil || at.After(asOf) {
			continue
		}
		out = append(out, c)
	}
	return out
}
