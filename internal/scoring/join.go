package scoring

import (
	"strings"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ledger"
)

const baselineForecasterPrefix = "oracle_baseline_"

// record is one joined (forecast, event, resolution?) triple, the unit
// every metric in this package is computed over.
type record struct {
	Forecast        ledger.ForecastRecord
	Event           catalog.Event
	Resolution      ledger.ResolutionRecord
	HasResolution   bool
	IsBaseline      bool // forecaster_id starts with oracle_baseline_
	AccuracyEligible bool // resolved, non-abstain, non-UNKNOWN
}

// resolvedMode defaults an empty resolution_mode to external_auto on read,
// preserving compatibility with records written before the field existed.
func resolvedMode(mode string) string {
	if mode == "" {
		return "external_auto"
	}
	return mode
}

func modeIn(mode string, filter []string) bool {
	for _, m := range filter {
		if m == mode {
			return true
		}
	}
	return false
}

// buildRecords joins forecasts to their (correction-merged) resolution, if
// any, applies Filters, and classifies each joined pair for the accuracy /
// penalty / per-mode breakdowns that follow.
func buildRecords(cat catalog.Catalog, forecasts []ledger.ForecastRecord, resolutions []ledger.ResolutionRecord, corrections []ledger.CorrectionRecord, f Filters) []record {
	merged := ledger.MergeCorrections(resolutions, corrections)
	byForecastID := make(map[string]ledger.ResolutionRecord, len(merged))
	for _, r := range merged {
		if r.ForecastID != "" {
			byForecastID[r.ForecastID] = r
		}
	}

	modeFilter := f.ModeFilter
	if len(modeFilter) == 0 {
		modeFilter = DefaultModeFilter()
	}

	var out []record
	for _, fc := range forecasts {
		if f.EventID != "" && fc.EventID != f.EventID {
			continue
		}
		if f.HorizonDays != nil && fc.HorizonDays != *f.HorizonDays {
			continue
		}
		ev, ok := cat.Get(fc.EventID)
		if !ok {
			continue
		}

		rec := record{
			Forecast:   fc,
			Event:      ev,
			IsBaseline: strings.HasPrefix(fc.ForecasterID, baselineForecasterPrefix),
		}

		res, hasRes := byForecastID[fc.ForecastID]
		if hasRes {
			res.ResolutionMode = resolvedMode(res.ResolutionMode)
			if !modeIn(res.ResolutionMode, modeFilter) {
				hasRes = false
			}
		}
		rec.Resolution = res
		rec.HasResolution = hasRes
		rec.AccuracyEligible = hasRes && !fc.Abstain && res.ResolvedOutcome != catalog.OutcomeUnknown
		out = append(out, rec)
	}
	return out
}

func computeCounts(records []record) Counts {
	var c Counts
	c.Total = len(records)
	for _, r := range records {
		if r.Forecast.Abstain {
			c.Abstained++
		}
		if !r.HasResolution {
			c.Unresolved++
			continue
		}
		c.Resolved++
		if r.Resolution.ResolvedOutcome == catalog.OutcomeUnknown {
			c.Unknown++
		}
	}
	return c
}
