package scoring

import (
	"fmt"
	"time"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ledger"
)

// allModeFilter is the superset of resolution modes the per-mode breakdowns
// need, independent of whatever mode_filter the caller narrowed Filters to
// for the primary/counts view.
var allModeFilter = []string{"external_auto", "external_manual", "claims_inferred"}

func primaryOnly(records []record) []record {
	var out []record
	for _, r := range records {
		if !r.IsBaseline {
			out = append(out, r)
		}
	}
	return out
}

func filterByMode(records []record, modes []string) []record {
	set := make(map[string]bool, len(modes))
	for _, m := range modes {
		set[m] = true
	}
	var out []record
	for _, r := range records {
		if r.HasResolution && set[r.Resolution.ResolutionMode] {
			out = append(out, r)
		}
	}
	return out
}

// Compute reduces the ledger's forecasts/resolutions/corrections into the
// single scoring object. asOf is the instant the scoring
// run was invoked at; it is the no-lookahead cutoff for both the
// climatology baseline's history index and (transitively) for any caller
// computing Filters relative to "now".
func Compute(cat catalog.Catalog, forecasts []ledger.ForecastRecord, resolutions []ledger.ResolutionRecord, corrections []ledger.CorrectionRecord, f Filters, asOf time.Time) Report {
	scoped := buildRecords(cat, forecasts, resolutions, corrections, f)
	superset := buildRecords(cat, forecasts, resolutions, corrections, Filters{EventID: f.EventID, HorizonDays: f.HorizonDays, ModeFilter: allModeFilter})

	var report Report
	report.Counts = computeCounts(scoped)
	if report.Counts.Total > 0 {
		ratio := float64(report.Counts.Resolved) / float64(report.Counts.Total)
		report.CoverageRatio = &ratio
	}

	primaryScoped := primaryOnly(scoped)
	report.Primary = computeAccuracy(primaryScoped)
	report.Penalty = computePenalty(primaryScoped)

	primarySuperset := primaryOnly(superset)
	report.CoreScores = computeAccuracy(filterByMode(primarySuperset, []string{"external_auto", "external_manual"}))
	report.ClaimsInferredScores = computeAccuracy(filterByMode(primarySuperset, []string{"claims_inferred"}))
	report.CombinedScores = computeAccuracy(primarySuperset)

	report.PerForecaster = perForecasterScores(superset)
	report.PerEventType = perEventTypeScores(scoped)
	report.PerEvent = perEventScores(scoped)

	asOfModeFilter := f.ModeFilter
	if len(asOfModeFilter) == 0 {
		asOfModeFilter = DefaultModeFilter()
	}
	idx := buildBaselineIndex(resolutions, corrections, asOf, asOfModeFilter)
	var eligiblePrimary []record
	for _, r := range primaryScoped {
		if r.AccuracyEligible {
			eligiblePrimary = append(eligiblePrimary, r)
		}
	}
	report.Baselines.Climatology = computeClimatologyBaseline(eligiblePrimary, idx, nil, report.Primary.effectiveBrier())
	report.Baselines.Persistence = computePersistenceBaseline(eligiblePrimary, report.Primary.effectiveBrier())

	report.Warnings = collectWarnings(report)
	return report
}

// effectiveBrier returns whichever of Brier/NormalizedBrier is on the
// normalized [0,1] scale, for use as the skill comparison's model term.
func (m AccuracyMetrics) effectiveBrier() *float64 {
	if m.NormalizedBrier != nil {
		return m.NormalizedBrier
	}
	return m.Brier
}

func perForecasterScores(records []record) map[string]AccuracyMetrics {
	byForecaster := make(map[string][]record)
	for _, r := range records {
		byForecaster[r.Forecast.ForecasterID] = append(byForecaster[r.Forecast.ForecasterID], r)
	}
	out := make(map[string]AccuracyMetrics, len(byForecaster))
	for id, recs := range byForecaster {
		out[id] = computeAccuracy(recs)
	}
	return out
}

func perEventTypeScores(records []record) map[string]AccuracyMetrics {
	byType := make(map[string][]record)
	for _, r := range records {
		byType[string(r.Event.EventType)] = append(byType[string(r.Event.EventType)], r)
	}
	out := make(map[string]AccuracyMetrics, len(byType))
	for t, recs := range byType {
		out[t] = computeAccuracy(recs)
	}
	return out
}

func perEventScores(records []record) map[string]EventScores {
	byEvent := make(map[string][]record)
	for _, r := range records {
		byEvent[r.Event.EventID] = append(byEvent[r.Event.EventID], r)
	}
	out := make(map[string]EventScores, len(byEvent))
	for eventID, recs := range byEvent {
		byHorizon := make(map[int][]record)
		for _, r := range recs {
			byHorizon[r.Forecast.HorizonDays] = append(byHorizon[r.Forecast.HorizonDays], r)
		}
		horizonScores := make(map[int]AccuracyMetrics, len(byHorizon))
		for h, hr := range byHorizon {
			horizonScores[h] = computeAccuracy(hr)
		}
		out[eventID] = EventScores{AccuracyMetrics: computeAccuracy(recs), ByHorizon: horizonScores}
	}
	return out
}

// collectWarnings adds one warning for each skill baseline that used a
// uniform fallback for at least one record (the events involved are not
// named), plus one warning per event with no accuracy-eligible resolutions.
func collectWarnings(r Report) []string {
	var warnings []string
	if r.Baselines.Climatology.Fallback == "uniform" {
		warnings = append(warnings, "climatology baseline used uniform fallback")
	}
	if r.Baselines.Persistence.Fallback == "uniform" {
		warnings = append(warnings, "persistence baseline used uniform fallback for at least one group")
	}
	for eventID, es := range r.PerEvent {
		if es.N == 0 {
			warnings = append(warnings, fmt.Sprintf("event %s: no accuracy-eligible resolutions in scope", eventID))
		}
	}
	return warnings
}
