// Package scoring computes Brier, log-score, calibration, skill-vs-baseline
// and per-slice aggregations from ledger snapshots. Nothing is
// written back: Compute is a pure read-then-reduce over forecasts,
// resolutions and corrections already on disk, and it shares the exact
// lookahead-safe history-index builder internal/baseline uses so the two
// baseline computations never drift apart.
package scoring

// AccuracyMetrics is the reusable bundle of Brier/log/calibration numbers
// shared by the primary, per-mode, per-forecaster, per-event-type and
// per-event slices. A nil pointer means insufficient data for this metric;
// it is emitted as null in the output.
type AccuracyMetrics struct {
	N                int              `json:"n"`
	Brier            *float64         `json:"brier"`
	NormalizedBrier  *float64         `json:"normalized_brier,omitempty"`
	LogScore         *float64         `json:"log_score"`
	CalibrationError *float64         `json:"calibration_error"`
	Calibration      []CalibrationBin `json:"calibration,omitempty"`
}

// CalibrationBin is one of the 10 equal-width bins over [0,1]: every bin
// is half-open [lo,hi) except the last, which is closed on the right so
// p == 1.0 lands in it.
type CalibrationBin struct {
	Low               float64 `json:"low"`
	High              float64 `json:"high"`
	Count             int     `json:"count"`
	MeanForecast      float64 `json:"mean_forecast"`
	ObservedFrequency float64 `json:"observed_frequency"`
}

// Counts is the top-level coverage tally.
type Counts struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Abstained  int `json:"abstained"`
	Unknown    int `json:"unknown"`
}

// Penalty holds the effective-scoring comparison for
// abstained/UNKNOWN cases: primary accuracy Brier vs. effective Brier
// (which folds penalized abstain/UNKNOWN cases back in), and the delta
// between them (scenario F's unknown_abstain_penalty).
type Penalty struct {
	PrimaryBrier   *float64 `json:"primary_brier"`
	EffectiveBrier *float64 `json:"effective_brier"`
	Delta          *float64 `json:"delta"`
}

// SkillBaseline is one baseline's comparison metrics: its own accuracy,
// the history it drew on, whether it fell back to uniform, and the
// resulting skill score, 1 - Brier_model/Brier_baseline.
type SkillBaseline struct {
	Brier     *float64 `json:"brier"`
	HistoryN  int      `json:"history_n"`
	Fallback  string   `json:"fallback,omitempty"`
	Skill     *float64 `json:"skill"`
}

// EventScores is one event's accuracy metrics plus its per-horizon slice.
type EventScores struct {
	AccuracyMetrics
	ByHorizon map[int]AccuracyMetrics `json:"by_horizon"`
}

// Filters narrows Compute's input set: optional event_id, horizon_days,
// and a resolution-mode filter.
type Filters struct {
	EventID     string
	HorizonDays *int
	ModeFilter  []string // default {external_auto, external_manual}
}

// DefaultModeFilter is the mode_filter applied when the caller sets none.
func DefaultModeFilter() []string {
	return []string{"external_auto", "external_manual"}
}

// Report is the single object a scoring run produces.
type Report struct {
	Counts               Counts                     `json:"counts"`
	CoverageRatio        *float64                   `json:"coverage_ratio"`
	Primary              AccuracyMetrics            `json:"primary"`
	Penalty              Penalty                    `json:"penalty"`
	CoreScores           AccuracyMetrics            `json:"core_scores"`
	ClaimsInferredScores AccuracyMetrics            `json:"claims_inferred_scores"`
	CombinedScores       AccuracyMetrics            `json:"combined_scores"`
	PerForecaster        map[string]AccuracyMetrics `json:"per_forecaster"`
	PerEventType         map[string]AccuracyMetrics `json:"per_event_type"`
	PerEvent             map[string]EventScores     `json:"per_event"`
	Baselines            Baselines                  `json:"baselines"`
	Warnings             []string                   `json:"warnings"`
}

// Baselines bundles the two skill-comparison baselines.
type Baselines struct {
	Climatology SkillBaseline `json:"climatology"`
	Persistence SkillBaseline `json:"persistence"`
}
