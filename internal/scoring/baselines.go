package scoring

import (
	"sort"
	"time"

	"github.com/oraclecore/oracle-core/internal/baseline"
	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/shopspring/decimal"
)

// skill computes 1 - modelBrier/baselineBrier, special-casing a zero
// baseline.
func skill(modelBrier, baselineBrier float64) *float64 {
	var v float64
	if baselineBrier == 0 {
		if modelBrier == 0 {
			v = 0
		} else {
			v = -1 // model strictly worse than a perfect baseline
		}
	} else {
		v = 1 - modelBrier/baselineBrier
	}
	return &v
}

// computeClimatologyBaseline evaluates, for every accuracy-eligible primary
// record, the Dirichlet-smoothed historical frequency for that record's
// (event_id, horizon_days), built from the exact same history-index
// builder internal/baseline uses for forecast generation, so forecast-time
// and score-time climatology never drift apart, against the real
// outcome, and reports the pooled Brier plus
// skill relative to the primary accuracy Brier.
func computeClimatologyBaseline(eligible []record, idx baseline.Index, cfgFor func(eventID string) baseline.Config, primaryBrier *float64) SkillBaseline {
	if len(eligible) == 0 || primaryBrier == nil {
		return SkillBaseline{}
	}

	sum := decimal.Zero
	historyN := 0
	fallback := ""
	for _, r := range eligible {
		outcomes := r.Event.OutcomesExcludingUnknown()
		cfg := baseline.DefaultConfig()
		if cfgFor != nil {
			cfg = baseline.DefaultConfig().Merge(cfgFor(r.Event.EventID))
		}
		dist := baseline.Climatology(idx, r.Event.EventID, r.Forecast.HorizonDays, outcomes, cfg)
		if dist.HistoryN > historyN {
			historyN = dist.HistoryN
		}
		if dist.Fallback != "" {
			fallback = dist.Fallback
		}
		sum = sum.Add(decimal.NewFromFloat(rawBrier(dist.Probabilities, outcomes, r.Resolution.ResolvedOutcome) / 2))
	}
	brier := sum.Div(decimal.NewFromInt(int64(len(eligible)))).InexactFloat64()
	return SkillBaseline{Brier: &brier, HistoryN: historyN, Fallback: fallback, Skill: skill(*primaryBrier, brier)}
}

// computePersistenceBaseline implements the scorer's own persistence
// baseline (distinct from internal/baseline's stickiness-decayed version,
// which is a forecast-generation concern): forecasts within each
// (event_id, horizon_days) group are processed in target_date_utc
// ascending order; the prediction is a one-hot on the last known outcome,
// uniform (flagged as fallback) until the first known outcome is seen.
func computePersistenceBaseline(eligible []record, primaryBrier *float64) SkillBaseline {
	if len(eligible) == 0 || primaryBrier == nil {
		return SkillBaseline{}
	}

	type groupKey struct {
		EventID     string
		HorizonDays int
	}
	groups := make(map[groupKey][]record)
	for _, r := range eligible {
		k := groupKey{r.Event.EventID, r.Forecast.HorizonDays}
		groups[k] = append(groups[k], r)
	}

	sum := decimal.Zero
	n := 0
	sawFallback := false
	for _, grp := range groups {
		sort.Slice(grp, func(i, j int) bool { return grp[i].Forecast.TargetDateUTC < grp[j].Forecast.TargetDateUTC })

		lastOutcome := ""
		hasLast := false
		for _, r := range grp {
			outcomes := r.Event.OutcomesExcludingUnknown()
			var pred map[string]float64
			if !hasLast {
				sawFallback = true
				pred = make(map[string]float64, len(outcomes))
				p := 1 / float64(len(outcomes))
				for _, o := range outcomes {
					pred[o] = p
				}
			} else {
				pred = make(map[string]float64, len(outcomes))
				for _, o := range outcomes {
					if o == lastOutcome {
						pred[o] = 1
					}
				}
			}
			sum = sum.Add(decimal.NewFromFloat(rawBrier(pred, outcomes, r.Resolution.ResolvedOutcome) / 2))
			n++

			if r.Resolution.ResolvedOutcome != catalog.OutcomeUnknown {
				lastOutcome = r.Resolution.ResolvedOutcome
				hasLast = true
			}
		}
	}
	if n == 0 {
		return SkillBaseline{}
	}
	brier := sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	fallback := ""
	if sawFallback {
		fallback = "uniform"
	}
	return SkillBaseline{Brier: &brier, HistoryN: n, Fallback: fallback, Skill: skill(*primaryBrier, brier)}
}

// buildBaselineIndex is a thin adapter so Compute can hand the scorer's own
// ledger reads to baseline.BuildHistoryIndex without the scoring package
// owning ledger I/O directly.
func buildBaselineIndex(resolutions []ledger.ResolutionRecord, corrections []ledger.CorrectionRecord, asOf time.Time, modeFilter []string) baseline.Index {
	cfg := baseline.DefaultConfig()
	cfg.ResolutionModes = modeFilter
	return baseline.BuildHistoryIndex(resolutions, corrections, asOf, cfg)
}
