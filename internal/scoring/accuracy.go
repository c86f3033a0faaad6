package scoring

import (
	"math"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/shopspring/decimal"
)

const logScoreEpsilon = 1e-10

// rawBrier is the unnormalized multinomial Brier term sum_k (p_k - o_k)^2
// over the event's outcomes excluding UNKNOWN. For a binary event this is
// exactly 2*(p_YES-o)^2, twice the conventional binary Brier, because
// p_NO-o_NO mirrors p_YES-o_YES exactly when the two probabilities sum to
// 1. Dividing by 2 therefore recovers the conventional binary Brier AND
// the normalized multinomial Brier for any K simultaneously, which is why
// every caller below works off rawBrier/2 rather than branching by type.
func rawBrier(probs map[string]float64, outcomes []string, resolvedOutcome string) float64 {
	sum := 0.0
	for _, o := range outcomes {
		target := 0.0
		if o == resolvedOutcome {
			target = 1.0
		}
		d := probs[o] - target
		sum += d * d
	}
	return sum
}

// recordLogScore returns log(p_resolved), clamped to [eps, 1-eps]. The
// formula is identical for binary and multinomial: the probability mass a
// forecast assigned to whatever outcome actually resolved.
func recordLogScore(probs map[string]float64, resolvedOutcome string) float64 {
	p := probs[resolvedOutcome]
	if p < logScoreEpsilon {
		p = logScoreEpsilon
	}
	if p > 1-logScoreEpsilon {
		p = 1 - logScoreEpsilon
	}
	return math.Log(p)
}

// computeAccuracy reduces the accuracy-eligible subset of records
// (resolved, non-abstain, non-UNKNOWN) into Brier/log-score/calibration. Brier is reported on each type's native
// scale when the slice is homogeneous (binary [0,1], multinomial raw
// [0,2] plus its normalized [0,1] companion); a mixed-type slice reports
// only the normalized value in both fields so cross-type aggregation stays
// on a comparable scale.
func computeAccuracy(records []record) AccuracyMetrics {
	var eligible []record
	for _, r := range records {
		if r.AccuracyEligible {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return AccuracyMetrics{}
	}

	allBinary, allMulti := true, true
	rawSum := decimal.Zero
	logSum := decimal.Zero
	var calPoints []calibrationPoint

	for _, r := range eligible {
		outcomes := r.Event.OutcomesExcludingUnknown()
		if r.Event.EventType == catalog.EventBinary {
			allMulti = false
		} else {
			allBinary = false
		}

		raw := rawBrier(r.Forecast.Probabilities, outcomes, r.Resolution.ResolvedOutcome)
		rawSum = rawSum.Add(decimal.NewFromFloat(raw))
		logSum = logSum.Add(decimal.NewFromFloat(recordLogScore(r.Forecast.Probabilities, r.Resolution.ResolvedOutcome)))

		if r.Event.EventType == catalog.EventBinary {
			o := 0.0
			if r.Resolution.ResolvedOutcome == "YES" {
				o = 1.0
			}
			calPoints = append(calPoints, calibrationPoint{P: r.Forecast.Probabilities["YES"], Outcome: o})
		} else {
			for _, out := range outcomes {
				o := 0.0
				if out == r.Resolution.ResolvedOutcome {
					o = 1.0
				}
				calPoints = append(calPoints, calibrationPoint{P: r.Forecast.Probabilities[out], Outcome: o})
			}
		}
	}

	n := decimal.NewFromInt(int64(len(eligible)))
	meanRaw := rawSum.Div(n).InexactFloat64()
	meanLog := logSum.Div(n).InexactFloat64()

	m := AccuracyMetrics{N: len(eligible)}
	switch {
	case allBinary:
		b := meanRaw / 2
		m.Brier = &b
	case allMulti:
		raw := meanRaw
		norm := meanRaw / 2
		m.Brier = &raw
		m.NormalizedBrier = &norm
	default:
		norm := meanRaw / 2
		m.Brier = &norm
		m.NormalizedBrier = &norm
	}
	ls := meanLog
	m.LogScore = &ls

	bins, calErr := buildCalibration(calPoints)
	m.Calibration = bins
	m.CalibrationError = calErr
	return m
}
