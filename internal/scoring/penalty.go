package scoring

import (
	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/shopspring/decimal"
)

// effectivePerRecord scores one resolved record under the penalty
// convention: an abstained forecast is treated as predicting the
// uniform distribution over the event's outcomes; an UNKNOWN resolution is
// scored against a neutral target (uniform for multinomial, 0.5 for
// binary, which is the same uniform construction with K=2). Every other
// resolved record scores exactly as computeAccuracy would. Returns the
// normalized ([0,1]) Brier so abstain/UNKNOWN/known cases stay comparable.
func effectivePerRecord(r record) float64 {
	outcomes := r.Event.OutcomesExcludingUnknown()
	k := float64(len(outcomes))

	probs := r.Forecast.Probabilities
	if r.Forecast.Abstain {
		probs = make(map[string]float64, len(outcomes))
		for _, o := range outcomes {
			probs[o] = 1 / k
		}
	}

	sum := 0.0
	if r.Resolution.ResolvedOutcome == catalog.OutcomeUnknown {
		for _, o := range outcomes {
			d := probs[o] - 1/k
			sum += d * d
		}
	} else {
		sum = rawBrier(probs, outcomes, r.Resolution.ResolvedOutcome)
	}
	return sum / 2
}

// computePenalty folds abstained/UNKNOWN cases back into an "effective"
// Brier over every resolved record, and reports its delta from the primary
// accuracy Brier over accuracy-eligible records only
// (unknown_abstain_penalty = effective_brier - primary_brier).
func computePenalty(records []record) Penalty {
	var resolved, eligible []record
	for _, r := range records {
		if !r.HasResolution {
			continue
		}
		resolved = append(resolved, r)
		if r.AccuracyEligible {
			eligible = append(eligible, r)
		}
	}

	var p Penalty
	if len(eligible) > 0 {
		sum := decimal.Zero
		for _, r := range eligible {
			sum = sum.Add(decimal.NewFromFloat(effectivePerRecord(r)))
		}
		v := sum.Div(decimal.NewFromInt(int64(len(eligible)))).InexactFloat64()
		p.PrimaryBrier = &v
	}
	if len(resolved) > 0 {
		sum := decimal.Zero
		for _, r := range resolved {
			sum = sum.Add(decimal.NewFromFloat(effectivePerRecord(r)))
		}
		v := sum.Div(decimal.NewFromInt(int64(len(resolved)))).InexactFloat64()
		p.EffectiveBrier = &v
	}
	if p.PrimaryBrier != nil && p.EffectiveBrier != nil {
		d := *p.EffectiveBrier - *p.PrimaryBrier
		p.Delta = &d
	}
	return p
}
