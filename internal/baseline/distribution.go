package baseline

import (
	"math"

	"github.com/shopspring/decimal"
)

// Distribution is a baseline forecast over an event's outcomes, with the
// provenance metadata carried on every baseline forecast.
type Distribution struct {
	Probabilities          map[string]float64
	HistoryN               int
	Fallback               string // "" | "uniform"
	LastVerifiedAtUTC      string
	StalenessDays          float64
	ConfigVersion          string
	ExcludedCountsByReason map[string]int
	ResolutionModes        []string
}

// Climatology returns the Dirichlet-smoothed historical frequency for
// (eventID, horizonDays) over outcomes, falling back to uniform when
// history_n < min_history_n.
func Climatology(idx Index, eventID string, horizonDays int, outcomes []string, cfg Config) Distribution {
	key := GroupKey{EventID: eventID, HorizonDays: horizonDays}
	g := idx.Groups[key]

	dist := Distribution{
		ConfigVersion:   cfg.ConfigVersion,
		ResolutionModes: cfg.ResolutionModes,
	}
	if g != nil {
		dist.HistoryN = g.HistoryN
		dist.ExcludedCountsByReason = g.ExcludedCountsByReason
		if g.HasLastVerified {
			dist.LastVerifiedAtUTC = g.LastVerifiedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			dist.StalenessDays = g.StalenessDays
		}
	}

	if g == nil || g.HistoryN < cfg.MinHistoryN {
		dist.Fallback = "uniform"
		dist.Probabilities = uniform(outcomes)
		return dist
	}

	dist.Probabilities = dirichletSmooth(g.CountsByOutcome, outcomes, cfg.SmoothingAlpha, g.HistoryN)
	return dist
}

// Persistence returns the last-outcome-as-prediction distribution, decayed
// toward climatology by staleness, falling back fully to climatology (which
// may itself fall back to uniform) when there is no last resolved outcome.
func Persistence(idx Index, eventID string, horizonDays int, outcomes []string, cfg Config) Distribution {
	clim := Climatology(idx, eventID, horizonDays, outcomes, cfg)

	key := GroupKey{EventID: eventID, HorizonDays: horizonDays}
	g := idx.Groups[key]
	if g == nil || !g.HasLastVerified || g.HistoryN < cfg.MinHistoryN {
		return clim
	}

	pStick := stickiness(cfg, g.StalenessDays)
	if pStick <= 0 {
		return clim
	}

	blended := make(map[string]float64, len(outcomes))
	for _, o := range outcomes {
		oneHot := 0.0
		if o == g.LastResolvedOutcome {
			oneHot = 1.0
		}
		blended[o] = pStick*oneHot + (1-pStick)*clim.Probabilities[o]
	}

	dist := clim
	dist.Probabilities = roundAndRepair(blended, outcomes)
	return dist
}

// stickiness computes the effective persistence weight at the given
// staleness under the configured decay curve.
func stickiness(cfg Config, stalenessDays float64) float64 {
	if cfg.MaxStalenessDays <= 0 || stalenessDays >= cfg.MaxStalenessDays {
		return 0
	}
	base := cfg.PersistenceStickiness
	if stalenessDays <= 0 {
		return base
	}
	switch cfg.StalenessDecay {
	case "exponential":
		// Half-life at max_staleness_days/2.
		half := cfg.MaxStalenessDays / 2
		if half <= 0 {
			return 0
		}
		return base * math.Pow(0.5, stalenessDays/half)
	default: // linear
		return base * math.Max(0, math.Min(1, 1-stalenessDays/cfg.MaxStalenessDays))
	}
}

func uniform(outcomes []string) map[string]float64 {
	out := make(map[string]float64, len(outcomes))
	if len(outcomes) == 0 {
		return out
	}
	p := 1.0 / float64(len(outcomes))
	for _, o := range outcomes {
		out[o] = p
	}
	return roundAndRepair(out, outcomes)
}

// dirichletSmooth applies p_k = (count_k + alpha) / (N + K*alpha),
// normalizes, then rounds to 6 decimals and repairs residual rounding onto
// the first outcome so the sum is exactly 1.
func dirichletSmooth(counts map[string]int, outcomes []string, alpha float64, n int) map[string]float64 {
	k := float64(len(outcomes))
	denom := float64(n) + k*alpha
	raw := make(map[string]float64, len(outcomes))
	total := 0.0
	for _, o := range outcomes {
		raw[o] = (float64(counts[o]) + alpha) / denom
		total += raw[o]
	}
	if total > 0 {
		for o, p := range raw {
			raw[o] = p / total
		}
	}
	return roundAndRepair(raw, outcomes)
}

// roundAndRepair rounds every probability to 6 decimal places with
// round-half-even via decimal.Decimal (avoiding float64 drift across
// repeated invocations against the same inputs), then, if the rounded sum
// is off by more than 1e-9, applies the whole residual to the first
// outcome in declaration order. The serialized 6-decimal form is a
// data-carried contract, so the algorithm must stay byte-stable.
func roundAndRepair(raw map[string]float64, outcomes []string) map[string]float64 {
	out := make(map[string]float64, len(outcomes))
	sum := decimal.Zero
	for _, o := range outcomes {
		d := decimal.NewFromFloat(raw[o]).RoundBank(6)
		out[o] = d.InexactFloat64()
		sum = sum.Add(d)
	}
	residual := decimal.NewFromInt(1).Sub(sum)
	if residual.Abs().Cmp(decimal.New(1, -9)) > 0 && len(outcomes) > 0 {
		first := outcomes[0]
		fixed := decimal.NewFromFloat(out[first]).Add(residual).RoundBank(6)
		out[first] = fixed.InexactFloat64()
	}
	return out
}
