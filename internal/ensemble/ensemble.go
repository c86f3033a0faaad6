// Package ensemble combines base forecasts from multiple forecasters into a
// single weighted-average forecast per configured ensemble definition.
package ensemble

import (
	"fmt"
	"math"
	"time"

	"github.com/oraclecore/oracle-core/internal/errs"
	"github.com/oraclecore/oracle-core/internal/ids"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/shopspring/decimal"
)

// MissingMemberPolicy controls how a group with an absent/abstained member
// is handled.
type MissingMemberPolicy string

const (
	PolicyRenormalize MissingMemberPolicy = "renormalize"
	PolicySkip        MissingMemberPolicy = "skip"
)

// Member is one weighted contributor to an ensemble.
type Member struct {
	ForecasterID string  `json:"forecaster_id" validate:"required"`
	Weight       float64 `json:"weight" validate:"gte=0"`
}

// Config is one ensemble definition.
type Config struct {
	EnsembleID          string              `json:"ensemble_id" validate:"required"`
	Members             []Member            `json:"members" validate:"required,min=1,dive"`
	MissingMemberPolicy MissingMemberPolicy `json:"missing_member_policy" validate:"required,oneof=renormalize skip"`
	MinMembersRequired  int                 `json:"min_members_required"`
	ApplyToEventTypes   []string            `json:"apply_to_event_types,omitempty"`
	ApplyToEventIDs     []string            `json:"apply_to_event_ids,omitempty"`
	EffectiveFromUTC    string              `json:"effective_from_utc"`
	Version             string              `json:"version,omitempty"`
}

// ValidateConfig enforces weights summing to 1±1e-6, unique member IDs,
// min_members_required <= len(members), a required and parseable
// effective_from_utc, and a well-formed, non-reserved ensemble_id.
// Config-level validation failure is fatal to the command; per-group
// combination failure is not.
func ValidateConfig(cfg Config) error {
	if !ids.IsValidEnsembleID(cfg.EnsembleID) {
		return errs.Ensemble(true, "ensemble_id %q does not match oracle_ensemble_[a-z0-9_]+", cfg.EnsembleID)
	}
	if ids.IsReservedEnsembleID(cfg.EnsembleID) {
		return errs.Ensemble(true, "ensemble_id %q conflicts with reserved forecaster names", cfg.EnsembleID)
	}
	if cfg.MinMembersRequired > len(cfg.Members) {
		return errs.Ensemble(true, "min_members_required %d exceeds %d declared members", cfg.MinMembersRequired, len(cfg.Members))
	}
	seen := make(map[string]bool, len(cfg.Members))
	sum := 0.0
	for _, m := range cfg.Members {
		if seen[m.ForecasterID] {
			return errs.Ensemble(true, "duplicate member forecaster_id %q", m.ForecasterID)
		}
		seen[m.ForecasterID] = true
		sum += m.Weight
	}
	if math.Abs(sum-1) > 1e-6 {
		return errs.Ensemble(true, "member weights sum to %v, want 1 (±1e-6)", sum)
	}
	if cfg.EffectiveFromUTC == "" {
		return errs.Ensemble(true, "ensemble %s: effective_from_utc is required", cfg.EnsembleID)
	}
	if _, err := time.Parse(time.RFC3339, cfg.EffectiveFromUTC); err != nil {
		return errs.Ensemble(true, "effective_from_utc %q is not parseable: %v", cfg.EffectiveFromUTC, err)
	}
	return nil
}

// Group is one (event_id, horizon_days, target_date_utc, run_id) bucket of
// base forecasts eligible for combination.
type Group struct {
	EventID       string
	HorizonDays   int
	TargetDateUTC string
	RunID         string
	ByForecaster  map[string]ledger.ForecastRecord
}

// GroupForecasts buckets base forecast records (excluding any that are
// themselves ensemble outputs) for ensembling.
func GroupForecasts(records []ledger.ForecastRecord) map[string]*Group {
	groups := make(map[string]*Group)
	for _, r := range records {
		if r.EnsembleInputs != nil {
			continue
		}
		key := fmt.Sprintf("%s|%d|%s|%s", r.EventID, r.HorizonDays, r.TargetDateUTC, r.RunID)
		g := groups[key]
		if g == nil {
			g = &Group{EventID: r.EventID, HorizonDays: r.HorizonDays, TargetDateUTC: r.TargetDateUTC, RunID: r.RunID, ByForecaster: map[string]ledger.ForecastRecord{}}
			groups[key] = g
		}
		g.ByForecaster[r.ForecasterID] = r
	}
	return groups
}

// Combine produces an ensembled forecast record for one group, or a warning
// string (group skipped, not fatal) if the group cannot be combined. Under
// the skip policy any missing member skips the group; under renormalize the
// available members' weights are rescaled to sum to 1.
func Combine(cfg Config, g Group, outcomes []string, existingIDs map[string]bool) (rec ledger.ForecastRecord, warning string, skipped bool) {
	var asOfs []time.Time
	var used, missing []string
	var usedWeights []float64
	masses := map[string]float64{}

	for _, m := range cfg.Members {
		fr, ok := g.ByForecaster[m.ForecasterID]
		if !ok || fr.Abstain {
			missing = append(missing, m.ForecasterID)
			continue
		}
		// A member's distribution is renormalized over the UNKNOWN-excluded
		// outcome set; zero remaining mass counts as missing.
		mass := 0.0
		for _, o := range outcomes {
			mass += fr.Probabilities[o]
		}
		if mass <= 1e-6 {
			missing = append(missing, m.ForecasterID)
			continue
		}
		used = append(used, m.ForecasterID)
		usedWeights = append(usedWeights, m.Weight)
		masses[m.ForecasterID] = mass
		if t, err := time.Parse(time.RFC3339, fr.AsOfUTC); err == nil {
			asOfs = append(asOfs, t)
		}
	}

	if len(used) < cfg.MinMembersRequired && cfg.MissingMemberPolicy == PolicySkip {
		return ledger.ForecastRecord{}, fmt.Sprintf("group %s/%d skipped: only %d of %d required members available", g.EventID, g.HorizonDays, len(used), cfg.MinMembersRequired), true
	}
	if len(used) == 0 {
		return ledger.ForecastRecord{}, fmt.Sprintf("group %s/%d skipped: no members available", g.EventID, g.HorizonDays), true
	}

	if !asOfsAgree(asOfs) {
		return ledger.ForecastRecord{}, fmt.Sprintf("group %s/%d skipped: member as_of_utc disagree by more than 60s", g.EventID, g.HorizonDays), true
	}

	policyApplied := "none"
	if len(missing) > 0 {
		switch cfg.MissingMemberPolicy {
		case PolicySkip:
			return ledger.ForecastRecord{}, fmt.Sprintf("group %s/%d skipped: members missing under skip policy: %v", g.EventID, g.HorizonDays, missing), true
		case PolicyRenormalize:
			available := 0.0
			for _, w := range usedWeights {
				available += w
			}
			if available > 0 {
				for i, w := range usedWeights {
					usedWeights[i] = w / available
				}
				policyApplied = "renormalize"
			}
		}
	}

	combined := make(map[string]float64, len(outcomes))
	for _, o := range outcomes {
		sum := 0.0
		for i, id := range used {
			sum += usedWeights[i] * g.ByForecaster[id].Probabilities[o] / masses[id]
		}
		combined[o] = sum
	}
	total := 0.0
	for _, v := range combined {
		total += v
	}
	if math.Abs(total-1) > 1e-6 {
		return ledger.ForecastRecord{}, fmt.Sprintf("group %s/%d: combined distribution sums to %v, want 1", g.EventID, g.HorizonDays, total), true
	}
	for o, v := range combined {
		combined[o] = round6(v)
	}
	for i, w := range usedWeights {
		usedWeights[i] = round6(w)
	}

	sample := g.ByForecaster[used[0]]
	asOf := sample.AsOfUTC
	asOfDate := asOf
	if t, err := time.Parse(time.RFC3339, asOf); err == nil {
		asOfDate = t.UTC().Format("20060102")
	}
	forecastID := fmt.Sprintf("fcst_%s_%s_%s_%s_%dd", asOfDate, g.RunID, cfg.EnsembleID, g.EventID, g.HorizonDays)
	if existingIDs[forecastID] {
		return ledger.ForecastRecord{}, "", true // idempotency: already in ledger
	}

	rec = ledger.ForecastRecord{
		RunID:             g.RunID,
		EventID:           g.EventID,
		DistributionType:  sample.DistributionType,
		HorizonDays:       g.HorizonDays,
		ForecasterID:      cfg.EnsembleID,
		ForecasterVersion: cfg.Version,
		AsOfUTC:           asOf,
		TargetDateUTC:     g.TargetDateUTC,
		DataCutoffUTC:     sample.DataCutoffUTC,
		ManifestID:        sample.ManifestID,
		ArtifactHashes:    sample.ArtifactHashes,
		Seed:              sample.Seed,
		NSims:             sample.NSims,
		ForecastID:        forecastID,
		Probabilities:     combined,
		EnsembleInputs: &ledger.EnsembleInputs{
			ConfigVersion:  cfg.Version,
			MembersUsed:    used,
			WeightsUsed:    usedWeights,
			MembersMissing: missing,
			PolicyApplied:  policyApplied,
		},
	}
	return rec, "", false
}

func round6(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(6).InexactFloat64()
}

func asOfsAgree(ts []time.Time) bool {
	if len(ts) <= 1 {
		return true
	}
	min, max := ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	return max.Sub(min) <= 60*time.Second
}
