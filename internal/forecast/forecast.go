// Package forecast implements the per-event, per-horizon forecast
// generation pipeline: hazard-rate conversion of simulation
// output, derivation-rule evaluation, baseline delegation, and the
// closed-set distribution validation that can drop one forecast without
// aborting the run.
package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oraclecore/oracle-core/internal/baseline"
	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/dotted"
	"github.com/oraclecore/oracle-core/internal/errs"
	"github.com/oraclecore/oracle-core/internal/ids"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/oraclecore/oracle-core/internal/runselect"
)

const (
	hazardHorizonBaseDays = 90

	primaryForecasterID      = "oracle_v1"
	primaryForecasterVersion = "1.0"
)

// Warning is a non-fatal per-forecast problem: the forecast is dropped and
// the run continues.
type Warning struct {
	EventID     string
	HorizonDays int
	Reason      string
}

// BaselineSource supplies the lookahead-safe history index and per-event
// config the generator needs to delegate baseline_climatology/persistence
// forecasts, without the forecast package owning ledger reads itself.
type BaselineSource struct {
	Index     baseline.Index
	ConfigFor func(eventID string) baseline.Config
}

// Generate produces forecast records for every forecastable event in cat,
// for each requested horizon, sourced from run. Diagnostic-only events are
// included as abstained placeholder records so the ledger tracks them even
// though they never score. asOf is the as_of_utc stamped on every record
// (and the baseline lookahead cutoff the caller already built idx against).
func Generate(cat catalog.Catalog, run runselect.Run, horizons []int, asOf time.Time, bsrc BaselineSource) ([]ledger.ForecastRecord, []Warning, error) {
	simResults, err := loadJSONMap(filepath.Join(run.Dir, "simulation_results.json"))
	if err != nil {
		return nil, nil, errs.Forecast("run %s: loading simulation_results.json: %v", run.ID, err)
	}

	manifestID, err := ledger.ComputeManifestID(filepath.Join(run.Dir, "run_manifest.json"))
	if err != nil {
		return nil, nil, errs.Forecast("run %s: computing manifest id: %v", run.ID, err)
	}

	var records []ledger.ForecastRecord
	var warnings []Warning

	for _, ev := range cat.List() {
		if !ev.IsEnabled() {
			continue
		}
		evHorizons := horizons
		if len(ev.HorizonsDays) > 0 {
			evHorizons = intersect(horizons, ev.HorizonsDays)
		}
		for _, h := range evHorizons {
			rec, err := generateOne(ev, run, simResults, manifestID, h, asOf, bsrc)
			if err != nil {
				warnings = append(warnings, Warning{EventID: ev.EventID, HorizonDays: h, Reason: err.Error()})
				continue
			}
			if reasons := validateDistribution(rec.Probabilities, ev, rec.Abstain); len(reasons) > 0 {
				warnings = append(warnings, Warning{EventID: ev.EventID, HorizonDays: h, Reason: strings.Join(reasons, "; ")})
				continue
			}
			records = append(records, rec)
		}
	}

	return records, warnings, nil
}

func generateOne(ev catalog.Event, run runselect.Run, simResults map[string]any, manifestID string, horizonDays int, asOf time.Time, bsrc BaselineSource) (ledger.ForecastRecord, error) {
	targetDate := asOf.AddDate(0, 0, horizonDays)
	rec := ledger.ForecastRecord{
		RunID:             run.ID,
		EventID:           ev.EventID,
		DistributionType:  string(ev.EventType),
		HorizonDays:       horizonDays,
		ForecasterID:      primaryForecasterID,
		ForecasterVersion: primaryForecasterVersion,
		AsOfUTC:           asOf.UTC().Format(time.RFC3339),
		TargetDateUTC:     targetDate.UTC().Format(time.RFC3339),
		DataCutoffUTC:     run.Manifest.DataCutoffUTC,
		ManifestID:        manifestID,
		ArtifactHashes:    run.Manifest.Hashes,
	}
	rec.ForecastID = ids.ForecastID(asOf, run.ID, "", ev.EventID, horizonDays)

	if seed := run.Manifest.Seed; seed != nil {
		rec.Seed = seed
	}
	if n, ok := dotted.Get(simResults, "n_runs"); ok {
		if f, ok := toFloat(n); ok {
			ni := int(f)
			rec.NSims = &ni
		}
	}

	switch ev.ForecastSource.Type {
	case catalog.SourceDiagnosticOnly:
		rec.Probabilities = map[string]float64{"YES": 0.5, "NO": 0.5}
		rec.Abstain = true
		rec.AbstainReason = "diagnostic_only"
		return rec, nil

	case catalog.SourceSimulationOutput:
		val, ok := dotted.Get(simResults, ev.ForecastSource.Field)
		if !ok {
			return rec, fmt.Errorf("field %q missing from simulation result", ev.ForecastSource.Field)
		}
		p90, ok := toFloat(val)
		if !ok {
			return rec, fmt.Errorf("field %q is not numeric", ev.ForecastSource.Field)
		}
		pYes := hazardConvert(p90, horizonDays)
		rec.Probabilities = binaryDistribution(pYes)
		rec.ForecastSourceField = ev.ForecastSource.Field
		rec.RawSimulationValue = val
		rec.HorizonConversionApplied = true

	case catalog.SourceSimulationDerived:
		rec.ForecastSourceField = ev.ForecastSource.Field
		if ev.Derivation == nil {
			return rec, fmt.Errorf("event %q has no compiled derivation", ev.EventID)
		}
		val, ok := dotted.Get(simResults, ev.ForecastSource.Field)
		if !ok {
			// A missing source field yields the neutral base probability
			// rather than dropping the forecast.
			rec.Probabilities = binaryDistribution(0.5)
			break
		}
		rec.RawSimulationValue = val
		rec.Probabilities = binaryDistribution(ev.Derivation.Evaluate(val))

	case catalog.SourceBaselineClimatology, catalog.SourceBaselinePersistence:
		cfg := baseline.DefaultConfig()
		if bsrc.ConfigFor != nil {
			cfg = baseline.DefaultConfig().Merge(bsrc.ConfigFor(ev.EventID))
		}
		outcomes := ev.OutcomesExcludingUnknown()
		var dist baseline.Distribution
		if ev.ForecastSource.Type == catalog.SourceBaselineClimatology {
			dist = baseline.Climatology(bsrc.Index, ev.EventID, horizonDays, outcomes, cfg)
		} else {
			dist = baseline.Persistence(bsrc.Index, ev.EventID, horizonDays, outcomes, cfg)
		}
		rec.Probabilities = dist.Probabilities
		rec.ForecasterID = "oracle_baseline_" + strings.TrimPrefix(string(ev.ForecastSource.Type), "baseline_")
		rec.NSims = nil
		n := dist.HistoryN
		rec.BaselineHistoryN = &n
		rec.BaselineFallback = dist.Fallback
		rec.BaselineLastVerifiedAt = dist.LastVerifiedAtUTC
		staleness := dist.StalenessDays
		rec.BaselineStalenessDays = &staleness
		rec.BaselineConfigVersion = dist.ConfigVersion
		rec.BaselineExcludedCountsByReason = dist.ExcludedCountsByReason
		rec.BaselineResolutionModes = dist.ResolutionModes

	default:
		return rec, fmt.Errorf("unsupported forecast_source.type %q", ev.ForecastSource.Type)
	}

	return rec, nil
}

// binaryDistribution rounds a YES probability to 6 decimals and pairs it
// with its complement.
func binaryDistribution(pYes float64) map[string]float64 {
	y := round6(pYes)
	return map[string]float64{"YES": y, "NO": round6(1 - pYes)}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// hazardConvert applies P_h = 1 - (1 - P_90)^(h/90), clamped to [0,1].
func hazardConvert(p90 float64, horizonDays int) float64 {
	if p90 <= 0 {
		return 0
	}
	if p90 >= 1 {
		return 1
	}
	return 1 - math.Pow(1-p90, float64(horizonDays)/float64(hazardHorizonBaseDays))
}

// validateDistribution enforces the distribution contract: no NaN or
// negative value, nothing above 1, every key in allowed_outcomes (UNKNOWN
// always permitted), every non-UNKNOWN allowed outcome present, and a sum
// of 1 within 1e-6. Abstained placeholder records are exempt: their
// {YES,NO} shape exists for type compatibility only. An empty result means
// valid.
func validateDistribution(probs map[string]float64, ev catalog.Event, abstain bool) []string {
	if abstain {
		return nil
	}
	var reasons []string
	allowed := make(map[string]bool, len(ev.AllowedOutcomes))
	for _, o := range ev.AllowedOutcomes {
		allowed[o] = true
	}
	sum := 0.0
	for k, v := range probs {
		if math.IsNaN(v) {
			reasons = append(reasons, fmt.Sprintf("probability for %q is NaN", k))
			continue
		}
		if v < 0 {
			reasons = append(reasons, fmt.Sprintf("probability for %q is negative", k))
			continue
		}
		if v > 1 {
			reasons = append(reasons, fmt.Sprintf("probability for %q exceeds 1", k))
			continue
		}
		if k != catalog.OutcomeUnknown && !allowed[k] {
			reasons = append(reasons, fmt.Sprintf("distribution key %q not in allowed_outcomes", k))
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		reasons = append(reasons, fmt.Sprintf("distribution sums to %v, want 1 (±1e-6)", sum))
	}
	for _, o := range ev.OutcomesExcludingUnknown() {
		if _, ok := probs[o]; !ok {
			reasons = append(reasons, fmt.Sprintf("missing required outcome %q", o))
		}
	}
	return reasons
}

func intersect(a, b []int) []int {
	set := make(map[int]bool, len(b))
	for _, x := range b {
		set[x] = true
	}
	var out []int
	for _, x := range a {
		if set[x] {
			out = append(out, x)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func loadJSONMap(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
