// Package resolver closes out pending forecasts: for each pending
// forecast whose target date has passed, selects a resolution run, extracts
// a value, applies the event's declared rule, and returns a resolution
// record for the caller to append, writing an evidence snapshot for
// non-UNKNOWN external_auto outcomes along the way.
package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oraclecore/oracle-core/internal/bins"
	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/dotted"
	"github.com/oraclecore/oracle-core/internal/errs"
	"github.com/oraclecore/oracle-core/internal/evidence"
	"github.com/oraclecore/oracle-core/internal/ids"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/oraclecore/oracle-core/internal/runselect"
)

const (
	ModeExternalAuto   = "external_auto"
	ModeClaimsInferred = "claims_inferred"
)

// Outcome is the resolver's result for a single pending forecast. Warning
// is non-empty when the forecast could not yet be resolved (no run
// available); the caller should leave it pending and try later.
type Outcome struct {
	Resolution ledger.ResolutionRecord
	Warning    string
	Skip       bool
}

// ResolvePending resolves every forecast in pending whose TargetDateUTC has
// passed as of now, using runsDir to locate resolution runs. An event may
// override maxLagDays with its own max_resolution_lag_days.
func ResolvePending(cat catalog.Catalog, pending []ledger.ForecastRecord, runsDir string, maxLagDays int, now time.Time, writeEvidence func(resolutionID string, data map[string]any) (refs, hashes []string)) ([]Outcome, error) {
	var outcomes []Outcome
	for _, f := range pending {
		target, err := time.Parse(time.RFC3339, f.TargetDateUTC)
		if err != nil {
			outcomes = append(outcomes, Outcome{Warning: fmt.Sprintf("forecast %s: unparseable target_date_utc", f.ForecastID), Skip: true})
			continue
		}
		if target.After(now) {
			continue
		}

		ev, ok := cat.Get(f.EventID)
		if !ok {
			outcomes = append(outcomes, Outcome{Warning: fmt.Sprintf("forecast %s: unknown event %q", f.ForecastID, f.EventID), Skip: true})
			continue
		}
		if ev.RequiresManualResolution {
			continue // stays in the manual queue
		}

		lag := maxLagDays
		if ev.MaxResolutionLagDays != nil {
			lag = *ev.MaxResolutionLagDays
		}
		run, ok, err := runselect.SelectForResolution(runsDir, runselect.ModeObserve, target, lag, false)
		if err != nil {
			return nil, errs.Wrap(errs.KindResolution, false, fmt.Sprintf("selecting resolution run for %s", f.ForecastID), err)
		}
		if !ok {
			outcomes = append(outcomes, Outcome{Warning: fmt.Sprintf("forecast %s: no resolution run available yet", f.ForecastID), Skip: true})
			continue
		}

		out, err := resolveOne(ev, f, run, target, now, writeEvidence)
		if err != nil {
			outcomes = append(outcomes, Outcome{Warning: err.Error(), Skip: true})
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func resolveOne(ev catalog.Event, f ledger.ForecastRecord, run runselect.Run, target, now time.Time, writeEvidence func(string, map[string]any) ([]string, []string)) (Outcome, error) {
	mode := ModeClaimsInferred
	if ev.AutoResolve && ev.ResolutionSource.Type == catalog.ResolutionCompiledIntel {
		mode = ModeExternalAuto
	}

	compiled, compiledFields, err := loadCompiledIntel(filepath.Join(run.Dir, "compiled_intel.json"))
	if err != nil {
		return Outcome{}, errs.Resolution("forecast %s: loading compiled_intel.json: %v", f.ForecastID, err)
	}

	resolutionID := ids.ResolutionID(target, f.EventID, f.HorizonDays)
	ruleApplied := ruleAppliedString(ev.ResolutionSource)

	var value any
	var ok bool
	var unknownReason string
	if v, hit := compiledFields[ev.ResolutionSource.Path]; hit {
		value, ok = v, true
	} else if v, hit := dotted.Get(compiled, ev.ResolutionSource.Path); hit {
		value, ok = v, true
	}
	if !ok {
		if ev.ResolutionSource.Fallback == "claims_based" {
			mode = ModeClaimsInferred
			unknownReason = "requires_claims_resolution"
		} else {
			unknownReason = "missing_path"
		}
	}

	rec := ledger.ResolutionRecord{
		ResolutionID:   resolutionID,
		ForecastID:     f.ForecastID,
		EventID:        f.EventID,
		HorizonDays:    f.HorizonDays,
		TargetDateUTC:  f.TargetDateUTC,
		ResolutionMode: mode,
		ResolvedAtUTC:  now.UTC().Format(time.RFC3339),
		RunID:          run.ID,
		ResolvedValue:  value,
		ReasonCode:     ruleApplied,
	}
	if rec.ReasonCode == "" {
		rec.ReasonCode = "unknown"
	}

	if !ok {
		rec.ResolvedOutcome = catalog.OutcomeUnknown
		rec.UnknownReason = unknownReason
		return Outcome{Resolution: rec}, nil
	}

	outcome, ruleErr := applyRule(ev, value)
	if ruleErr != "" {
		rec.ResolvedOutcome = catalog.OutcomeUnknown
		rec.UnknownReason = ruleErr
	} else {
		rec.ResolvedOutcome = outcome
	}

	if !ev.HasOutcome(rec.ResolvedOutcome) {
		return Outcome{}, errs.Resolution("forecast %s: resolved outcome %q not in allowed_outcomes", f.ForecastID, rec.ResolvedOutcome)
	}

	if mode == ModeExternalAuto && rec.ResolvedOutcome != catalog.OutcomeUnknown && writeEvidence != nil {
		snapshot := map[string]any{
			"run_id":          run.ID,
			"data_cutoff_utc": run.Manifest.DataCutoffUTC,
			"path_used":       ev.ResolutionSource.Path,
			"extracted_value": value,
			"rule_applied":    ruleApplied,
		}
		refs, hashes := writeEvidence(resolutionID, snapshot)
		rec.EvidenceRefs = refs
		rec.EvidenceHashes = hashes
	}

	return Outcome{Resolution: rec}, nil
}

// ruleAppliedString renders "<rule>:<param>" for the resolution record and
// evidence snapshot, handling a zero threshold correctly.
func ruleAppliedString(rs catalog.ResolutionSource) string {
	if rs.Rule == "" {
		return ""
	}
	var param any
	switch {
	case rs.Threshold != nil:
		param = *rs.Threshold
	case rs.Value != "":
		param = rs.Value
	case len(rs.Values) > 0:
		param = rs.Values
	}
	return fmt.Sprintf("%s:%v", rs.Rule, param)
}

// applyRule applies the event's declared resolution rule to value, returning
// (outcome, "") on success or (_, reasonCode) when the outcome must be
// UNKNOWN.
func applyRule(ev catalog.Event, value any) (outcome string, unknownReason string) {
	if value == nil {
		return "", "missing_value"
	}
	rs := ev.ResolutionSource

	switch rs.Rule {
	case catalog.RuleThresholdGTE, catalog.RuleThresholdGT, catalog.RuleThresholdLTE, catalog.RuleThresholdLT:
		v, ok := toFloat(value)
		if !ok || rs.Threshold == nil {
			return "", fmt.Sprintf("rule_error:non_numeric_value_for_%s", rs.Rule)
		}
		yes := false
		switch rs.Rule {
		case catalog.RuleThresholdGTE:
			yes = v >= *rs.Threshold
		case catalog.RuleThresholdGT:
			yes = v > *rs.Threshold
		case catalog.RuleThresholdLTE:
			yes = v <= *rs.Threshold
		case catalog.RuleThresholdLT:
			yes = v < *rs.Threshold
		}
		if yes {
			return "YES", ""
		}
		return "NO", ""

	case catalog.RuleEnumEquals:
		if strings.EqualFold(asString(value), rs.Value) {
			return "YES", ""
		}
		return "NO", ""

	case catalog.RuleEnumIn:
		s := asString(value)
		for _, t := range rs.Values {
			if strings.EqualFold(s, t) {
				return "YES", ""
			}
		}
		return "NO", ""

	case catalog.RuleEnumMatch:
		// The raw value is matched case-insensitively against the event's
		// allowed outcomes; the canonical outcome spelling is returned.
		s := asString(value)
		for _, o := range ev.AllowedOutcomes {
			if strings.EqualFold(s, o) {
				return o, ""
			}
		}
		return "", "value_not_in_outcomes"

	case catalog.RuleBinMap:
		if ev.BinSpec == nil {
			return "", "missing_bin_spec"
		}
		binID, reason := bins.ValueToBin(value, *ev.BinSpec)
		if reason != "" {
			return "", reason
		}
		return binID, ""

	default:
		return "", fmt.Sprintf("unsupported_rule:%s", rs.Rule)
	}
}

// asString coerces any compiled-intel value to its string form for enum
// comparison, the way numeric enum codes are stored by some producers.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func loadCompiledIntel(path string) (nested map[string]any, flat map[string]any, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc struct {
		CompiledFields map[string]any `json:"compiled_fields"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, err
	}
	var nestedDoc map[string]any
	if err := json.Unmarshal(raw, &nestedDoc); err != nil {
		return nil, nil, err
	}
	return nestedDoc, doc.CompiledFields, nil
}

// WriteEvidenceFunc adapts evidence.WriteSnapshot to ResolvePending's
// writeEvidence callback shape, tolerating (logging-only) write failures:
// a failed snapshot never blocks the resolution itself.
func WriteEvidenceFunc(dir string, now time.Time, onError func(error)) func(string, map[string]any) ([]string, []string) {
	return func(resolutionID string, data map[string]any) ([]string, []string) {
		path, hash, err := evidence.WriteSnapshot(resolutionID, data, dir, now)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return nil, nil
		}
		return []string{path}, []string{hash}
	}
}
