package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture catalog: %v", err)
	}
	return path
}

const validBinaryEvent = `{
  "catalog_version": "1.0.0",
  "events": [
    {
      "event_id": "fx_usd_jpy_above_150",
      "event_type": "binary",
      "allowed_outcomes": ["YES", "NO", "UNKNOWN"],
      "horizons_days": [7, 30],
      "forecast_source": {"type": "simulation_output", "field": "fx.usd_jpy.p_above_150"},
      "resolution_source": {"type": "compiled_intel", "path": "fx.usd_jpy.close", "rule": "threshold_gte", "threshold": 150}
    }
  ]
}`

func TestLoad_ValidBinaryEvent(t *testing.T) {
	cat, err := Load(writeCatalog(t, validBinaryEvent))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.List()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cat.List()))
	}
	ev, ok := cat.Get("fx_usd_jpy_above_150")
	if !ok || !ev.Forecastable() {
		t.Fatalf("expected event to be present and forecastable")
	}
}

func TestLoad_RejectsDuplicateEventID(t *testing.T) {
	body := `{"events": [
		{"event_id": "dup", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "diagnostic_only"}, "resolution_source": {"type": "manual"}},
		{"event_id": "dup", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "diagnostic_only"}, "resolution_source": {"type": "manual"}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected duplicate event_id to fail")
	}
}

func TestLoad_RejectsNonBinaryWithoutUnknown(t *testing.T) {
	body := `{"catalog_version": "3.0.0", "events": [
		{"event_id": "cat1", "event_type": "categorical", "allowed_outcomes": ["A","B"],
		 "forecast_source": {"type": "diagnostic_only"}, "resolution_source": {"type": "manual"}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected missing UNKNOWN on non-binary event to fail")
	}
}

func TestLoad_GrandfathersPreV3NonBinaryWithoutUnknown(t *testing.T) {
	body := `{"catalog_version": "2.0.0", "events": [
		{"event_id": "cat1", "event_type": "categorical", "allowed_outcomes": ["A","B"],
		 "forecast_source": {"type": "diagnostic_only"}, "resolution_source": {"type": "manual"}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err != nil {
		t.Fatalf("pre-v3 catalogs are grandfathered, got %v", err)
	}
}

func TestLoad_CompilesDerivationAtLoad(t *testing.T) {
	body := `{"events": [
		{"event_id": "derived1", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "simulation_derived", "field": "econ.stress",
		   "derivation": "if stress >= 0.8 then P(YES)=0.7 else P(YES)=0.2"},
		 "resolution_source": {"type": "manual"}}
	]}`
	cat, err := Load(writeCatalog(t, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev, _ := cat.Get("derived1")
	if ev.Derivation == nil {
		t.Fatalf("expected derivation compiled at load")
	}
	if got := ev.Derivation.Evaluate(0.9); got != 0.7 {
		t.Fatalf("expected then-branch 0.7, got %v", got)
	}
	if got := ev.Derivation.Evaluate(0.1); got != 0.2 {
		t.Fatalf("expected else-branch 0.2, got %v", got)
	}
}

func TestLoad_RejectsMalformedDerivation(t *testing.T) {
	body := `{"events": [
		{"event_id": "derived1", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "simulation_derived", "field": "econ.stress",
		   "derivation": "whenever stress is high say YES"},
		 "resolution_source": {"type": "manual"}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected malformed derivation to fail catalog load")
	}
}

func TestLoad_RequiresPathAndRuleForCompiledIntel(t *testing.T) {
	body := `{"events": [
		{"event_id": "ev1", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "simulation_output", "field": "x"},
		 "resolution_source": {"type": "compiled_intel"}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected compiled_intel without path/rule to fail")
	}
}

func TestLoad_RejectsBadHorizon(t *testing.T) {
	body := `{"events": [
		{"event_id": "ev1", "event_type": "binary", "allowed_outcomes": ["YES","NO"], "horizons_days": [3],
		 "forecast_source": {"type": "diagnostic_only"}, "resolution_source": {"type": "manual"}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected horizon 3 to fail (only 1,7,15,30 allowed)")
	}
}

func TestLoad_BinnedContinuousRequiresMatchingBinSpec(t *testing.T) {
	body := `{"events": [
		{"event_id": "fx_band", "event_type": "binned_continuous",
		 "allowed_outcomes": ["LOW","MID","UNKNOWN"],
		 "forecast_source": {"type": "simulation_output", "field": "fx.band"},
		 "resolution_source": {"type": "compiled_intel", "path": "fx.close", "rule": "bin_map"},
		 "bin_spec": {"bins": [
		   {"bin_id": "LOW", "max": 1.0, "include_max": false},
		   {"bin_id": "HIGH", "min": 1.0, "include_min": true}
		 ]}}
	]}`
	if _, err := Load(writeCatalog(t, body)); err == nil {
		t.Fatalf("expected bin_id/allowed_outcomes mismatch to fail")
	}
}

func TestCatalog_ForecastableExcludesDiagnosticAndDisabled(t *testing.T) {
	body := `{"events": [
		{"event_id": "active", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "simulation_output", "field": "x"},
		 "resolution_source": {"type": "manual"}},
		{"event_id": "diag", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "diagnostic_only"},
		 "resolution_source": {"type": "manual"}},
		{"event_id": "disabled", "event_type": "binary", "allowed_outcomes": ["YES","NO"],
		 "forecast_source": {"type": "simulation_output", "field": "y"},
		 "resolution_source": {"type": "manual"}, "enabled": false}
	]}`
	cat, err := Load(writeCatalog(t, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	forecastable := cat.Forecastable()
	if len(forecastable) != 1 || forecastable[0].EventID != "active" {
		t.Fatalf("expected only 'active' to be forecastable, got %v", forecastable)
	}
	diag := cat.Diagnostic()
	if len(diag) != 1 || diag[0].EventID != "diag" {
		t.Fatalf("expected only 'diag' in diagnostic set, got %v", diag)
	}
}
