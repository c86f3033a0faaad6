package forecast

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oraclecore/oracle-core/internal/baseline"
	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/runselect"
)

func writeRunDir(t *testing.T, simResults map[string]any) runselect.Run {
	t.Helper()
	dir := t.TempDir()
	raw, err := json.Marshal(simResults)
	if err != nil {
		t.Fatalf("marshal sim results: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "simulation_results.json"), raw, 0o644); err != nil {
		t.Fatalf("writing sim results: %v", err)
	}
	manifest := `{"data_cutoff_utc": "2026-01-01T00:00:00Z", "run_reliable": true, "hashes": {"a": "b"}}`
	if err := os.WriteFile(filepath.Join(dir, "run_manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return runselect.Run{ID: "20260101", Dir: dir, ManifestLoaded: true}
}

func simEvent(t *testing.T) catalog.Event {
	t.Helper()
	return catalog.Event{
		EventID:         "econ.rial_ge_1_2m",
		EventType:       catalog.EventBinary,
		AllowedOutcomes: []string{"YES", "NO"},
		ForecastSource:  catalog.ForecastSource{Type: catalog.SourceSimulationOutput, Field: "rial_collapse_rate_90d"},
		ResolutionSource: catalog.ResolutionSource{Type: catalog.ResolutionCompiledIntel, Path: "econ.x", Rule: catalog.RuleThresholdGTE},
	}
}

func loadSingleEventCatalog(t *testing.T, ev catalog.Event) catalog.Catalog {
	t.Helper()
	doc := map[string]any{"events": []catalog.Event{ev}}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return cat
}

func TestGenerate_HazardRateConversion(t *testing.T) {
	run := writeRunDir(t, map[string]any{"rial_collapse_rate_90d": 0.30, "n_runs": 1000})
	cat := loadSingleEventCatalog(t, simEvent(t))
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	records, warnings, err := Generate(cat, run, []int{7}, asOf, BaselineSource{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0].Probabilities["YES"]
	want := 0.02736
	if diff := got - want; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("expected P_YES ~ %v, got %v", want, got)
	}
	if records[0].NSims == nil || *records[0].NSims != 1000 {
		t.Fatalf("expected n_sims 1000 from n_runs, got %+v", records[0].NSims)
	}
}

func TestGenerate_DiagnosticOnlyAbstains(t *testing.T) {
	run := writeRunDir(t, map[string]any{})
	ev := simEvent(t)
	ev.ForecastSource = catalog.ForecastSource{Type: catalog.SourceDiagnosticOnly}
	cat := loadSingleEventCatalog(t, ev)
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	records, _, err := Generate(cat, run, []int{7}, asOf, BaselineSource{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 placeholder record, got %d", len(records))
	}
	rec := records[0]
	if !rec.Abstain || rec.AbstainReason != "diagnostic_only" {
		t.Fatalf("expected abstained diagnostic placeholder, got %+v", rec)
	}
	if rec.Probabilities["YES"] != 0.5 || rec.Probabilities["NO"] != 0.5 {
		t.Fatalf("expected 0.5/0.5 placeholder distribution, got %+v", rec.Probabilities)
	}
}

func TestGenerate_MissingFieldProducesWarningNotAbort(t *testing.T) {
	run := writeRunDir(t, map[string]any{})
	cat := loadSingleEventCatalog(t, simEvent(t))
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	records, warnings, err := Generate(cat, run, []int{7}, asOf, BaselineSource{})
	if err != nil {
		t.Fatalf("generate should not abort the run: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records for missing field, got %+v", records)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %+v", warnings)
	}
}

func TestGenerate_BaselineClimatologyDelegatesToBaselinePackage(t *testing.T) {
	run := writeRunDir(t, map[string]any{})
	ev := simEvent(t)
	ev.ForecastSource = catalog.ForecastSource{Type: catalog.SourceBaselineClimatology}
	cat := loadSingleEventCatalog(t, ev)
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	idx := baseline.BuildHistoryIndex(nil, nil, asOf, baseline.DefaultConfig())
	records, _, err := Generate(cat, run, []int{7}, asOf, BaselineSource{Index: idx})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 baseline record, got %d", len(records))
	}
	if records[0].BaselineFallback != "uniform" {
		t.Fatalf("expected uniform fallback with no history, got %+v", records[0])
	}
}
