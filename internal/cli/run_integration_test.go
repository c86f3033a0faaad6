package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testChdir(t *testing.T, dir string) {
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

const testCatalogJSON = `{
  "catalog_version": "3.0.0",
  "events": [
    {
      "event_id": "econ.rial_ge_1_2m",
      "event_type": "binary",
      "allowed_outcomes": ["YES", "NO"],
      "horizons_days": [7],
      "auto_resolve": true,
      "forecast_source": {"type": "simulation_output", "field": "rial_collapse_rate_90d"},
      "resolution_source": {
        "type": "compiled_intel",
        "path": "current_state.economic_conditions.rial_usd_rate.market",
        "rule": "threshold_gte",
        "threshold": 1200000
      }
    }
  ]
}`

func writeRun(t *testing.T, runsDir, runID, cutoffUTC string, simResults string, compiledIntel string) string {
	t.Helper()
	dir := filepath.Join(runsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"data_cutoff_utc":"` + cutoffUTC + `","seed":42,"run_reliable":true,"hashes":{"compiled_intel.json":"sha256:aa"}}`
	files := map[string]string{
		"run_manifest.json":    manifest,
		"compiled_intel.json":  compiledIntel,
		"coverage_report.json": `{"ok":true}`,
	}
	if simResults != "" {
		files["simulation_results.json"] = simResults
		files["priors_resolved.json"] = `{}`
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type fixture struct {
	catalogPath string
	runsDir     string
	ledgerDir   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	testChdir(t, root)
	t.Setenv("HOME", t.TempDir())

	fx := fixture{
		catalogPath: filepath.Join(root, "event_catalog.json"),
		runsDir:     filepath.Join(root, "runs"),
		ledgerDir:   filepath.Join(root, "forecasting", "ledger"),
	}
	if err := os.WriteFile(fx.catalogPath, []byte(testCatalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(fx.runsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(fx.ledgerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return fx
}

func (fx fixture) runner(now time.Time, stdout, stderr *bytes.Buffer) Runner {
	return Runner{
		Version: "test",
		Now:     func() time.Time { return now },
		Stdout:  stdout,
		Stderr:  stderr,
	}
}

func (fx fixture) sharedArgs() []string {
	return []string{"--catalog", fx.catalogPath, "--runs-dir", fx.runsDir, "--ledger-dir", fx.ledgerDir}
}

func TestLogResolveScoreEndToEnd(t *testing.T) {
	fx := newFixture(t)

	logNow := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	writeRun(t, fx.runsDir, "20260701T000000Z", "2026-07-01T00:00:00Z",
		`{"rial_collapse_rate_90d":0.30,"n_runs":1000}`, `{}`)

	var out, errBuf bytes.Buffer
	r := fx.runner(logNow, &out, &errBuf)
	if exit := r.Run(append([]string{"log", "--horizon", "7", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("log exit=%d stderr=%s", exit, errBuf.String())
	}
	var logRes logResultJSON
	if err := json.Unmarshal(out.Bytes(), &logRes); err != nil {
		t.Fatalf("log output not json: %v\n%s", err, out.String())
	}
	if logRes.Generated != 1 {
		t.Fatalf("generated = %d, want 1", logRes.Generated)
	}

	// A second identical invocation must add nothing.
	out.Reset()
	errBuf.Reset()
	if exit := r.Run(append([]string{"log", "--horizon", "7", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("second log exit=%d stderr=%s", exit, errBuf.String())
	}
	logRes = logResultJSON{}
	if err := json.Unmarshal(out.Bytes(), &logRes); err != nil {
		t.Fatal(err)
	}
	if logRes.Generated != 0 || logRes.SkippedExisting != 1 {
		t.Fatalf("second log = %+v, want 0 generated, 1 skipped", logRes)
	}
	out.Reset()

	raw, err := os.ReadFile(filepath.Join(fx.ledgerDir, "forecasts.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := nonBlankLines(raw)
	if len(lines) != 1 {
		t.Fatalf("forecasts.jsonl has %d records after two log runs, want 1", len(lines))
	}
	var fc struct {
		ForecastID    string             `json:"forecast_id"`
		Probabilities map[string]float64 `json:"probabilities"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.ForecastID != "fcst_20260701_20260701T000000Z_econ.rial_ge_1_2m_7d" {
		t.Fatalf("forecast id = %q", fc.ForecastID)
	}
	wantPYes := 1 - math.Pow(1-0.30, 7.0/90.0)
	if math.Abs(fc.Probabilities["YES"]-wantPYes) > 1e-6 {
		t.Fatalf("p_yes = %v, want %v", fc.Probabilities["YES"], wantPYes)
	}

	// Resolution run: data cutoff just after the 7-day target.
	writeRun(t, fx.runsDir, "20260708T060000Z", "2026-07-08T06:00:00Z", "",
		`{"compiled_fields":{"current_state.economic_conditions.rial_usd_rate.market":1250000}}`)

	resolveNow := time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC)
	out.Reset()
	errBuf.Reset()
	r = fx.runner(resolveNow, &out, &errBuf)
	if exit := r.Run(append([]string{"resolve", "--max-lag", "3", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("resolve exit=%d stderr=%s", exit, errBuf.String())
	}
	var resolveRes resolveResultJSON
	if err := json.Unmarshal(out.Bytes(), &resolveRes); err != nil {
		t.Fatalf("resolve output not json: %v\n%s", err, out.String())
	}
	if resolveRes.Resolved != 1 || resolveRes.Unknown != 0 {
		t.Fatalf("resolve = %+v, want 1 resolved, 0 unknown", resolveRes)
	}

	raw, err = os.ReadFile(filepath.Join(fx.ledgerDir, "resolutions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		ResolvedOutcome string   `json:"resolved_outcome"`
		ResolutionMode  string   `json:"resolution_mode"`
		EvidenceRefs    []string `json:"evidence_refs"`
		EvidenceHashes  []string `json:"evidence_hashes"`
	}
	if err := json.Unmarshal([]byte(nonBlankLines(raw)[0]), &res); err != nil {
		t.Fatal(err)
	}
	if res.ResolvedOutcome != "YES" || res.ResolutionMode != "external_auto" {
		t.Fatalf("resolution = %+v", res)
	}
	if len(res.EvidenceRefs) != 1 || len(res.EvidenceHashes) != 1 || !strings.HasPrefix(res.EvidenceHashes[0], "sha256:") {
		t.Fatalf("evidence not attached: %+v", res)
	}
	if _, err := os.Stat(res.EvidenceRefs[0]); err != nil {
		t.Fatalf("evidence file missing: %v", err)
	}

	scoreNow := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	out.Reset()
	errBuf.Reset()
	r = fx.runner(scoreNow, &out, &errBuf)
	if exit := r.Run(append([]string{"score", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("score exit=%d stderr=%s", exit, errBuf.String())
	}
	var scoreRes struct {
		Counts struct {
			Total    int `json:"total"`
			Resolved int `json:"resolved"`
		} `json:"counts"`
		Primary struct {
			N     int      `json:"n"`
			Brier *float64 `json:"brier"`
		} `json:"primary"`
	}
	if err := json.Unmarshal(out.Bytes(), &scoreRes); err != nil {
		t.Fatalf("score output not json: %v\n%s", err, out.String())
	}
	if scoreRes.Counts.Total != 1 || scoreRes.Counts.Resolved != 1 {
		t.Fatalf("score counts = %+v", scoreRes.Counts)
	}
	wantBrier := (wantPYes - 1) * (wantPYes - 1)
	if scoreRes.Primary.Brier == nil || math.Abs(*scoreRes.Primary.Brier-wantBrier) > 1e-5 {
		t.Fatalf("primary brier = %v, want %v", scoreRes.Primary.Brier, wantBrier)
	}
}

func TestQueueListsOverduePendingForecasts(t *testing.T) {
	fx := newFixture(t)

	logNow := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	writeRun(t, fx.runsDir, "20260701T000000Z", "2026-07-01T00:00:00Z",
		`{"rial_collapse_rate_90d":0.30,"n_runs":1000}`, `{}`)

	var out, errBuf bytes.Buffer
	r := fx.runner(logNow, &out, &errBuf)
	if exit := r.Run(append([]string{"log", "--horizon", "7", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("log exit=%d stderr=%s", exit, errBuf.String())
	}

	// Before the target date, --due-only hides the row.
	out.Reset()
	if exit := r.Run(append([]string{"queue", "--due-only", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("queue exit=%d stderr=%s", exit, errBuf.String())
	}
	var qres queueResultJSON
	if err := json.Unmarshal(out.Bytes(), &qres); err != nil {
		t.Fatal(err)
	}
	if qres.Pending != 1 || qres.Listed != 0 {
		t.Fatalf("queue before target = %+v", qres)
	}

	// After the target date it is due.
	out.Reset()
	r = fx.runner(logNow.AddDate(0, 0, 10), &out, &errBuf)
	if exit := r.Run(append([]string{"queue", "--due-only", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("queue exit=%d stderr=%s", exit, errBuf.String())
	}
	qres = queueResultJSON{}
	if err := json.Unmarshal(out.Bytes(), &qres); err != nil {
		t.Fatal(err)
	}
	if qres.Listed != 1 || qres.Rows[0].DaysOverdue < 2.9 {
		t.Fatalf("queue after target = %+v", qres)
	}
}

func TestStatusCountsPerEvent(t *testing.T) {
	fx := newFixture(t)

	logNow := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	writeRun(t, fx.runsDir, "20260701T000000Z", "2026-07-01T00:00:00Z",
		`{"rial_collapse_rate_90d":0.30,"n_runs":1000}`, `{}`)

	var out, errBuf bytes.Buffer
	r := fx.runner(logNow, &out, &errBuf)
	if exit := r.Run(append([]string{"log", "--horizon", "7"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("log exit=%d stderr=%s", exit, errBuf.String())
	}

	out.Reset()
	if exit := r.Run(append([]string{"status", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("status exit=%d stderr=%s", exit, errBuf.String())
	}
	var sres statusResultJSON
	if err := json.Unmarshal(out.Bytes(), &sres); err != nil {
		t.Fatal(err)
	}
	if sres.Total != 1 || sres.Pending != 1 || sres.Resolved != 0 {
		t.Fatalf("status = %+v", sres)
	}
	if len(sres.PerEvent) != 1 || sres.PerEvent[0].EventID != "econ.rial_ge_1_2m" || sres.PerEvent[0].Forecasts != 1 {
		t.Fatalf("per-event = %+v", sres.PerEvent)
	}
}

func TestValidateCommand(t *testing.T) {
	fx := newFixture(t)

	var out, errBuf bytes.Buffer
	r := fx.runner(time.Now(), &out, &errBuf)
	if exit := r.Run(append([]string{"validate", "--json"}, fx.sharedArgs()...)); exit != 0 {
		t.Fatalf("validate exit=%d stderr=%s", exit, errBuf.String())
	}
	if !strings.Contains(out.String(), `"ok": true`) {
		t.Fatalf("validate output: %s", out.String())
	}

	// A broken catalog fails with exit 1.
	if err := os.WriteFile(fx.catalogPath, []byte(`{"events":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	errBuf.Reset()
	if exit := r.Run(append([]string{"validate"}, fx.sharedArgs()...)); exit != 1 {
		t.Fatalf("validate on broken catalog exit=%d, want 1", exit)
	}
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	var out, errBuf bytes.Buffer
	r := Runner{Version: "test", Stdout: &out, Stderr: &errBuf}
	if exit := r.Run([]string{"frobnicate"}); exit != 2 {
		t.Fatalf("exit = %d, want 2", exit)
	}
	if !strings.Contains(errBuf.String(), "ORC_E_USAGE") {
		t.Fatalf("stderr = %s", errBuf.String())
	}
}

func nonBlankLines(raw []byte) []string {
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
