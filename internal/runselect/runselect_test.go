package runselect

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRun(t *testing.T, runsDir, id string, artifacts []string, manifest string) {
	t.Helper()
	dir := filepath.Join(runsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(dir, "run_manifest.json"), []byte(manifest), 0o644); err != nil {
			t.Fatalf("writing manifest: %v", err)
		}
	}
	for _, a := range artifacts {
		if a == "run_manifest.json" && manifest != "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, a), []byte("{}"), 0o644); err != nil {
			t.Fatalf("writing artifact %s: %v", a, err)
		}
	}
}

func TestListRuns_ExcludesMetaAndTestByDefault(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260101", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"}, `{"run_reliable": true, "data_cutoff_utc": "2026-01-01T00:00:00Z"}`)
	writeRun(t, dir, "_meta", nil, "")
	writeRun(t, dir, "TEST_fixture", []string{"run_manifest.json"}, `{}`)

	runs, err := ListRuns(dir, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "20260101" {
		t.Fatalf("expected only 20260101, got %+v", runs)
	}
}

func TestListRuns_SortsDescending(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260101", nil, `{}`)
	writeRun(t, dir, "20260301", nil, `{}`)
	writeRun(t, dir, "20260201", nil, `{}`)

	runs, err := ListRuns(dir, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{runs[0].ID, runs[1].ID, runs[2].ID}
	want := []string{"20260301", "20260201", "20260101"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected descending order %v, got %v", want, got)
		}
	}
}

func TestSelectNewestValidReliable(t *testing.T) {
	dir := t.TempDir()
	// Newest run is invalid (missing artifacts); next newest is valid+reliable.
	writeRun(t, dir, "20260301", []string{"run_manifest.json"}, `{"run_reliable": true}`)
	writeRun(t, dir, "20260201", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"}, `{"run_reliable": true}`)
	writeRun(t, dir, "20260101", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"}, `{"run_reliable": false}`)

	run, ok, err := SelectNewestValidReliable(dir, ModeObserve, false)
	if err != nil || !ok {
		t.Fatalf("expected a valid run, err=%v ok=%v", err, ok)
	}
	if run.ID != "20260201" {
		t.Fatalf("expected 20260201, got %s", run.ID)
	}
}

func TestSelectNewestValidReliable_UnreliableExcluded(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260101", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"}, `{"run_reliable": false}`)

	_, ok, err := SelectNewestValidReliable(dir, ModeObserve, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no reliable run to be selected")
	}
}

func TestSelectForResolution_PicksEarliestInWindow(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260105", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"},
		`{"run_reliable": true, "data_cutoff_utc": "2026-01-05T00:00:00Z"}`)
	writeRun(t, dir, "20260103", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"},
		`{"run_reliable": true, "data_cutoff_utc": "2026-01-03T00:00:00Z"}`)
	writeRun(t, dir, "20260101", []string{"run_manifest.json", "compiled_intel.json", "coverage_report.json"},
		`{"run_reliable": true, "data_cutoff_utc": "2025-12-30T00:00:00Z"}`)

	target := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run, ok, err := SelectForResolution(dir, ModeObserve, target, 5, false)
	if err != nil || !ok {
		t.Fatalf("expected a run in window, err=%v ok=%v", err, ok)
	}
	if run.ID != "20260103" {
		t.Fatalf("expected earliest in-window run 20260103, got %s", run.ID)
	}
}
