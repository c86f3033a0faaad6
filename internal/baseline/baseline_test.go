package baseline

import (
	"testing"
	"time"

	"github.com/oraclecore/oracle-core/internal/ledger"
)

func resAt(eventID string, horizon int, outcome, resolvedAt string) ledger.ResolutionRecord {
	return ledger.ResolutionRecord{
		ResolutionID:    "res_" + eventID + "_" + resolvedAt,
		EventID:         eventID,
		HorizonDays:     horizon,
		ResolvedOutcome: outcome,
		ResolvedAtUTC:   resolvedAt,
		ResolutionMode:  "external_auto",
	}
}

func TestBuildHistoryIndex_ExcludesLookahead(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	resolutions := []ledger.ResolutionRecord{
		resAt("ev1", 7, "YES", "2026-05-01T00:00:00Z"),
		resAt("ev1", 7, "NO", "2026-07-01T00:00:00Z"), // after asOf, excluded
	}
	idx := BuildHistoryIndex(resolutions, nil, asOf, DefaultConfig())
	g := idx.Groups[GroupKey{EventID: "ev1", HorizonDays: 7}]
	if g == nil || g.HistoryN != 1 {
		t.Fatalf("expected 1 history entry after lookahead exclusion, got %+v", g)
	}
	if g.ExcludedCountsByReason["future_lookahead"] != 1 {
		t.Fatalf("expected 1 future_lookahead exclusion, got %+v", g.ExcludedCountsByReason)
	}
}

func TestBuildHistoryIndex_AppliesCorrections(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	resolutions := []ledger.ResolutionRecord{resAt("ev1", 7, "NO", "2026-05-01T00:00:00Z")}
	resolutions[0].ResolutionID = "res_fixed"
	corrections := []ledger.CorrectionRecord{
		{ResolutionID: "res_fixed", CorrectedOutcome: "YES", CorrectedAtUTC: "2026-05-15T00:00:00Z"},
	}
	idx := BuildHistoryIndex(resolutions, corrections, asOf, DefaultConfig())
	g := idx.Groups[GroupKey{EventID: "ev1", HorizonDays: 7}]
	if g.CountsByOutcome["YES"] != 1 || g.CountsByOutcome["NO"] != 0 {
		t.Fatalf("expected correction to flip outcome to YES, got %+v", g.CountsByOutcome)
	}
}

func TestBuildHistoryIndex_IgnoresCorrectionsAfterAsOf(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	resolutions := []ledger.ResolutionRecord{resAt("ev1", 7, "NO", "2026-05-01T00:00:00Z")}
	resolutions[0].ResolutionID = "res_late"
	corrections := []ledger.CorrectionRecord{
		{ResolutionID: "res_late", CorrectedOutcome: "YES", CorrectedAtUTC: "2026-07-01T00:00:00Z"},
	}
	idx := BuildHistoryIndex(resolutions, corrections, asOf, DefaultConfig())
	g := idx.Groups[GroupKey{EventID: "ev1", HorizonDays: 7}]
	if g.CountsByOutcome["NO"] != 1 || g.CountsByOutcome["YES"] != 0 {
		t.Fatalf("a correction recorded after as_of must not apply, got %+v", g.CountsByOutcome)
	}
}

func TestClimatology_FallsBackToUniformBelowMinHistory(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	idx := BuildHistoryIndex(nil, nil, asOf, cfg)
	dist := Climatology(idx, "never_seen", 7, []string{"YES", "NO"}, cfg)
	if dist.Fallback != "uniform" {
		t.Fatalf("expected uniform fallback, got %+v", dist)
	}
	if dist.Probabilities["YES"] != 0.5 || dist.Probabilities["NO"] != 0.5 {
		t.Fatalf("expected 50/50 uniform split, got %+v", dist.Probabilities)
	}
}

func TestClimatology_DirichletSmoothedSumsToOne(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MinHistoryN = 2
	var resolutions []ledger.ResolutionRecord
	for i := 0; i < 8; i++ {
		resolutions = append(resolutions, resAt("ev1", 7, "YES", "2026-05-01T00:00:00Z"))
	}
	for i := 0; i < 2; i++ {
		resolutions = append(resolutions, resAt("ev1", 7, "NO", "2026-05-01T00:00:00Z"))
	}
	idx := BuildHistoryIndex(resolutions, nil, asOf, cfg)
	dist := Climatology(idx, "ev1", 7, []string{"YES", "NO"}, cfg)
	sum := dist.Probabilities["YES"] + dist.Probabilities["NO"]
	if sum != 1 {
		t.Fatalf("expected probabilities to sum to exactly 1, got %v (%+v)", sum, dist.Probabilities)
	}
	if dist.Probabilities["YES"] <= dist.Probabilities["NO"] {
		t.Fatalf("expected YES (8/10 history) to dominate NO, got %+v", dist.Probabilities)
	}
}

func TestPersistence_DecaysToClimatologyPastMaxStaleness(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MinHistoryN = 1
	cfg.MaxStalenessDays = 30
	resolutions := []ledger.ResolutionRecord{
		resAt("ev1", 7, "YES", "2026-01-01T00:00:00Z"), // ~150 days stale
	}
	idx := BuildHistoryIndex(resolutions, nil, asOf, cfg)
	dist := Persistence(idx, "ev1", 7, []string{"YES", "NO"}, cfg)
	clim := Climatology(idx, "ev1", 7, []string{"YES", "NO"}, cfg)
	if dist.Probabilities["YES"] != clim.Probabilities["YES"] {
		t.Fatalf("expected fully-decayed persistence to equal climatology, got %+v vs %+v", dist.Probabilities, clim.Probabilities)
	}
}

func TestPersistence_StickyWhenFresh(t *testing.T) {
	asOf := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MinHistoryN = 1
	cfg.PersistenceStickiness = 0.8
	cfg.MaxStalenessDays = 90
	resolutions := []ledger.ResolutionRecord{
		resAt("ev1", 7, "YES", "2026-05-01T00:00:00Z"), // 1 day stale
	}
	idx := BuildHistoryIndex(resolutions, nil, asOf, cfg)
	dist := Persistence(idx, "ev1", 7, []string{"YES", "NO"}, cfg)
	if dist.Probabilities["YES"] < 0.7 {
		t.Fatalf("expected fresh persistence to favor last outcome strongly, got %+v", dist.Probabilities)
	}
	sum := dist.Probabilities["YES"] + dist.Probabilities["NO"]
	if diff := sum - 1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected sum 1, got %v", sum)
	}
}
