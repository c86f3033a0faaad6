package ledger

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/errs"
	"github.com/oraclecore/oracle-core/internal/store"
)

const (
	forecastsFile   = "forecasts.jsonl"
	resolutionsFile = "resolutions.jsonl"
	correctionsFile = "corrections.jsonl"
	lockSuffix      = ".lock"
)

// Ledger is a handle onto the three JSONL stores rooted at Dir. It carries
// no in-process state across command invocations: every operation re-reads
// from disk, matching the "ledgers are the system of record" ownership rule.
type Ledger struct {
	Dir      string
	LockWait time.Duration
}

func New(dir string, lockWait time.Duration) Ledger {
	return Ledger{Dir: dir, LockWait: lockWait}
}

func (l Ledger) path(name string) string { return filepath.Join(l.Dir, name) }

func (l Ledger) lockDir(name string) string { return l.path(name) + lockSuffix }

// AppendForecast writes a single forecast record under an exclusive lock on
// forecasts.jsonl, held only for the duration of this one append.
func (l Ledger) AppendForecast(rec ForecastRecord) error {
	rec.RecordType = RecordForecast
	return l.appendLocked(forecastsFile, rec)
}

func (l Ledger) AppendResolution(rec ResolutionRecord) error {
	rec.RecordType = RecordResolution
	return l.appendLocked(resolutionsFile, rec)
}

func (l Ledger) AppendCorrection(rec CorrectionRecord) error {
	rec.RecordType = RecordCorrection
	return l.appendLocked(correctionsFile, rec)
}

func (l Ledger) appendLocked(file string, rec any) error {
	path := l.path(file)
	err := store.WithDirLock(l.lockDir(file), l.LockWait, func() error {
		return store.AppendJSONL(path, rec)
	})
	if err != nil {
		return errs.Ledger(err, "appending to %s", file)
	}
	return nil
}

// scanLines opens path and invokes fn with the raw bytes and 1-based line
// number of each non-blank line. A JSON-parse error inside fn should be
// wrapped by the caller with the line number already supplied.
func scanLines(path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadForecasts returns every forecast record, in append order.
func (l Ledger) ReadForecasts() ([]ForecastRecord, error) {
	var out []ForecastRecord
	path := l.path(forecastsFile)
	err := scanLines(path, func(lineNo int, line []byte) error {
		var rec ForecastRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("forecasts.jsonl:%d: %w", lineNo, err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, errs.Ledger(err, "reading %s", forecastsFile)
	}
	return out, nil
}

// ReadResolutions returns every resolution record, in append order.
func (l Ledger) ReadResolutions() ([]ResolutionRecord, error) {
	var out []ResolutionRecord
	path := l.path(resolutionsFile)
	err := scanLines(path, func(lineNo int, line []byte) error {
		var rec ResolutionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("resolutions.jsonl:%d: %w", lineNo, err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, errs.Ledger(err, "reading %s", resolutionsFile)
	}
	return out, nil
}

// ReadCorrections returns every correction record, in append order.
func (l Ledger) ReadCorrections() ([]CorrectionRecord, error) {
	var out []CorrectionRecord
	path := l.path(correctionsFile)
	err := scanLines(path, func(lineNo int, line []byte) error {
		var rec CorrectionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("corrections.jsonl:%d: %w", lineNo, err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, errs.Ledger(err, "reading %s", correctionsFile)
	}
	return out, nil
}

// GetForecasts returns forecasts matching the optional eventID/runID
// filters; an empty string means "no filter on this field".
func (l Ledger) GetForecasts(eventID, runID string) ([]ForecastRecord, error) {
	all, err := l.ReadForecasts()
	if err != nil {
		return nil, err
	}
	var out []ForecastRecord
	for _, r := range all {
		if eventID != "" && r.EventID != eventID {
			continue
		}
		if runID != "" && r.RunID != runID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// GetResolutions returns resolutions matching the optional eventID/forecastID
// filters.
func (l Ledger) GetResolutions(eventID, forecastID string) ([]ResolutionRecord, error) {
	all, err := l.ReadResolutions()
	if err != nil {
		return nil, err
	}
	var out []ResolutionRecord
	for _, r := range all {
		if eventID != "" && r.EventID != eventID {
			continue
		}
		if forecastID != "" && r.ForecastID != forecastID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// GetPendingForecasts returns every forecast whose forecast_id has no
// resolution yet (resolution lookup keyed by forecast_id, not target date).
func (l Ledger) GetPendingForecasts() ([]ForecastRecord, error) {
	forecasts, err := l.ReadForecasts()
	if err != nil {
		return nil, err
	}
	resolutions, err := l.ReadResolutions()
	if err != nil {
		return nil, err
	}
	resolved := make(map[string]bool, len(resolutions))
	for _, r := range resolutions {
		if r.ForecastID != "" {
			resolved[r.ForecastID] = true
		}
	}
	var out []ForecastRecord
	for _, f := range forecasts {
		if !resolved[f.ForecastID] {
			out = append(out, f)
		}
	}
	return out, nil
}

// PendingAdjudication is one entry of the manual-adjudication queue.
type PendingAdjudication struct {
	Forecast    ForecastRecord `json:"forecast"`
	DueDateUTC  string         `json:"due_date_utc"`
	DaysOverdue float64        `json:"days_overdue"`
	Status      string         `json:"status"` // overdue | due_soon | pending
}

// GetPendingManualAdjudication returns pending forecasts for events marked
// requires_manual_resolution whose target_date_utc <= asOf, annotated with
// due date / overdue status, sorted most-overdue first.
func (l Ledger) GetPendingManualAdjudication(cat catalog.Catalog, asOf time.Time, graceDays int) ([]PendingAdjudication, error) {
	pending, err := l.GetPendingForecasts()
	if err != nil {
		return nil, err
	}

	var out []PendingAdjudication
	for _, f := range pending {
		ev, ok := cat.Get(f.EventID)
		if !ok || !ev.RequiresManualResolution {
			continue
		}
		target, err := time.Parse(time.RFC3339, f.TargetDateUTC)
		if err != nil {
			continue
		}
		if target.After(asOf) {
			continue
		}
		due := target.AddDate(0, 0, graceDays)
		daysOverdue := asOf.Sub(due).Hours() / 24

		status := "pending"
		switch {
		case asOf.After(due):
			status = "overdue"
		case due.Sub(asOf).Hours() <= 48:
			status = "due_soon"
		}

		out = append(out, PendingAdjudication{
			Forecast:    f,
			DueDateUTC:  due.Format(time.RFC3339),
			DaysOverdue: daysOverdue,
			Status:      status,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DaysOverdue > out[j].DaysOverdue })
	return out, nil
}

// ComputeManifestID returns "sha256:<hex>" over the bytes at path.
func ComputeManifestID(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Ledger(err, "computing manifest id for %s", path)
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
