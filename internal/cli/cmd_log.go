package cli

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oraclecore/oracle-core/internal/baseline"
	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/config"
	"github.com/oraclecore/oracle-core/internal/ensemble"
	"github.com/oraclecore/oracle-core/internal/forecast"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/oraclecore/oracle-core/internal/obs"
	"github.com/oraclecore/oracle-core/internal/runselect"
)

// intListFlag collects a repeatable integer flag.
type intListFlag []int

func (f *intListFlag) String() string {
	parts := make([]string, len(*f))
	for i, v := range *f {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (f *intListFlag) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = append(*f, n)
	return nil
}

type logResultJSON struct {
	OK              bool     `json:"ok"`
	DryRun          bool     `json:"dryRun"`
	RunID           string   `json:"runId"`
	Horizons        []int    `json:"horizons"`
	Generated       int      `json:"generated"`
	SkippedExisting int      `json:"skippedExisting"`
	Dropped         int      `json:"dropped"`
	Ensembles       int      `json:"ensembles"`
	Warnings        []string `json:"warnings,omitempty"`
}

func (r Runner) runLog(args []string) int {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	catalogPath, runsDir, ledgerDir := sharedFlags(fs)
	runDir := fs.String("run-dir", "", "use this run directory instead of selecting the newest")
	var horizons intListFlag
	fs.Var(&horizons, "horizon", "horizon in days (repeatable; default 1,7,15,30)")
	withEnsembles := fs.Bool("with-ensembles", false, "also emit configured ensemble forecasts")
	dryRun := fs.Bool("dry-run", false, "print what would be appended without writing")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("log: invalid flags")
	}
	if *help {
		printLogHelp(r.Stdout)
		return 0
	}

	m, exit := r.loadMerged(*catalogPath, *runsDir, *ledgerDir, 0)
	if exit != 0 {
		return exit
	}

	cat, err := catalog.Load(m.CatalogPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_CATALOG: %s\n", err.Error())
		return 1
	}

	if len(horizons) == 0 {
		horizons = intListFlag{1, 7, 15, 30}
	}
	sort.Ints(horizons)

	log := obs.New(r.Stderr, false)
	defer func() { _ = log.Sync() }()

	now := r.Now().UTC()

	var run runselect.Run
	if strings.TrimSpace(*runDir) != "" {
		run, err = runselect.LoadRun(*runDir)
		if err != nil {
			return r.failIO(err)
		}
	} else {
		warnUnreliableRuns(log, m.RunsDir)
		selected, ok, err := runselect.SelectNewestValidReliable(m.RunsDir, runselect.ModeSimulate, false)
		if err != nil {
			return r.failIO(err)
		}
		if !ok {
			fmt.Fprintf(r.Stderr, "ORC_E_FORECAST: no valid reliable run in %s\n", m.RunsDir)
			return 1
		}
		run = selected
	}

	led := ledger.New(m.LedgerDir, time.Duration(m.LockWaitMs)*time.Millisecond)

	resolutions, err := led.ReadResolutions()
	if err != nil {
		return r.failIO(err)
	}
	corrections, err := led.ReadCorrections()
	if err != nil {
		return r.failIO(err)
	}
	existing, err := led.ReadForecasts()
	if err != nil {
		return r.failIO(err)
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, f := range existing {
		existingIDs[f.ForecastID] = true
	}

	baselineCfgs, err := config.LoadBaselineConfigs(m.BaselinePath)
	if err != nil {
		return r.failIO(err)
	}
	idx := baseline.BuildHistoryIndex(resolutions, corrections, now, baselineCfgs.Defaults)
	bsrc := forecast.BaselineSource{Index: idx, ConfigFor: baselineCfgs.ConfigFor}

	records, warnings, err := forecast.Generate(cat, run, horizons, now, bsrc)
	if err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_FORECAST: %s\n", err.Error())
		return 1
	}

	res := logResultJSON{OK: true, DryRun: *dryRun, RunID: run.ID, Horizons: horizons, Dropped: len(warnings)}
	for _, w := range warnings {
		log.Warn("forecast dropped",
			zap.String("event_id", w.EventID),
			zap.Int("horizon_days", w.HorizonDays),
			zap.String("reason", w.Reason))
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s/%dd: %s", w.EventID, w.HorizonDays, w.Reason))
	}

	var appended []ledger.ForecastRecord
	for _, rec := range records {
		if existingIDs[rec.ForecastID] {
			res.SkippedExisting++
			continue
		}
		if !*dryRun {
			if err := led.AppendForecast(rec); err != nil {
				return r.failIO(err)
			}
		}
		existingIDs[rec.ForecastID] = true
		appended = append(appended, rec)
		res.Generated++
	}

	if *withEnsembles {
		n, warns, err := r.emitEnsembles(cat, led, m, run, now, append(baseForecastsForRun(existing, run.ID), appended...), existingIDs, *dryRun, log)
		if err != nil {
			fmt.Fprintf(r.Stderr, "ORC_E_ENSEMBLE: %s\n", err.Error())
			return 1
		}
		res.Ensembles = n
		res.Warnings = append(res.Warnings, warns...)
	}

	if *jsonOut {
		return r.writeJSON(res)
	}
	fmt.Fprintf(r.Stdout, "log: OK run=%s generated=%d skipped=%d dropped=%d ensembles=%d dryRun=%v\n",
		res.RunID, res.Generated, res.SkippedExisting, res.Dropped, res.Ensembles, res.DryRun)
	return 0
}

// baseForecastsForRun filters previously-appended records down to the run
// being ensembled, excluding prior ensemble outputs.
func baseForecastsForRun(records []ledger.ForecastRecord, runID string) []ledger.ForecastRecord {
	var out []ledger.ForecastRecord
	for _, f := range records {
		if f.RunID == runID && f.EnsembleInputs == nil {
			out = append(out, f)
		}
	}
	return out
}

func (r Runner) emitEnsembles(cat catalog.Catalog, led ledger.Ledger, m config.Merged, run runselect.Run, now time.Time, bases []ledger.ForecastRecord, existingIDs map[string]bool, dryRun bool, log *zap.Logger) (int, []string, error) {
	cfgs, err := config.LoadEnsembleConfigs(m.EnsemblePath)
	if err != nil {
		return 0, nil, err
	}

	groups := ensemble.GroupForecasts(bases)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	emitted := 0
	var warns []string
	for _, cfg := range cfgs {
		if cfg.EffectiveFromUTC != "" {
			from, err := time.Parse(time.RFC3339, cfg.EffectiveFromUTC)
			if err == nil && now.Before(from) {
				continue
			}
		}
		for _, k := range keys {
			g := *groups[k]
			if g.RunID != run.ID {
				continue
			}
			ev, ok := cat.Get(g.EventID)
			if !ok || !ensembleApplies(cfg, ev) {
				continue
			}
			rec, warning, skipped := ensemble.Combine(cfg, g, ev.OutcomesExcludingUnknown(), existingIDs)
			if skipped {
				if warning != "" {
					log.Warn("ensemble group skipped",
						zap.String("ensemble_id", cfg.EnsembleID),
						zap.String("event_id", g.EventID),
						zap.Int("horizon_days", g.HorizonDays),
						zap.String("reason", warning))
					warns = append(warns, fmt.Sprintf("%s %s/%dd: %s", cfg.EnsembleID, g.EventID, g.HorizonDays, warning))
				}
				continue
			}
			if !dryRun {
				if err := led.AppendForecast(rec); err != nil {
					return emitted, warns, err
				}
			}
			existingIDs[rec.ForecastID] = true
			emitted++
		}
	}
	return emitted, warns, nil
}

func ensembleApplies(cfg ensemble.Config, ev catalog.Event) bool {
	if len(cfg.ApplyToEventIDs) > 0 {
		for _, id := range cfg.ApplyToEventIDs {
			if id == ev.EventID {
				return true
			}
		}
		return false
	}
	if len(cfg.ApplyToEventTypes) > 0 {
		for _, t := range cfg.ApplyToEventTypes {
			if t == string(ev.EventType) {
				return true
			}
		}
		return false
	}
	return true
}

// warnUnreliableRuns logs each unreliable run once per invocation.
func warnUnreliableRuns(log *zap.Logger, runsDir string) {
	runs, err := runselect.ListRuns(runsDir, false)
	if err != nil {
		return
	}
	for _, run := range runs {
		if run.ManifestLoaded && run.Manifest.RunReliable != nil && !*run.Manifest.RunReliable {
			log.Warn("unreliable run excluded from selection",
				zap.String("run_id", run.ID),
				zap.String("reason", run.Manifest.UnreliableReason))
		}
	}
}
