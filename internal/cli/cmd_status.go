package cli

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ledger"
)

type eventCoverageJSON struct {
	EventID   string `json:"eventId"`
	Forecasts int    `json:"forecasts"`
	Resolved  int    `json:"resolved"`
	Pending   int    `json:"pending"`
}

type statusResultJSON struct {
	OK        bool                `json:"ok"`
	Total     int                 `json:"total"`
	Resolved  int                 `json:"resolved"`
	Pending   int                 `json:"pending"`
	Abstained int                 `json:"abstained"`
	PerEvent  []eventCoverageJSON `json:"perEvent"`
}

func (r Runner) runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	catalogPath, runsDir, ledgerDir := sharedFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("status: invalid flags")
	}
	if *help {
		printStatusHelp(r.Stdout)
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

	led := ledger.New(m.LedgerDir, time.Duration(m.LockWaitMs)*time.Millisecond)
	forecasts, err := led.ReadForecasts()
	if err != nil {
		return r.failIO(err)
	}
	resolutions, err := led.ReadResolutions()
	if err != nil {
		return r.failIO(err)
	}

	resolved := make(map[string]bool, len(resolutions))
	for _, rec := range resolutions {
		if rec.ForecastID != "" {
			resolved[rec.ForecastID] = true
		}
	}

	res := statusResultJSON{OK: true}
	perEvent := map[string]*eventCoverageJSON{}
	for _, ev := range cat.List() {
		perEvent[ev.EventID] = &eventCoverageJSON{EventID: ev.EventID}
	}
	for _, f := range forecasts {
		res.Total++
		if f.Abstain {
			res.Abstained++
		}
		cov := perEvent[f.EventID]
		if cov == nil {
			cov = &eventCoverageJSON{EventID: f.EventID}
			perEvent[f.EventID] = cov
		}
		cov.Forecasts++
		if resolved[f.ForecastID] {
			res.Resolved++
			cov.Resolved++
		} else {
			res.Pending++
			cov.Pending++
		}
	}

	ids := make([]string, 0, len(perEvent))
	for id := range perEvent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		res.PerEvent = append(res.PerEvent, *perEvent[id])
	}

	if *jsonOut {
		return r.writeJSON(res)
	}
	fmt.Fprintf(r.Stdout, "status: OK total=%d resolved=%d pending=%d abstained=%d\n",
		res.Total, res.Resolved, res.Pending, res.Abstained)
	for _, cov := range res.PerEvent {
		fmt.Fprintf(r.Stdout, "  %s forecasts=%d resolved=%d pending=%d\n",
			cov.EventID, cov.Forecasts, cov.Resolved, cov.Pending)
	}
	return 0
}
