package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ledger"
)

type queueRowJSON struct {
	ForecastID    string  `json:"forecastId"`
	EventID       string  `json:"eventId"`
	HorizonDays   int     `json:"horizonDays"`
	TargetDateUTC string  `json:"targetDateUtc"`
	DaysOverdue   float64 `json:"daysOverdue"`
}

type queueResultJSON struct {
	OK        bool           `json:"ok"`
	Pending   int            `json:"pending"`
	Listed    int            `json:"listed"`
	Truncated bool           `json:"truncated,omitempty"`
	Rows      []queueRowJSON `json:"rows"`
}

func (r Runner) runQueue(args []string) int {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	catalogPath, runsDir, ledgerDir := sharedFlags(fs)
	dueOnly := fs.Bool("due-only", false, "list only forecasts whose target date has passed")
	manual := fs.Bool("manual", false, "list the manual-adjudication queue instead")
	graceDays := fs.Int("grace-days", 7, "grace period for --manual due dates")
	limit := fs.Int("limit", 0, "keep only the N most-overdue rows (0 = all)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("queue: invalid flags")
	}
	if *help {
		printQueueHelp(r.Stdout)
		return 0
	}

	m, exit := r.loadMerged(*catalogPath, *runsDir, *ledgerDir, 0)
	if exit != 0 {
		return exit
	}

	led := ledger.New(m.LedgerDir, time.Duration(m.LockWaitMs)*time.Millisecond)

	if *manual {
		cat, err := catalog.Load(m.CatalogPath)
		if err != nil {
			fmt.Fprintf(r.Stderr, "ORC_E_CATALOG: %s\n", err.Error())
			return 1
		}
		entries, err := led.GetPendingManualAdjudication(cat, r.Now().UTC(), *graceDays)
		if err != nil {
			return r.failIO(err)
		}
		if *jsonOut {
			return r.writeJSON(entries)
		}
		fmt.Fprintf(r.Stdout, "queue: manual=%d\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(r.Stdout, "  %s %s %s due=%s overdue=%.1fd\n",
				e.Status, e.Forecast.ForecastID, e.Forecast.EventID, e.DueDateUTC, e.DaysOverdue)
		}
		return 0
	}
	pending, err := led.GetPendingForecasts()
	if err != nil {
		return r.failIO(err)
	}

	now := r.Now().UTC()
	buf := newOverdueBuffer(*limit)
	res := queueResultJSON{OK: true, Pending: len(pending)}
	for _, f := range pending {
		target, err := time.Parse(time.RFC3339, f.TargetDateUTC)
		if err != nil {
			continue
		}
		overdue := now.Sub(target).Hours() / 24
		if *dueOnly && overdue < 0 {
			continue
		}
		buf.Add(queueRowJSON{
			ForecastID:    f.ForecastID,
			EventID:       f.EventID,
			HorizonDays:   f.HorizonDays,
			TargetDateUTC: f.TargetDateUTC,
			DaysOverdue:   overdue,
		})
	}
	res.Rows = buf.Rows()
	res.Listed = len(res.Rows)
	res.Truncated = buf.Truncated()

	if *jsonOut {
		return r.writeJSON(res)
	}
	fmt.Fprintf(r.Stdout, "queue: pending=%d listed=%d\n", res.Pending, res.Listed)
	for _, row := range res.Rows {
		fmt.Fprintf(r.Stdout, "  %s %s %dd target=%s overdue=%.1fd\n",
			row.ForecastID, row.EventID, row.HorizonDays, row.TargetDateUTC, row.DaysOverdue)
	}
	return 0
}
