package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/config"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/oraclecore/oracle-core/internal/report"
	"github.com/oraclecore/oracle-core/internal/scoring"
	"github.com/oraclecore/oracle-core/internal/store"
)

func (r Runner) computeReport(m config.Merged, eventID string, horizon int) (scoring.Report, int) {
	cat, err := catalog.Load(m.CatalogPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_CATALOG: %s\n", err.Error())
		return scoring.Report{}, 1
	}

	led := ledger.New(m.LedgerDir, time.Duration(m.LockWaitMs)*time.Millisecond)
	forecasts, err := led.ReadForecasts()
	if err != nil {
		return scoring.Report{}, r.failIO(err)
	}
	resolutions, err := led.ReadResolutions()
	if err != nil {
		return scoring.Report{}, r.failIO(err)
	}
	corrections, err := led.ReadCorrections()
	if err != nil {
		return scoring.Report{}, r.failIO(err)
	}

	f := scoring.Filters{EventID: eventID}
	if horizon > 0 {
		h := horizon
		f.HorizonDays = &h
	}
	return scoring.Compute(cat, forecasts, resolutions, corrections, f, r.Now().UTC()), 0
}

func (r Runner) runScore(args []string) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	catalogPath, runsDir, ledgerDir := sharedFlags(fs)
	eventID := fs.String("event-id", "", "restrict scoring to one event")
	horizon := fs.Int("horizon", 0, "restrict scoring to one horizon (days)")
	output := fs.String("output", "", "write the scoring object to this file instead of stdout")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("score: invalid flags")
	}
	if *help {
		printScoreHelp(r.Stdout)
		return 0
	}

	m, exit := r.loadMerged(*catalogPath, *runsDir, *ledgerDir, 0)
	if exit != 0 {
		return exit
	}

	rep, exit := r.computeReport(m, *eventID, *horizon)
	if exit != 0 {
		return exit
	}

	if strings.TrimSpace(*output) != "" {
		if err := store.WriteJSONAtomic(*output, rep); err != nil {
			return r.failIO(err)
		}
		if !*jsonOut {
			fmt.Fprintf(r.Stdout, "score: OK output=%s\n", *output)
			return 0
		}
	}
	return r.writeJSON(rep)
}

func (r Runner) runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	catalogPath, runsDir, ledgerDir := sharedFlags(fs)
	format := fs.String("format", "md", "output format: json|md|both")
	eventID := fs.String("event-id", "", "restrict scoring to one event")
	horizon := fs.Int("horizon", 0, "restrict scoring to one horizon (days)")
	output := fs.String("output", "", "write PREFIX.json / PREFIX.md instead of stdout")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("report: invalid flags")
	}
	if *help {
		printReportHelp(r.Stdout)
		return 0
	}
	switch *format {
	case "json", "md", "both":
	default:
		printReportHelp(r.Stderr)
		return r.failUsage("report: invalid --format (expected json|md|both)")
	}

	m, exit := r.loadMerged(*catalogPath, *runsDir, *ledgerDir, 0)
	if exit != 0 {
		return exit
	}

	rep, exit := r.computeReport(m, *eventID, *horizon)
	if exit != 0 {
		return exit
	}

	generatedAt := r.Now().UTC().Format(time.RFC3339)
	wantJSON := *format == "json" || *format == "both"
	wantMD := *format == "md" || *format == "both"

	if strings.TrimSpace(*output) != "" {
		if wantJSON {
			if err := store.WriteJSONAtomic(*output+".json", rep); err != nil {
				return r.failIO(err)
			}
		}
		if wantMD {
			md := report.RenderMarkdown(rep, generatedAt)
			if err := store.WriteFileAtomic(*output+".md", []byte(md)); err != nil {
				return r.failIO(err)
			}
		}
		fmt.Fprintf(r.Stdout, "report: OK format=%s output=%s\n", *format, *output)
		return 0
	}

	if wantJSON {
		if exit := r.writeJSON(rep); exit != 0 {
			return exit
		}
	}
	if wantMD {
		fmt.Fprint(r.Stdout, report.RenderMarkdown(rep, generatedAt))
	}
	return 0
}
