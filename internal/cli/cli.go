// Package cli implements the oraclectl command surface: one run<Verb>
// method per subcommand, flag.FlagSet parsing with manual usage printers,
// and uniform ORC_E_* error codes on stderr.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oraclecore/oracle-core/internal/config"
)

type Runner struct {
	Version string
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "log":
		return r.runLog(args[1:])
	case "resolve":
		return r.runResolve(args[1:])
	case "score":
		return r.runScore(args[1:])
	case "report":
		return r.runReport(args[1:])
	case "status":
		return r.runStatus(args[1:])
	case "queue":
		return r.runQueue(args[1:])
	case "validate":
		return r.runValidate(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "ORC_E_USAGE: unknown command %q\n", args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

// sharedFlags binds the path flags every subcommand accepts onto fs and
// returns the destinations for config.LoadMerged.
func sharedFlags(fs *flag.FlagSet) (catalogPath, runsDir, ledgerDir *string) {
	catalogPath = fs.String("catalog", "", "event catalog path (default from config)")
	runsDir = fs.String("runs-dir", "", "runs directory (default from config)")
	ledgerDir = fs.String("ledger-dir", "", "ledger directory (default from config)")
	return
}

func (r Runner) loadMerged(catalogPath, runsDir, ledgerDir string, maxLag int) (config.Merged, int) {
	m, err := config.LoadMerged(config.Flags{
		CatalogPath: catalogPath,
		RunsDir:     runsDir,
		LedgerDir:   ledgerDir,
		MaxLagDays:  maxLag,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_IO: %s\n", err.Error())
		return config.Merged{}, 1
	}
	return m, 0
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_IO: failed to encode json\n")
		return 1
	}
	return 0
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "ORC_E_USAGE: %s\n", msg)
	return 2
}

func (r Runner) failIO(err error) int {
	fmt.Fprintf(r.Stderr, "ORC_E_IO: %s\n", err.Error())
	return 1
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `oraclectl: forecast ledger, resolution and scoring

Usage:
  oraclectl log [--catalog PATH] [--runs-dir PATH] [--ledger-dir PATH] [--run-dir PATH] [--horizon H] [--with-ensembles] [--dry-run] [--json]
  oraclectl resolve [--catalog PATH] [--runs-dir PATH] [--ledger-dir PATH] [--max-lag N] [--dry-run] [--json]
  oraclectl score [--catalog PATH] [--ledger-dir PATH] [--event-id ID] [--horizon H] [--output FILE] [--json]
  oraclectl report [--catalog PATH] [--ledger-dir PATH] [--format json|md|both] [--event-id ID] [--horizon H] [--output PREFIX]
  oraclectl status [--catalog PATH] [--ledger-dir PATH] [--json]
  oraclectl queue [--ledger-dir PATH] [--due-only] [--manual] [--limit N] [--json]
  oraclectl validate [--catalog PATH] [--strict] [--json]
  oraclectl version

Commands:
  log       Generate forecasts for the newest valid reliable run (or --run-dir).
  resolve   Close out pending forecasts whose target date has passed.
  score     Compute the scoring object from the ledgers.
  report    Render the scoring object as JSON and/or Markdown.
  status    Summary of total/resolved/pending counts and per-event coverage.
  queue     List unresolved forecasts past their target date, most overdue first.
  validate  Load and validate the event catalog.
  version   Print version.
`)
}

func printLogHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl log [--catalog PATH] [--runs-dir PATH] [--ledger-dir PATH] [--run-dir PATH] [--horizon H] [--with-ensembles] [--dry-run] [--json]

Notes:
  - --horizon is repeatable; default horizons are 1,7,15,30.
  - --dry-run prints what would be appended without touching the ledger.
`)
}

func printResolveHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl resolve [--catalog PATH] [--runs-dir PATH] [--ledger-dir PATH] [--max-lag N] [--dry-run] [--json]
`)
}

func printScoreHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl score [--catalog PATH] [--ledger-dir PATH] [--event-id ID] [--horizon H] [--output FILE] [--json]
`)
}

func printReportHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl report [--catalog PATH] [--ledger-dir PATH] [--format json|md|both] [--event-id ID] [--horizon H] [--output PREFIX]

Notes:
  - With --output PREFIX, writes PREFIX.json and/or PREFIX.md; otherwise prints to stdout.
`)
}

func printStatusHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl status [--catalog PATH] [--ledger-dir PATH] [--json]
`)
}

func printQueueHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl queue [--ledger-dir PATH] [--due-only] [--manual] [--grace-days N] [--limit N] [--json]
`)
}

func printValidateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  oraclectl validate [--catalog PATH] [--strict] [--json]
`)
}
