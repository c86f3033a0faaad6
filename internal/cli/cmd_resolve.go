package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ledger"
	"github.com/oraclecore/oracle-core/internal/obs"
	"github.com/oraclecore/oracle-core/internal/resolver"
)

type resolveResultJSON struct {
	OK       bool     `json:"ok"`
	DryRun   bool     `json:"dryRun"`
	Resolved int      `json:"resolved"`
	Unknown  int      `json:"unknown"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r Runner) runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	catalogPath, runsDir, ledgerDir := sharedFlags(fs)
	maxLag := fs.Int("max-lag", 0, "max days after target a resolution run may be cut (default from config)")
	dryRun := fs.Bool("dry-run", false, "print what would be appended without writing")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("resolve: invalid flags")
	}
	if *help {
		printResolveHelp(r.Stdout)
		return 0
	}

	m, exit := r.loadMerged(*catalogPath, *runsDir, *ledgerDir, *maxLag)
	if exit != 0 {
		return exit
	}

	cat, err := catalog.Load(m.CatalogPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_CATALOG: %s\n", err.Error())
		return 1
	}

	log := obs.New(r.Stderr, false)
	defer func() { _ = log.Sync() }()

	now := r.Now().UTC()
	led := ledger.New(m.LedgerDir, time.Duration(m.LockWaitMs)*time.Millisecond)

	pending, err := led.GetPendingForecasts()
	if err != nil {
		return r.failIO(err)
	}

	writeEvidence := resolver.WriteEvidenceFunc(m.EvidenceDir, now, func(err error) {
		log.Warn("evidence snapshot write failed", zap.Error(err))
	})
	if *dryRun {
		writeEvidence = nil
	}

	outcomes, err := resolver.ResolvePending(cat, pending, m.RunsDir, m.MaxLagDays, now, writeEvidence)
	if err != nil {
		fmt.Fprintf(r.Stderr, "ORC_E_RESOLUTION: %s\n", err.Error())
		return 1
	}

	res := resolveResultJSON{OK: true, DryRun: *dryRun}
	for _, out := range outcomes {
		if out.Skip {
			res.Skipped++
			if out.Warning != "" {
				log.Warn("resolution skipped", zap.String("reason", out.Warning))
				res.Warnings = append(res.Warnings, out.Warning)
			}
			continue
		}
		if !*dryRun {
			if err := led.AppendResolution(out.Resolution); err != nil {
				return r.failIO(err)
			}
		}
		if out.Resolution.ResolvedOutcome == catalog.OutcomeUnknown {
			res.Unknown++
		}
		res.Resolved++
	}

	if *jsonOut {
		return r.writeJSON(res)
	}
	fmt.Fprintf(r.Stdout, "resolve: OK resolved=%d unknown=%d skipped=%d dryRun=%v\n",
		res.Resolved, res.Unknown, res.Skipped, res.DryRun)
	return 0
}
