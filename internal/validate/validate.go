// Package validate wraps catalog and environment validation in a
// machine-readable Result so automation can distinguish errors from
// warnings without parsing prose.
package validate

import (
	"fmt"
	"os"

	"github.com/oraclecore/oracle-core/internal/catalog"
	"github.com/oraclecore/oracle-core/internal/ensemble"
	"github.com/oraclecore/oracle-core/internal/ids"
)

type Finding struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type Result struct {
	OK       bool      `json:"ok"`
	Strict   bool      `json:"strict"`
	Catalog  string    `json:"catalog"`
	Events   int       `json:"events"`
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
}

// StrictOpts names the extra surfaces checked in strict mode: the runs
// directory must be readable and every configured ensemble member ID must be
// syntactically plausible. Strict findings are warnings, not errors; the
// command still succeeds.
type StrictOpts struct {
	RunsDir   string
	Ensembles []ensemble.Config
}

// ValidateCatalog loads and validates the catalog at path. A load failure is
// reported as a finding, not a returned error, so the caller renders one
// shape either way.
func ValidateCatalog(path string, strict bool, opts StrictOpts) Result {
	res := Result{OK: true, Strict: strict, Catalog: path}

	cat, err := catalog.Load(path)
	if err != nil {
		res.OK = false
		res.Errors = append(res.Errors, Finding{Code: "ORC_E_CATALOG", Message: err.Error(), Path: path})
		return res
	}
	res.Events = len(cat.List())

	if !strict {
		return res
	}

	if opts.RunsDir != "" {
		if _, err := os.ReadDir(opts.RunsDir); err != nil {
			res.Warnings = append(res.Warnings, Finding{Code: "ORC_E_IO", Message: fmt.Sprintf("runs dir not readable: %v", err), Path: opts.RunsDir})
		}
	}
	for _, cfg := range opts.Ensembles {
		for _, m := range cfg.Members {
			if m.ForecasterID != "oracle_v1" && !ids.IsValidEnsembleID(m.ForecasterID) && !isBaselineForecasterID(m.ForecasterID) {
				res.Warnings = append(res.Warnings, Finding{
					Code:    "ORC_E_ENSEMBLE",
					Message: fmt.Sprintf("ensemble %s: member forecaster_id %q is neither the primary forecaster, a baseline, nor an ensemble id", cfg.EnsembleID, m.ForecasterID),
				})
			}
		}
	}
	return res
}

func isBaselineForecasterID(id string) bool {
	const prefix = "oracle_baseline_"
	return len(id) > len(prefix) && id[:len(prefix)] == prefix
}
