// Package config resolves the paths and knobs every subcommand needs:
// catalog, runs directory, ledger directory, evidence directory, lock wait
// and default resolution lag. Values merge with a fixed precedence so a cron
// invocation and an operator shell resolve identically.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProjectConfigSchemaV1    = 1
	DefaultProjectConfigPath = "oracle.config.json"

	DefaultCatalogPath  = "config/event_catalog.json"
	DefaultRunsDir      = "runs"
	DefaultLedgerDir    = "forecasting/ledger"
	DefaultEvidenceDir  = "forecasting/evidence"
	DefaultBaselinePath = "config/baseline_config.json"
	DefaultEnsemblePath = "config/ensemble_config.json"

	DefaultMaxLagDays = 14
	DefaultLockWaitMs = 10_000
)

// Merged is the fully-resolved configuration for one command invocation.
// Source is informational for operator UX/debugging.
type Merged struct {
	CatalogPath  string
	RunsDir      string
	LedgerDir    string
	EvidenceDir  string
	BaselinePath string
	EnsemblePath string
	MaxLagDays   int
	LockWaitMs   int

	Source string
}

// ProjectConfigV1 is the per-repo config file (oracle.config.json). It is
// schemaVersion-gated; unknown versions are an error, not a silent fallback.
type ProjectConfigV1 struct {
	SchemaVersion int    `json:"schemaVersion"`
	CatalogPath   string `json:"catalogPath,omitempty"`
	RunsDir       string `json:"runsDir,omitempty"`
	LedgerDir     string `json:"ledgerDir,omitempty"`
	EvidenceDir   string `json:"evidenceDir,omitempty"`
	BaselinePath  string `json:"baselinePath,omitempty"`
	EnsemblePath  string `json:"ensemblePath,omitempty"`
	MaxLagDays    int    `json:"maxLagDays,omitempty"`
	LockWaitMs    int    `json:"lockWaitMs,omitempty"`
}

// GlobalConfigV1 is the operator preference file (~/.oracle/config.yaml).
// It carries defaults only; the project/run wire contract stays JSON.
type GlobalConfigV1 struct {
	SchemaVersion int    `yaml:"schemaVersion"`
	CatalogPath   string `yaml:"catalogPath,omitempty"`
	RunsDir       string `yaml:"runsDir,omitempty"`
	LedgerDir     string `yaml:"ledgerDir,omitempty"`
	EvidenceDir   string `yaml:"evidenceDir,omitempty"`
	MaxLagDays    int    `yaml:"maxLagDays,omitempty"`
	LockWaitMs    int    `yaml:"lockWaitMs,omitempty"`
}

// Flags carries the per-invocation overrides parsed from the command line.
// Empty string / zero means "not set on this invocation".
type Flags struct {
	CatalogPath string
	RunsDir     string
	LedgerDir   string
	MaxLagDays  int
}

func DefaultGlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".oracle", "config.yaml"), nil
}

// LoadMerged resolves configuration with precedence:
// 1) CLI flags
// 2) env vars (ORACLE_CATALOG, ORACLE_RUNS_DIR, ORACLE_LEDGER_DIR, ORACLE_MAX_LAG_DAYS, ORACLE_LOCK_WAIT_MS)
// 3) project config (oracle.config.json)
// 4) global config (~/.oracle/config.yaml)
// 5) defaults
func LoadMerged(flags Flags) (Merged, error) {
	projectCfg, hasProject, err := loadProject(DefaultProjectConfigPath)
	if err != nil {
		return Merged{}, err
	}
	globalPath, err := DefaultGlobalConfigPath()
	if err != nil {
		return Merged{}, err
	}
	globalCfg, hasGlobal, err := loadGlobal(globalPath)
	if err != nil {
		return Merged{}, err
	}

	res := Merged{
		CatalogPath:  DefaultCatalogPath,
		RunsDir:      DefaultRunsDir,
		LedgerDir:    DefaultLedgerDir,
		EvidenceDir:  DefaultEvidenceDir,
		BaselinePath: DefaultBaselinePath,
		EnsemblePath: DefaultEnsemblePath,
		MaxLagDays:   DefaultMaxLagDays,
		LockWaitMs:   DefaultLockWaitMs,
		Source:       "default",
	}

	if hasGlobal {
		res.Source = globalPath
		applyString(&res.CatalogPath, globalCfg.CatalogPath)
		applyString(&res.RunsDir, globalCfg.RunsDir)
		applyString(&res.LedgerDir, globalCfg.LedgerDir)
		applyString(&res.EvidenceDir, globalCfg.EvidenceDir)
		applyInt(&res.MaxLagDays, globalCfg.MaxLagDays)
		applyInt(&res.LockWaitMs, globalCfg.LockWaitMs)
	}
	if hasProject {
		res.Source = DefaultProjectConfigPath
		applyString(&res.CatalogPath, projectCfg.CatalogPath)
		applyString(&res.RunsDir, projectCfg.RunsDir)
		applyString(&res.LedgerDir, projectCfg.LedgerDir)
		applyString(&res.EvidenceDir, projectCfg.EvidenceDir)
		applyString(&res.BaselinePath, projectCfg.BaselinePath)
		applyString(&res.EnsemblePath, projectCfg.EnsemblePath)
		applyInt(&res.MaxLagDays, projectCfg.MaxLagDays)
		applyInt(&res.LockWaitMs, projectCfg.LockWaitMs)
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_CATALOG")); v != "" {
		res.CatalogPath = v
		res.Source = "env:ORACLE_CATALOG"
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_RUNS_DIR")); v != "" {
		res.RunsDir = v
		res.Source = "env:ORACLE_RUNS_DIR"
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_LEDGER_DIR")); v != "" {
		res.LedgerDir = v
		res.EvidenceDir = filepath.Join(filepath.Dir(v), "evidence")
		res.Source = "env:ORACLE_LEDGER_DIR"
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_MAX_LAG_DAYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Merged{}, fmt.Errorf("ORACLE_MAX_LAG_DAYS=%q is not an integer", v)
		}
		res.MaxLagDays = n
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_LOCK_WAIT_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Merged{}, fmt.Errorf("ORACLE_LOCK_WAIT_MS=%q is not an integer", v)
		}
		res.LockWaitMs = n
	}

	if strings.TrimSpace(flags.CatalogPath) != "" {
		res.CatalogPath = flags.CatalogPath
		res.Source = "flag"
	}
	if strings.TrimSpace(flags.RunsDir) != "" {
		res.RunsDir = flags.RunsDir
		res.Source = "flag"
	}
	if strings.TrimSpace(flags.LedgerDir) != "" {
		res.LedgerDir = flags.LedgerDir
		res.EvidenceDir = filepath.Join(filepath.Dir(flags.LedgerDir), "evidence")
		res.Source = "flag"
	}
	if flags.MaxLagDays > 0 {
		res.MaxLagDays = flags.MaxLagDays
	}
	return res, nil
}

func applyString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func applyInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func loadProject(path string) (ProjectConfigV1, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectConfigV1{}, false, nil
		}
		return ProjectConfigV1{}, false, err
	}
	var cfg ProjectConfigV1
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ProjectConfigV1{}, false, err
	}
	if cfg.SchemaVersion != ProjectConfigSchemaV1 {
		return ProjectConfigV1{}, false, fmt.Errorf("project config unsupported schemaVersion=%d", cfg.SchemaVersion)
	}
	return cfg, true, nil
}

func loadGlobal(path string) (GlobalConfigV1, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GlobalConfigV1{}, false, nil
		}
		return GlobalConfigV1{}, false, err
	}
	var cfg GlobalConfigV1
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return GlobalConfigV1{}, false, err
	}
	if cfg.SchemaVersion != 1 {
		return GlobalConfigV1{}, false, fmt.Errorf("global config unsupported schemaVersion=%d", cfg.SchemaVersion)
	}
	return cfg, true, nil
}
