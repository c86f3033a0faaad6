package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/oraclecore/oracle-core/internal/baseline"
	"github.com/oraclecore/oracle-core/internal/ensemble"
)

// baselineKnobsV1 is the on-disk shape of one baseline config block
// (config/baseline_config.json). Zero values mean "inherit".
type baselineKnobsV1 struct {
	MinHistoryN           int      `json:"min_history_n,omitempty"`
	WindowDays            int      `json:"window_days,omitempty"`
	SmoothingAlpha        float64  `json:"smoothing_alpha,omitempty"`
	IncludeUnknown        bool     `json:"include_unknown,omitempty"`
	PersistenceStickiness float64  `json:"persistence_stickiness,omitempty"`
	MaxStalenessDays      float64  `json:"max_staleness_days,omitempty"`
	StalenessDecay        string   `json:"staleness_decay,omitempty"`
	ResolutionModes       []string `json:"resolution_modes,omitempty"`
}

type baselineFileV1 struct {
	ConfigVersion string                     `json:"config_version"`
	Defaults      baselineKnobsV1            `json:"defaults"`
	Overrides     map[string]baselineKnobsV1 `json:"overrides,omitempty"`
}

// BaselineConfigs holds the loaded baseline knobs: process-wide defaults
// plus per-event overrides, pre-merged so ConfigFor is a plain lookup.
type BaselineConfigs struct {
	Version  string
	Defaults baseline.Config
	perEvent map[string]baseline.Config
}

// ConfigFor returns the effective baseline config for eventID.
func (b BaselineConfigs) ConfigFor(eventID string) baseline.Config {
	if cfg, ok := b.perEvent[eventID]; ok {
		return cfg
	}
	return b.Defaults
}

func (k baselineKnobsV1) toConfig(version string) baseline.Config {
	return baseline.Config{
		MinHistoryN:           k.MinHistoryN,
		WindowDays:            k.WindowDays,
		SmoothingAlpha:        k.SmoothingAlpha,
		IncludeUnknown:        k.IncludeUnknown,
		PersistenceStickiness: k.PersistenceStickiness,
		MaxStalenessDays:      k.MaxStalenessDays,
		StalenessDecay:        k.StalenessDecay,
		ResolutionModes:       k.ResolutionModes,
		ConfigVersion:         version,
	}
}

// LoadBaselineConfigs reads config/baseline_config.json. A missing file is
// not an error: every knob falls back to the built-in defaults.
func LoadBaselineConfigs(path string) (BaselineConfigs, error) {
	out := BaselineConfigs{
		Version:  "builtin",
		Defaults: baseline.DefaultConfig(),
		perEvent: map[string]baseline.Config{},
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return BaselineConfigs{}, err
	}
	var doc baselineFileV1
	if err := json.Unmarshal(raw, &doc); err != nil {
		return BaselineConfigs{}, fmt.Errorf("baseline config %s: %w", path, err)
	}
	if doc.ConfigVersion == "" {
		doc.ConfigVersion = "1.0.0"
	}
	out.Version = doc.ConfigVersion
	out.Defaults = baseline.DefaultConfig().Merge(doc.Defaults.toConfig(doc.ConfigVersion))
	for eventID, knobs := range doc.Overrides {
		out.perEvent[eventID] = out.Defaults.Merge(knobs.toConfig(doc.ConfigVersion))
	}
	return out, nil
}

type ensembleFileV1 struct {
	ConfigVersion string            `json:"config_version"`
	Ensembles     []ensemble.Config `json:"ensembles"`
}

// LoadEnsembleConfigs reads config/ensemble_config.json and validates every
// definition. A missing file yields an empty list; an invalid definition is
// fatal to the command.
func LoadEnsembleConfigs(path string) ([]ensemble.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc ensembleFileV1
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ensemble config %s: %w", path, err)
	}
	for i := range doc.Ensembles {
		if doc.Ensembles[i].Version == "" {
			doc.Ensembles[i].Version = doc.ConfigVersion
		}
		if err := ensemble.ValidateConfig(doc.Ensembles[i]); err != nil {
			return nil, err
		}
	}
	return doc.Ensembles, nil
}
