// Package catalog loads and validates the event definition registry: the
// schema plus the internal consistency rules.
package catalog

import "github.com/oraclecore/oracle-core/internal/bins"

type EventType string

const (
	EventBinary           EventType = "binary"
	EventCategorical      EventType = "categorical"
	EventBinnedContinuous EventType = "binned_continuous"
)

type ForecastSourceType string

const (
	SourceSimulationOutput    ForecastSourceType = "simulation_output"
	SourceSimulationDerived   ForecastSourceType = "simulation_derived"
	SourceBaselinePersistence ForecastSourceType = "baseline_persistence"
	SourceBaselineClimatology ForecastSourceType = "baseline_climatology"
	SourceDiagnosticOnly      ForecastSourceType = "diagnostic_only"
)

type ResolutionSourceType string

const (
	ResolutionCompiledIntel ResolutionSourceType = "compiled_intel"
	ResolutionManual        ResolutionSourceType = "manual"
)

type Rule string

const (
	RuleThresholdGTE Rule = "threshold_gte"
	RuleThresholdGT  Rule = "threshold_gt"
	RuleThresholdLTE Rule = "threshold_lte"
	RuleThresholdLT  Rule = "threshold_lt"
	RuleEnumEquals   Rule = "enum_equals"
	RuleEnumIn       Rule = "enum_in"
	RuleEnumMatch    Rule = "enum_match"
	RuleBinMap       Rule = "bin_map"
)

const OutcomeUnknown = "UNKNOWN"

// ForecastSource discriminates how a forecast's distribution is produced.
// Field is a dotted path into a simulation result (simulation_output); for
// simulation_derived it is the same, combined with Derivation, a small rule
// string parsed once at catalog load time into an AST (see derivation.go),
// never re-parsed at evaluation time.
type ForecastSource struct {
	Type       ForecastSourceType `json:"type" validate:"required,oneof=simulation_output simulation_derived baseline_persistence baseline_climatology diagnostic_only"`
	Field      string             `json:"field,omitempty"`
	Derivation string             `json:"derivation,omitempty"`
}

// ResolutionSource declares how the resolver extracts and classifies a
// value from a future run's compiled intelligence. Value is enum_equals'
// comparison target; Values is enum_in's accepted set. enum_match carries no
// parameters: the raw value is matched case-insensitively against the
// event's allowed_outcomes.
type ResolutionSource struct {
	Type      ResolutionSourceType `json:"type" validate:"required,oneof=compiled_intel manual"`
	Path      string               `json:"path,omitempty"`
	Rule      Rule                 `json:"rule,omitempty" validate:"omitempty,oneof=threshold_gte threshold_gt threshold_lte threshold_lt enum_equals enum_in enum_match bin_map"`
	Threshold *float64             `json:"threshold,omitempty"`
	Value     string               `json:"value,omitempty"`
	Values    []string             `json:"values,omitempty"`
	// Fallback, when "claims_based", downgrades a missing-path resolution
	// to claims_inferred instead of leaving it external_auto/UNKNOWN.
	Fallback string `json:"fallback,omitempty"`
}

// Event is one entry of the event catalog.
//
// When the catalog's catalog_version has major version 3 or higher, every
// non-binary event must declare UNKNOWN in allowed_outcomes and every
// binned_continuous event must set effective_from_utc; catalogs with an
// earlier or absent version are not held to either rule.
type Event struct {
	EventID                  string           `json:"event_id" validate:"required"`
	Name                     string           `json:"name,omitempty"`
	Category                 string           `json:"category,omitempty"`
	Description              string           `json:"description,omitempty"`
	EventType                EventType        `json:"event_type" validate:"required,oneof=binary categorical binned_continuous"`
	AllowedOutcomes          []string         `json:"allowed_outcomes" validate:"required,min=1"`
	HorizonsDays             []int            `json:"horizons_days,omitempty"`
	ForecastSource           ForecastSource   `json:"forecast_source" validate:"required"`
	ResolutionSource         ResolutionSource `json:"resolution_source" validate:"required"`
	Enabled                  *bool            `json:"enabled,omitempty"`
	EffectiveFromUTC         string           `json:"effective_from_utc,omitempty"`
	RequiresManualResolution bool             `json:"requires_manual_resolution,omitempty"`
	AutoResolve              bool             `json:"auto_resolve,omitempty"`
	MaxResolutionLagDays     *int             `json:"max_resolution_lag_days,omitempty"`
	BinSpec                  *bins.Spec       `json:"bin_spec,omitempty"`

	// Derivation is the compiled form of ForecastSource.Derivation, built and
	// validated by Load for simulation_derived events. The JSON string stays
	// the stored representation; evaluation never re-parses it.
	Derivation *DerivationRule `json:"-"`
}

// IsEnabled reports whether the event is enabled (absence defaults to true).
func (e Event) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Forecastable reports enabled != false AND forecast_source.type != diagnostic_only.
func (e Event) Forecastable() bool {
	return e.IsEnabled() && e.ForecastSource.Type != SourceDiagnosticOnly
}

// OutcomesExcludingUnknown returns allowed_outcomes with UNKNOWN removed,
// preserving declaration order. Multinomial scoring and climatology draw
// their outcome set from exactly this.
func (e Event) OutcomesExcludingUnknown() []string {
	out := make([]string, 0, len(e.AllowedOutcomes))
	for _, o := range e.AllowedOutcomes {
		if o != OutcomeUnknown {
			out = append(out, o)
		}
	}
	return out
}

func (e Event) HasOutcome(outcome string) bool {
	for _, o := range e.AllowedOutcomes {
		if o == outcome {
			return true
		}
	}
	return outcome == OutcomeUnknown
}
