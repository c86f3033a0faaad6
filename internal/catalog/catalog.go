package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oraclecore/oracle-core/internal/bins"
	"github.com/oraclecore/oracle-core/internal/errs"
)

var validHorizons = map[int]bool{1: true, 7: true, 15: true, 30: true}

// Catalog is the loaded, validated event registry, indexed by event_id.
type Catalog struct {
	events  []Event
	byID    map[string]Event
	Version string
}

// Load reads the JSON event registry at path, applies struct-tag schema
// validation, then the cross-field consistency rules. A schema failure
// and a consistency failure are both reported as errs.Catalog,
// distinguished only by message text.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, errs.Catalog("%s", fmt.Sprintf("reading catalog %s: %v", path, err))
	}

	var doc struct {
		CatalogVersion string  `json:"catalog_version"`
		Events         []Event `json:"events" validate:"required,min=1,dive"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Catalog{}, errs.Catalog("%s", fmt.Sprintf("catalog %s is not valid JSON: %v", path, err))
	}

	v := validator.New()
	if err := v.Struct(doc); err != nil {
		return Catalog{}, errs.Catalog("%s", fmt.Sprintf("catalog %s failed schema validation: %v", path, err))
	}
	for _, ev := range doc.Events {
		if err := v.Struct(ev); err != nil {
			return Catalog{}, errs.Catalog("%s", fmt.Sprintf("event %q failed schema validation: %v", ev.EventID, err))
		}
	}

	// Compile derivation strings once, here. A malformed derivation is a
	// catalog defect, not a per-forecast warning later.
	for i := range doc.Events {
		ev := &doc.Events[i]
		if ev.ForecastSource.Type != SourceSimulationDerived || ev.ForecastSource.Derivation == "" {
			continue
		}
		rule, err := ParseDerivation(ev.ForecastSource.Derivation)
		if err != nil {
			return Catalog{}, errs.Catalog("%s", fmt.Sprintf("event %q: %v", ev.EventID, err))
		}
		ev.Derivation = &rule
	}

	cat := Catalog{events: doc.Events, byID: make(map[string]Event, len(doc.Events)), Version: doc.CatalogVersion}
	for _, ev := range doc.Events {
		cat.byID[ev.EventID] = ev
	}

	if problems := cat.consistencyCheck(); len(problems) > 0 {
		return Catalog{}, errs.Catalog("%s", fmt.Sprintf("catalog %s failed consistency checks: %v", path, problems))
	}
	return cat, nil
}

// consistencyCheck enforces the registry rules beyond raw schema
// shape: unique event IDs, a binary event's outcome set is exactly
// {YES,NO} or {YES,NO,UNKNOWN}, a v3+ non-binary event must include
// UNKNOWN (and a v3+ binned event must declare effective_from_utc), a
// binned_continuous event's bin_spec must be present, internally valid,
// and its bin IDs must equal allowed_outcomes minus UNKNOWN, and
// horizons_days (when given) must be a subset of {1,7,15,30}.
func (c Catalog) consistencyCheck() []string {
	var problems []string
	seen := map[string]bool{}
	isV3Plus := versionGTE(c.Version, 3)

	for _, ev := range c.events {
		if seen[ev.EventID] {
			problems = append(problems, fmt.Sprintf("duplicate event_id %q", ev.EventID))
		}
		seen[ev.EventID] = true

		switch ev.EventType {
		case EventBinary:
			if !isBinaryOutcomeSet(ev.AllowedOutcomes) {
				problems = append(problems, fmt.Sprintf("event %q: binary allowed_outcomes must be exactly [YES,NO] or [YES,NO,UNKNOWN], got %v", ev.EventID, ev.AllowedOutcomes))
			}
		case EventCategorical, EventBinnedContinuous:
			if isV3Plus && len(ev.OutcomesExcludingUnknown()) == len(ev.AllowedOutcomes) {
				problems = append(problems, fmt.Sprintf("event %q: non-binary event must include UNKNOWN in allowed_outcomes", ev.EventID))
			}
		}

		if isV3Plus && ev.EventType == EventBinnedContinuous && ev.EffectiveFromUTC == "" {
			problems = append(problems, fmt.Sprintf("event %q: binned_continuous event requires effective_from_utc", ev.EventID))
		}

		if ev.ForecastSource.Type == SourceSimulationDerived && ev.ForecastSource.Derivation == "" {
			problems = append(problems, fmt.Sprintf("event %q: simulation_derived forecast requires derivation", ev.EventID))
		}

		if ev.ResolutionSource.Type == ResolutionCompiledIntel {
			if ev.ResolutionSource.Path == "" {
				problems = append(problems, fmt.Sprintf("event %q: compiled_intel resolution requires path", ev.EventID))
			}
			if ev.ResolutionSource.Rule == "" {
				problems = append(problems, fmt.Sprintf("event %q: compiled_intel resolution requires rule", ev.EventID))
			}
		}

		if ev.EventType == EventBinnedContinuous {
			if ev.BinSpec == nil {
				problems = append(problems, fmt.Sprintf("event %q: binned_continuous event requires bin_spec", ev.EventID))
			} else {
				if binErrs := bins.Validate(*ev.BinSpec); len(binErrs) > 0 {
					for _, be := range binErrs {
						problems = append(problems, fmt.Sprintf("event %q: %s", ev.EventID, be))
					}
				}
				if !sameSet(binIDs(*ev.BinSpec), ev.OutcomesExcludingUnknown()) {
					problems = append(problems, fmt.Sprintf("event %q: bin_spec bin_ids must equal allowed_outcomes minus UNKNOWN", ev.EventID))
				}
			}
		}

		for _, h := range ev.HorizonsDays {
			if !validHorizons[h] {
				problems = append(problems, fmt.Sprintf("event %q: horizon %d is not one of 1,7,15,30", ev.EventID, h))
			}
		}
	}
	return problems
}

// versionGTE reports whether the catalog_version's major component is at
// least major. An absent or unparseable version is treated as pre-v3.
func versionGTE(version string, major int) bool {
	if version == "" {
		return false
	}
	head := version
	if i := strings.IndexByte(version, '.'); i >= 0 {
		head = version[:i]
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return false
	}
	return n >= major
}

func isBinaryOutcomeSet(outcomes []string) bool {
	if len(outcomes) != 2 && len(outcomes) != 3 {
		return false
	}
	has := map[string]bool{}
	for _, o := range outcomes {
		has[o] = true
	}
	if len(outcomes) == 2 {
		return has["YES"] && has["NO"] && !has[OutcomeUnknown]
	}
	return has["YES"] && has["NO"] && has[OutcomeUnknown]
}

func binIDs(spec bins.Spec) []string {
	out := make([]string, 0, len(spec.Bins))
	for _, b := range spec.Bins {
		out = append(out, b.BinID)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// List returns every event in declaration order.
func (c Catalog) List() []Event {
	return append([]Event(nil), c.events...)
}

// Get looks up an event by ID.
func (c Catalog) Get(eventID string) (Event, bool) {
	ev, ok := c.byID[eventID]
	return ev, ok
}

// FilterByCategory returns events in the given category, in declaration
// order, enabled or not.
func (c Catalog) FilterByCategory(category string) []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.Category == category {
			out = append(out, ev)
		}
	}
	return out
}

// Forecastable returns events eligible for forecast generation: enabled and
// not diagnostic_only.
func (c Catalog) Forecastable() []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.Forecastable() {
			out = append(out, ev)
		}
	}
	return out
}

// Diagnostic returns events whose forecast_source.type is diagnostic_only:
// tracked in the ledger but excluded from scoring and ensembling.
func (c Catalog) Diagnostic() []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.ForecastSource.Type == SourceDiagnosticOnly {
			out = append(out, ev)
		}
	}
	return out
}
