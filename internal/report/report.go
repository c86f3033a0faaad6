// Package report renders the scoring object as Markdown. Rendering is a
// pure function over the already-computed report; nothing here reads the
// ledger or recomputes a metric.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oraclecore/oracle-core/internal/scoring"
)

// RenderMarkdown formats rep as a Markdown document. generatedAtUTC is
// stamped into the header so rendered reports are traceable to a scoring
// invocation.
func RenderMarkdown(rep scoring.Report, generatedAtUTC string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Forecast Scoring Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAtUTC)

	fmt.Fprintf(&b, "## Coverage\n\n")
	fmt.Fprintf(&b, "| Total | Resolved | Unresolved | Abstained | Unknown |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	c := rep.Counts
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", c.Total, c.Resolved, c.Unresolved, c.Abstained, c.Unknown)
	if rep.CoverageRatio != nil {
		fmt.Fprintf(&b, "Coverage ratio: %s\n\n", fmtFloat(rep.CoverageRatio))
	}

	fmt.Fprintf(&b, "## Primary Forecaster\n\n")
	writeMetrics(&b, rep.Primary)

	fmt.Fprintf(&b, "## Penalty (abstain / UNKNOWN)\n\n")
	fmt.Fprintf(&b, "| Primary Brier | Effective Brier | Delta |\n")
	fmt.Fprintf(&b, "|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %s | %s |\n\n", fmtFloat(rep.Penalty.PrimaryBrier), fmtFloat(rep.Penalty.EffectiveBrier), fmtFloat(rep.Penalty.Delta))

	fmt.Fprintf(&b, "## Resolution Modes\n\n")
	fmt.Fprintf(&b, "### Core (external)\n\n")
	writeMetrics(&b, rep.CoreScores)
	fmt.Fprintf(&b, "### Claims-inferred\n\n")
	writeMetrics(&b, rep.ClaimsInferredScores)
	fmt.Fprintf(&b, "### Combined\n\n")
	writeMetrics(&b, rep.CombinedScores)

	if len(rep.PerForecaster) > 0 {
		fmt.Fprintf(&b, "## Per Forecaster\n\n")
		fmt.Fprintf(&b, "| Forecaster | N | Brier | Log Score | Calibration Error |\n")
		fmt.Fprintf(&b, "|---|---|---|---|---|\n")
		for _, id := range sortedKeys(rep.PerForecaster) {
			m := rep.PerForecaster[id]
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s |\n", id, m.N, fmtFloat(m.Brier), fmtFloat(m.LogScore), fmtFloat(m.CalibrationError))
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(rep.PerEventType) > 0 {
		fmt.Fprintf(&b, "## Per Event Type\n\n")
		fmt.Fprintf(&b, "| Event Type | N | Brier | Log Score |\n")
		fmt.Fprintf(&b, "|---|---|---|---|\n")
		for _, t := range sortedKeys(rep.PerEventType) {
			m := rep.PerEventType[t]
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", t, m.N, fmtFloat(m.Brier), fmtFloat(m.LogScore))
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(rep.PerEvent) > 0 {
		fmt.Fprintf(&b, "## Per Event\n\n")
		eventIDs := make([]string, 0, len(rep.PerEvent))
		for id := range rep.PerEvent {
			eventIDs = append(eventIDs, id)
		}
		sort.Strings(eventIDs)
		for _, id := range eventIDs {
			es := rep.PerEvent[id]
			fmt.Fprintf(&b, "### %s\n\n", id)
			writeMetrics(&b, es.AccuracyMetrics)
			if len(es.ByHorizon) > 0 {
				fmt.Fprintf(&b, "| Horizon | N | Brier | Log Score |\n")
				fmt.Fprintf(&b, "|---|---|---|---|\n")
				horizons := make([]int, 0, len(es.ByHorizon))
				for h := range es.ByHorizon {
					horizons = append(horizons, h)
				}
				sort.Ints(horizons)
				for _, h := range horizons {
					m := es.ByHorizon[h]
					fmt.Fprintf(&b, "| %dd | %d | %s | %s |\n", h, m.N, fmtFloat(m.Brier), fmtFloat(m.LogScore))
				}
				fmt.Fprintf(&b, "\n")
			}
		}
	}

	fmt.Fprintf(&b, "## Baselines\n\n")
	fmt.Fprintf(&b, "| Baseline | Brier | History N | Fallback | Skill |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	writeBaselineRow(&b, "climatology", rep.Baselines.Climatology)
	writeBaselineRow(&b, "persistence", rep.Baselines.Persistence)
	fmt.Fprintf(&b, "\n")

	if len(rep.Warnings) > 0 {
		fmt.Fprintf(&b, "## Warnings\n\n")
		for _, w := range rep.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		fmt.Fprintf(&b, "\n")
	}

	return b.String()
}

func writeMetrics(b *strings.Builder, m scoring.AccuracyMetrics) {
	fmt.Fprintf(b, "| N | Brier | Normalized Brier | Log Score | Calibration Error |\n")
	fmt.Fprintf(b, "|---|---|---|---|---|\n")
	fmt.Fprintf(b, "| %d | %s | %s | %s | %s |\n\n", m.N, fmtFloat(m.Brier), fmtFloat(m.NormalizedBrier), fmtFloat(m.LogScore), fmtFloat(m.CalibrationError))
}

func writeBaselineRow(b *strings.Builder, name string, sb scoring.SkillBaseline) {
	fallback := sb.Fallback
	if fallback == "" {
		fallback = "-"
	}
	fmt.Fprintf(b, "| %s | %s | %d | %s | %s |\n", name, fmtFloat(sb.Brier), sb.HistoryN, fallback, fmtFloat(sb.Skill))
}

// fmtFloat renders a nullable metric: "n/a" for nil, 6 decimals otherwise,
// matching the probability rounding convention used on the wire.
func fmtFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", *v)
}

func sortedKeys(m map[string]scoring.AccuracyMetrics) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
