// Package ids builds the deterministic identifier families named in the
// external interface contract: forecast_id, resolution_id and manifest_id.
// None of these are randomly generated: determinism is a load-bearing
// invariant (two runs of `log` against the same inputs must produce
// identical forecast_ids), so nothing here reaches for crypto/rand or uuid.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	reInvalid       = regexp.MustCompile(`[^a-z0-9-]+`)
	reDashes        = regexp.MustCompile(`-+`)
	reForecastID    = regexp.MustCompile(`^fcst_[0-9]{8}_.+_[0-9]+d$`)
	reResolutionID  = regexp.MustCompile(`^res_[0-9]{8}_.+_[0-9]+d$`)
	reEnsembleID    = regexp.MustCompile(`^oracle_ensemble_[a-z0-9_]+$`)
	reManifestID    = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

// ForecastID builds fcst_<YYYYMMDD>_<run_id>_[<forecaster_id>_]<event_id>_<H>d.
// forecasterID is omitted from the ID when empty (the base-forecaster case
// where the forecaster is implied by forecast_source).
func ForecastID(asOf time.Time, runID, forecasterID, eventID string, horizonDays int) string {
	var b strings.Builder
	b.WriteString("fcst_")
	b.WriteString(asOf.UTC().Format("20060102"))
	b.WriteByte('_')
	b.WriteString(runID)
	b.WriteByte('_')
	if forecasterID != "" {
		b.WriteString(forecasterID)
		b.WriteByte('_')
	}
	b.WriteString(eventID)
	b.WriteByte('_')
	fmt.Fprintf(&b, "%dd", horizonDays)
	return b.String()
}

// ResolutionID builds res_<YYYYMMDD of target>_<event_id>_<H>d.
func ResolutionID(targetDateUTC time.Time, eventID string, horizonDays int) string {
	return fmt.Sprintf("res_%s_%s_%dd", targetDateUTC.UTC().Format("20060102"), eventID, horizonDays)
}

func IsValidForecastID(s string) bool   { return reForecastID.MatchString(strings.TrimSpace(s)) }
func IsValidResolutionID(s string) bool { return reResolutionID.MatchString(strings.TrimSpace(s)) }
func IsValidManifestID(s string) bool   { return reManifestID.MatchString(strings.TrimSpace(s)) }
func IsValidEnsembleID(s string) bool   { return reEnsembleID.MatchString(strings.TrimSpace(s)) }

// IsReservedEnsembleID reports whether s collides with a non-ensemble
// forecaster name: the primary forecaster or any baseline forecaster.
func IsReservedEnsembleID(s string) bool {
	return s == "oracle_v1" || strings.HasPrefix(s, "oracle_baseline_")
}

// ManifestID returns "sha256:<hex>" over raw manifest file bytes.
func ManifestID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ContentHash returns "sha256:<hex>" over arbitrary serialized bytes, used
// for evidence snapshot hashing.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// SanitizeComponent normalizes a free-form identifier fragment into
// lower-kebab-case: lower + [a-z0-9-], collapsed dashes, trimmed edges.
func SanitizeComponent(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", "-")
	v = reInvalid.ReplaceAllString(v, "-")
	v = reDashes.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-")
	return v
}
