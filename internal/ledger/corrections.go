package ledger

// MergeCorrections returns resolutions with ResolvedOutcome replaced by the
// latest correction's outcome (by resolution_id, when one exists). The
// underlying ledger records are never mutated; this merge happens only in
// the returned copy; the original resolution stays in the ledger.
func MergeCorrections(resolutions []ResolutionRecord, corrections []CorrectionRecord) []ResolutionRecord {
	latest := make(map[string]CorrectionRecord, len(corrections))
	for _, c := range corrections {
		cur, ok := latest[c.ResolutionID]
		if !ok || c.CorrectedAtUTC > cur.CorrectedAtUTC {
			latest[c.ResolutionID] = c
		}
	}

	out := make([]ResolutionRecord, len(resolutions))
	for i, r := range resolutions {
		if c, ok := latest[r.ResolutionID]; ok {
			r.ResolvedOutcome = c.CorrectedOutcome
		}
		out[i] = r
	}
	return out
}
