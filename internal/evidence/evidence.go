// Package evidence writes and verifies the immutable snapshot that backs an
// external_auto resolution: the exact compiled-intel fragment a
// resolution was derived from, hashed and published atomically so the claim
// "this is what the resolver saw" can be checked later.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oraclecore/oracle-core/internal/errs"
	"github.com/oraclecore/oracle-core/internal/ids"
	"github.com/oraclecore/oracle-core/internal/store"
)

// WriteSnapshot injects snapshot_utc into data, canonicalizes it, computes
// its content hash, and writes it to <dir>/<resolution_id>.json via
// temp-file-then-rename. Returns the written path and "sha256:<hex>".
func WriteSnapshot(resolutionID string, data map[string]any, dir string, now time.Time) (path string, contentHash string, err error) {
	snap := make(map[string]any, len(data)+1)
	for k, v := range data {
		snap[k] = v
	}
	snap["snapshot_utc"] = now.UTC().Format(time.RFC3339)

	canon, err := store.CanonicalJSON(snap)
	if err != nil {
		return "", "", errs.Wrap(errs.KindIO, false, fmt.Sprintf("canonicalizing evidence for %s", resolutionID), err)
	}
	contentHash = ids.ContentHash(canon)

	path = filepath.Join(dir, resolutionID+".json")
	if err := store.WriteJSONAtomic(path, snap); err != nil {
		return "", "", errs.Wrap(errs.KindIO, false, fmt.Sprintf("writing evidence snapshot for %s", resolutionID), err)
	}
	return path, contentHash, nil
}

// Verify rehashes the snapshot file on disk for resolutionID and reports
// whether it matches expectedHash. The file is re-decoded and re-canonicalized
// (rather than hashed as raw bytes) so the comparison is whitespace-insensitive,
// matching what WriteSnapshot actually hashed.
func Verify(resolutionID, expectedHash, dir string) (bool, error) {
	path := filepath.Join(dir, resolutionID+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, errs.Wrap(errs.KindIO, false, fmt.Sprintf("reading evidence snapshot for %s", resolutionID), err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return false, errs.Wrap(errs.KindIO, false, fmt.Sprintf("parsing evidence snapshot for %s", resolutionID), err)
	}
	canon, err := store.CanonicalJSON(generic)
	if err != nil {
		return false, errs.Wrap(errs.KindIO, false, fmt.Sprintf("canonicalizing evidence snapshot for %s", resolutionID), err)
	}
	return ids.ContentHash(canon) == expectedHash, nil
}
