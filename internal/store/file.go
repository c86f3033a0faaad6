package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

func WriteFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// A UUID suffix (rather than a nanosecond timestamp) avoids a same-instant
	// collision between two processes racing to publish the same path, which
	// the concurrency model explicitly allows (cron-driven and operator-triggered
	// invocations against the same ledger directory).
	tmp := fmt.Sprintf("%s.tmp-%s", path, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(b); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return replaceFile(tmp, path)
}
