package store

import (
	"os"
	"path/filepath"
)

// AppendJSONL serializes v with sorted keys (via CanonicalJSON) and appends
// it as one line. A serialization error never touches the file: encoding
// happens entirely before the file is opened.
func AppendJSONL(path string, v any) error {
	b, err := CanonicalJSON(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}
