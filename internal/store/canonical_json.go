package store

import (
	"bytes"
	"encoding/json"
)

// CanonicalJSON encodes v with every object key sorted, at every nesting
// level, regardless of whether v is a struct or a map. encoding/json only
// sorts map[string]any keys on its own; struct fields serialize in
// declaration order. Ledger records and evidence snapshots are content
// hashed and compared byte-for-byte on re-read, so this re-encodes through
// a generic representation to get true canonical ordering.
func CanonicalJSON(v any) ([]byte, error) {
	first, err := marshalCompact(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(first, &generic); err != nil {
		return nil, err
	}
	return marshalCompact(generic)
}

func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b, nil
}
