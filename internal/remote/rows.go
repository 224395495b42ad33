package remote

import (
	"encoding/json"
	"fmt"
)

// DecodeRows parses raw service rows into typed entities. Decoding happens at
// the boundary so malformed records are rejected before they can reach the
// cache.
func DecodeRows[T any](table string, rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, raw := range rows {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("remote: row %d of %s: %w", i, table, err)
		}
		out = append(out, item)
	}
	return out, nil
}
