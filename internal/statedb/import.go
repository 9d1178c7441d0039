package statedb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ImportJSON copies keys from a browser storage export into the kv table.
// The file is a JSON object; string values are stored as-is and any other
// JSON value is stored as its compact encoding, matching how the extension
// keeps serialised state under string keys. It returns the imported keys,
// sorted.
func (s *StateDB) ImportJSON(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statedb: import: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("statedb: import %s: not a JSON object: %w", path, err)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		raw := obj[k]
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			var buf bytes.Buffer
			if err := json.Compact(&buf, raw); err != nil {
				return keys[:i], fmt.Errorf("statedb: import %q: %w", k, err)
			}
			value = buf.String()
		}
		if err := s.Set(ctx, k, value); err != nil {
			return keys[:i], err
		}
	}
	return keys, nil
}
