package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

// ErrMalformed marks a persisted blob that does not have the expected shape.
var ErrMalformed = errors.New("reconcile: malformed snapshot")

// Encode serialises records in order as a JSON array.
func Encode(records []tab.Record) (string, error) {
	if records == nil {
		records = []tab.Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("reconcile: encode: %w", err)
	}
	return string(b), nil
}

var requiredFields = [...]string{"id", "url", "title", "status", "favIconUrl", "windowId"}

// Decode parses a persisted blob. Every element must be an object carrying
// all record fields with the right JSON type; anything else is reported as
// ErrMalformed. Later duplicates of an ID are dropped.
func Decode(blob string) ([]tab.Record, error) {
	trimmed := bytes.TrimSpace([]byte(blob))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: not an array", ErrMalformed)
	}
	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make([]tab.Record, 0, len(elems))
	seen := make(map[int64]bool, len(elems))
	for i, el := range elems {
		if el == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformed, i)
		}
		for _, f := range requiredFields {
			if _, ok := el[f]; !ok {
				return nil, fmt.Errorf("%w: element %d missing %q", ErrMalformed, i, f)
			}
		}
		var r tab.Record
		var err error
		if r.ID, err = intField(el, "id"); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
		if r.WindowID, err = intField(el, "windowId"); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
		for name, dst := range map[string]*string{
			"url":        &r.URL,
			"title":      &r.Title,
			"status":     &r.Status,
			"favIconUrl": &r.FavIconURL,
		} {
			if *dst, err = stringField(el, name); err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
			}
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func intField(el map[string]json.RawMessage, name string) (int64, error) {
	raw := el[name]
	if isNull(raw) {
		return 0, fmt.Errorf("%s is null", name)
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%s: want integer", name)
	}
	return v, nil
}

func stringField(el map[string]json.RawMessage, name string) (string, error) {
	raw := el[name]
	if isNull(raw) {
		return "", fmt.Errorf("%s is null", name)
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%s: want string", name)
	}
	return v, nil
}
