package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

func TestEncodeDecodeKeepsOrderAndFields(t *testing.T) {
	in := []tab.Record{
		{ID: 3, URL: "https://go.dev", Title: "Go", Status: "complete", FavIconURL: "https://go.dev/favicon.ico", WindowID: 1},
		{ID: 1, WindowID: 2},
	}
	blob, err := Encode(in)
	require.NoError(t, err)
	assert.Contains(t, blob, `"favIconUrl"`)
	assert.Contains(t, blob, `"windowId"`)

	out, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	blob, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", blob)

	out, err := Decode(blob)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeMalformed(t *testing.T) {
	full := `"url":"u","title":"t","status":"s","favIconUrl":"f","windowId":1`
	tests := map[string]string{
		"empty":            ``,
		"not json":         `{{{`,
		"object":           `{"id":1}`,
		"null":             `null`,
		"string":           `"[]"`,
		"number element":   `[1]`,
		"null element":     `[null]`,
		"missing id":       `[{` + full + `}]`,
		"missing windowId": `[{"id":1,"url":"u","title":"t","status":"s","favIconUrl":"f"}]`,
		"string id":        `[{"id":"1",` + full + `}]`,
		"float id":         `[{"id":1.5,` + full + `}]`,
		"null title":       `[{"id":1,"url":"u","title":null,"status":"s","favIconUrl":"f","windowId":1}]`,
		"numeric url":      `[{"id":1,"url":7,"title":"t","status":"s","favIconUrl":"f","windowId":1}]`,
		"one bad of two":   `[{"id":1,` + full + `},{"id":2}]`,
	}
	for name, blob := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(blob)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "err = %v", err)
		})
	}
}

func TestDecodeIgnoresExtraFieldsAndDuplicates(t *testing.T) {
	blob := `[
		{"id":1,"url":"a","title":"first","status":"","favIconUrl":"","windowId":1,"pinned":true},
		{"id":2,"url":"b","title":"","status":"","favIconUrl":"","windowId":1},
		{"id":1,"url":"c","title":"second","status":"","favIconUrl":"","windowId":1}
	]`
	out, err := Decode(blob)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, int64(2), out[1].ID)
}
