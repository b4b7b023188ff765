package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "list.json", `{
		"files": [
			{"src": "a.png", "dst": "a.json"},
			{"src": "b.png"},
			{"src": "c.png", "dst": "c.json", "extra": true}
		]
	}`)

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Src: "a.png", Dst: "a.json"},
		{Src: "b.png"},
		{Src: "c.png", Dst: "c.json"},
	}, entries)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "list.yaml", `
files:
  - src: one.jpg
    dst: one.json
  - src: two.jpg
`)
	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Src: "one.jpg", Dst: "one.json"}, {Src: "two.jpg"}}, entries)
}

func TestLoad_EmptyLists(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"empty array", "m.json", `{"files": []}`},
		{"null files", "m.json", `{"files": null}`},
		{"missing files", "m.json", `{"other": 1}`},
		{"yaml missing files", "m.yml", "other: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestLoad_PreservesOrder(t *testing.T) {
	path := writeFile(t, "m.json", `{"files":[{"src":"z"},{"src":"a"},{"src":"m"},{"src":"a"}]}`)
	entries, err := Load(path)
	require.NoError(t, err)

	srcs := make([]string, len(entries))
	for i, e := range entries {
		srcs[i] = e.Src
	}
	assert.Equal(t, []string{"z", "a", "m", "a"}, srcs)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		kind error
	}{
		{"missing file", filepath.Join(dir, "nope.json"), ErrNotFound},
		{"directory", dir, ErrUnreadable},
		{"not json", writeFile(t, "m.json", `files: [`), ErrMalformed},
		{"top level array", writeFile(t, "m.json", `[{"src":"a"}]`), ErrMalformed},
		{"files not array", writeFile(t, "m.json", `{"files": "a.png"}`), ErrMalformed},
		{"record without src", writeFile(t, "m.json", `{"files":[{"src":"a"},{"dst":"b"}]}`), ErrMalformed},
		{"empty src", writeFile(t, "m.json", `{"files":[{"src":""}]}`), ErrMalformed},
		{"record not object", writeFile(t, "m.json", `{"files":[1]}`), ErrMalformed},
		{"empty file", writeFile(t, "m.json", ``), ErrMalformed},
		{"yaml scalar", writeFile(t, "m.yaml", "just text\n"), ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Load(tt.path)
			require.Error(t, err)
			assert.Nil(t, entries)
			assert.ErrorIs(t, err, tt.kind)

			var lerr *LoadError
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, tt.path, lerr.Path)
		})
	}
}

func TestLoad_MissingSrcNamesIndex(t *testing.T) {
	_, err := Load(writeFile(t, "m.json", `{"files":[{"src":"a"},{"src":"b"},{"dst":"c"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "files[2]")
}
