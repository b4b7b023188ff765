package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ManifestEntry is one record of a test manifest.
type ManifestEntry struct {
	Src string `json:"src"`
	Dst string `json:"dst,omitempty"`
}

// WriteManifest writes a JSON manifest listing entries to dir/list.json and
// returns its path.
func WriteManifest(t *testing.T, dir string, entries ...ManifestEntry) string {
	t.Helper()
	if entries == nil {
		entries = []ManifestEntry{}
	}
	data, err := json.MarshalIndent(map[string]interface{}{"files": entries}, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(dir, "list.json")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
