package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/ppbatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunValidationError(t *testing.T) {
	dir := isolate(t)
	manifestPath := testutil.WriteManifest(t, dir)

	_, stderr, err := execute(t, nil, "run",
		"--det-model-dir", "/m/det", "--rec-model-dir", "/m/rec",
		"--table", "--image-dir", manifestPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage[table]")
	assert.Contains(t, stderr, "Usage[table]")
	assert.NoDirExists(t, filepath.Join(dir, "output"))
}

func TestRunMissingModels(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, nil, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage[det]")
}

func TestRunEmptyManifest(t *testing.T) {
	dir := isolate(t)
	manifestPath := testutil.WriteManifest(t, dir)
	reportPath := filepath.Join(dir, "result.json")
	counter := &testutil.FakeCounter{N: 1}

	out, _, err := execute(t, counter, "run",
		"--det-model-dir", "/m/det", "--rec-model-dir", "/m/rec",
		"--image-dir", manifestPath,
		"--output", filepath.Join(dir, "out"),
		"--report", reportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "total images num: 0")
	assert.Equal(t, 1, counter.Calls, "implicit preference is probed")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code" : "0"`)
	assert.DirExists(t, filepath.Join(dir, "out"))
}

func TestRunExplicitGPUSkipsProbe(t *testing.T) {
	dir := isolate(t)
	manifestPath := testutil.WriteManifest(t, dir)
	counter := &testutil.FakeCounter{}

	_, _, err := execute(t, counter, "run",
		"--det-model-dir", "/m/det", "--rec-model-dir", "/m/rec",
		"--image-dir", manifestPath, "--output", filepath.Join(dir, "out"),
		"--use-gpu=false")
	require.NoError(t, err)
	assert.Zero(t, counter.Calls)
}

func TestRunProgressInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		want     int
	}{
		{"every image", "1", 3},
		{"default interval logs the last image", "10", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			manifestPath := testutil.WriteManifest(t, dir,
				testutil.ManifestEntry{Src: filepath.Join(dir, "a.png")},
				testutil.ManifestEntry{Src: filepath.Join(dir, "b.png")},
				testutil.ManifestEntry{Src: filepath.Join(dir, "c.png")},
			)

			_, stderr, err := execute(t, &testutil.FakeCounter{}, "run",
				"--det-model-dir", "/m/det", "--rec-model-dir", "/m/rec",
				"--image-dir", manifestPath, "--output", filepath.Join(dir, "out"),
				"--progress", "--progress-interval", tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.Count(stderr, `"msg":"batch progress"`))
		})
	}
}

func TestRunManifestNotFound(t *testing.T) {
	dir := isolate(t)
	_, _, err := execute(t, nil, "run",
		"--det-model-dir", "/m/det", "--rec-model-dir", "/m/rec",
		"--image-dir", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestRunFlagsFromConfigFile(t *testing.T) {
	dir := isolate(t)
	manifestPath := testutil.WriteManifest(t, dir)
	cfgPath := filepath.Join(dir, "ppbatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"manifest: "+manifestPath+"\n"+
			"output_dir: "+filepath.Join(dir, "from-config")+"\n"+
			"models:\n  det_dir: /m/det\n  rec_dir: /m/rec\n"+
			"gpu:\n  use_gpu: false\n"), 0o600))
	counter := &testutil.FakeCounter{}

	out, _, err := execute(t, counter, "run")
	require.NoError(t, err, "config in the working directory is found")
	assert.Contains(t, out, "total images num: 0")
	assert.DirExists(t, filepath.Join(dir, "from-config"))
	assert.Zero(t, counter.Calls, "use_gpu in the config file counts as explicit")
}
