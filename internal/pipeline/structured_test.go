package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/ppbatch/internal/config"
	"github.com/MeKo-Tech/ppbatch/internal/manifest"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/MeKo-Tech/ppbatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structureFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.cfg.Mode = config.ModeStructure
	f.cfg.Stages.Layout = true
	f.cfg.Stages.Table = true
	return f
}

func TestRunStructured(t *testing.T) {
	f := structureFixture(t)
	doc := f.image(t, "doc.png")
	f.engine.Structures = map[string][]result.Structure{
		"doc.png": {
			result.NewStructure("text", [4]float64{0, 0, 100, 20}, 0.9, "", nil,
				[]result.Recognition{testutil.Region(0, 0, 100, 20, "Title", 0.97)}),
			result.NewStructure("table", [4]float64{10, 30, 200, 120}, 0.8,
				"<table><tr><td>1</td></tr></table>", [][]float64{{0, 0, 40, 20}}, nil),
			result.NewStructure("figure", [4]float64{0, 130, 50, 180}, 0.7, "", nil, nil),
		},
	}

	batch, err := f.runner(t).RunStructured(context.Background(), []manifest.Entry{doc})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Len(t, batch[0].Regions, 3)

	calls := f.engine.StructureCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Stages.Layout)
	assert.True(t, calls[0].Stages.Table)
	assert.True(t, calls[0].Stages.OCR)

	out := f.stdout.String()
	assert.True(t, strings.HasPrefix(out, "predict img: "+doc.Src+"\n"))
	assert.Contains(t, out, "0\ttype: text, region: [")
	assert.Contains(t, out, "count of ocr result is : 1\n")
	assert.Contains(t, out, "********** print ocr result **********")
	assert.Contains(t, out, "1\ttype: table")
	assert.Contains(t, out, "<table><tr><td>1</td></tr></table>\n")
	assert.Contains(t, out, "2\ttype: figure")
	assert.Contains(t, out, "count of ocr result is : 0\n")

	assert.FileExists(t, filepath.Join(f.out, "1_doc.png"))
	assert.NoFileExists(t, filepath.Join(f.out, "0_doc.png"))
	assert.NoFileExists(t, filepath.Join(f.out, "doc.png"))
}

func TestRunStructuredOCRNeedsDetAndRec(t *testing.T) {
	f := structureFixture(t)
	f.cfg.Stages.Rec = false

	_, err := f.runner(t).RunStructured(context.Background(), []manifest.Entry{f.image(t, "doc.png")})
	require.NoError(t, err)
	assert.False(t, f.engine.StructureCalls()[0].Stages.OCR)
}

func TestRunStructuredIsolatesFailures(t *testing.T) {
	f := structureFixture(t)
	bad := f.image(t, "bad.png")
	good := f.image(t, "good.png")
	missing := manifest.Entry{Src: filepath.Join(f.dir, "missing.png")}
	f.engine.StructureErrs = map[string]error{"bad.png": errors.New("layout failed")}
	f.engine.Structures = map[string][]result.Structure{
		"good.png": {result.NewStructure("text", [4]float64{}, 0.9, "", nil, nil)},
	}

	batch, err := f.runner(t).RunStructured(context.Background(), []manifest.Entry{bad, missing, good})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, good.Src, batch[0].Path)

	out := f.stdout.String()
	assert.Contains(t, out, "predict img: "+missing.Src+"\n", "path is printed before the read")
	assert.Len(t, f.engine.StructureCalls(), 2)
	assert.Contains(t, f.logs.String(), "structure analysis failed")
	assert.Contains(t, f.logs.String(), "image read failed")
}

func TestRunStructuredNoVisualization(t *testing.T) {
	f := structureFixture(t)
	f.cfg.Visualize = false
	f.engine.Structures = map[string][]result.Structure{
		"doc.png": {result.NewStructure("table", [4]float64{0, 0, 50, 50}, 0.8, "<table></table>", [][]float64{{0, 0, 10, 10}}, nil)},
	}

	_, err := f.runner(t).RunStructured(context.Background(), []manifest.Entry{f.image(t, "doc.png")})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(f.out, "0_doc.png"))
}

func TestRunStructuredCanceled(t *testing.T) {
	f := structureFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner(t).RunStructured(ctx, []manifest.Entry{f.image(t, "doc.png")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.engine.StructureCalls())
}
