package testutil

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/result"
)

// FakeEngine is an engine.Engine returning canned results keyed by the base
// name of the image path. Images without an entry get no regions.
type FakeEngine struct {
	Flat       map[string][]result.Recognition
	Structures map[string][]result.Structure

	// RecognizeErr fails every Recognize call.
	RecognizeErr error
	// StructureErrs fails Structure for the named images.
	StructureErrs map[string]error

	mu             sync.Mutex
	recognizeCalls []FlatCall
	structureCalls []StructureCall
	closed         bool
}

// FlatCall records one Recognize call.
type FlatCall struct {
	Paths  []string
	Stages engine.FlatStages
}

// StructureCall records one Structure call.
type StructureCall struct {
	Path   string
	Stages engine.StructureStages
}

// Recognize implements engine.Engine.
func (f *FakeEngine) Recognize(_ context.Context, images []imageio.Image, stages engine.FlatStages) ([][]result.Recognition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := FlatCall{Stages: stages}
	for _, img := range images {
		call.Paths = append(call.Paths, img.Path)
	}
	f.recognizeCalls = append(f.recognizeCalls, call)

	if f.RecognizeErr != nil {
		return nil, f.RecognizeErr
	}
	out := make([][]result.Recognition, len(images))
	for i, img := range images {
		out[i] = f.Flat[filepath.Base(img.Path)]
	}
	return out, nil
}

// Structure implements engine.Engine.
func (f *FakeEngine) Structure(_ context.Context, img imageio.Image, stages engine.StructureStages) ([]result.Structure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structureCalls = append(f.structureCalls, StructureCall{Path: img.Path, Stages: stages})

	base := filepath.Base(img.Path)
	if err := f.StructureErrs[base]; err != nil {
		return nil, err
	}
	return f.Structures[base], nil
}

// Close implements engine.Engine.
func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// RecognizeCalls returns the recorded Recognize calls.
func (f *FakeEngine) RecognizeCalls() []FlatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FlatCall(nil), f.recognizeCalls...)
}

// StructureCalls returns the recorded Structure calls.
func (f *FakeEngine) StructureCalls() []StructureCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StructureCall(nil), f.structureCalls...)
}

// Closed reports whether Close was called.
func (f *FakeEngine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Region returns a recognized axis aligned region.
func Region(x, y, w, h int, text string, score float64) result.Recognition {
	return result.Recognition{
		Box:      []image.Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}},
		Text:     text,
		Score:    score,
		ClsLabel: -1,
	}
}

// FakeCounter is an accel.DeviceCounter with a fixed answer.
type FakeCounter struct {
	N     int
	Err   error
	Calls int
}

// Count implements accel.DeviceCounter.
func (c *FakeCounter) Count(ctx context.Context) (int, error) {
	c.Calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.Err != nil {
		return 0, fmt.Errorf("fake device query: %w", c.Err)
	}
	return c.N, nil
}
