package engine

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	perImage int // results returned per call, -1 means one per image
	closed   bool
}

func (s *stubEngine) Recognize(_ context.Context, images []imageio.Image, _ FlatStages) ([][]result.Recognition, error) {
	n := len(images)
	if s.perImage >= 0 {
		n = s.perImage
	}
	return make([][]result.Recognition, n), nil
}

func (s *stubEngine) Structure(context.Context, imageio.Image, StructureStages) ([]result.Structure, error) {
	return []result.Structure{result.NewStructure("text", [4]float64{}, 1, "", nil, nil)}, nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func img() imageio.Image {
	return imageio.Image{Path: "a.png", Img: image.NewGray(image.Rect(0, 0, 1, 1))}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(Options{Backend: "does-not-exist"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNew_IsLazy(t *testing.T) {
	built := 0
	stub := &stubEngine{perImage: -1}
	Register("test-lazy", func(Options) (Engine, error) {
		built++
		return stub, nil
	})
	assert.Contains(t, Backends(), "test-lazy")

	eng, err := New(Options{Backend: "test-lazy"})
	require.NoError(t, err)
	assert.False(t, Started(eng))
	assert.Equal(t, 0, built)
	require.NoError(t, eng.Close())
	assert.False(t, stub.closed, "closing an unstarted engine must not build it")

	out, err := eng.Recognize(context.Background(), []imageio.Image{img(), img()}, FlatStages{Detect: true})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	_, err = eng.Structure(context.Background(), img(), StructureStages{})
	require.NoError(t, err)
	assert.Equal(t, 1, built)
	assert.True(t, Started(eng))

	require.NoError(t, eng.Close())
	assert.True(t, stub.closed)
}

func TestNew_FactoryErrorIsSticky(t *testing.T) {
	calls := 0
	Register("test-broken", func(Options) (Engine, error) {
		calls++
		return nil, ErrNoBackend
	})
	eng, err := New(Options{Backend: "test-broken"})
	require.NoError(t, err)

	for range 2 {
		_, err = eng.Recognize(context.Background(), []imageio.Image{img()}, FlatStages{})
		assert.ErrorIs(t, err, ErrNoBackend)
	}
	assert.Equal(t, 1, calls)
}

func TestRecognize_LengthMismatch(t *testing.T) {
	Register("test-short", func(Options) (Engine, error) { return &stubEngine{perImage: 1}, nil })
	eng, err := New(Options{Backend: "test-short"})
	require.NoError(t, err)

	_, err = eng.Recognize(context.Background(), []imageio.Image{img(), img()}, FlatStages{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 results for 2 images")
}

func TestRegister_Duplicate(t *testing.T) {
	Register("test-dup", func(Options) (Engine, error) { return nil, errors.New("unused") })
	assert.Panics(t, func() {
		Register("test-dup", func(Options) (Engine, error) { return nil, nil })
	})
}

func TestStarted_ForeignEngine(t *testing.T) {
	assert.True(t, Started(&stubEngine{}))
}
