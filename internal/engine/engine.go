// Package engine defines the boundary to the recognition engine that does
// the actual detection, recognition, classification and layout work.
//
// Backends register themselves by name from an init function; the binary
// selects one with Options.Backend.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/result"
)

// ErrNoBackend is returned by backends that were not compiled into the binary.
var ErrNoBackend = errors.New("engine backend not available in this build")

// ErrUnknownBackend is returned by New for an unregistered backend name.
var ErrUnknownBackend = errors.New("unknown engine backend")

// FlatStages selects the stages of a flat recognition call.
type FlatStages struct {
	Detect    bool
	Recognize bool
	Classify  bool
}

// StructureStages selects the stages of a document structure call.
type StructureStages struct {
	Layout bool
	Table  bool
	OCR    bool
}

// Engine runs recognition. Implementations return complete results and
// block until done.
type Engine interface {
	// Recognize returns one result slice per input image, in input order.
	Recognize(ctx context.Context, images []imageio.Image, stages FlatStages) ([][]result.Recognition, error)
	// Structure returns the layout regions of one image.
	Structure(ctx context.Context, img imageio.Image, stages StructureStages) ([]result.Structure, error)
	Close() error
}

// ModelDirs holds the model directories passed to the backend.
type ModelDirs struct {
	Det    string
	Rec    string
	Cls    string
	Layout string
	Table  string
}

// Options configures a backend.
type Options struct {
	Backend     string
	Endpoint    string
	Timeout     time.Duration
	Language    string
	Models      ModelDirs
	Precision   string
	UseGPU      bool
	GPUDevice   int
	UseAngleCls bool
	Logger      *slog.Logger
}

// Factory builds an engine from options.
type Factory func(opts Options) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("engine: Register called twice for backend " + name)
	}
	registry[name] = f
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New returns the engine for opts.Backend. The backend itself is built on
// the first Recognize or Structure call, so a run without images never
// dials a server or loads native libraries.
func New(opts Options) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[opts.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownBackend, opts.Backend, Backends())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &lazy{factory: f, opts: opts}, nil
}

type lazy struct {
	factory Factory
	opts    Options

	mu  sync.Mutex
	eng Engine
	err error
}

func (l *lazy) get() (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.eng == nil && l.err == nil {
		l.opts.Logger.Debug("starting engine backend", "backend", l.opts.Backend)
		l.eng, l.err = l.factory(l.opts)
		if l.err != nil {
			l.err = fmt.Errorf("start %s engine: %w", l.opts.Backend, l.err)
		}
	}
	return l.eng, l.err
}

func (l *lazy) Recognize(ctx context.Context, images []imageio.Image, stages FlatStages) ([][]result.Recognition, error) {
	eng, err := l.get()
	if err != nil {
		return nil, err
	}
	out, err := eng.Recognize(ctx, images, stages)
	if err != nil {
		return nil, err
	}
	if len(out) != len(images) {
		return nil, fmt.Errorf("engine returned %d results for %d images", len(out), len(images))
	}
	return out, nil
}

func (l *lazy) Structure(ctx context.Context, img imageio.Image, stages StructureStages) ([]result.Structure, error) {
	eng, err := l.get()
	if err != nil {
		return nil, err
	}
	return eng.Structure(ctx, img, stages)
}

func (l *lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.eng == nil {
		return nil
	}
	err := l.eng.Close()
	l.eng = nil
	return err
}

// Started reports whether e is a lazily started engine whose backend has
// been built. Engines not created by New report true.
func Started(e Engine) bool {
	l, ok := e.(*lazy)
	if !ok {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eng != nil || l.err != nil
}
