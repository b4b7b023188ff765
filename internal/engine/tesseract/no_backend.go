//go:build !tesseract

package tesseract

import (
	"fmt"

	"github.com/MeKo-Tech/ppbatch/internal/engine"
)

func init() {
	engine.Register(Name, func(engine.Options) (engine.Engine, error) {
		return nil, fmt.Errorf("%w: build with -tags=tesseract", engine.ErrNoBackend)
	})
}
