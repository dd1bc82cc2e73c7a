package renderer

import (
	"context"

	"github.com/Amund211/viewcache/internal/domain"
)

type Input struct {
	// Raw view source
	Source string
	// Resolved key the source was loaded from
	Key string
	// Root views are resolved relative to
	Root string
	// Merged and validated user params
	Params domain.Params
	// Renderer specific options passed through from the view configuration
	Options map[string]string
}

type Renderer interface {
	Render(ctx context.Context, input Input) (string, error)
}
