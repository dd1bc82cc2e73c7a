package renderer

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"maps"
	"strings"
	texttemplate "text/template"

	"github.com/Amund211/viewcache/internal/domain"
)

const (
	ModeOption = "mode"

	ModeHTML = "html"
	ModeText = "text"
)

// Template renders views with the standard library template packages.
//
// The params are exposed as the template data along with "filename" (the resolved key) and
// "basedir" (the view root).
type Template struct{}

func NewTemplate() *Template {
	return &Template{}
}

func (r *Template) Render(ctx context.Context, input Input) (string, error) {
	data := make(map[string]any, len(input.Params)+2)
	maps.Copy(data, input.Params)
	data["filename"] = input.Key
	data["basedir"] = input.Root

	mode := input.Options[ModeOption]
	if mode == "" {
		mode = ModeHTML
	}

	out := &strings.Builder{}
	switch mode {
	case ModeHTML:
		tmpl, err := htmltemplate.New(input.Key).Parse(input.Source)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
		if err := tmpl.Execute(out, data); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
	case ModeText:
		tmpl, err := texttemplate.New(input.Key).Parse(input.Source)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
		if err := tmpl.Execute(out, data); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
	default:
		return "", fmt.Errorf("%w: unknown mode %q", domain.ErrRender, mode)
	}

	return out.String(), nil
}
