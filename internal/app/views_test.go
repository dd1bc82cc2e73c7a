package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/Amund211/viewcache/internal/adapters/cache"
	"github.com/Amund211/viewcache/internal/adapters/renderer"
	"github.com/Amund211/viewcache/internal/adapters/viewloader"
	"github.com/Amund211/viewcache/internal/app"
	"github.com/Amund211/viewcache/internal/domain"
	"github.com/stretchr/testify/require"
)

// Records the keys it is asked to load
type recordingLoader struct {
	mu   sync.Mutex
	keys []string

	loader cache.Loader
}

func (l *recordingLoader) Load(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.loader.Load(ctx, key)
}

func (l *recordingLoader) loadedKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

func newTestFS() fstest.MapFS {
	return fstest.MapFS{
		"views/master.tmpl":    {Data: []byte("<h1>{{ .title }}</h1>")},
		"views/master.foo":     {Data: []byte("foo: {{ .title }}")},
		"views/master.bar":     {Data: []byte("bar: {{ .title }}")},
		"views/nested/a.tmpl":  {Data: []byte("nested {{ .filename }}")},
		"views/broken.tmpl":    {Data: []byte("{{ .unterminated")},
		"views/text.tmpl":      {Data: []byte("<p>{{ .body }}</p>")},
		"views/defaults.tmpl":  {Data: []byte("{{ .greeting }}, {{ .name_ }}")},
		"views/basedir.tmpl":   {Data: []byte("{{ .basedir }}")},
		"views/preload-a.tmpl": {Data: []byte("a")},
		"views/preload-b.tmpl": {Data: []byte("b")},
	}
}

func newRecordingLoader() *recordingLoader {
	return &recordingLoader{loader: viewloader.NewFS(newTestFS())}
}

func TestNewViews(t *testing.T) {
	t.Parallel()

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("")
		require.ErrorIs(t, err, domain.ErrMissingRoot)
		require.Nil(t, views)
	})

	t.Run("reserved default param", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithDefaultParams(domain.Params{"filename": "x"}))
		require.ErrorIs(t, err, domain.ErrReservedParameter)
		require.ErrorContains(t, err, "filename")
		require.Nil(t, views)
	})

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithDefaultParams(domain.Params{"title": "x"}))
		require.NoError(t, err)
		require.Equal(t, "views", views.Root())
		require.False(t, views.Diagnostics())
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		opts        []app.Option
		logicalPath string
		want        string
	}{
		{
			name:        "default extension",
			logicalPath: "master",
			want:        "/views/master.tmpl",
		},
		{
			name:        "custom extension",
			opts:        []app.Option{app.WithDefaultExtension(".foo")},
			logicalPath: "master",
			want:        "/views/master.foo",
		},
		{
			name:        "explicit extension is kept",
			opts:        []app.Option{app.WithDefaultExtension(".foo")},
			logicalPath: "master.bar",
			want:        "/views/master.bar",
		},
		{
			name:        "nested",
			logicalPath: "nested/a",
			want:        "/views/nested/a.tmpl",
		},
		{
			name:        "hidden file has no extension",
			opts:        []app.Option{app.WithDefaultExtension(".foo")},
			logicalPath: ".partial",
			want:        "/views/.partial.foo",
		},
		{
			name:        "nested hidden file has no extension",
			opts:        []app.Option{app.WithDefaultExtension(".foo")},
			logicalPath: "dir/.partial",
			want:        "/views/dir/.partial.foo",
		},
		{
			name:        "hidden file with extension",
			opts:        []app.Option{app.WithDefaultExtension(".foo")},
			logicalPath: ".partial.bar",
			want:        "/views/.partial.bar",
		},
		{
			name:        "dotted directory",
			logicalPath: "v1.2/master",
			want:        "/views/v1.2/master.tmpl",
		},
		{
			name:        "path is cleaned",
			logicalPath: "nested/../master",
			want:        "/views/master.tmpl",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			views, err := app.NewViews("/views", c.opts...)
			require.NoError(t, err)
			require.Equal(t, c.want, views.Resolve(c.logicalPath))
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	t.Run("renders with params", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithLoader(viewloader.NewFS(newTestFS())))
		require.NoError(t, err)

		result, err := views.Render(t.Context(), "master", domain.Params{"title": "hello"})
		require.NoError(t, err)
		require.Equal(t, "<h1>hello</h1>", result.Output)
		require.Equal(t, "views/master.tmpl", result.Key)
		require.Empty(t, result.Source, "source is only reported with diagnostics")
	})

	t.Run("extension resolution", func(t *testing.T) {
		t.Parallel()

		loader := newRecordingLoader()
		views, err := app.NewViews("views", app.WithLoader(loader), app.WithDefaultExtension(".foo"))
		require.NoError(t, err)

		result, err := views.Render(t.Context(), "master", domain.Params{"title": "1"})
		require.NoError(t, err)
		require.Equal(t, "foo: 1", result.Output)

		result, err = views.Render(t.Context(), "master.bar", domain.Params{"title": "2"})
		require.NoError(t, err)
		require.Equal(t, "bar: 2", result.Output)

		require.Equal(t, []string{"views/master.foo", "views/master.bar"}, loader.loadedKeys())
	})

	t.Run("default params are merged", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews(
			"views",
			app.WithLoader(viewloader.NewFS(newTestFS())),
			app.WithDefaultParams(domain.Params{"greeting": "hello", "name_": "default"}),
		)
		require.NoError(t, err)

		result, err := views.Render(t.Context(), "defaults", nil)
		require.NoError(t, err)
		require.Equal(t, "hello, default", result.Output)

		result, err = views.Render(t.Context(), "defaults", domain.Params{"name_": "override"})
		require.NoError(t, err)
		require.Equal(t, "hello, override", result.Output)
	})

	t.Run("filename and basedir are provided", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithLoader(viewloader.NewFS(newTestFS())))
		require.NoError(t, err)

		result, err := views.Render(t.Context(), "nested/a", nil)
		require.NoError(t, err)
		require.Equal(t, "nested views/nested/a.tmpl", result.Output)

		result, err = views.Render(t.Context(), "basedir", nil)
		require.NoError(t, err)
		require.Equal(t, "views", result.Output)
	})

	t.Run("reserved call param is rejected before loading", func(t *testing.T) {
		t.Parallel()

		loader := newRecordingLoader()
		views, err := app.NewViews("views", app.WithLoader(loader))
		require.NoError(t, err)

		for _, name := range []string{"cache", "self", "filename", "pretty"} {
			_, err := views.Render(t.Context(), "master", domain.Params{name: true})
			require.ErrorIs(t, err, domain.ErrReservedParameter)
			require.ErrorContains(t, err, name)
		}

		require.Empty(t, loader.loadedKeys())
	})

	t.Run("missing view", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithLoader(viewloader.NewFS(newTestFS())))
		require.NoError(t, err)

		_, err = views.Render(t.Context(), "does-not-exist", nil)
		require.ErrorIs(t, err, domain.ErrViewNotFound)
	})

	t.Run("render error is passed through", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithLoader(viewloader.NewFS(newTestFS())))
		require.NoError(t, err)

		_, err = views.Render(t.Context(), "broken", nil)
		require.ErrorIs(t, err, domain.ErrRender)
		require.Equal(t, 1, strings.Count(err.Error(), domain.ErrRender.Error()))
	})

	t.Run("custom renderer error is passed through", func(t *testing.T) {
		t.Parallel()

		rendererErr := errors.New("renderer exploded")
		views, err := app.NewViews(
			"views",
			app.WithLoader(viewloader.NewFS(newTestFS())),
			app.WithRenderer(rendererFunc(func(ctx context.Context, input renderer.Input) (string, error) {
				return "", rendererErr
			})),
		)
		require.NoError(t, err)

		_, err = views.Render(t.Context(), "master", nil)
		require.Same(t, rendererErr, err)
	})

	t.Run("renderer options are passed through", func(t *testing.T) {
		t.Parallel()

		var got renderer.Input
		views, err := app.NewViews(
			"views",
			app.WithLoader(viewloader.NewFS(newTestFS())),
			app.WithRendererOption(renderer.ModeOption, renderer.ModeText),
			app.WithDefaultParams(domain.Params{"a": 1}),
			app.WithRenderer(rendererFunc(func(ctx context.Context, input renderer.Input) (string, error) {
				got = input
				return "ok", nil
			})),
		)
		require.NoError(t, err)

		result, err := views.Render(t.Context(), "master", domain.Params{"b": 2})
		require.NoError(t, err)
		require.Equal(t, "ok", result.Output)

		require.Equal(t, renderer.Input{
			Source:  "<h1>{{ .title }}</h1>",
			Key:     "views/master.tmpl",
			Root:    "views",
			Params:  domain.Params{"a": 1, "b": 2},
			Options: map[string]string{renderer.ModeOption: renderer.ModeText},
		}, got)
	})

	t.Run("text mode", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews(
			"views",
			app.WithLoader(viewloader.NewFS(newTestFS())),
			app.WithRendererOption(renderer.ModeOption, renderer.ModeText),
		)
		require.NoError(t, err)

		result, err := views.Render(t.Context(), "text", domain.Params{"body": "<b>x</b>"})
		require.NoError(t, err)
		require.Equal(t, "<p><b>x</b></p>", result.Output)
	})

	t.Run("diagnostics without concurrency", func(t *testing.T) {
		t.Parallel()

		for _, cacheEnabled := range []bool{true, false} {
			loader := newRecordingLoader()
			views, err := app.NewViews(
				"views",
				app.WithLoader(loader),
				app.WithCache(cacheEnabled),
				app.WithDiagnostics(true),
			)
			require.NoError(t, err)

			first, err := views.Render(t.Context(), "master", nil)
			require.NoError(t, err)
			require.Equal(t, domain.SourceFilesystem, first.Source)

			second, err := views.Render(t.Context(), "master", nil)
			require.NoError(t, err)
			if cacheEnabled {
				require.Equal(t, domain.SourceCache, second.Source)
				require.Len(t, loader.loadedKeys(), 1)
			} else {
				require.Equal(t, domain.SourceFilesystem, second.Source)
				require.Len(t, loader.loadedKeys(), 2)
			}
		}
	})

	t.Run("basic store", func(t *testing.T) {
		t.Parallel()

		stores := atomic.Int32{}
		loader := newRecordingLoader()
		views, err := app.NewViews(
			"views",
			app.WithLoader(loader),
			app.WithCache(true),
			app.WithStore(func() cache.Store {
				stores.Add(1)
				return cache.NewBasicStore()
			}),
		)
		require.NoError(t, err)
		require.Equal(t, int32(1), stores.Load())

		for range 3 {
			_, err := views.Render(t.Context(), "master", nil)
			require.NoError(t, err)
		}
		require.Len(t, loader.loadedKeys(), 1)
	})
}

type rendererFunc func(ctx context.Context, input renderer.Input) (string, error)

func (f rendererFunc) Render(ctx context.Context, input renderer.Input) (string, error) {
	return f(ctx, input)
}

func TestFork(t *testing.T) {
	t.Parallel()

	t.Run("overrides are applied on top of the original options", func(t *testing.T) {
		t.Parallel()

		loader := newRecordingLoader()
		original, err := app.NewViews(
			"views",
			app.WithLoader(loader),
			app.WithDefaultExtension(".foo"),
			app.WithDefaultParams(domain.Params{"title": "original"}),
		)
		require.NoError(t, err)

		fork, err := original.Fork(app.WithDefaultParams(domain.Params{"title": "fork"}))
		require.NoError(t, err)

		result, err := fork.Render(t.Context(), "master", nil)
		require.NoError(t, err)
		require.Equal(t, "foo: fork", result.Output)

		result, err = original.Render(t.Context(), "master", nil)
		require.NoError(t, err)
		require.Equal(t, "foo: original", result.Output)
	})

	t.Run("fork of a fork starts from the fork's options", func(t *testing.T) {
		t.Parallel()

		original, err := app.NewViews("/views")
		require.NoError(t, err)

		fork, err := original.Fork(app.WithDefaultExtension(".foo"))
		require.NoError(t, err)
		forkOfFork, err := fork.Fork(app.WithDiagnostics(true))
		require.NoError(t, err)

		require.Equal(t, "/views/master.tmpl", original.Resolve("master"))
		require.Equal(t, "/views/master.foo", fork.Resolve("master"))
		require.Equal(t, "/views/master.foo", forkOfFork.Resolve("master"))
		require.True(t, forkOfFork.Diagnostics())
		require.False(t, fork.Diagnostics())
	})

	t.Run("fork has an independent cache", func(t *testing.T) {
		t.Parallel()

		loader := newRecordingLoader()
		original, err := app.NewViews(
			"views",
			app.WithLoader(loader),
			app.WithCache(true),
			app.WithDiagnostics(true),
		)
		require.NoError(t, err)

		result, err := original.Render(t.Context(), "master", nil)
		require.NoError(t, err)
		require.Equal(t, domain.SourceFilesystem, result.Source)

		fork, err := original.Fork()
		require.NoError(t, err)

		result, err = fork.Render(t.Context(), "master", nil)
		require.NoError(t, err)
		require.Equal(t, domain.SourceFilesystem, result.Source)

		result, err = original.Render(t.Context(), "master", nil)
		require.NoError(t, err)
		require.Equal(t, domain.SourceCache, result.Source)

		require.Len(t, loader.loadedKeys(), 2)
	})

	t.Run("invalid override", func(t *testing.T) {
		t.Parallel()

		original, err := app.NewViews("views")
		require.NoError(t, err)

		fork, err := original.Fork(app.WithDefaultParams(domain.Params{"self": true}))
		require.ErrorIs(t, err, domain.ErrReservedParameter)
		require.Nil(t, fork)
	})
}

func TestPreload(t *testing.T) {
	t.Parallel()

	t.Run("warms the cache", func(t *testing.T) {
		t.Parallel()

		loader := newRecordingLoader()
		views, err := app.NewViews(
			"views",
			app.WithLoader(loader),
			app.WithCache(true),
			app.WithDiagnostics(true),
		)
		require.NoError(t, err)

		err = views.Preload(t.Context(), "preload-a", "preload-b")
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"views/preload-a.tmpl", "views/preload-b.tmpl"}, loader.loadedKeys())

		for _, logicalPath := range []string{"preload-a", "preload-b"} {
			result, err := views.Render(t.Context(), logicalPath, nil)
			require.NoError(t, err)
			require.Equal(t, domain.SourceCache, result.Source)
		}
	})

	t.Run("missing view", func(t *testing.T) {
		t.Parallel()

		views, err := app.NewViews("views", app.WithLoader(viewloader.NewFS(newTestFS())))
		require.NoError(t, err)

		err = views.Preload(t.Context(), "preload-a", "does-not-exist")
		require.ErrorIs(t, err, domain.ErrViewNotFound)
	})
}
