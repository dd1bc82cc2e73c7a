package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Amund211/viewcache/internal/adapters/cache"
	"github.com/Amund211/viewcache/internal/adapters/renderer"
	"github.com/Amund211/viewcache/internal/adapters/viewloader"
	"github.com/Amund211/viewcache/internal/domain"
	"github.com/Amund211/viewcache/internal/logging"
	"golang.org/x/sync/errgroup"
)

type Result struct {
	Output string
	// Resolved key the view was loaded from
	Key string
	// Which path served the view. Only set when diagnostics are enabled.
	Source domain.Source
}

type RenderView func(ctx context.Context, logicalPath string, params domain.Params) (Result, error)

type viewsConfig struct {
	extension       string
	cacheEnabled    bool
	diagnostics     bool
	defaultParams   domain.Params
	loader          cache.Loader
	newStore        func() cache.Store
	renderer        renderer.Renderer
	rendererOptions map[string]string
}

type Option func(*viewsConfig)

func WithDefaultExtension(extension string) Option {
	return func(c *viewsConfig) {
		c.extension = extension
	}
}

func WithCache(enabled bool) Option {
	return func(c *viewsConfig) {
		c.cacheEnabled = enabled
	}
}

// WithDiagnostics sets Result.Source on every render
func WithDiagnostics(enabled bool) Option {
	return func(c *viewsConfig) {
		c.diagnostics = enabled
	}
}

// WithDefaultParams sets params that are passed to every render. Params passed to Render take
// precedence.
func WithDefaultParams(params domain.Params) Option {
	return func(c *viewsConfig) {
		c.defaultParams = domain.MergeParams(nil, params)
	}
}

func WithLoader(loader cache.Loader) Option {
	return func(c *viewsConfig) {
		c.loader = loader
	}
}

// WithStore sets the constructor for the cache store. Called once per instance.
func WithStore(newStore func() cache.Store) Option {
	return func(c *viewsConfig) {
		c.newStore = newStore
	}
}

func WithRenderer(r renderer.Renderer) Option {
	return func(c *viewsConfig) {
		c.renderer = r
	}
}

// WithRendererOption passes an option through to the renderer unchanged
func WithRendererOption(name, value string) Option {
	return func(c *viewsConfig) {
		if c.rendererOptions == nil {
			c.rendererOptions = make(map[string]string)
		}
		c.rendererOptions[name] = value
	}
}

// Views resolves logical view paths to keys under a root, loads them through a coalescing cache
// and renders them with the configured params.
type Views struct {
	root   string
	opts   []Option
	config viewsConfig
	cache  *cache.CoalescingCache
}

func NewViews(root string, opts ...Option) (*Views, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: views need a root directory", domain.ErrMissingRoot)
	}

	config := viewsConfig{
		extension:     domain.DEFAULT_EXTENSION,
		defaultParams: domain.Params{},
		newStore:      cache.NewTTLStore,
	}
	for _, opt := range opts {
		opt(&config)
	}

	if err := domain.CheckReserved(config.defaultParams); err != nil {
		return nil, fmt.Errorf("invalid default params: %w", err)
	}

	if config.loader == nil {
		config.loader = viewloader.NewFilesystem()
	}
	if config.renderer == nil {
		config.renderer = renderer.NewTemplate()
	}

	var store cache.Store
	if config.cacheEnabled {
		store = config.newStore()
	}

	return &Views{
		root:   root,
		opts:   slices.Clone(opts),
		config: config,
		cache:  cache.NewCoalescingCache(config.loader, store),
	}, nil
}

// Fork creates a new instance from the options this instance was created with, followed by
// overrides. The fork has its own cache.
func (v *Views) Fork(overrides ...Option) (*Views, error) {
	opts := append(slices.Clone(v.opts), overrides...)
	return NewViews(v.root, opts...)
}

// Resolve returns the key for the given logical path. The default extension is appended only if
// the path has none.
func (v *Views) Resolve(logicalPath string) string {
	if !hasExtension(logicalPath) {
		logicalPath += v.config.extension
	}
	return filepath.Join(v.root, logicalPath)
}

// A leading dot marks a hidden file, not an extension (".partial" has none, ".partial.tmpl" has one)
func hasExtension(logicalPath string) bool {
	base := strings.TrimLeft(filepath.Base(logicalPath), ".")
	return filepath.Ext(base) != ""
}

func (v *Views) Root() string {
	return v.root
}

func (v *Views) Diagnostics() bool {
	return v.config.diagnostics
}

func (v *Views) Render(ctx context.Context, logicalPath string, params domain.Params) (Result, error) {
	merged := domain.MergeParams(v.config.defaultParams, params)
	if err := domain.CheckReserved(merged); err != nil {
		return Result{}, err
	}

	key := v.Resolve(logicalPath)
	ctx = logging.AddMetaToContext(ctx, slog.String("viewKey", key))

	content, source, err := v.cache.Acquire(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to acquire view: %w", err)
	}

	output, err := v.config.renderer.Render(ctx, renderer.Input{
		Source:  content,
		Key:     key,
		Root:    v.root,
		Params:  merged,
		Options: v.config.rendererOptions,
	})
	if err != nil {
		// Renderer errors are returned as is
		return Result{}, err
	}

	result := Result{Output: output, Key: key}
	if v.config.diagnostics {
		result.Source = source
	}
	return result, nil
}

// Preload loads the given views concurrently. With caching enabled this warms the cache.
func (v *Views) Preload(ctx context.Context, logicalPaths ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, logicalPath := range logicalPaths {
		g.Go(func() error {
			key := v.Resolve(logicalPath)
			if _, _, err := v.cache.Acquire(ctx, key); err != nil {
				return fmt.Errorf("failed to preload %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}
