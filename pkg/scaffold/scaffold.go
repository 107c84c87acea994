// Package scaffold is the high-level embedding API: configure an Engine
// once, then generate scaffold test files for any package pattern.
package scaffold

import (
	"go.uber.org/zap"

	"github.com/stubforge/stubforge/internal/annotate"
	"github.com/stubforge/stubforge/internal/config"
	"github.com/stubforge/stubforge/internal/pipeline"
)

// Result summarizes one generation run.
type Result = pipeline.Result

// Engine generates scaffold test files. Construct with New; the zero
// value is not usable.
type Engine struct {
	cfg pipeline.Config
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDir sets the working directory for package resolution.
func WithDir(dir string) Option {
	return func(e *Engine) { e.cfg.Dir = dir }
}

// WithOutDir sets the directory generated files are written to.
// Defaults to the working directory.
func WithOutDir(dir string) Option {
	return func(e *Engine) { e.cfg.OutDir = dir }
}

// WithCatalog sets the run catalog database path. An empty path
// disables run persistence.
func WithCatalog(path string) Option {
	return func(e *Engine) { e.cfg.CatalogPath = path }
}

// WithAnnotations supplies the per-member configuration queries.
func WithAnnotations(q annotate.Queries) Option {
	return func(e *Engine) { e.cfg.Annotations = q }
}

// WithExclude drops packages whose files live under any of the given
// paths from the discovered universe.
func WithExclude(paths []string) Option {
	return func(e *Engine) { e.cfg.Exclude = paths }
}

// WithLogger routes engine diagnostics to the given logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.cfg.Log = log }
}

// New creates an Engine. Without options it works in the current
// directory, persists runs to the default catalog location, and reads
// no annotations.
func New(opts ...Option) *Engine {
	e := &Engine{cfg: pipeline.Config{
		CatalogPath: config.DefaultCatalogFile,
		Annotations: annotate.Nop{},
		Log:         zap.NewNop(),
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate runs the engine over the given package pattern and reports
// what was written.
func (e *Engine) Generate(pattern string) (*Result, error) {
	cfg := e.cfg
	cfg.Pattern = pattern
	return pipeline.Run(cfg)
}

// LoadAnnotations reads a YAML annotation document; a missing file
// yields an empty document.
func LoadAnnotations(path string) (annotate.Queries, error) {
	return annotate.Load(path)
}
