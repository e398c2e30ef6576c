package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/traceviz/traceviz/pkg/cache"
	"github.com/traceviz/traceviz/pkg/document"
	"github.com/traceviz/traceviz/pkg/errors"
	"github.com/traceviz/traceviz/pkg/listing"
	"github.com/traceviz/traceviz/pkg/render/dot"
	"github.com/traceviz/traceviz/pkg/styles"
	"github.com/traceviz/traceviz/pkg/trace"
)

// Runner executes pipeline runs with artifact caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store run results. Multiple goroutines can safely use the same Runner
// with different options.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Logger: logger}
}

// Graph runs the complete load → walk → render pipeline for one diagram.
func (r *Runner) Graph(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validateForGraph(); err != nil {
		return nil, err
	}

	result := &Result{
		ID:        uuid.NewString(),
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Load
	loadStart := time.Now()
	traceData, reg, err := r.load(opts)
	if err != nil {
		return nil, err
	}
	result.Stats.LoadTime = time.Since(loadStart)

	r.Logger.Info("loaded trace",
		"run", result.ID,
		"file", opts.TraceFile,
		"entities", reg.Len(),
		"duration", result.Stats.LoadTime)

	policy, err := r.loadStyles(opts)
	if err != nil {
		return nil, err
	}

	params, err := cacheKeyParams(opts)
	if err != nil {
		return nil, err
	}

	// Try cache before walking; the key covers trace data and every
	// request parameter, so a hit means identical output.
	if !opts.Refresh && r.fetchCached(ctx, result, traceData, params, opts.Formats) {
		r.Logger.Info("artifacts from cache", "run", result.ID, "formats", opts.Formats)
		result.CacheHit = true
		return result, nil
	}

	// Stage 2: Walk
	walkStart := time.Now()
	proc := document.NewProcessor(reg, policy)
	graph := proc.Graph(document.GraphRequest{
		Doc:           opts.TraceFile,
		Tags:          opts.Tags,
		Relationships: opts.Relationships,
		Caption:       opts.Caption,
	})
	result.Diagnostics = graph.Diagnostics
	result.Stats.WalkTime = time.Since(walkStart)
	result.Stats.Entities = graph.Entities
	result.Stats.Edges = graph.Edges

	if graph.Failed {
		return result, errors.New(errors.ErrCodeNoStartEntities,
			"%s", document.FormatDiagnostics(graph.Diagnostics))
	}

	r.Logger.Info("walked relationships",
		"run", result.ID,
		"entities", graph.Entities,
		"edges", graph.Edges,
		"duration", result.Stats.WalkTime)

	// Stage 3: Render
	renderStart := time.Now()
	if err := r.render(ctx, result, graph.DOT, traceData, params, opts.Formats); err != nil {
		return result, err
	}
	result.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Info("rendered outputs",
		"run", result.ID,
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// List runs the load → filter pipeline and returns matching entities.
func (r *Runner) List(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validateForList(); err != nil {
		return nil, err
	}

	result := &Result{ID: uuid.NewString()}

	loadStart := time.Now()
	_, reg, err := r.load(opts)
	if err != nil {
		return nil, err
	}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Entities = reg.Len()

	entries, err := listing.Build(reg, opts.Filter)
	if err != nil {
		return nil, err
	}
	result.Entries = entries

	r.Logger.Info("listed entities",
		"run", result.ID,
		"matched", len(entries),
		"total", reg.Len(),
		"duration", time.Since(loadStart))

	return result, nil
}

// load reads the trace file and builds a linked registry, replacing the
// built-in relationship types when a types file is configured.
func (r *Runner) load(opts Options) ([]byte, *trace.Registry, error) {
	traceData, err := os.ReadFile(opts.TraceFile)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read trace file %s", opts.TraceFile)
	}

	var relTypes []trace.RelType
	if opts.RelTypesFile != "" {
		relTypes, err = trace.LoadRelTypes(opts.RelTypesFile)
		if err != nil {
			return nil, nil, err
		}
	}

	reg, err := trace.ReadWithTypes(bytes.NewReader(traceData), relTypes)
	if err != nil {
		return nil, nil, err
	}
	return traceData, reg, nil
}

func (r *Runner) loadStyles(opts Options) (styles.Policy, error) {
	if opts.StylesFile == "" {
		return styles.Default(), nil
	}
	return styles.Load(opts.StylesFile)
}

// cacheKeyParams returns every request parameter that shapes rendered
// output, for inclusion in artifact cache keys. Config files contribute
// their content hash rather than their path, so editing a file at the same
// path invalidates its cached artifacts.
func cacheKeyParams(opts Options) ([]string, error) {
	params := append([]string{}, opts.Tags...)
	params = append(params, opts.Relationships, opts.Caption)
	for _, file := range []string{opts.StylesFile, opts.RelTypesFile} {
		if file == "" {
			params = append(params, "")
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", file)
		}
		params = append(params, cache.Hash(data))
	}
	return params, nil
}

// fetchCached fills result.Artifacts from cache. Returns true only when
// every requested format was cached.
func (r *Runner) fetchCached(ctx context.Context, result *Result, traceData []byte, params, formats []string) bool {
	for _, format := range formats {
		key := cache.ArtifactKey(traceData, format, params...)
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			return false
		}
		result.Artifacts[format] = data
	}
	return len(result.Artifacts) == len(formats)
}

// render produces each requested format from the DOT text and caches it.
func (r *Runner) render(ctx context.Context, result *Result, dotText string, traceData []byte, params, formats []string) error {
	for _, format := range formats {
		var data []byte
		var err error
		switch format {
		case FormatDOT:
			data = []byte(dotText)
		case FormatSVG:
			data, err = dot.RenderSVG(ctx, dotText)
		case FormatPNG:
			data, err = dot.RenderPNG(ctx, dotText)
		default:
			err = fmt.Errorf("unreachable format %q", format)
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
		}

		result.Artifacts[format] = data
		key := cache.ArtifactKey(traceData, format, params...)
		_ = r.Cache.Set(ctx, key, data, TTLArtifact)
	}
	return nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
