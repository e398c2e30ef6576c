package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/traceviz/traceviz/pkg/cache"
	apperrors "github.com/traceviz/traceviz/pkg/errors"
	"github.com/traceviz/traceviz/pkg/pipeline"
)

// contentTypes maps output formats to response content types.
var contentTypes = map[string]string{
	pipeline.FormatDOT: "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatSVG: "image/svg+xml",
	pipeline.FormatPNG: "image/png",
}

// serveCommand creates the serve command for the diagram preview server.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		redisURL string
		noCache  bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "serve [trace.json]",
		Short: "Serve diagrams over HTTP for live preview",
		Long: `Serve diagrams over HTTP for live preview.

Endpoints:

  GET /graph.svg?tags=REQ-1,REQ-2&relationships=parents:2
  GET /graph.png?tags=...
  GET /graph.dot?tags=...
  GET /entities?filter=category == "req"
  GET /healthz

With --redis, rendered artifacts are cached in Redis so multiple server
processes share one cache; otherwise the local file cache is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TraceFile = args[0]
			return c.runServe(cmd.Context(), opts, addr, redisURL, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for a shared artifact cache")
	cmd.Flags().StringVar(&opts.StylesFile, "styles", "", "TOML style overrides")
	cmd.Flags().StringVar(&opts.RelTypesFile, "rel-types", "", "TOML relationship-type table (replaces built-ins)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts pipeline.Options, addr, redisURL string, noCache bool) error {
	store, err := c.newServerCache(ctx, redisURL, noCache)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(store, c.Logger)
	defer runner.Close()
	opts.Logger = c.Logger

	srv := &server{cli: c, runner: runner, base: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(srv.requestID)
	r.Get("/graph.{format}", srv.handleGraph)
	r.Get("/entities", srv.handleEntities)
	r.Get("/healthz", srv.handleHealth)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	c.Logger.Info("serving diagrams", "addr", addr, "trace", opts.TraceFile)
	printInfo("Serving %s on %s", opts.TraceFile, addr)
	printNextStep("Try", fmt.Sprintf("curl 'http://localhost%s/graph.svg?tags=TAG'", addr))

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newServerCache picks the artifact cache backend for the server.
func (c *CLI) newServerCache(ctx context.Context, redisURL string, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if redisURL != "" {
		store, err := cache.NewRedisCache(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		c.Logger.Info("using redis artifact cache")
		return store, nil
	}
	return newCache(false)
}

// server holds per-process preview server state.
type server struct {
	cli    *CLI
	runner *pipeline.Runner
	base   pipeline.Options
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestID tags every request with a UUID for log correlation.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// handleGraph renders one diagram per request.
func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if !pipeline.ValidFormats[format] {
		httpError(w, http.StatusNotFound, "unknown format %q", format)
		return
	}

	q := r.URL.Query()
	opts := s.base
	opts.Tags = parseTags(q.Get("tags"))
	opts.Relationships = q.Get("relationships")
	opts.Caption = q.Get("caption")
	opts.Formats = []string{format}
	opts.Refresh = q.Get("refresh") == "1"

	result, err := s.runner.Graph(r.Context(), opts)
	if err != nil {
		s.cli.Logger.Warn("graph request failed",
			"request", requestIDFrom(r.Context()),
			"tags", opts.Tags,
			"err", err)
		httpError(w, statusFor(err), "%s", apperrors.UserMessage(err))
		return
	}

	s.cli.Logger.Info("graph request",
		"request", requestIDFrom(r.Context()),
		"run", result.ID,
		"tags", opts.Tags,
		"format", format,
		"cached", result.CacheHit)

	w.Header().Set("Content-Type", contentTypes[format])
	_, _ = w.Write(result.Artifacts[format])
}

// handleEntities returns the filtered entity listing as JSON.
func (s *server) handleEntities(w http.ResponseWriter, r *http.Request) {
	opts := s.base
	opts.Filter = r.URL.Query().Get("filter")

	result, err := s.runner.List(r.Context(), opts)
	if err != nil {
		httpError(w, statusFor(err), "%s", apperrors.UserMessage(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"entities": result.Entries,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// statusFor maps pipeline error codes to HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrCodeFileNotFound),
		apperrors.Is(err, apperrors.ErrCodeTagNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrCodeInvalidInput),
		apperrors.Is(err, apperrors.ErrCodeInvalidRelationship),
		apperrors.Is(err, apperrors.ErrCodeMalformedDepth),
		apperrors.Is(err, apperrors.ErrCodeInvalidFilter),
		apperrors.Is(err, apperrors.ErrCodeInvalidFormat),
		apperrors.Is(err, apperrors.ErrCodeNoStartEntities):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": fmt.Sprintf(format, args...),
	})
}
