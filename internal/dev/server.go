package dev

import (
	"bytes"
	"context"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/blake3"

	"github.com/vango-dev/alpml"
	"github.com/vango-dev/alpml/internal/config"
	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/loader"
	"github.com/vango-dev/alpml/pkg/telemetry"
	"github.com/vango-dev/alpml/pkg/template"
)

// MetricsPath serves the Prometheus metrics.
const MetricsPath = "/metrics"

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Engine renders pages. Defaults to an engine built from Config with
	// sequential instance keys, so unchanged pages keep their ETag.
	Engine *alpml.Engine

	// FS holds the pages of the default engine. Defaults to the configured
	// pages directory.
	FS fs.FS

	// Logger receives request and reload logs.
	Logger *slog.Logger

	// Metrics records reload broadcasts; the engine records its own.
	Metrics *telemetry.Metrics

	// Gatherer is served at MetricsPath. Defaults to the default registry.
	Gatherer prometheus.Gatherer

	// OnReload is called after browsers were told to reload.
	OnReload func(clients int)
}

// Server renders pages on every request and reloads browsers when the
// watched files change.
type Server struct {
	config     *config.Config
	options    ServerOptions
	engine     *alpml.Engine
	logger     *slog.Logger
	watcher    *Watcher
	reload     *ReloadServer
	sanitizer  *bluemonday.Policy
	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := options.Engine
	if engine == nil {
		engine = alpml.New(
			alpml.WithConfig(cfg),
			alpml.WithFS(options.FS),
			alpml.WithLogger(logger),
			alpml.WithMetrics(options.Metrics),
			alpml.WithKeys(alpml.SequentialKeys),
		)
	}
	if options.Gatherer == nil {
		options.Gatherer = prometheus.DefaultGatherer
	}

	var reload *ReloadServer
	if cfg.Dev.HotReload {
		reload = NewReloadServer(logger)
	}

	return &Server{
		config:  cfg,
		options: options,
		engine:  engine,
		logger:  logger,
		watcher: NewWatcher(WatcherConfig{
			Paths:  cfg.WatchPaths(),
			Ignore: cfg.Dev.Ignore,
		}),
		reload:    reload,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Handle(MetricsPath, promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{}))
	if s.reloadEnabled() {
		r.Handle(ReloadPath, s.reload)
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
		r.Get("/*", s.serve)
	})
	return r
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:              s.config.DevAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.watcher.OnChange(s.handleChanges)
	go s.watcher.Start(ctx)

	s.logger.Info("dev server running", "url", s.config.DevURL(), "pages", s.config.PagesPath(), "hotReload", s.reloadEnabled())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.watcher.Stop()
	if s.reload != nil {
		s.reload.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// Requests
// =============================================================================

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}
	name = strings.TrimPrefix(name, "/")

	if !isPage(name) {
		http.ServeFileFS(w, r, s.engine.FS(), name)
		return
	}

	overrides, err := s.overrides(r)
	if err != nil {
		http.Error(w, describe(err), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := s.engine.RenderPage(r.Context(), name, &buf, overrides...); err != nil {
		s.renderError(w, name, err)
		return
	}

	body := buf.Bytes()
	if s.reloadEnabled() {
		body = InjectClient(body)
	}

	etag := ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

// overrides reads ?tag.attr=value pairs. Values are stripped of markup.
func (s *Server) overrides(r *http.Request) ([]alpml.Override, error) {
	query := r.URL.Query()
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var overrides []alpml.Override
	for _, key := range keys {
		if !strings.Contains(key, ".") {
			continue
		}
		for _, value := range query[key] {
			o, err := alpml.ParseOverride(key + "=" + s.sanitizer.Sanitize(value))
			if err != nil {
				return nil, err
			}
			overrides = append(overrides, o)
		}
	}
	return overrides, nil
}

func (s *Server) renderError(w http.ResponseWriter, name string, err error) {
	status := http.StatusInternalServerError
	if stderrors.Is(err, fs.ErrNotExist) {
		status = http.StatusNotFound
	}
	s.logger.Error("page render failed", "page", name, "status", status, "error", err)

	script := ""
	if s.reloadEnabled() {
		script = ClientScript
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Alpml Dev Server</title></head>
<body style="font-family: system-ui; padding: 40px; background: #1a1a1a; color: #fff;">
<h1 style="color: #ff5555;">%s</h1>
<pre style="white-space: pre-wrap;">%s</pre>
<p style="color: #888;">The page reloads when the file is saved.</p>
%s
</body>
</html>`, html.EscapeString(http.StatusText(status)), html.EscapeString(describe(err)), script)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// =============================================================================
// Reloading
// =============================================================================

// handleChanges reloads browsers after a batch of file changes. A component
// document that no longer parses shows its error instead.
func (s *Server) handleChanges(changes []Change) {
	for _, c := range changes {
		s.logger.Info("changed", "path", c.Path, "type", c.Type.String(), "removed", c.Removed)
		if c.Type == ChangeConfig {
			s.logger.Warn("configuration changed; restart the dev server to apply it", "path", c.Path)
		}
	}

	if !s.reloadEnabled() {
		return
	}

	for _, c := range changes {
		if c.Type != ChangePage || c.Removed {
			continue
		}
		if err := CheckComponentFile(c.Path); err != nil {
			s.logger.Error("component document is invalid", "path", c.Path, "error", err)
			s.reload.NotifyError(c.Path + ": " + describe(err))
			return
		}
	}

	s.reload.ClearError()
	clients := s.reload.NotifyReload(changes[0].Path)
	s.options.Metrics.ReloadBroadcast()
	if s.options.OnReload != nil {
		s.options.OnReload(clients)
	}
	s.logger.Info("reloaded browsers", "clients", clients)
}

func (s *Server) reloadEnabled() bool {
	return s.reload != nil
}

// CheckComponentFile parses the template of the component document at p.
// Files without a <pre> source are pages and always pass.
func CheckComponentFile(p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	source, err := loader.ExtractSource(data)
	if err != nil {
		return nil
	}
	_, err = template.Parse(source)
	return err
}

// ETag returns a strong entity tag for body.
func ETag(body []byte) string {
	sum := blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func isPage(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

func describe(err error) string {
	var ae *errors.AlpmlError
	if stderrors.As(err, &ae) {
		return ae.FormatCompact()
	}
	return err.Error()
}
