// Package alpml renders HTML pages that declare Alpml components.
//
// An Engine opens a page, loads the component documents its declarations
// reference, defines the components and renders the result:
//
//	engine := alpml.New(alpml.WithConfig(cfg))
//	err := engine.RenderPage(ctx, "index.html", os.Stdout)
//
// Attribute overrides set component attributes after the components have
// rendered, exercising the same re-render path an attribute change takes in
// the browser:
//
//	engine.RenderPage(ctx, "index.html", w, alpml.Override{Tag: "alp-counter", Attribute: "count", Value: "3"})
package alpml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/alpml/internal/config"
	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/component"
	"github.com/vango-dev/alpml/pkg/dom"
	"github.com/vango-dev/alpml/pkg/loader"
	"github.com/vango-dev/alpml/pkg/page"
	"github.com/vango-dev/alpml/pkg/telemetry"
)

// Version is the Alpml version.
const Version = "0.3.0"

// =============================================================================
// Engine
// =============================================================================

// Engine renders pages. It is safe for concurrent use; every page gets its
// own document.
type Engine struct {
	cfg     *config.Config
	fsys    fs.FS
	loader  loader.Loader
	logger  *slog.Logger
	metrics *telemetry.Metrics
	keys    func() func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the project configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.cfg = cfg
		}
	}
}

// WithFS sets the file system holding pages. Defaults to the configured
// pages directory.
func WithFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.fsys = fsys
	}
}

// WithLoader replaces the loader built from the configuration.
func WithLoader(l loader.Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records rendering metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithKeys sets the instance key generator. newKeys is called once per
// document. Defaults to random UUIDs.
func WithKeys(newKeys func() func() string) Option {
	return func(e *Engine) {
		e.keys = newKeys
	}
}

// SequentialKeys numbers instances alp-1, alp-2 and so on, so equal pages
// render to equal bytes.
func SequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return "alp-" + strconv.Itoa(n)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:    config.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fsys == nil {
		e.fsys = os.DirFS(e.cfg.PagesPath())
	}
	if e.loader == nil {
		e.loader = NewLoader(e.cfg, e.fsys)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// FS returns the file system pages are read from.
func (e *Engine) FS() fs.FS {
	return e.fsys
}

// NewLoader builds the loader described by cfg. Relative references are read
// from fsys, or fetched relative to loader.baseURL when one is configured.
func NewLoader(cfg *config.Config, fsys fs.FS) loader.Loader {
	httpOpts := []loader.HTTPOption{loader.WithTimeout(cfg.HTTPTimeout())}
	var fallback loader.Loader = loader.NewFS(fsys)
	if cfg.Loader.BaseURL != "" {
		if base, err := url.Parse(cfg.Loader.BaseURL); err == nil {
			fallback = loader.NewHTTP(append(httpOpts, loader.WithBaseURL(base))...)
		}
	}

	mux := loader.NewMux(fallback)
	remote := loader.NewHTTP(httpOpts...)
	mux.Handle("http", remote)
	mux.Handle("https", remote)
	mux.Handle("s3", loader.NewS3(loader.NewS3Client(loader.S3ClientConfig{
		Region:    cfg.Loader.S3.Region,
		Endpoint:  cfg.Loader.S3.Endpoint,
		PathStyle: cfg.Loader.S3.PathStyle,
	})))
	return mux
}

// =============================================================================
// Rendering
// =============================================================================

// Open parses a page and bootstraps its components. base resolves relative
// declaration references; it is usually the page's path.
func (e *Engine) Open(ctx context.Context, r io.Reader, base string) (*dom.Document, error) {
	doc, err := dom.Parse(r, dom.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	if err := page.New(doc, e.loader, e.bootstrapOptions(base)...).Run(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenPage opens the named page from the engine's file system.
func (e *Engine) OpenPage(ctx context.Context, name string) (*dom.Document, error) {
	f, err := e.fsys.Open(strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, fmt.Errorf("opening page %s: %w", name, err)
	}
	defer f.Close()
	return e.Open(ctx, f, name)
}

// RenderDocument renders the page read from r to w.
func (e *Engine) RenderDocument(ctx context.Context, r io.Reader, w io.Writer, overrides ...Override) error {
	return e.render(ctx, "", w, overrides, func(ctx context.Context) (*dom.Document, error) {
		return e.Open(ctx, r, "")
	})
}

// RenderPage renders the named page from the engine's file system to w.
func (e *Engine) RenderPage(ctx context.Context, name string, w io.Writer, overrides ...Override) error {
	return e.render(ctx, name, w, overrides, func(ctx context.Context) (*dom.Document, error) {
		return e.OpenPage(ctx, name)
	})
}

func (e *Engine) render(ctx context.Context, name string, w io.Writer, overrides []Override, open func(context.Context) (*dom.Document, error)) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "alpml.render", telemetry.AttrPage.String(name))
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		e.metrics.PageRendered(err)
		e.logger.Debug("page rendered", "page", name, "duration", time.Since(start), "error", err)
	}()

	doc, err := open(ctx)
	if err != nil {
		return err
	}
	if err := Apply(doc, overrides...); err != nil {
		return err
	}

	// Buffer so a failed render writes nothing.
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func (e *Engine) bootstrapOptions(base string) []page.Option {
	opts := []page.Option{
		page.WithLogger(e.logger),
		page.WithSelector(e.cfg.Components.Selector),
		page.WithScriptURL(e.cfg.Reactivity.ScriptURL),
		page.WithBase(base),
		page.WithConcurrency(e.cfg.Loader.Concurrency),
	}
	if e.keys != nil {
		opts = append(opts, page.WithComponentOptions(component.WithKeyFunc(e.keys())))
	}
	if e.cfg.Reactivity.Disabled {
		opts = append(opts, page.WithoutReactivity())
	}
	if e.metrics != nil {
		opts = append(opts,
			page.WithObserver(e.metrics),
			page.WithComponentOptions(component.WithObserver(e.metrics)),
		)
	}
	return opts
}

// =============================================================================
// Overrides
// =============================================================================

// Override sets an attribute on every element with a tag name.
type Override struct {
	Tag       string
	Attribute string
	Value     string
}

// String returns the override in tag.attr=value form.
func (o Override) String() string {
	return o.Tag + "." + o.Attribute + "=" + o.Value
}

// ParseOverride parses "tag.attr=value".
func ParseOverride(s string) (Override, error) {
	target, value, ok := strings.Cut(s, "=")
	if !ok {
		return Override{}, errors.New("A050").WithDetailf("%q has no '='", s)
	}
	dot := strings.LastIndex(target, ".")
	if dot <= 0 || dot == len(target)-1 {
		return Override{}, errors.New("A050").WithDetailf("%q is not tag.attribute", target)
	}
	o := Override{
		Tag:       strings.ToLower(strings.TrimSpace(target[:dot])),
		Attribute: strings.ToLower(strings.TrimSpace(target[dot+1:])),
		Value:     value,
	}
	if strings.ContainsAny(o.Tag, " []>+~:#.,\"'") || strings.ContainsAny(o.Attribute, " =\"'<>") {
		return Override{}, errors.New("A050").WithDetailf("%q contains characters not allowed in names", target)
	}
	return o, nil
}

// Apply sets each override's attribute on the matching elements, in order.
func Apply(doc *dom.Document, overrides ...Override) error {
	for _, o := range overrides {
		nodes, err := doc.QuerySelectorAll(o.Tag)
		if err != nil {
			return errors.New("A050").WithDetailf("tag %q", o.Tag).Wrap(err)
		}
		for _, n := range nodes {
			doc.SetAttribute(n, o.Attribute, o.Value)
		}
	}
	return nil
}
