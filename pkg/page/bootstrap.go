package page

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/component"
	"github.com/vango-dev/alpml/pkg/dom"
	"github.com/vango-dev/alpml/pkg/loader"
	"github.com/vango-dev/alpml/pkg/telemetry"
)

const (
	// DefaultSelector matches component declarations.
	DefaultSelector = "object[type='text/x-alpml']"

	// DefaultScriptURL is the reactivity library mounted into the page.
	DefaultScriptURL = "https://cdn.jsdelivr.net/npm/alpinejs@3.x.x/dist/cdn.min.js"

	// DefaultConcurrency bounds simultaneous document fetches.
	DefaultConcurrency = 8
)

// Signals dispatched during bootstrap.
const (
	EventLoad             = "load"
	EventComponentsLoaded = "componentsLoaded"
)

// Declaration attributes.
const (
	NameAttribute = "is"
	RefAttribute  = "data"
)

// Observer receives fetch outcomes.
type Observer interface {
	DeclarationFetched(ref string, elapsed time.Duration, err error)
}

// Option configures a Bootstrap.
type Option func(*Bootstrap)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrap) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSelector sets the selector matching declarations.
func WithSelector(selector string) Option {
	return func(b *Bootstrap) {
		if selector != "" {
			b.selector = selector
		}
	}
}

// WithScriptURL sets the reactivity script URL.
func WithScriptURL(url string) Option {
	return func(b *Bootstrap) {
		if url != "" {
			b.scriptURL = url
		}
	}
}

// WithoutReactivity skips mounting the reactivity script. The page is ready
// as soon as Run starts.
func WithoutReactivity() Option {
	return func(b *Bootstrap) {
		b.scriptURL = ""
	}
}

// WithBase resolves relative declaration references against base, usually
// the page's own path or URL.
func WithBase(base string) Option {
	return func(b *Bootstrap) {
		b.base = base
	}
}

// WithConcurrency bounds simultaneous fetches.
func WithConcurrency(n int) Option {
	return func(b *Bootstrap) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithObserver sets the fetch observer.
func WithObserver(obs Observer) Option {
	return func(b *Bootstrap) {
		b.observer = obs
	}
}

// WithComponentOptions passes options to every component.Define call.
func WithComponentOptions(opts ...component.Option) Option {
	return func(b *Bootstrap) {
		b.componentOpts = append(b.componentOpts, opts...)
	}
}

// Bootstrap is the load-order context of one page.
type Bootstrap struct {
	doc           *dom.Document
	loader        loader.Loader
	logger        *slog.Logger
	selector      string
	scriptURL     string
	base          string
	concurrency   int
	observer      Observer
	componentOpts []component.Option

	ctx     context.Context
	script  *html.Node
	total   int
	pending int
	ready   bool
	loaded  bool
	fetched map[*html.Node]fetchResult
	defined []*component.Component
	err     error
}

type fetchResult struct {
	decl    *html.Node
	ref     string
	data    []byte
	err     error
	elapsed time.Duration
}

// New creates a Bootstrap for doc that fetches component documents with l.
func New(doc *dom.Document, l loader.Loader, opts ...Option) *Bootstrap {
	b := &Bootstrap{
		doc:         doc,
		loader:      l,
		logger:      slog.Default(),
		selector:    DefaultSelector,
		scriptURL:   DefaultScriptURL,
		concurrency: DefaultConcurrency,
		fetched:     make(map[*html.Node]fetchResult),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ready reports whether the reactivity script has loaded.
func (b *Bootstrap) Ready() bool {
	return b.ready
}

// Pending returns the number of declarations still loading.
func (b *Bootstrap) Pending() int {
	return b.pending
}

// Components returns the components defined so far, in declaration order.
func (b *Bootstrap) Components() []*component.Component {
	return b.defined
}

// Run loads and defines every declared component. It returns when all
// fetches have completed, with the first fatal definition error, or with
// ctx.Err() if ctx is done first.
func (b *Bootstrap) Run(ctx context.Context) (err error) {
	decls, err := b.doc.QuerySelectorAll(b.selector)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "alpml.bootstrap", telemetry.AttrCount.Int(len(decls)))
	defer func() { telemetry.EndSpan(span, err) }()
	b.ctx = ctx

	b.mountScript()
	b.total = len(decls)
	b.pending = len(decls)
	for _, decl := range decls {
		b.doc.AddEventListener(decl, EventLoad, b.declarationLoaded)
	}
	b.doc.AddEventListener(nil, EventComponentsLoaded, b.initializeComponents, dom.Once())

	jobs := len(decls)
	if b.script != nil {
		jobs++
	}
	results := make(chan fetchResult, jobs)
	sem := make(chan struct{}, b.concurrency)

	for _, decl := range decls {
		ref, _ := dom.GetAttribute(decl, RefAttribute)
		go b.fetch(ctx, sem, results, decl, b.resolve(ref))
	}
	if b.script != nil {
		// The script finishes loading alongside the documents.
		go func() { results <- fetchResult{} }()
	} else if b.total == 0 {
		b.componentsLoaded()
	}

	for received := 0; received < jobs; received++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			b.apply(r)
		}
		if b.err != nil {
			return b.err
		}
	}
	return b.err
}

func (b *Bootstrap) resolve(ref string) string {
	if b.base == "" || ref == "" || strings.HasPrefix(ref, "/") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(b.base)
	if err != nil {
		return ref
	}
	resolved := base.ResolveReference(u)
	if base.IsAbs() {
		return resolved.String()
	}
	return strings.TrimPrefix(resolved.String(), "/")
}

func (b *Bootstrap) fetch(ctx context.Context, sem chan struct{}, results chan<- fetchResult, decl *html.Node, ref string) {
	r := fetchResult{decl: decl, ref: ref}
	if ref == "" {
		r.err = fmt.Errorf("declaration has no %s attribute", RefAttribute)
		results <- r
		return
	}

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		r.err = ctx.Err()
		results <- r
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "alpml.fetch", telemetry.AttrRef.String(ref))
	start := time.Now()
	r.data, r.err = b.loader.Load(ctx, ref)
	r.elapsed = time.Since(start)
	telemetry.EndSpan(span, r.err)
	results <- r
}

// apply delivers a completed job on the caller's goroutine.
func (b *Bootstrap) apply(r fetchResult) {
	if r.decl == nil {
		b.doc.DispatchEvent(b.script, dom.NewEvent(EventLoad))
		return
	}
	if b.observer != nil {
		b.observer.DeclarationFetched(r.ref, r.elapsed, r.err)
	}
	b.fetched[r.decl] = r
	b.doc.DispatchEvent(r.decl, dom.NewEvent(EventLoad))
}

// mountScript adds the reactivity script to <head> unless it is disabled or
// already present.
func (b *Bootstrap) mountScript() {
	if b.scriptURL == "" {
		b.ready = true
		return
	}

	script, err := b.doc.QuerySelector(fmt.Sprintf("script[src=%q]", b.scriptURL))
	if err != nil || script == nil {
		script = b.doc.CreateElement("script")
		script.Attr = []html.Attribute{
			{Key: "src", Val: b.scriptURL},
			{Key: "defer", Val: "true"},
		}
		parent := b.doc.Head()
		if parent == nil {
			parent = b.doc.Root()
		}
		b.doc.AppendChild(parent, script)
	}
	b.script = script

	b.doc.AddEventListener(script, EventLoad, func(*dom.Event) {
		b.logger.Debug("reactivity script loaded", "src", b.scriptURL)
		b.ready = true
		if b.total == 0 {
			b.componentsLoaded()
		}
	}, dom.Once())
}

// declarationLoaded counts down the latch.
func (b *Bootstrap) declarationLoaded(*dom.Event) {
	b.pending--
	if b.pending > 0 {
		return
	}
	if b.ready {
		b.componentsLoaded()
		return
	}
	b.doc.AddEventListener(b.script, EventLoad, func(*dom.Event) {
		b.componentsLoaded()
	}, dom.Once())
}

func (b *Bootstrap) componentsLoaded() {
	if b.loaded {
		return
	}
	b.loaded = true
	b.doc.DispatchEvent(nil, dom.NewEvent(EventComponentsLoaded))
}

// initializeComponents defines every declared component in document order.
func (b *Bootstrap) initializeComponents(*dom.Event) {
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := telemetry.StartSpan(ctx, "alpml.define")
	defer func() { telemetry.EndSpan(span, b.err) }()

	decls, err := b.doc.QuerySelectorAll(b.selector)
	if err != nil {
		b.err = err
		return
	}

	for _, decl := range decls {
		name, _ := dom.GetAttribute(decl, NameAttribute)
		if !dom.IsCustomElementName(name) {
			b.err = errors.New("A003").
				WithDetailf("declaration has %s=%q", NameAttribute, name).
				WithSuggestion("An 'is' attribute with a hyphenated value is required")
			return
		}

		c, err := b.define(decl, name)
		if err != nil {
			b.err = err
			return
		}
		b.doc.Remove(decl)
		if c != nil {
			b.defined = append(b.defined, c)
			b.logger.Info("loaded component", "name", name)
		}
	}
}

// define creates the component for decl. Declarations whose document is
// unavailable are logged and skipped with a nil component.
func (b *Bootstrap) define(decl *html.Node, name string) (*component.Component, error) {
	r, ok := b.fetched[decl]
	if !ok {
		ref, _ := dom.GetAttribute(decl, RefAttribute)
		r = fetchResult{ref: ref, err: fmt.Errorf("not loaded")}
	}
	if r.err != nil {
		err := errors.New("A030").WithDetailf("%s for <%s>", r.ref, name).Wrap(r.err)
		b.logger.Error("component document failed to load", "name", name, "ref", r.ref, "error", err)
		return nil, nil
	}

	source, err := loader.ExtractSource(r.data)
	if err != nil {
		b.logger.Error("component document has no source", "name", name, "ref", r.ref, "error", err)
		return nil, nil
	}

	opts := append([]component.Option{component.WithLogger(b.logger)}, b.componentOpts...)
	return component.Define(b.doc, name, source, opts...)
}
