package page

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/dom"
	"github.com/vango-dev/alpml/pkg/loader"
)

const navbarDoc = `<html><body><pre>
&lt;template props="name"&gt;
  &lt;nav data-cy-navbar="${name}"&gt;Navbar says hi ${name}&lt;/nav&gt;
&lt;/template&gt;
</pre></body></html>`

const sidebarDoc = `<html><body><pre>&lt;aside data-cy-sidebar&gt;Hi ${name}&lt;/aside&gt;</pre></body></html>`

func pages() fstest.MapFS {
	return fstest.MapFS{
		"components/navbar.html":  {Data: []byte(navbarDoc)},
		"components/sidebar.html": {Data: []byte(sidebarDoc)},
		"components/empty.html":   {Data: []byte(`<html><body><p>nothing</p></body></html>`)},
		"components/broken.html":  {Data: []byte(`<html><body><pre>&lt;div&gt;x&lt;/span&gt;</pre></body></html>`)},
	}
}

func declaration(name, ref string) string {
	return `<object type="text/x-alpml" is="` + name + `" data="` + ref + `"></object>`
}

type fetchRecorder struct {
	mu   sync.Mutex
	refs []string
}

func (r *fetchRecorder) DeclarationFetched(ref string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, ref)
}

func newTestBootstrap(t *testing.T, body string, opts ...Option) (*Bootstrap, *dom.Document, *bytes.Buffer) {
	t.Helper()
	doc, err := dom.ParseString("<html><head></head><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(doc, loader.NewFS(pages()), opts...), doc, logs
}

func countEvents(doc *dom.Document, typ string) *int {
	n := 0
	doc.AddEventListener(nil, typ, func(*dom.Event) { n++ })
	return &n
}

func TestRun_DefinesComponents(t *testing.T) {
	rec := &fetchRecorder{}
	b, doc, _ := newTestBootstrap(t,
		declaration("alp-sidebar", "components/sidebar.html")+
			declaration("alp-navbar", "components/navbar.html")+
			`<alp-sidebar></alp-sidebar><alp-navbar name="Jane"></alp-navbar><alp-navbar name="Paul"></alp-navbar>`,
		WithObserver(rec),
	)
	loaded := countEvents(doc, EventComponentsLoaded)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if *loaded != 1 {
		t.Errorf("componentsLoaded dispatched %d times, want 1", *loaded)
	}
	if !b.Ready() || b.Pending() != 0 {
		t.Errorf("Ready = %v, Pending = %d", b.Ready(), b.Pending())
	}

	var names []string
	for _, c := range b.Components() {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"alp-sidebar", "alp-navbar"}, names); diff != "" {
		t.Errorf("components (-want +got):\n%s", diff)
	}

	for sel, want := range map[string]string{
		"[data-cy-sidebar]":       "Hi ",
		"[data-cy-navbar='Jane']": "Navbar says hi Jane",
		"[data-cy-navbar='Paul']": "Navbar says hi Paul",
	} {
		n, err := doc.QuerySelector(sel)
		if err != nil || n == nil {
			t.Fatalf("QuerySelector(%q) = %v, %v", sel, n, err)
		}
		if got := dom.TextContent(n); got != want {
			t.Errorf("%s text = %q, want %q", sel, got, want)
		}
	}

	if decls, _ := doc.QuerySelectorAll(DefaultSelector); len(decls) != 0 {
		t.Errorf("%d declarations left in the document", len(decls))
	}
	scripts, _ := doc.QuerySelectorAll("head > script[defer]")
	if len(scripts) != 1 {
		t.Fatalf("found %d scripts in head, want 1", len(scripts))
	}
	if src, _ := dom.GetAttribute(scripts[0], "src"); src != DefaultScriptURL {
		t.Errorf("script src = %q", src)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.refs) != 2 {
		t.Errorf("observer saw %v", rec.refs)
	}
}

func TestRun_SkipsUnavailableDocuments(t *testing.T) {
	b, doc, logs := newTestBootstrap(t,
		declaration("alp-missing", "components/missing.html")+
			declaration("alp-empty", "components/empty.html")+
			declaration("alp-navbar", "components/navbar.html")+
			`<alp-navbar name="Jane"></alp-navbar>`,
	)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(b.Components()) != 1 || b.Components()[0].Name != "alp-navbar" {
		t.Errorf("components = %v", b.Components())
	}
	for _, code := range []string{"A030", "A031"} {
		if !strings.Contains(logs.String(), code) {
			t.Errorf("logs should mention %s:\n%s", code, logs.String())
		}
	}
	if decls, _ := doc.QuerySelectorAll(DefaultSelector); len(decls) != 0 {
		t.Errorf("skipped declarations should still be removed, %d left", len(decls))
	}
}

func TestRun_FatalDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"no hyphen", declaration("navbar", "components/navbar.html"), "A003"},
		{"missing is", `<object type="text/x-alpml" data="components/navbar.html"></object>`, "A003"},
		{"tag mismatch", declaration("alp-broken", "components/broken.html"), "A001"},
		{"duplicate", declaration("alp-navbar", "components/navbar.html") + declaration("alp-navbar", "components/navbar.html"), "A005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _ := newTestBootstrap(t, tt.body)
			err := b.Run(context.Background())
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("Run() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestRun_NoDeclarations(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithoutReactivity()}} {
		b, doc, _ := newTestBootstrap(t, `<p>plain</p>`, opts...)
		loaded := countEvents(doc, EventComponentsLoaded)

		if err := b.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if *loaded != 1 {
			t.Errorf("componentsLoaded dispatched %d times, want 1", *loaded)
		}
	}
}

func TestRun_WithoutReactivity(t *testing.T) {
	b, doc, _ := newTestBootstrap(t,
		declaration("alp-navbar", "components/navbar.html")+`<alp-navbar name="Jane"></alp-navbar>`,
		WithoutReactivity(),
	)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scripts, _ := doc.QuerySelectorAll("script"); len(scripts) != 0 {
		t.Errorf("found %d scripts, want none", len(scripts))
	}
	if len(b.Components()) != 1 {
		t.Errorf("components = %v", b.Components())
	}
}

func TestRun_ReusesExistingScript(t *testing.T) {
	doc, err := dom.ParseString(`<html><head><script src="/alpine.js" defer></script></head><body>` +
		declaration("alp-navbar", "components/navbar.html") + `</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	b := New(doc, loader.NewFS(pages()), WithScriptURL("/alpine.js"))
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scripts, _ := doc.QuerySelectorAll("script"); len(scripts) != 1 {
		t.Errorf("found %d scripts, want 1", len(scripts))
	}
}

func TestRun_ContextDone(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	doc, err := dom.ParseString("<body>" + declaration("alp-navbar", "navbar.html") + "</body>")
	if err != nil {
		t.Fatal(err)
	}
	stuck := loader.Func(func(context.Context, string) ([]byte, error) {
		<-block
		return nil, context.Canceled
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := New(doc, stuck).Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLatch_WaitsForScript(t *testing.T) {
	b, doc, _ := newTestBootstrap(t, declaration("alp-a", "a.html")+declaration("alp-b", "b.html"))
	loaded := countEvents(doc, EventComponentsLoaded)

	b.mountScript()
	b.total, b.pending = 2, 2

	b.declarationLoaded(nil)
	b.declarationLoaded(nil)
	if *loaded != 0 {
		t.Fatal("componentsLoaded dispatched before the script loaded")
	}

	doc.DispatchEvent(b.script, dom.NewEvent(EventLoad))
	if *loaded != 1 || !b.Ready() {
		t.Errorf("after script load: dispatched %d times, ready %v", *loaded, b.Ready())
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"", "navbar.html", "navbar.html"},
		{"docs/index.html", "navbar.html", "docs/navbar.html"},
		{"docs/index.html", "../shared/navbar.html", "shared/navbar.html"},
		{"docs/index.html", "/navbar.html", "/navbar.html"},
		{"https://example.com/site/index.html", "navbar.html", "https://example.com/site/navbar.html"},
		{"docs/index.html", "s3://bucket/navbar.html", "s3://bucket/navbar.html"},
	}
	for _, tt := range tests {
		b := &Bootstrap{base: tt.base}
		if got := b.resolve(tt.ref); got != tt.want {
			t.Errorf("resolve(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestRun_BoundsConcurrentFetches(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	fsLoader := loader.NewFS(pages())
	slow := loader.Func(func(ctx context.Context, ref string) ([]byte, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return fsLoader.Load(ctx, ref)
	})

	doc, err := dom.ParseString("<html><head></head><body>" +
		declaration("alp-navbar", "components/navbar.html") +
		declaration("alp-sidebar", "components/sidebar.html") +
		declaration("alp-empty", "components/empty.html") +
		"</body></html>")
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	b := New(doc, slow, WithLogger(logger), WithConcurrency(1))

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak != 1 {
		t.Errorf("peak concurrent fetches = %d, want 1", peak)
	}
	if len(b.Components()) != 2 {
		t.Errorf("defined %d components, want 2", len(b.Components()))
	}
}
