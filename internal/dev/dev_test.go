package dev

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/config"
	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/telemetry"
)

// =============================================================================
// Watcher
// =============================================================================

func touch(t *testing.T, p, content string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_Poll(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	index := filepath.Join(dir, "index.html")
	style := filepath.Join(dir, "style.css")
	touch(t, index, "<p>one</p>", base)
	touch(t, style, "p{}", base)

	w := NewWatcher(WatcherConfig{Paths: []string{dir}})
	w.Scan()

	if got := w.Poll(); len(got) != 0 {
		t.Fatalf("Poll() without changes = %v", got)
	}

	touch(t, index, "<p>two</p>", base.Add(time.Minute))
	if err := os.Remove(style); err != nil {
		t.Fatal(err)
	}
	added := filepath.Join(dir, "components", "card.html")
	touch(t, added, "<pre></pre>", base)

	var reported []Change
	w.OnChange(func(c []Change) { reported = c })
	got := w.Poll()

	want := []Change{
		{Path: added, Type: ChangePage},
		{Path: index, Type: ChangePage},
		{Path: style, Type: ChangeAsset, Removed: true},
	}
	if len(got) != len(want) {
		t.Fatalf("Poll() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(reported) != len(want) {
		t.Errorf("callback got %d changes, want %d", len(reported), len(want))
	}
}

func TestWatcher_Start(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	touch(t, page, "<p>one</p>", time.Now().Add(-time.Hour))

	w := NewWatcher(WatcherConfig{Paths: []string{dir}, Interval: 20 * time.Millisecond})
	changes := make(chan []Change, 10)
	w.OnChange(func(c []Change) { changes <- c })

	done := make(chan error, 1)
	go func() { done <- w.Start(t.Context()) }()

	deadline := time.Now().Add(time.Second)
	for !w.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give Start time to record the initial scan.
	time.Sleep(50 * time.Millisecond)

	touch(t, page, "<p>two</p>", time.Now())

	select {
	case c := <-changes:
		if c[0].Path != page || c[0].Type != ChangePage {
			t.Errorf("change = %+v", c[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Errorf("Start() = %v after Stop", err)
	}
	if w.IsRunning() {
		t.Error("watcher still running after Stop")
	}
}

func TestWatcher_Ignore(t *testing.T) {
	w := NewWatcher(WatcherConfig{
		Paths:  []string{"."},
		Ignore: []string{"drafts", "build/out", "*.bak"},
	})

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("pages", "drafts", "a.html"), true},
		{filepath.Join("pages", "build", "out", "a.html"), true},
		{filepath.Join("pages", "index.html.bak"), true},
		{filepath.Join("pages", ".git", "HEAD"), true},
		{filepath.Join("pages", "draftsman.html"), false},
		{filepath.Join("pages", "build", "a.html"), false},
		{filepath.Join("pages", "index.html"), false},
	}
	for _, tt := range tests {
		if got := w.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		path string
		want ChangeType
	}{
		{"index.html", ChangePage},
		{"components/Navbar.HTML", ChangePage},
		{"legacy.htm", ChangePage},
		{"alpml.json", ChangeConfig},
		{"alpml.yaml", ChangeConfig},
		{"other.json", ChangeAsset},
		{"style.css", ChangeAsset},
	}

	for _, tt := range tests {
		if got := classifyChange(tt.path); got != tt.want {
			t.Errorf("classifyChange(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// =============================================================================
// Server
// =============================================================================

func componentDoc(source string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("<html><body><pre>" + html.EscapeString(source) + "</pre></body></html>")}
}

func testServer(t *testing.T, opts ServerOptions) (*Server, *httptest.Server) {
	t.Helper()

	pages := fstest.MapFS{
		"index.html": {Data: []byte(`<html><head></head><body>` +
			`<object type="text/x-alpml" is="alp-navbar" data="components/navbar.html"></object>` +
			`<alp-navbar name="Jane"></alp-navbar></body></html>`)},
		"broken.html": {Data: []byte(`<html><body>` +
			`<object type="text/x-alpml" is="navbar" data="components/navbar.html"></object></body></html>`)},
		"components/navbar.html": componentDoc(`<template props="name"><nav>Navbar says hi ${name}</nav></template>`),
		"style.css":              {Data: bytes.Repeat([]byte("nav { color: red; }\n"), 200)},
	}

	cfg := config.New()
	cfg.Dev.HotReload = true
	cfg.Dev.Watch = []string{t.TempDir()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if opts.Config == nil {
		opts.Config = cfg
	}
	opts.Logger = logger
	opts.FS = pages

	s := NewServer(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestServer_RendersPages(t *testing.T) {
	_, ts := testServer(t, ServerOptions{})

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d\n%s", path, resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s Content-Type = %q", path, ct)
		}
		if !strings.Contains(body, "Navbar says hi Jane") {
			t.Errorf("GET %s did not render the component:\n%s", path, body)
		}
		if !strings.Contains(body, ReloadPath) {
			t.Errorf("GET %s has no reload client", path)
		}
	}
}

func TestServer_ETag(t *testing.T) {
	_, ts := testServer(t, ServerOptions{})

	resp, body := get(t, ts.URL+"/index.html", nil)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("no ETag")
	}
	if etag != ETag([]byte(body)) {
		t.Errorf("ETag = %s, want hash of the body", etag)
	}

	resp, again := get(t, ts.URL+"/index.html", nil)
	if again != body || resp.Header.Get("ETag") != etag {
		t.Errorf("unchanged page rendered differently:\n%s\n%s", body, again)
	}

	resp, _ = get(t, ts.URL+"/index.html", http.Header{"If-None-Match": {etag}})
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", resp.StatusCode)
	}

	resp, _ = get(t, ts.URL+"/index.html?alp-navbar.name=Paul", http.Header{"If-None-Match": {etag}})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("changed page status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_Overrides(t *testing.T) {
	_, ts := testServer(t, ServerOptions{})

	resp, body := get(t, ts.URL+"/index.html?alp-navbar.name=%3Cb%3EPaul%3C%2Fb%3E&debug=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d\n%s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Navbar says hi Paul") {
		t.Errorf("override not applied:\n%s", body)
	}
	if strings.Contains(body, "<b>") {
		t.Errorf("override markup not stripped:\n%s", body)
	}

	resp, body = get(t, ts.URL+"/index.html?alp-navbar.=x", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad override status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body, "A050") {
		t.Errorf("bad override body = %q", body)
	}
}

func TestServer_Errors(t *testing.T) {
	_, ts := testServer(t, ServerOptions{})

	resp, _ := get(t, ts.URL+"/missing.html", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing page status = %d, want 404", resp.StatusCode)
	}

	resp, body := get(t, ts.URL+"/broken.html", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("broken page status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(body, "A003") || !strings.Contains(body, ReloadPath) {
		t.Errorf("error page should show the code and reload:\n%s", body)
	}
}

func TestServer_Static(t *testing.T) {
	_, ts := testServer(t, ServerOptions{})

	resp, body := get(t, ts.URL+"/style.css", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(body, "nav { color: red; }") {
		t.Errorf("body = %.40q", body)
	}

	resp, _ = get(t, ts.URL+"/style.css", http.Header{"Accept-Encoding": {"gzip"}})
	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", enc)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
	_, ts := testServer(t, ServerOptions{Metrics: m, Gatherer: reg})

	get(t, ts.URL+"/index.html", nil)
	resp, body := get(t, ts.URL+MetricsPath, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`alpml_pages_rendered_total{status="success"} 1`,
		`alpml_components_defined_total{component="alp-navbar"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestServer_Reload(t *testing.T) {
	var reloaded []int
	s, ts := testServer(t, ServerOptions{OnReload: func(n int) { reloaded = append(reloaded, n) }})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+ReloadPath, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for s.reload.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.handleChanges([]Change{{Path: "style.css", Type: ChangeAsset}})

	msgs := readMessages(t, conn, 2)
	if msgs[0].Type != ReloadTypeClear {
		t.Errorf("first message = %+v, want clear", msgs[0])
	}
	if msgs[1].Type != ReloadTypeFull || msgs[1].File != "style.css" {
		t.Errorf("second message = %+v, want reload of style.css", msgs[1])
	}
	if len(reloaded) != 1 || reloaded[0] != 1 {
		t.Errorf("OnReload calls = %v, want [1]", reloaded)
	}

	// A component document that no longer parses shows the error instead.
	broken := filepath.Join(t.TempDir(), "card.html")
	touch(t, broken, "<pre>"+html.EscapeString("<div>hi</span>")+"</pre>", time.Now())
	s.handleChanges([]Change{{Path: broken, Type: ChangePage}})

	msgs = readMessages(t, conn, 1)
	if msgs[0].Type != ReloadTypeError || !strings.Contains(msgs[0].Error, "A001") {
		t.Errorf("message = %+v, want A001 error", msgs[0])
	}
	if len(reloaded) != 1 {
		t.Errorf("broken component should not reload, OnReload calls = %v", reloaded)
	}
}

func readMessages(t *testing.T, conn *websocket.Conn, n int) []ReloadMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgs := make([]ReloadMessage, 0, n)
	for len(msgs) < n {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		var msg ReloadMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestCheckComponentFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	good := filepath.Join(dir, "good.html")
	bad := filepath.Join(dir, "bad.html")
	touch(t, page, "<p>no source here</p>", time.Now())
	touch(t, good, "<pre>"+html.EscapeString(`<template props="a"><p>${a}</p></template>`)+"</pre>", time.Now())
	touch(t, bad, "<pre>   </pre>", time.Now())

	if err := CheckComponentFile(page); err != nil {
		t.Errorf("page: %v", err)
	}
	if err := CheckComponentFile(good); err != nil {
		t.Errorf("good component: %v", err)
	}
	if err := CheckComponentFile(bad); !errors.HasCode(err, "A002") {
		t.Errorf("bad component error = %v, want A002", err)
	}
	if err := CheckComponentFile(filepath.Join(dir, "missing.html")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestInjectClient(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"body", "<html><body><p>x</p></body></html>"},
		{"html only", "<html><p>x</p></html>"},
		{"fragment", "<p>x</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(InjectClient([]byte(tt.page)))
			if !strings.Contains(got, ClientScript) {
				t.Fatal("client script missing")
			}
			if !strings.HasPrefix(got, "<") || !strings.Contains(got, "<p>x</p>") {
				t.Errorf("page content lost: %q", got)
			}
			if strings.Contains(tt.page, "</body>") && !strings.HasSuffix(got, "</body></html>") {
				t.Errorf("script not placed before </body>: %q", got)
			}
		})
	}
}
