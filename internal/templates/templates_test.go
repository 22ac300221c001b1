package templates

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/alpml"
	"github.com/vango-dev/alpml/internal/config"
	"github.com/vango-dev/alpml/internal/errors"
)

func TestGet(t *testing.T) {
	for _, name := range []string{"minimal", "counter"} {
		tmpl, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if tmpl.Name != name {
			t.Errorf("Name = %q, want %q", tmpl.Name, name)
		}
	}

	if _, err := Get("nonexistent"); !errors.HasCode(err, "A052") {
		t.Errorf("Get(nonexistent) error = %v, want A052", err)
	}
}

func TestList(t *testing.T) {
	if diff := cmp.Diff([]string{"counter", "minimal"}, List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplate_Create(t *testing.T) {
	dir := t.TempDir()
	tmpl, _ := Get("counter")

	if err := tmpl.Create(dir, Config{ProjectName: "demo", Description: "A demo site"}, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, p := range tmpl.Paths() {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}

	readme, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	if !strings.Contains(string(readme), "# demo") || !strings.Contains(string(readme), "A demo site") {
		t.Errorf("README not filled in:\n%s", readme)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Name != "demo" || !cfg.Dev.HotReload {
		t.Errorf("config = %+v", cfg)
	}
}

func TestTemplate_CreateExisting(t *testing.T) {
	dir := t.TempDir()
	tmpl, _ := Get("minimal")
	index := filepath.Join(dir, "index.html")
	if err := os.WriteFile(index, []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := tmpl.Create(dir, Config{ProjectName: "demo"}, false)
	if !errors.HasCode(err, "A051") {
		t.Fatalf("Create() error = %v, want A051", err)
	}
	if data, _ := os.ReadFile(index); string(data) != "mine" {
		t.Error("existing file was overwritten")
	}
	if _, err := os.Stat(filepath.Join(dir, config.ConfigFileName)); !os.IsNotExist(err) {
		t.Error("a failed Create should write nothing")
	}

	if err := tmpl.Create(dir, Config{ProjectName: "demo"}, true); err != nil {
		t.Fatalf("Create(overwrite): %v", err)
	}
	if data, _ := os.ReadFile(index); string(data) == "mine" {
		t.Error("overwrite did not replace the file")
	}
}

// The generated projects render with the engine.
func TestTemplates_Render(t *testing.T) {
	tests := []struct {
		template string
		want     []string
	}{
		{"minimal", []string{"<h1 data-key=", ">Welcome to demo</h1>"}},
		{"counter", []string{
			"Navbar says hi Jane",
			"Navbar says hi Paul",
			"Navbar says hi Rania",
			"<span>50</span>",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			dir := t.TempDir()
			tmpl, _ := Get(tt.template)
			if err := tmpl.Create(dir, Config{ProjectName: "demo"}, false); err != nil {
				t.Fatal(err)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				t.Fatal(err)
			}

			engine := alpml.New(alpml.WithConfig(cfg), alpml.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			var out bytes.Buffer
			if err := engine.RenderPage(context.Background(), "index.html", &out); err != nil {
				t.Fatalf("RenderPage: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
			if n := strings.Count(out.String(), "<script src="); n != 1 {
				t.Errorf("found %d script tags, want 1", n)
			}
		})
	}
}
