package loader

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/dom"
)

// Loader fetches a referenced document.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Func adapts a function to the Loader interface.
type Func func(ctx context.Context, ref string) ([]byte, error)

// Load calls f.
func (f Func) Load(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// Mux routes references to loaders by URL scheme.
type Mux struct {
	schemes  map[string]Loader
	fallback Loader
}

// NewMux creates a Mux. fallback handles references without a scheme; it
// may be nil.
func NewMux(fallback Loader) *Mux {
	return &Mux{
		schemes:  make(map[string]Loader),
		fallback: fallback,
	}
}

// Handle registers l for the given scheme.
func (m *Mux) Handle(scheme string, l Loader) {
	m.schemes[strings.ToLower(scheme)] = l
}

// Load implements Loader.
func (m *Mux) Load(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", ref, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		if m.fallback == nil {
			return nil, fmt.Errorf("no loader for relative reference %q", ref)
		}
		return m.fallback.Load(ctx, ref)
	}

	l, ok := m.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("no loader for scheme %q", scheme)
	}
	return l.Load(ctx, ref)
}

// ExtractSource returns the text of the first <pre> element in a component
// document.
func ExtractSource(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", errors.New("A031").Wrap(err)
	}

	pre := findPre(doc)
	if pre == nil {
		return "", errors.New("A031")
	}
	return dom.TextContent(pre), nil
}

func findPre(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Pre {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findPre(c); found != nil {
			return found
		}
	}
	return nil
}
