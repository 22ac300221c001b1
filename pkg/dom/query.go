package dom

import (
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var selectorCache sync.Map // string -> cascadia.Selector

func compile(sel string) (cascadia.Selector, error) {
	if cached, ok := selectorCache.Load(sel); ok {
		return cached.(cascadia.Selector), nil
	}
	compiled, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	selectorCache.Store(sel, compiled)
	return compiled, nil
}

// QuerySelector returns the first descendant of n matching sel, or nil.
func QuerySelector(n *html.Node, sel string) (*html.Node, error) {
	m, err := compile(sel)
	if err != nil {
		return nil, err
	}
	return cascadia.Query(n, m), nil
}

// QuerySelectorAll returns the descendants of n matching sel in document order.
func QuerySelectorAll(n *html.Node, sel string) ([]*html.Node, error) {
	m, err := compile(sel)
	if err != nil {
		return nil, err
	}
	return cascadia.QueryAll(n, m), nil
}

// QuerySelector returns the first element in the document matching sel.
func (d *Document) QuerySelector(sel string) (*html.Node, error) {
	return QuerySelector(d.root, sel)
}

// QuerySelectorAll returns every element in the document matching sel.
func (d *Document) QuerySelectorAll(sel string) ([]*html.Node, error) {
	return QuerySelectorAll(d.root, sel)
}
