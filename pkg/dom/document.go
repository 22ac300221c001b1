package dom

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is an HTML document with a custom element registry and an event bus.
type Document struct {
	root      *html.Node
	listeners map[*html.Node]map[string][]*listener
	registry  *Registry
	logger    *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the document's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		d.logger = logger
	}
}

// Parse parses an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return NewDocument(root, opts...), nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// NewDocument wraps an existing document node.
func NewDocument(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:      root,
		listeners: make(map[*html.Node]map[string][]*listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registry = newRegistry(d)
	return d
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Registry returns the document's custom element registry.
func (d *Document) Registry() *Registry {
	return d.registry
}

// Logger returns the document's logger.
func (d *Document) Logger() *slog.Logger {
	return d.logger
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node {
	return findElement(d.root, atom.Head)
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	return findElement(d.root, atom.Body)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// CreateElement returns a new detached element. Tag names are lowercased as
// in an HTML document.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// AppendChild appends child to parent, moving it if it already has a parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.detach(child)
	parent.AppendChild(child)
	d.connect(child)
}

// InsertAfter inserts n immediately after ref.
func (d *Document) InsertAfter(ref, n *html.Node) error {
	if ref.Parent == nil {
		return fmt.Errorf("insert after <%s>: reference node has no parent", ref.Data)
	}
	d.detach(n)
	ref.Parent.InsertBefore(n, ref.NextSibling)
	d.connect(n)
	return nil
}

// ReplaceWith puts n where old is and discards old's subtree.
func (d *Document) ReplaceWith(old, n *html.Node) error {
	parent := old.Parent
	if parent == nil {
		return fmt.Errorf("replace <%s>: node has no parent", old.Data)
	}
	if old == n {
		return nil
	}
	d.detach(n)
	parent.InsertBefore(n, old)
	parent.RemoveChild(old)
	d.forget(old)
	d.connect(n)
	return nil
}

// Detach removes n from its parent but keeps its listeners and custom element
// instances, so a later insertion reconnects them.
func (d *Document) Detach(n *html.Node) {
	d.detach(n)
}

// Remove detaches n from its parent and discards its subtree.
func (d *Document) Remove(n *html.Node) {
	d.detach(n)
	d.forget(n)
}

// SetInnerHTML replaces n's children with the parsed markup.
func (d *Document) SetInnerHTML(n *html.Node, markup string) error {
	if n.Type != html.ElementNode {
		return fmt.Errorf("set inner html: not an element")
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parsing markup for <%s>: %w", n.Data, err)
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		d.forget(c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	if d.IsConnected(n) {
		for _, c := range nodes {
			d.connect(c)
		}
	}
	return nil
}

// IsConnected reports whether n is part of the document tree.
func (d *Document) IsConnected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// GetAttribute returns the value of the attribute key and whether it is set.
func GetAttribute(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets an attribute. Observed attributes of upgraded custom
// elements are reported to the element.
func (d *Document) SetAttribute(n *html.Node, key, value string) {
	old, _ := GetAttribute(n, key)
	setAttr(n, key, value)
	d.registry.attributeChanged(n, key, old, value)
}

// RemoveAttribute removes an attribute, reporting the change like SetAttribute.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	old, ok := GetAttribute(n, key)
	if !ok {
		return
	}
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
	d.registry.attributeChanged(n, key, old, "")
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// OuterHTML renders n and its subtree.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// IsCustomElementName reports whether name is usable as a custom element tag.
func IsCustomElementName(name string) bool {
	return strings.Contains(name, "-")
}

// detach removes n from its parent without discarding it.
func (d *Document) detach(n *html.Node) {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
	d.registry.disconnect(n)
}

// forget drops listeners and custom element instances in n's subtree.
func (d *Document) forget(n *html.Node) {
	walk(n, func(c *html.Node) {
		delete(d.listeners, c)
		d.registry.drop(c)
	})
}

// connect upgrades and connects custom elements in n's subtree, if n is in
// the document.
func (d *Document) connect(n *html.Node) {
	if !d.IsConnected(n) {
		return
	}
	d.registry.connectTree(n)
}

// walk visits n and its descendants in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
