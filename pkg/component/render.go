package component

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/dom"
	"github.com/vango-dev/alpml/pkg/template"
)

// KeyAttribute carries the owning instance's key on every display node.
const KeyAttribute = "data-key"

// Signals dispatched on component elements.
const (
	EventInitialized       = "initialized"
	EventAttributesUpdated = "attributesUpdated"
)

// Renderer materializes display nodes for one component.
type Renderer struct {
	doc      *dom.Document
	name     string
	logger   *slog.Logger
	observer Observer

	// pending holds the listeners of children waiting for their parent's
	// first render, keyed by the waiting display node.
	pending map[*html.Node]func()
}

// NewRenderer creates a Renderer for the component name.
func NewRenderer(doc *dom.Document, name string, opts ...Option) *Renderer {
	o := buildOptions(opts)
	return newRenderer(doc, name, o)
}

func newRenderer(doc *dom.Document, name string, o *options) *Renderer {
	return &Renderer{
		doc:      doc,
		name:     name,
		logger:   o.logger,
		observer: o.observer,
		pending:  make(map[*html.Node]func()),
	}
}

// Render builds a display node for tmpl and state and places it.
//
// A previous rendition still in the tree is replaced in place and its subtree
// discarded. Otherwise the node is appended to parent, or, when parent is a
// custom element, inserted into the parent component's child slot as soon as
// the parent has rendered.
func (r *Renderer) Render(parent, previous *html.Node, tmpl *template.ParsedTemplate, state *template.State) (*html.Node, error) {
	start := time.Now()

	node, err := r.build(tmpl, state)
	if err != nil {
		return nil, err
	}

	if previous != nil {
		if stop, ok := r.pending[previous]; ok {
			stop()
			delete(r.pending, previous)
		}
		if previous.Parent != nil {
			r.detachChildren(previous, state)
			if err := r.doc.ReplaceWith(previous, node); err != nil {
				return nil, err
			}
			r.observer.Rendered(r.name, true, time.Since(start))
			return node, nil
		}
	}

	if parent == nil {
		return nil, fmt.Errorf("render <%s>: element has no parent", r.name)
	}
	if dom.IsCustomElementName(parent.Data) {
		r.place(parent, node)
	} else {
		r.doc.AppendChild(parent, node)
	}
	r.observer.Rendered(r.name, false, time.Since(start))
	return node, nil
}

// build creates the detached display node.
func (r *Renderer) build(tmpl *template.ParsedTemplate, state *template.State) (*html.Node, error) {
	node := r.doc.CreateElement(tmpl.OpeningTag)
	for _, a := range tmpl.Attributes {
		node.Attr = append(node.Attr, html.Attribute{
			Namespace: a.Namespace,
			Key:       a.Key,
			Val:       template.Interpolate(a.Val, state),
		})
	}
	if state != nil {
		node.Attr = append(node.Attr, html.Attribute{Key: KeyAttribute, Val: state.Key})
	}

	if err := r.doc.SetInnerHTML(node, template.Interpolate(tmpl.InnerHTML, state)); err != nil {
		return nil, fmt.Errorf("render <%s>: %w", r.name, err)
	}
	return node, nil
}

// detachChildren takes the display nodes slotted into previous out of it so
// they survive the replacement. Slotted nodes are the keyed elements directly
// following a slot.
func (r *Renderer) detachChildren(previous *html.Node, state *template.State) {
	if state == nil {
		return
	}
	selector := fmt.Sprintf("[%s=%q]", template.SlotAttribute, state.Key)
	slots, err := dom.QuerySelectorAll(previous, selector)
	if err != nil {
		return
	}
	for _, slot := range slots {
		for next := slot.NextSibling; next != nil; {
			if next.Type != html.ElementNode {
				next = next.NextSibling
				continue
			}
			if _, keyed := dom.GetAttribute(next, KeyAttribute); !keyed {
				break
			}
			child := next
			next = next.NextSibling
			r.doc.Detach(child)
		}
	}
}

// place inserts node into parent's slot now, or once parent is initialized.
func (r *Renderer) place(parent, node *html.Node) {
	if parentRendered(r.doc, parent) {
		r.insert(parent, node)
		return
	}

	r.logger.Debug("waiting for parent to initialize", "component", r.name, "parent", parent.Data)
	r.pending[node] = r.doc.AddEventListener(parent, EventInitialized, func(e *dom.Event) {
		delete(r.pending, node)
		r.insert(e.CurrentTarget, node)
	}, dom.Once())
}

// insert places node in parent's slot, logging failures.
func (r *Renderer) insert(parent, node *html.Node) {
	err := r.insertChild(parent, node)
	if err == nil {
		return
	}

	code := ""
	if ae, ok := err.(*errors.AlpmlError); ok {
		code = ae.Code
	}
	r.logger.Error("child insertion failed",
		"component", r.name,
		"parent", parent.Data,
		"code", code,
		"error", err,
	)
	r.observer.InsertionFailed(r.name, code)
}

// insertChild puts node right after the last slot matching parent's key.
func (r *Renderer) insertChild(parent, node *html.Node) error {
	inst, ok := Lookup(r.doc, parent)
	if !ok || inst.display == nil {
		return errors.New("A011").WithDetailf("<%s> has not rendered", parent.Data)
	}

	selector := fmt.Sprintf("[%s=%q]", template.SlotAttribute, inst.state.Key)
	slots, err := dom.QuerySelectorAll(inst.display, selector)
	if err != nil {
		return errors.New("A011").WithDetailf("<%s> key %q", parent.Data, inst.state.Key).Wrap(err)
	}
	if len(slots) == 0 {
		return errors.New("A010").WithDetailf("<%s> renders no ${children} slot", parent.Data)
	}
	return r.doc.InsertAfter(slots[len(slots)-1], node)
}

// parentRendered reports whether parent is a component instance with a
// display node.
func parentRendered(doc *dom.Document, parent *html.Node) bool {
	inst, ok := Lookup(doc, parent)
	return ok && inst.display != nil
}
