package component

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/dom"
	"github.com/vango-dev/alpml/pkg/template"
)

// Component is a defined Alpml component.
type Component struct {
	// Name is the custom element tag name.
	Name string

	// Template is the parsed template shared by all instances.
	Template *template.ParsedTemplate
}

// Define parses source and registers it as the custom element name in doc.
// Matching elements already in the document are upgraded and rendered before
// Define returns.
func Define(doc *dom.Document, name, source string, opts ...Option) (*Component, error) {
	o := buildOptions(opts)

	if !dom.IsCustomElementName(name) {
		return nil, errors.New("A003").WithDetailf("%q", name)
	}

	tmpl, err := template.Parse(source, template.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	if err := doc.Registry().Define(newDefinition(doc, name, tmpl, o)); err != nil {
		return nil, err
	}

	o.logger.Debug("component defined", "name", name, "tag", tmpl.OpeningTag, "props", tmpl.Props)
	o.observer.ComponentDefined(name)
	return &Component{Name: name, Template: tmpl}, nil
}

// NewDefinition returns the custom element definition for a parsed template.
// The template's props become the observed attributes.
func NewDefinition(doc *dom.Document, name string, tmpl *template.ParsedTemplate, opts ...Option) dom.Definition {
	return newDefinition(doc, name, tmpl, buildOptions(opts))
}

func newDefinition(doc *dom.Document, name string, tmpl *template.ParsedTemplate, o *options) dom.Definition {
	renderer := newRenderer(doc, name, o)
	return dom.Definition{
		Name:               name,
		ObservedAttributes: tmpl.Props,
		Construct: func(el *html.Node) dom.Element {
			return &Instance{
				name:     name,
				el:       el,
				doc:      doc,
				renderer: renderer,
				tmpl:     tmpl.Clone(),
				state:    template.NewState(o.keyFunc()),
				logger:   o.logger,
			}
		},
	}
}

// Instance is the state behind one component element.
type Instance struct {
	name     string
	el       *html.Node
	doc      *dom.Document
	renderer *Renderer
	tmpl     *template.ParsedTemplate
	state    *template.State
	logger   *slog.Logger

	// display is the current rendition; nil until the first render.
	display *html.Node

	// primed is set by the first attribute change, which never renders.
	primed bool

	// watched is the parent component this instance is slotted into.
	watched *html.Node
	stops   []func()
}

var _ dom.Element = (*Instance)(nil)

// Lookup returns the component instance backing el.
func Lookup(doc *dom.Document, el *html.Node) (*Instance, bool) {
	e, ok := doc.Registry().Instance(el)
	if !ok {
		return nil, false
	}
	inst, ok := e.(*Instance)
	return inst, ok
}

// Element returns the custom element node.
func (i *Instance) Element() *html.Node {
	return i.el
}

// Key returns the instance's unique key.
func (i *Instance) Key() string {
	return i.state.Key
}

// State returns the instance's current state.
func (i *Instance) State() *template.State {
	return i.state
}

// DisplayNode returns the current rendition, or nil before the first render.
func (i *Instance) DisplayNode() *html.Node {
	return i.display
}

// Initialized reports whether the instance has rendered.
func (i *Instance) Initialized() bool {
	return i.display != nil
}

// OnConnect renders the instance and dispatches "initialized".
func (i *Instance) OnConnect() {
	parent := i.el.Parent
	if parent == nil {
		return
	}

	deferred := !parentRendered(i.doc, parent)
	if !i.render(parent) {
		return
	}
	if dom.IsCustomElementName(parent.Data) {
		i.watch(parent, deferred)
	}
	i.doc.DispatchEvent(i.el, dom.NewEvent(EventInitialized))
}

// OnAttributeChange records the new value and re-renders. The first change
// after construction only updates the state, whenever it arrives, and so do
// changes before the first render; connecting renders the recorded values.
func (i *Instance) OnAttributeChange(name, oldValue, newValue string) {
	if oldValue == newValue {
		return
	}
	if _, ok := dom.GetAttribute(i.el, name); ok {
		i.state.Set(name, newValue)
	} else {
		i.state.Delete(name)
	}

	if !i.primed {
		i.primed = true
		i.logger.Debug("initial attribute recorded",
			"component", i.name, "attribute", name, "value", newValue)
		return
	}
	if i.display == nil {
		i.logger.Debug("attribute recorded before first render",
			"component", i.name, "attribute", name, "value", newValue)
		return
	}

	if !i.render(i.el.Parent) {
		return
	}
	i.doc.DispatchEvent(i.el, dom.NewEvent(EventAttributesUpdated))
}

func (i *Instance) render(parent *html.Node) bool {
	node, err := i.renderer.Render(parent, i.display, i.tmpl, i.state)
	if err != nil {
		i.logger.Error("render failed", "component", i.name, "key", i.state.Key, "error", err)
		return false
	}
	i.display = node
	return true
}

// watch subscribes to parent's signals so the display node is slotted again
// after each parent render. When the first insertion is still pending, the
// subscription starts once it has run.
func (i *Instance) watch(parent *html.Node, deferred bool) {
	if i.watched == parent {
		return
	}
	i.unwatch()
	i.watched = parent

	subscribe := func() {
		i.stops = append(i.stops,
			i.doc.AddEventListener(parent, EventInitialized, i.reslot),
			i.doc.AddEventListener(parent, EventAttributesUpdated, i.reslot),
		)
	}
	if !deferred {
		subscribe()
		return
	}
	i.stops = append(i.stops, i.doc.AddEventListener(parent, EventInitialized, func(*dom.Event) {
		subscribe()
	}, dom.Once()))
}

func (i *Instance) unwatch() {
	for _, stop := range i.stops {
		stop()
	}
	i.stops = nil
	i.watched = nil
}

func (i *Instance) reslot(*dom.Event) {
	if i.display == nil || i.watched == nil {
		return
	}
	if !i.doc.IsConnected(i.el) {
		i.unwatch()
		return
	}
	i.renderer.insert(i.watched, i.display)
}
