package dom

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/errors"
)

// Element is the capability record a custom element instance provides to
// the host.
type Element interface {
	// OnConnect runs each time the element becomes connected.
	OnConnect()

	// OnAttributeChange runs when an observed attribute is set or removed.
	// Absent values are reported as "".
	OnAttributeChange(name, oldValue, newValue string)
}

// Definition describes a custom element type.
type Definition struct {
	// Name is the element's tag name. It must contain a hyphen.
	Name string

	// ObservedAttributes are the attribute names reported to OnAttributeChange.
	ObservedAttributes []string

	// Construct creates the instance backing el.
	Construct func(el *html.Node) Element
}

func (def *Definition) observes(name string) bool {
	return slices.Contains(def.ObservedAttributes, name)
}

type instance struct {
	def       *Definition
	element   Element
	connected bool
}

// Registry holds custom element definitions and their live instances.
type Registry struct {
	doc       *Document
	defs      map[string]*Definition
	instances map[*html.Node]*instance
}

func newRegistry(doc *Document) *Registry {
	return &Registry{
		doc:       doc,
		defs:      make(map[string]*Definition),
		instances: make(map[*html.Node]*instance),
	}
}

// Define registers def and upgrades matching elements already in the document.
func (r *Registry) Define(def Definition) error {
	name := strings.ToLower(def.Name)
	if !IsCustomElementName(name) {
		return errors.New("A003").WithDetailf("%q is not a valid custom element name", def.Name)
	}
	if _, ok := r.defs[name]; ok {
		return errors.New("A005").WithDetailf("%q", name)
	}
	if def.Construct == nil {
		return errors.Newf(errors.CategoryComponent, "definition %q has no constructor", name)
	}

	def.Name = name
	def.ObservedAttributes = slices.Clone(def.ObservedAttributes)
	r.defs[name] = &def
	r.doc.logger.Debug("custom element defined", "name", name, "observed", def.ObservedAttributes)

	r.connectTree(r.doc.root)
	return nil
}

// Get returns the definition registered for name.
func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.defs[strings.ToLower(name)]
	return def, ok
}

// Names returns the defined element names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instance returns the element instance backing n, if n has been upgraded.
func (r *Registry) Instance(n *html.Node) (Element, bool) {
	inst, ok := r.instances[n]
	if !ok {
		return nil, false
	}
	return inst.element, true
}

// connectTree upgrades and connects the defined elements in n's subtree.
// Candidates are collected first because callbacks mutate the tree.
func (r *Registry) connectTree(n *html.Node) {
	if len(r.defs) == 0 {
		return
	}
	var candidates []*html.Node
	walk(n, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		if _, ok := r.defs[c.Data]; ok {
			candidates = append(candidates, c)
		}
	})

	for _, el := range candidates {
		if !r.doc.IsConnected(el) {
			continue
		}
		inst := r.instances[el]
		if inst == nil {
			inst = r.upgrade(el)
		}
		if inst.connected {
			continue
		}
		inst.connected = true
		inst.element.OnConnect()
	}
}

// upgrade constructs the instance for el and replays its observed attributes.
func (r *Registry) upgrade(el *html.Node) *instance {
	def := r.defs[el.Data]
	inst := &instance{def: def, element: def.Construct(el)}
	r.instances[el] = inst
	r.doc.logger.Debug("custom element upgraded", "name", def.Name)

	for _, name := range def.ObservedAttributes {
		if v, ok := GetAttribute(el, name); ok {
			inst.element.OnAttributeChange(name, "", v)
		}
	}
	return inst
}

func (r *Registry) attributeChanged(n *html.Node, name, oldValue, newValue string) {
	inst, ok := r.instances[n]
	if !ok || !inst.def.observes(name) {
		return
	}
	inst.element.OnAttributeChange(name, oldValue, newValue)
}

// disconnect marks the instances in n's subtree as disconnected so that a
// later insertion connects them again.
func (r *Registry) disconnect(n *html.Node) {
	if len(r.instances) == 0 {
		return
	}
	walk(n, func(c *html.Node) {
		if inst, ok := r.instances[c]; ok {
			inst.connected = false
		}
	})
}

func (r *Registry) drop(n *html.Node) {
	delete(r.instances, n)
}
