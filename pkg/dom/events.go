package dom

import "golang.org/x/net/html"

// Event is a signal dispatched on a node.
type Event struct {
	// Type is the event name, e.g. "initialized".
	Type string

	// Bubbles makes the event propagate to the target's ancestors.
	Bubbles bool

	// Detail carries optional event data.
	Detail any

	// Target is the node the event was dispatched on.
	Target *html.Node

	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node

	stopped bool
}

// NewEvent returns a non-bubbling event of the given type.
func NewEvent(typ string) *Event {
	return &Event{Type: typ}
}

// StopPropagation keeps the event from reaching further ancestors.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Listener handles an event.
type Listener func(*Event)

type listener struct {
	fn      Listener
	once    bool
	removed bool
}

// ListenerOption configures AddEventListener.
type ListenerOption func(*listener)

// Once removes the listener after its first invocation.
func Once() ListenerOption {
	return func(l *listener) {
		l.once = true
	}
}

// AddEventListener registers fn for events of type typ on target. A nil
// target means the document. The returned function unregisters fn.
func (d *Document) AddEventListener(target *html.Node, typ string, fn Listener, opts ...ListenerOption) func() {
	if target == nil {
		target = d.root
	}
	l := &listener{fn: fn}
	for _, opt := range opts {
		opt(l)
	}

	byType, ok := d.listeners[target]
	if !ok {
		byType = make(map[string][]*listener)
		d.listeners[target] = byType
	}
	byType[typ] = append(byType[typ], l)

	return func() {
		d.removeListener(target, typ, l)
	}
}

// ListenerCount returns how many listeners for typ are registered on target.
func (d *Document) ListenerCount(target *html.Node, typ string) int {
	if target == nil {
		target = d.root
	}
	return len(d.listeners[target][typ])
}

// DispatchEvent runs the listeners for e on target, then on its ancestors
// when the event bubbles. A nil target means the document.
func (d *Document) DispatchEvent(target *html.Node, e *Event) {
	if target == nil {
		target = d.root
	}
	e.Target = target

	for n := target; n != nil; n = n.Parent {
		d.invoke(n, e)
		if !e.Bubbles || e.stopped {
			break
		}
	}
	e.CurrentTarget = nil
}

// Click dispatches a bubbling click event on n.
func (d *Document) Click(n *html.Node) {
	d.DispatchEvent(n, &Event{Type: "click", Bubbles: true})
}

func (d *Document) invoke(n *html.Node, e *Event) {
	current := d.listeners[n][e.Type]
	if len(current) == 0 {
		return
	}
	e.CurrentTarget = n

	// Listeners added while dispatching do not run for this event.
	snapshot := append([]*listener(nil), current...)
	for _, l := range snapshot {
		if l.removed {
			continue
		}
		if l.once {
			d.removeListener(n, e.Type, l)
		}
		l.fn(e)
	}
}

func (d *Document) removeListener(target *html.Node, typ string, l *listener) {
	l.removed = true
	byType := d.listeners[target]
	list := byType[typ]
	for i, candidate := range list {
		if candidate == l {
			byType[typ] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(byType[typ]) == 0 {
		delete(byType, typ)
	}
	if len(byType) == 0 {
		delete(d.listeners, target)
	}
}
