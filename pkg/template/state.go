package template

import "sort"

// ChildrenPlaceholder is the reserved identifier marking the child slot.
const ChildrenPlaceholder = "children"

// SlotAttribute marks the child slot element; its value is the owning
// state's key.
const SlotAttribute = "data-alp-kids"

// State is a component instance's current attribute values plus the
// instance's unique key.
type State struct {
	// Key correlates an instance with its rendered child slot.
	Key string

	values map[string]string
}

// NewState returns an empty state with the given key. Declared props start
// out absent.
func NewState(key string) *State {
	return &State{Key: key, values: make(map[string]string)}
}

// Set stores the value of name.
func (s *State) Set(name, value string) {
	s.values[name] = value
}

// Delete removes name from the state.
func (s *State) Delete(name string) {
	delete(s.values, name)
}

// Get returns the value of name and whether it is present.
func (s *State) Get(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[name]
	return v, ok
}

// Value returns the value of name, or "" when absent.
func (s *State) Value(name string) string {
	v, _ := s.Get(name)
	return v
}

// Names returns the names present in the state, sorted.
func (s *State) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the state's values.
func (s *State) Snapshot() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *State) key() string {
	if s == nil {
		return ""
	}
	return s.Key
}
