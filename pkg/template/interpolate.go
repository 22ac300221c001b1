package template

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{\s*([A-Za-z0-9_]*)\s*\}`)

// ChildSlot returns the hidden slot markup for the given state key.
func ChildSlot(key string) string {
	return "<div " + SlotAttribute + "='" + key + "' style='display: none;'></div>"
}

// Interpolate replaces each ${identifier} in body with its state value.
// ${children} becomes the child slot for the state's key; absent or empty
// values become "". Text between placeholders is copied verbatim.
func Interpolate(body string, state *State) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	cursor := 0
	for _, m := range matches {
		b.WriteString(body[cursor:m[0]])
		cursor = m[1]

		name := body[m[2]:m[3]]
		if name == ChildrenPlaceholder {
			b.WriteString(ChildSlot(state.key()))
			continue
		}
		b.WriteString(state.Value(name))
	}
	b.WriteString(body[cursor:])
	return b.String()
}

// Placeholders returns the identifiers referenced by body in order of first
// appearance, without duplicates.
func Placeholders(body string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if name := m[1]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
