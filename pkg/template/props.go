package template

import (
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/errors"
)

// PropsAttribute is the wrapper attribute listing a component's props.
const PropsAttribute = "props"

// ParseProps decodes a props attribute value. The usual form is a comma
// separated list ("name, count"); entries are trimmed and empty entries are
// dropped. A value starting with '[' is decoded as a JSON array of strings.
func ParseProps(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}, nil
	}

	if strings.HasPrefix(value, "[") {
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err != nil {
			return []string{}, errors.New("A020").
				WithDetailf("props %q is not a JSON array of names", value).
				Wrap(err)
		}
		return compact(list), nil
	}

	return compact(strings.Split(value, ",")), nil
}

// extractProps reads the props attribute of the wrapper. A malformed value
// is logged and treated as no props.
func extractProps(attrs []html.Attribute, logger *slog.Logger) []string {
	for _, a := range attrs {
		if a.Key != PropsAttribute {
			continue
		}
		props, err := ParseProps(a.Val)
		if err != nil {
			logger.Warn("ignoring malformed props", "props", a.Val, "error", err)
			return []string{}
		}
		return props
	}
	return []string{}
}

func compact(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
