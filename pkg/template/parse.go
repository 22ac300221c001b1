package template

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/alpml/internal/errors"
)

// WrapperTag is the root tag that is unwrapped once to find the real root.
const WrapperTag = "template"

// ParsedTemplate is a parsed component template. It is immutable once
// parsed; use Clone before handing a copy to code that might modify it.
type ParsedTemplate struct {
	// OpeningTag is the root element's tag name, as spelled in the source.
	OpeningTag string

	// InnerHTML is the raw markup between the root tags.
	InnerHTML string

	// ClosingTag is the tag name of the root's closing tag.
	ClosingTag string

	// Props are the observed attribute names declared by the wrapper.
	Props []string

	// Attributes are the root element's attributes. Their values may hold
	// placeholders and are interpolated at render time.
	Attributes []html.Attribute

	// Trailing is markup found after the root element. It is not rendered.
	Trailing string
}

// Clone returns a deep copy of t.
func (t *ParsedTemplate) Clone() *ParsedTemplate {
	if t == nil {
		return nil
	}
	c := *t
	c.Props = append([]string(nil), t.Props...)
	c.Attributes = append([]html.Attribute(nil), t.Attributes...)
	return &c
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for recoverable diagnostics such as a
// malformed props attribute.
func WithLogger(logger *slog.Logger) ParseOption {
	return func(c *parseConfig) {
		c.logger = logger
	}
}

// Parse splits a template source into its root tag, body and declared props.
// It fails with a template error when the root tags do not match or when
// there is no root tag. Markup after the root element is logged and dropped.
func Parse(source string, opts ...ParseOption) (*ParsedTemplate, error) {
	cfg := parseConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &parser{src: source, logger: cfg.logger}
	return p.parse(0, len(source), 0)
}

type parser struct {
	src    string
	logger *slog.Logger
}

// root is the result of scanning one level of a template.
type root struct {
	name      string
	attrs     []html.Attribute
	bodyStart int
	bodyEnd   int
	closing   string
	trailing  string
}

// parse parses src[lo:hi]. level counts how many wrappers have been unwrapped.
func (p *parser) parse(lo, hi, level int) (*ParsedTemplate, error) {
	r, err := p.scan(lo, hi)
	if err != nil {
		return nil, err
	}

	if r.name == WrapperTag && level < 1 {
		inner, err := p.parse(r.bodyStart, r.bodyEnd, level+1)
		if err != nil {
			return nil, err
		}
		inner.Props = extractProps(r.attrs, p.logger)
		inner.Trailing += r.trailing
		return inner, nil
	}

	return &ParsedTemplate{
		OpeningTag: r.name,
		InnerHTML:  p.src[r.bodyStart:r.bodyEnd],
		ClosingTag: r.closing,
		Props:      []string{},
		Attributes: r.attrs,
		Trailing:   r.trailing,
	}, nil
}

// scan walks the tokens of src[lo:hi] and locates the root element.
func (p *parser) scan(lo, hi int) (*root, error) {
	z := html.NewTokenizer(strings.NewReader(p.src[lo:hi]))
	offset := lo

	var (
		r       *root
		depth   int
		lastEnd string
	)

	for {
		tt := z.Next()
		raw := z.Raw()
		start := offset
		offset += len(raw)

		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return nil, errors.New("A002").Wrap(z.Err()).WithSource(p.src, start)
			}
			break
		}

		// The first root wins; anything but whitespace and comments after it
		// is dropped.
		if r != nil && depth == 0 {
			if tt == html.CommentToken || (tt == html.TextToken && isBlank(raw)) {
				continue
			}
			r.trailing = p.src[start:hi]
			p.logger.Warn("ignoring markup after the template root",
				"root", r.name,
				"error", errors.New("A004").
					WithDetailf("unexpected %q after </%s>", abbreviate(string(raw)), r.closing).
					WithSource(p.src, start))
			break
		}

		switch tt {
		case html.TextToken:
			if r == nil && !isBlank(raw) {
				return nil, errors.New("A002").
					WithDetailf("text %q appears before any element", abbreviate(string(raw))).
					WithSource(p.src, start)
			}

		case html.StartTagToken:
			name := rawTagName(raw)
			if r == nil {
				r = &root{name: name, attrs: z.Token().Attr, bodyStart: offset}
				depth = 1
				continue
			}
			if name == r.name {
				depth++
			}

		case html.SelfClosingTagToken:
			if r == nil {
				return nil, errors.New("A002").
					WithDetailf("root element <%s/> is self-closing and has no body", rawTagName(raw)).
					WithSource(p.src, start)
			}

		case html.EndTagToken:
			name := rawTagName(raw)
			if r == nil {
				return nil, errors.New("A002").
					WithDetailf("closing tag </%s> appears before any opening tag", name).
					WithSource(p.src, start)
			}
			lastEnd = name
			if name == r.name {
				depth--
				if depth == 0 {
					r.bodyEnd = start
					r.closing = name
				}
			}
		}
	}

	if r == nil || r.name == "" {
		return nil, errors.New("A002").
			WithDetailf("no root element in %q", abbreviate(p.src[lo:hi])).
			WithSource(p.src, lo)
	}
	if depth > 0 {
		return nil, errors.New("A001").
			WithDetailf("opening tag '%s' and closing tag '%s' don't match", r.name, lastEnd).
			WithSource(p.src, hi)
	}
	return r, nil
}

// rawTagName returns the tag name of a raw start or end tag token keeping
// its original case.
func rawTagName(raw []byte) string {
	raw = bytes.TrimLeft(raw, "</")
	end := bytes.IndexAny(raw, " \t\n\r\f/>")
	if end < 0 {
		end = len(raw)
	}
	return string(raw[:end])
}

func isBlank(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}

// abbreviate shortens s for error messages.
func abbreviate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
