package wirebind

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/creachadair/mds/mapset"
)

// A Request is the marshalled form of one operation call: the HTTP
// method, the path with placeholders substituted, ordered query
// parameters, headers, and the payload body. It is produced by
// Marshal and owned by the caller; nothing in it is shared.
type Request struct {
	// Method is the HTTP method.
	Method string
	// Path is the request path, placeholders already substituted and
	// escaped.
	Path string
	// Header carries header-bound fields plus the protocol's
	// envelope headers.
	Header http.Header
	// Body is the marshalled payload, or nil when the operation
	// sends no body.
	Body []byte

	query []queryParam
}

type queryParam struct {
	name, value string
}

func newRequest(method string) *Request {
	return &Request{Method: method, Header: make(http.Header)}
}

// AddQuery appends one query parameter. Parameters keep their
// insertion order, and a name may repeat.
func (r *Request) AddQuery(name, value string) {
	r.query = append(r.query, queryParam{name, value})
}

// QueryString renders the query parameters in order, percent-encoded
// with space as %20. It is empty when there are no parameters.
func (r *Request) QueryString() string {
	var b strings.Builder
	for i, p := range r.query {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(percentEncode(p.name, false))
		b.WriteByte('=')
		b.WriteString(percentEncode(p.value, false))
	}
	return b.String()
}

// URL joins base with the request path and query string.
func (r *Request) URL(base string) string {
	u := strings.TrimSuffix(base, "/") + r.Path
	if qs := r.QueryString(); qs != "" {
		u += "?" + qs
	}
	return u
}

// HTTPRequest builds the equivalent *http.Request against the given
// base URL.
func (r *Request) HTTPRequest(ctx context.Context, base string) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL(base), body)
	if err != nil {
		return nil, err
	}
	for name, vals := range r.Header {
		req.Header[name] = append([]string(nil), vals...)
	}
	return req, nil
}

// substitutePath fills template's {name} placeholders from vals,
// keyed by placeholder name. Values are percent-encoded; a {name+}
// placeholder keeps slashes, for values that span path segments.
// Every placeholder must have a value and every value a placeholder.
func substitutePath(template string, vals map[string]string) (string, error) {
	var b strings.Builder
	consumed := mapset.New[string]()
	rest := template
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i+1:]
		j := strings.IndexByte(rest, '}')
		if j < 0 {
			return "", fmt.Errorf("unclosed placeholder in %q", template)
		}
		name := rest[:j]
		rest = rest[j+1:]
		greedy := strings.HasSuffix(name, "+")
		name = strings.TrimSuffix(name, "+")
		v, ok := vals[name]
		if !ok {
			return "", fmt.Errorf("no value for path placeholder %q", name)
		}
		if v == "" {
			return "", fmt.Errorf("empty value for path placeholder %q", name)
		}
		b.WriteString(percentEncode(v, greedy))
		consumed.Add(name)
	}
	for name := range vals {
		if !consumed.Has(name) {
			return "", fmt.Errorf("path field %q has no placeholder in %q", name, template)
		}
	}
	return b.String(), nil
}

const upperhex = "0123456789ABCDEF"

// percentEncode escapes s for use in a path segment or query
// component. Unreserved characters pass through; keepSlash leaves /
// intact for greedy path values.
func percentEncode(s string, keepSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && keepSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}
