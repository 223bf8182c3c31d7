package wirebind

import (
	"context"
	"io"
	"testing"
)

func TestQueryString(t *testing.T) {
	r := newRequest("GET")
	if got := r.QueryString(); got != "" {
		t.Errorf("QueryString of empty request = %q, want \"\"", got)
	}

	r.AddQuery("q", "hello world")
	r.AddQuery("tag", "a")
	r.AddQuery("tag", "b+c")
	r.AddQuery("word", "café")
	r.AddQuery("zero", "")

	const want = "q=hello%20world&tag=a&tag=b%2Bc&word=caf%C3%A9&zero="
	if got := r.QueryString(); got != want {
		t.Errorf("wrong query string:\n  got: %s\n want: %s", got, want)
	}
}

func TestRequestURL(t *testing.T) {
	r := newRequest("GET")
	r.Path = "/things/42"

	if got, want := r.URL("http://api.example.com"), "http://api.example.com/things/42"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if got, want := r.URL("http://api.example.com/"), "http://api.example.com/things/42"; got != want {
		t.Errorf("URL with trailing slash = %q, want %q", got, want)
	}

	r.AddQuery("verbose", "true")
	if got, want := r.URL("http://api.example.com"), "http://api.example.com/things/42?verbose=true"; got != want {
		t.Errorf("URL with query = %q, want %q", got, want)
	}
}

func TestSubstitutePath(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vals     map[string]string
		want     string // empty means want error
	}{
		{"no placeholders", "/things", nil, "/things"},
		{"single", "/things/{id}", map[string]string{"id": "42"}, "/things/42"},
		{"escaped", "/things/{id}", map[string]string{"id": "a/b c"}, "/things/a%2Fb%20c"},
		{"greedy keeps slashes", "/files/{key+}", map[string]string{"key": "a/b c"}, "/files/a/b%20c"},
		{"two placeholders", "/{a}/{b}", map[string]string{"a": "x", "b": "y"}, "/x/y"},
		{"placeholder mid-segment", "/v1/{id}.json", map[string]string{"id": "7"}, "/v1/7.json"},
		{"unclosed", "/things/{id", map[string]string{"id": "42"}, ""},
		{"missing value", "/things/{id}", nil, ""},
		{"empty value", "/things/{id}", map[string]string{"id": ""}, ""},
		{"value without placeholder", "/things", map[string]string{"id": "42"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := substitutePath(tc.template, tc.vals)
			if tc.want == "" {
				if err == nil {
					t.Errorf("substitutePath = %q, want error", got)
				} else if testing.Verbose() {
					t.Logf("substitutePath = err: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("substitutePath failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("wrong path:\n  got: %s\n want: %s", got, tc.want)
			}
		})
	}
}

func TestHTTPRequest(t *testing.T) {
	r := newRequest("POST")
	r.Path = "/things"
	r.AddQuery("verbose", "true")
	r.Header.Set("X-Token", "s3cr3t")
	r.Header["X-Tags"] = []string{"a", "b"}
	r.Body = []byte(`{"label":"hi"}`)

	req, err := r.HTTPRequest(context.Background(), "http://api.example.com")
	if err != nil {
		t.Fatalf("HTTPRequest failed: %v", err)
	}
	if req.Method != "POST" {
		t.Errorf("method = %q, want POST", req.Method)
	}
	if got, want := req.URL.String(), "http://api.example.com/things?verbose=true"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if got := req.Header.Get("X-Token"); got != "s3cr3t" {
		t.Errorf("X-Token = %q, want s3cr3t", got)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if got := string(body); got != `{"label":"hi"}` {
		t.Errorf("body = %s, want %s", got, `{"label":"hi"}`)
	}

	// The built request owns its header slices.
	req.Header["X-Tags"][0] = "mutated"
	if got := r.Header["X-Tags"][0]; got != "a" {
		t.Errorf("mutating the built request changed the original header: %q", got)
	}

	bodyless := newRequest("GET")
	bodyless.Path = "/things"
	req, err = bodyless.HTTPRequest(context.Background(), "http://api.example.com")
	if err != nil {
		t.Fatalf("HTTPRequest failed: %v", err)
	}
	if req.Body != nil {
		t.Error("bodyless request got a body")
	}
}
