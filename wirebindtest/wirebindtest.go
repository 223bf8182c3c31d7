// Package wirebindtest provides an isolated HTTP backend for
// exercising marshalled requests in tests.
package wirebindtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// An Exchange is one request as the backend received it.
type Exchange struct {
	Method string
	// Path is the unescaped URL path.
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// A Server is a local HTTP backend dedicated to the calling test. It
// records every request it receives and answers each one with a
// single canned response.
type Server struct {
	ts *httptest.Server

	mu     sync.Mutex
	seen   []Exchange
	status int
	header http.Header
	body   []byte
}

// New starts a backend for the calling test. The server answers 200
// with an empty body until [Server.Respond] changes that, and shuts
// down when the test finishes.
func New(t *testing.T) *Server {
	ret := &Server{status: http.StatusOK}
	ret.ts = httptest.NewServer(http.HandlerFunc(ret.handle))
	t.Cleanup(ret.ts.Close)
	return ret
}

// URL returns the backend's base URL.
func (s *Server) URL() string {
	return s.ts.URL
}

// Respond sets the canned response for subsequent requests. header
// may be nil.
func (s *Server) Respond(status int, header http.Header, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.header = header
	s.body = []byte(body)
}

// Last returns the most recent request the backend received, failing
// the test if there is none.
func (s *Server) Last(t *testing.T) Exchange {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) == 0 {
		t.Fatal("test server received no requests")
	}
	return s.seen[len(s.seen)-1]
}

// Exchanges returns all requests received so far, oldest first.
func (s *Server) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Exchange(nil), s.seen...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.seen = append(s.seen, Exchange{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, header, resp := s.status, s.header, s.body
	s.mu.Unlock()

	for k, vs := range header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(status)
	w.Write(resp)
}
