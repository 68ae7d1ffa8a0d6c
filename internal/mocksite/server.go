// Package mocksite implements a fake search engine plus target site for
// exercising retrieval and full pipeline runs against a local listener.
package mocksite

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
)

// Call records a request made to the mock site.
type Call struct {
	Method string
	Path   string
	Query  string
}

// Result is one search hit the mock engine will return for a query.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Server serves an HTML search endpoint and a set of registered pages.
// Profile pages are registered under paths containing "linkedin.com/in/"
// so candidate filtering treats their URLs as profiles while fetches still
// land on the local listener.
type Server struct {
	mu       sync.Mutex
	calls    []Call
	results  map[string][]Result
	pages    map[string]page
	failures map[string]int
}

type page struct {
	status int
	body   string
}

// New constructs a mock site with no registered pages or results.
func New() *Server {
	return &Server{
		results:  make(map[string][]Result),
		pages:    make(map[string]page),
		failures: make(map[string]int),
	}
}

// Handler returns an http.Handler serving the search endpoint and all
// registered pages.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/html/", s.handleSearch)
	mux.HandleFunc("/", s.handlePage)
	return mux
}

// SetResults registers the hits returned for an exact query string.
func (s *Server) SetResults(query string, results []Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[query] = results
}

// SetPage registers an HTML page served with status 200.
func (s *Server) SetPage(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = page{status: http.StatusOK, body: body}
}

// SetStatus registers a path that responds with a fixed status and body.
func (s *Server) SetStatus(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = page{status: status, body: body}
}

// FailFirst makes the first n requests to path respond 502 before the
// registered page is served.
func (s *Server) FailFirst(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

// Calls returns a snapshot of requests made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)

	q := r.URL.Query().Get("q")
	s.mu.Lock()
	results := s.results[q]
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString("<html><body>")
	for _, res := range results {
		fmt.Fprintf(&b, `<div class="result">`)
		fmt.Fprintf(&b, `<a class="result__a" href="%s">%s</a>`, html.EscapeString(res.URL), html.EscapeString(res.Title))
		fmt.Fprintf(&b, `<a class="result__snippet" href="%s">%s</a>`, html.EscapeString(res.URL), html.EscapeString(res.Snippet))
		fmt.Fprintf(&b, `</div>`)
	}
	b.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)

	s.mu.Lock()
	if n := s.failures[r.URL.Path]; n > 0 {
		s.failures[r.URL.Path] = n - 1
		s.mu.Unlock()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	p, ok := s.pages[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(p.status)
	_, _ = w.Write([]byte(p.body))
}

// ProfileHTML renders a profile page shaped like the selectors the
// extractor walks: heading, headline, location, about, and optional
// contact details in the footer.
func ProfileHTML(name, headline, location, about string, emails ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(html.EscapeString(name))
	b.WriteString("</title></head><body>")
	fmt.Fprintf(&b, `<h1 class="text-heading-xlarge">%s</h1>`, html.EscapeString(name))
	if headline != "" {
		fmt.Fprintf(&b, `<div class="text-body-medium break-words">%s</div>`, html.EscapeString(headline))
	}
	if location != "" {
		fmt.Fprintf(&b, `<span class="text-body-small inline t-black--light break-words">%s</span>`, html.EscapeString(location))
	}
	if about != "" {
		fmt.Fprintf(&b, `<section class="about-section"><p>%s</p></section>`, html.EscapeString(about))
	}
	for _, e := range emails {
		fmt.Fprintf(&b, `<footer>Contact: %s</footer>`, html.EscapeString(e))
	}
	b.WriteString("</body></html>")
	return b.String()
}
