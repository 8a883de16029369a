// Package testserver provides a scripted stand-in for the Reddit API: the token
// endpoint, api/v1/me and subreddit listings, with queued responses for
// simulating throttling and failures.
package testserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jamesprial/redditlatest/pkg/types"
)

const (
	// Token is the bearer token handed out by the token endpoint.
	Token = "mock_token"

	defaultPageSize = 25
	maxPageSize     = 100
)

// Credentials the server accepts. Zero values accept anything.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Response is a canned reply queued for a path.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// RequestEntry records an incoming request.
type RequestEntry struct {
	Method    string
	Path      string
	Query     string
	UserAgent string
	Timestamp time.Time
}

// Server is a fake Reddit API backed by httptest.
type Server struct {
	server *httptest.Server

	mu       sync.Mutex
	creds    Credentials
	identity *string
	feeds    map[string][]types.PostRecord
	queued   map[string][]Response
	calls    map[string]int
	requests []RequestEntry
}

// New starts a server accepting creds. Call Close when done.
func New(creds Credentials) *Server {
	s := &Server{
		creds:  creds,
		feeds:  make(map[string][]types.PostRecord),
		queued: make(map[string][]Response),
		calls:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", s.handleToken)
	mux.HandleFunc("GET /api/v1/me", s.authorized(s.handleMe))
	mux.HandleFunc("GET /r/{feed}/new", s.authorized(s.handleNew))

	s.server = httptest.NewServer(s.record(mux))
	return s
}

// URL returns the base URL of the server, with a trailing slash. It serves both
// the token endpoint and the API.
func (s *Server) URL() string {
	return s.server.URL + "/"
}

// Client returns an HTTP client configured for the server.
func (s *Server) Client() *http.Client {
	return s.server.Client()
}

// Close shuts down the server.
func (s *Server) Close() {
	s.server.Close()
}

// SetPosts replaces the newest-first listing served for feed.
func (s *Server) SetPosts(feed string, posts ...types.PostRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[strings.ToLower(feed)] = posts
}

// SetIdentity overrides the account name returned by api/v1/me.
func (s *Server) SetIdentity(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &name
}

// Queue schedules responses for path, served in order ahead of normal handling.
func (s *Server) Queue(path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[path] = append(s.queued[path], responses...)
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []RequestEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RequestEntry(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.requests = append(s.requests, RequestEntry{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			UserAgent: r.UserAgent(),
			Timestamp: time.Now(),
		})
		var resp *Response
		if q := s.queued[r.URL.Path]; len(q) > 0 {
			resp = &q[0]
			s.queued[r.URL.Path] = q[1:]
		}
		s.mu.Unlock()

		if resp != nil {
			for k, v := range resp.Headers {
				w.Header().Set(k, v)
			}
			if resp.Body != "" && w.Header().Get("Content-Type") == "" {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(resp.Status)
			_, _ = w.Write([]byte(resp.Body))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized", "error": 401})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || !matches(s.creds.ClientID, id) || !matches(s.creds.ClientSecret, secret) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized", "error": 401})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		// Reddit reports bad user credentials with a 200 and an error body.
		if !matches(s.creds.Username, r.PostForm.Get("username")) || !matches(s.creds.Password, r.PostForm.Get("password")) {
			writeJSON(w, http.StatusOK, map[string]any{"error": "invalid_grant"})
			return
		}
	case "client_credentials":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": Token,
		"token_type":   "bearer",
		"expires_in":   86400,
		"scope":        "*",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	name := s.creds.Username
	if s.identity != nil {
		name = *s.identity
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":            "1a2b3c",
		"name":          name,
		"link_karma":    1,
		"comment_karma": 1,
		"created_utc":   1.5e9,
	})
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	feed := strings.ToLower(r.PathValue("feed"))

	s.mu.Lock()
	posts, ok := s.feeds[feed]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found", "error": 404, "reason": "banned"})
		return
	}

	limit := defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}

	start := 0
	if after := r.URL.Query().Get("after"); after != "" {
		for i, p := range posts {
			if fullname(p) == after {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(posts))

	children := make([]map[string]any, 0, end-start)
	for _, p := range posts[start:end] {
		children = append(children, map[string]any{
			"kind": "t3",
			"data": map[string]any{
				"id":        p.ID,
				"name":      fullname(p),
				"title":     p.Title,
				"author":    p.Author,
				"score":     p.Score,
				"subreddit": feed,
				"edited":    false,
			},
		})
	}

	var after any
	if end < len(posts) && end > start {
		after = fullname(posts[end-1])
	}

	w.Header().Set("X-Ratelimit-Remaining", "599")
	w.Header().Set("X-Ratelimit-Used", "1")
	w.Header().Set("X-Ratelimit-Reset", "600")
	writeJSON(w, http.StatusOK, map[string]any{
		"kind": "Listing",
		"data": map[string]any{
			"after":    after,
			"before":   nil,
			"children": children,
		},
	})
}

func fullname(p types.PostRecord) string {
	return "t3_" + p.ID
}

func matches(want, got string) bool {
	return want == "" || want == got
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Posts builds n posts with ids p0..p(n-1), titles "post N" and score N.
func Posts(n int) []types.PostRecord {
	posts := make([]types.PostRecord, n)
	for i := range posts {
		posts[i] = types.PostRecord{
			ID:     "p" + strconv.Itoa(i),
			Title:  "post " + strconv.Itoa(i),
			Author: "author" + strconv.Itoa(i),
			Score:  i,
		}
	}
	return posts
}
