package testserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func get(t *testing.T, s *Server, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL()+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_TokenEndpoint(t *testing.T) {
	s := New(Credentials{ClientID: "id", ClientSecret: "secret", Username: "user", Password: "pass"})
	defer s.Close()

	tests := []struct {
		name       string
		id, secret string
		form       url.Values
		wantStatus int
		wantToken  bool
	}{
		{
			name: "password grant", id: "id", secret: "secret",
			form:       url.Values{"grant_type": {"password"}, "username": {"user"}, "password": {"pass"}},
			wantStatus: http.StatusOK, wantToken: true,
		},
		{
			name: "wrong password", id: "id", secret: "secret",
			form:       url.Values{"grant_type": {"password"}, "username": {"user"}, "password": {"nope"}},
			wantStatus: http.StatusOK,
		},
		{
			name: "wrong client", id: "id", secret: "bad",
			form:       url.Values{"grant_type": {"client_credentials"}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown grant", id: "id", secret: "secret",
			form:       url.Values{"grant_type": {"implicit"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, s.URL()+"api/v1/access_token", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.SetBasicAuth(tt.id, tt.secret)

			resp, err := s.Client().Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if _, ok := body["access_token"]; ok != tt.wantToken {
				t.Errorf("access_token present = %v, want %v (%v)", ok, tt.wantToken, body)
			}
		})
	}
}

func TestServer_ListingPagination(t *testing.T) {
	s := New(Credentials{})
	defer s.Close()
	s.SetPosts("Python", Posts(3)...)

	resp := get(t, s, "r/python/new?limit=2", Token)
	var listing struct {
		Data struct {
			After    *string `json:"after"`
			Children []struct {
				Data struct {
					Name string `json:"name"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Data.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(listing.Data.Children))
	}
	if listing.Data.After == nil || *listing.Data.After != "t3_p1" {
		t.Fatalf("after = %v, want t3_p1", listing.Data.After)
	}

	resp = get(t, s, "r/Python/new?limit=2&after=t3_p1", Token)
	listing.Data.After = nil
	listing.Data.Children = nil
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Data.Children) != 1 || listing.Data.Children[0].Data.Name != "t3_p2" {
		t.Fatalf("unexpected second page: %+v", listing.Data.Children)
	}
	if listing.Data.After != nil {
		t.Errorf("last page should have no after cursor, got %q", *listing.Data.After)
	}
}

func TestServer_QueueAndAuth(t *testing.T) {
	s := New(Credentials{})
	defer s.Close()
	s.SetPosts("golang", Posts(1)...)
	s.Queue("/r/golang/new", Response{Status: http.StatusTooManyRequests, Headers: map[string]string{"Retry-After": "3"}})

	if resp := get(t, s, "r/golang/new", ""); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("queued response should be served first, got %d", resp.StatusCode)
	}
	if resp := get(t, s, "r/golang/new", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token should be rejected, got %d", resp.StatusCode)
	}
	if resp := get(t, s, "r/golang/new", Token); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp := get(t, s, "r/missing/new", Token); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown feed should 404, got %d", resp.StatusCode)
	}

	if n := s.Calls("/r/golang/new"); n != 3 {
		t.Errorf("Calls = %d, want 3", n)
	}
	if n := len(s.Requests()); n != 4 {
		t.Errorf("len(Requests) = %d, want 4", n)
	}
}
