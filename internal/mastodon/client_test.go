package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPostStatus(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/statuses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		key := r.Header.Get("Idempotency-Key")
		if _, err := uuid.Parse(key); err != nil {
			t.Errorf("Idempotency-Key %q is not a uuid", key)
		}
		keys = append(keys, key)

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(Status{ID: "1", URI: "https://social.example/s/1", Content: body["status"]})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	status, err := c.PostStatus(context.Background(), "hello CVE-2024-3094")
	if err != nil {
		t.Fatalf("PostStatus: %v", err)
	}
	if status.Content != "hello CVE-2024-3094" {
		t.Errorf("content = %q", status.Content)
	}

	if err := c.PublishStatus(context.Background(), "again"); err != nil {
		t.Fatalf("PublishStatus: %v", err)
	}
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Errorf("idempotency keys not unique per post: %v", keys)
	}
}

func TestPostStatusEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty status reached the server")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	for _, text := range []string{"", "  \n"} {
		if _, err := c.PostStatus(context.Background(), text); !errors.Is(err, ErrEmptyStatus) {
			t.Errorf("PostStatus(%q) error = %v", text, err)
		}
	}
}

func TestPostStatusAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Validation failed: Text character limit of 500 exceeded"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "tok").PublishStatus(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("error = %v", err)
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "#cve 2024" {
			t.Errorf("q = %q", q)
		}
		w.Write([]byte(`{"accounts": [], "statuses": [{"id": "9", "content": "CVE-2024-1"}], "hashtags": [{"name": "cve"}]}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "tok").Search(context.Background(), "#cve 2024")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Statuses) != 1 || res.Statuses[0].ID != "9" || len(res.Hashtags) != 1 {
		t.Errorf("results = %+v", res)
	}
}

func TestVerifyCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"id": "1", "username": "vulnbot", "acct": "vulnbot"}`))
	}))
	defer srv.Close()

	acct, err := NewClient(srv.URL, "tok").VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if acct.Username != "vulnbot" {
		t.Errorf("username = %q", acct.Username)
	}
}

func TestRegisterApp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("registration must not be authenticated")
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["client_name"] != "Vulnerability-Lookup" || body["scopes"] != "read write" || body["redirect_uris"] != OutOfBandRedirect {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"client_id": "cid", "client_secret": "csecret"}`))
	}))
	defer srv.Close()

	creds, err := NewClient(srv.URL+"/", "").RegisterApp(context.Background(), "Vulnerability-Lookup", []string{"read", "write"}, OutOfBandRedirect)
	if err != nil {
		t.Fatalf("RegisterApp: %v", err)
	}
	want := ClientCredentials{ClientID: "cid", ClientSecret: "csecret", APIBaseURL: srv.URL}
	if creds != want {
		t.Errorf("creds = %+v, want %+v", creds, want)
	}
}

func TestStreamingURL(t *testing.T) {
	tests := []struct {
		base   string
		token  string
		scheme string
	}{
		{"https://social.example", "tok", "wss"},
		{"http://localhost:3000/", "", "ws"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			raw, err := NewClient(tt.base, tt.token).StreamingURL("public")
			if err != nil {
				t.Fatalf("StreamingURL: %v", err)
			}
			u, _ := url.Parse(raw)
			if u.Scheme != tt.scheme || u.Path != "/api/v1/streaming" {
				t.Errorf("url = %s", raw)
			}
			if u.Query().Get("stream") != "public" || u.Query().Get("access_token") != tt.token {
				t.Errorf("query = %s", u.RawQuery)
			}
		})
	}
}
