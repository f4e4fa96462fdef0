package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrEmptyStatus is returned when asked to post an empty status.
var ErrEmptyStatus = errors.New("empty status")

// Client is a minimal Mastodon API client covering posting, search, app
// registration and timeline streaming.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client

	newIdempotencyKey func() string
}

// NewClient creates a new Mastodon API client for the instance at baseURL.
// accessToken may be empty for unauthenticated calls such as RegisterApp.
func NewClient(baseURL, accessToken string) *Client {
	var httpClient *http.Client
	if accessToken != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}))
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		accessToken:       accessToken,
		httpClient:        httpClient,
		newIdempotencyKey: func() string { return uuid.New().String() },
	}
}

// BaseURL returns the instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Account is a Mastodon account.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// Status is a Mastodon status.
type Status struct {
	ID        string  `json:"id"`
	URI       string  `json:"uri"`
	URL       string  `json:"url"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"created_at"`
	EditedAt  *string `json:"edited_at"`
	Account   Account `json:"account"`
}

// Tag is a hashtag.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SearchResults is the response of the v2 search endpoint.
type SearchResults struct {
	Accounts []Account `json:"accounts"`
	Statuses []Status  `json:"statuses"`
	Hashtags []Tag     `json:"hashtags"`
}

// PostStatus publishes text as a new public status. Every call carries a
// fresh Idempotency-Key.
func (c *Client) PostStatus(ctx context.Context, text string) (*Status, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyStatus
	}

	headers := http.Header{}
	headers.Set("Idempotency-Key", c.newIdempotencyKey())

	var status Status
	if err := c.do(ctx, http.MethodPost, "/api/v1/statuses", map[string]string{"status": text}, headers, &status); err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}
	return &status, nil
}

// PublishStatus posts text, discarding the created status.
func (c *Client) PublishStatus(ctx context.Context, text string) error {
	_, err := c.PostStatus(ctx, text)
	return err
}

// Search queries accounts, hashtags and statuses.
func (c *Client) Search(ctx context.Context, query string) (*SearchResults, error) {
	var results SearchResults
	if err := c.do(ctx, http.MethodGet, "/api/v2/search?q="+url.QueryEscape(query), nil, nil, &results); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &results, nil
}

// VerifyCredentials returns the authenticated account.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, nil, &account); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &account, nil
}

// RegisterApp creates an application on the instance and returns its client
// credentials.
func (c *Client) RegisterApp(ctx context.Context, name string, scopes []string, redirectURI string) (ClientCredentials, error) {
	body := map[string]string{
		"client_name":   name,
		"redirect_uris": redirectURI,
		"scopes":        strings.Join(scopes, " "),
	}

	var resp struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/apps", body, nil, &resp); err != nil {
		return ClientCredentials{}, fmt.Errorf("register app: %w", err)
	}

	return ClientCredentials{
		ClientID:     resp.ClientID,
		ClientSecret: resp.ClientSecret,
		APIBaseURL:   c.baseURL,
	}, nil
}

// StreamingURL returns the websocket URL of the given stream ("user",
// "public", ...).
func (c *Client) StreamingURL(stream string) (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/streaming")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	q := u.Query()
	q.Set("stream", stream)
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers http.Header, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
