// Package supabase talks to a Supabase project through its PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP client for the PostgREST endpoint of a Supabase project
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new PostgREST client. timeout bounds every request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsConfigured returns true if the client has URL and key configured
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Error is a non-2xx answer from PostgREST.
type Error struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase %d: %s", e.Status, e.Message)
}

// doRequest performs a request against /rest/v1/<table>. prefer is sent as
// the Prefer header when not empty.
func (c *Client) doRequest(ctx context.Context, method, table string, query url.Values, body interface{}, prefer string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	reqURL := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	return respBody, nil
}

// Select runs GET and decodes the JSON array into out.
func (c *Client) Select(ctx context.Context, table string, query url.Values, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodGet, table, query, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", table, err)
	}
	return nil
}

// Insert posts row and decodes the returned representation into out.
func (c *Client) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodPost, table, nil, row, "return=representation")
	if err != nil {
		return err
	}
	return decodeInto(table, body, out)
}

// Upsert inserts row or merges it into the existing one matching onConflict.
// Columns absent from row are left as they are.
func (c *Client) Upsert(ctx context.Context, table, onConflict string, row interface{}, out interface{}) error {
	q := url.Values{}
	q.Set("on_conflict", onConflict)
	body, err := c.doRequest(ctx, http.MethodPost, table, q, row, "resolution=merge-duplicates,return=representation")
	if err != nil {
		return err
	}
	return decodeInto(table, body, out)
}

// Update patches every row matching filters and decodes the updated rows.
func (c *Client) Update(ctx context.Context, table string, filters url.Values, patch interface{}, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodPatch, table, filters, patch, "return=representation")
	if err != nil {
		return err
	}
	return decodeInto(table, body, out)
}

func decodeInto(table string, body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", table, err)
	}
	return nil
}

// Eq builds a PostgREST equality filter value.
func Eq(v interface{}) string {
	return fmt.Sprintf("eq.%v", v)
}
