// Package client is a small HTTP client for the split API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/TimurManjosov/sprida/internal/evaluation"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client is an HTTP client for the split API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListSplits returns the splits served by the API, ordered by key, and the
// snapshot ETag.
func (c *Client) ListSplits(ctx context.Context) ([]store.Split, string, error) {
	var snap struct {
		ETag   string                 `json:"etag"`
		Splits map[string]store.Split `json:"splits"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/splits", nil, &snap); err != nil {
		return nil, "", err
	}

	out := make([]store.Split, 0, len(snap.Splits))
	for _, s := range snap.Splits {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, snap.ETag, nil
}

// GetSplit retrieves a single split by key
func (c *Client) GetSplit(ctx context.Context, key string) (*store.Split, error) {
	var s store.Split
	if err := c.do(ctx, http.MethodGet, "/v1/splits/"+url.PathEscape(key), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSplit creates or replaces a split and returns the stored version.
func (c *Client) UpsertSplit(ctx context.Context, params store.UpsertParams) (*store.Split, error) {
	body := map[string]any{
		"description":     params.Description,
		"alphabet":        params.Alphabet,
		"caseInsensitive": params.CaseInsensitive,
		"salt":            params.Salt,
		"groups":          params.Groups,
	}
	var resp struct {
		Split *store.Split `json:"split"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/splits/"+url.PathEscape(params.Key), body, &resp); err != nil {
		return nil, err
	}
	return resp.Split, nil
}

// DeleteSplit removes a split. A missing split yields an error wrapping ErrNotFound.
func (c *Client) DeleteSplit(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/v1/splits/"+url.PathEscape(key), nil, nil)
}

// Assign places id in every split, or only in keys when given.
func (c *Client) Assign(ctx context.Context, id string, keys []string) ([]evaluation.Result, error) {
	var resp struct {
		Assignments []evaluation.Result `json:"assignments"`
	}
	body := map[string]any{"id": id, "keys": keys}
	if err := c.do(ctx, http.MethodPost, "/v1/assign", body, &resp); err != nil {
		return nil, err
	}
	return resp.Assignments, nil
}

// AssignOne places id in a single split.
func (c *Client) AssignOne(ctx context.Context, key, id string) (*split.Assignment, error) {
	var a split.Assignment
	path := "/v1/assign/" + url.PathEscape(key) + "?id=" + url.QueryEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var structured struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if json.Unmarshal(raw, &structured) == nil && structured.Message != "" {
		apiErr.Code = structured.Code
		apiErr.Message = structured.Message
		if len(structured.Fields) > 0 {
			names := make([]string, 0, len(structured.Fields))
			for f := range structured.Fields {
				names = append(names, f)
			}
			sort.Strings(names)
			parts := make([]string, len(names))
			for i, f := range names {
				parts[i] = f + ": " + structured.Fields[f]
			}
			apiErr.Message += " (" + strings.Join(parts, "; ") + ")"
		}
	}
	return apiErr
}
