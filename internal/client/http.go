package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
)

// HTTPClient implements Client using the cadence HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	identity   *identity.Identity
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithToken sets the admin bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithIdentity forwards id in the trusted identity headers.
func WithIdentity(id identity.Identity) Option {
	return func(c *HTTPClient) { c.identity = &id }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Occurrences ---

func (c *HTTPClient) CreateOccurrence(ctx context.Context, req *CreateOccurrenceRequest) (*model.OccurrenceView, error) {
	var o model.OccurrenceView
	if err := c.doJSON(ctx, http.MethodPost, "/events", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *HTTPClient) GetOccurrence(ctx context.Context, id string) (*model.OccurrenceView, error) {
	var o model.OccurrenceView
	if err := c.doJSON(ctx, http.MethodGet, eventPath(id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *HTTPClient) ListOccurrences(ctx context.Context, req *ListOccurrencesRequest) ([]*model.OccurrenceView, error) {
	q := url.Values{}
	if req.IsActive != nil {
		q.Set("is_active", strconv.FormatBool(*req.IsActive))
	}
	if req.Series != "" {
		q.Set("series", req.Series)
	}
	if req.Skip > 0 {
		q.Set("skip", strconv.Itoa(req.Skip))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	path := "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []*model.OccurrenceView
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Generate(ctx context.Context) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/events/generate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Activity(ctx context.Context, eventID string) ([]*model.Activity, error) {
	var out []*model.Activity
	if err := c.doJSON(ctx, http.MethodGet, eventPath(eventID)+"/activity", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Registrations ---

func (c *HTTPClient) Register(ctx context.Context, eventID, role string) (*model.Registration, error) {
	var r model.Registration
	if err := c.doJSON(ctx, http.MethodPost, eventPath(eventID)+"/register", map[string]string{"role": role}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) Cancel(ctx context.Context, eventID string) error {
	return c.doJSON(ctx, http.MethodDelete, eventPath(eventID)+"/register", nil, nil)
}

func (c *HTTPClient) Participants(ctx context.Context, eventID string) ([]*model.Registration, error) {
	var out []*model.Registration
	if err := c.doJSON(ctx, http.MethodGet, eventPath(eventID)+"/participants", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func eventPath(id string) string {
	return "/events/" + url.PathEscape(id)
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Kind       model.Kind
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the server's error kind back to the model sentinel, so callers
// can use errors.Is(err, model.ErrNotFound).
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case model.KindStructuralConflict:
		return model.ErrInvariant
	case model.KindConflict:
		return model.ErrConflict
	case model.KindNotFound:
		return model.ErrNotFound
	case model.KindUnauthenticated:
		return model.ErrUnauthenticated
	case model.KindForbidden:
		return model.ErrForbidden
	case model.KindExpired:
		return model.ErrExpired
	case model.KindInvalidState:
		return model.ErrInvalidState
	case model.KindTransient:
		return model.ErrTransient
	}
	return nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := c.identity; id != nil {
		req.Header.Set(identity.HeaderUserID, strconv.FormatInt(id.UserID, 10))
		if id.Role != "" {
			req.Header.Set(identity.HeaderRole, id.Role)
		}
		if len(id.AllowedRoles) > 0 {
			req.Header.Set(identity.HeaderAllowedRoles, strings.Join(id.AllowedRoles, ","))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string     `json:"error"`
			Kind  model.Kind `json:"kind"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Kind: errResp.Kind, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
