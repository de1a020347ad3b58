// Package client is an HTTP client for the mind-map API. It implements
// editor.Persister so a Workspace can save through it.
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
	"strconv"
	"strings"
	"time"

	"github.com/starford/mindmaps/internal/account"
	"github.com/starford/mindmaps/internal/api"
	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/editor"
	"github.com/starford/mindmaps/internal/mindmap"
	"github.com/starford/mindmaps/internal/models"
)

// DefaultTimeout bounds each request when the caller's context has no
// earlier deadline.
const DefaultTimeout = 10 * time.Second

var _ editor.Persister = (*Client)(nil)

// StatusError is a non-2xx API response. It unwraps to the apperr
// sentinel matching its status code.
type StatusError struct {
	Status  int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Client calls the API rooted at a base URL such as
// http://localhost:8080/api. It is safe for concurrent use once configured,
// except that Login and Register replace the stored token.
type Client struct {
	base    string
	http    *http.Client
	token   string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New returns a client for the API at base.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(base, "/"),
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// Register creates an account and keeps its session token.
func (c *Client) Register(ctx context.Context, reg account.Registration) (*models.User, error) {
	var out api.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/users/register", reg, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.User, nil
}

// Login opens a session and keeps its token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var out api.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", api.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.User, nil
}

// Logout ends the current session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/users/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Get fetches one document.
func (c *Client) Get(ctx context.Context, id string) (*models.MindMap, error) {
	var m models.MindMap
	if err := c.do(ctx, http.MethodGet, "/mindmaps/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create stores a new document owned by the signed-in user.
func (c *Client) Create(ctx context.Context, d models.MindMapDraft) (*models.MindMap, error) {
	var m models.MindMap
	if err := c.do(ctx, http.MethodPost, "/mindmaps", d, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, p models.MindMapPatch) (*models.MindMap, error) {
	var m models.MindMap
	if err := c.do(ctx, http.MethodPut, "/mindmaps/"+url.PathEscape(id), p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/mindmaps/"+url.PathEscape(id), nil, nil)
}

// Copy duplicates a readable document into a private one.
func (c *Client) Copy(ctx context.Context, id string) (*models.MindMap, error) {
	var m models.MindMap
	if err := c.do(ctx, http.MethodPost, "/mindmaps/"+url.PathEscape(id)+"/copy", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMine pages through the signed-in user's documents.
func (c *Client) ListMine(ctx context.Context, pr mindmap.PageRequest) (*mindmap.Page, error) {
	var p mindmap.Page
	if err := c.do(ctx, http.MethodGet, "/mindmaps/my?"+pageQuery(pr).Encode(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPublic pages through the public gallery.
func (c *Client) ListPublic(ctx context.Context, f mindmap.PublicFilter) (*mindmap.Page, error) {
	q := pageQuery(f.PageRequest)
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	var p mindmap.Page
	if err := c.do(ctx, http.MethodGet, "/mindmaps/public?"+q.Encode(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListTemplates returns every public template.
func (c *Client) ListTemplates(ctx context.Context) ([]models.MindMap, error) {
	var out []models.MindMap
	if err := c.do(ctx, http.MethodGet, "/mindmaps/templates/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
			return fmt.Errorf("client: %s %s: %w", method, path, err)
		}
		return apperr.Transient("client: "+method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return apperr.Transient("client: read "+path, err)
		}
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) != nil {
		body.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{Status: resp.StatusCode, Message: body.Error, kind: kindFor(resp.StatusCode)}
}

// kindFor maps a response status to its apperr sentinel. It mirrors
// api.StatusFor.
func kindFor(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperr.ErrValidation
	case status == http.StatusUnauthorized:
		return apperr.ErrUnauthenticated
	case status == http.StatusForbidden:
		return apperr.ErrAccessDenied
	case status == http.StatusNotFound:
		return apperr.ErrNotFound
	case status == http.StatusConflict:
		return apperr.ErrAlreadyExists
	case status == http.StatusTooManyRequests, status >= 500:
		return apperr.ErrTransient
	}
	return nil
}

func pageQuery(pr mindmap.PageRequest) url.Values {
	q := url.Values{}
	if pr.Page > 0 {
		q.Set("page", strconv.Itoa(pr.Page))
	}
	if pr.Limit > 0 {
		q.Set("limit", strconv.Itoa(pr.Limit))
	}
	return q
}
