// Package service wraps the remote activity API.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mph-llm-experiments/acalls/internal/model"
)

// ErrNotFound is returned when the service has no activity with the requested id.
var ErrNotFound = errors.New("activity not found")

// APIError is a non-2xx response other than 404.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ActivityService is what the views need from the remote service.
type ActivityService interface {
	ListActivities(ctx context.Context) ([]model.Activity, error)
	GetActivity(ctx context.Context, id model.ActivityID) (model.Activity, error)
	SetArchived(ctx context.Context, id model.ActivityID, archived bool) (model.Activity, error)
	ResetActivities(ctx context.Context) error
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. with an httptest server's.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. A client passed with
// WithHTTPClient is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListActivities fetches every activity.
func (c *Client) ListActivities(ctx context.Context) ([]model.Activity, error) {
	var activities []model.Activity
	if err := c.do(ctx, http.MethodGet, "/activities", nil, &activities); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	return activities, nil
}

// GetActivity fetches one activity. A missing activity yields ErrNotFound.
func (c *Client) GetActivity(ctx context.Context, id model.ActivityID) (model.Activity, error) {
	var activity model.Activity
	if err := c.do(ctx, http.MethodGet, activityPath(id), nil, &activity); err != nil {
		return model.Activity{}, fmt.Errorf("failed to get activity %s: %w", id, err)
	}
	if activity.ID == "" {
		return model.Activity{}, fmt.Errorf("failed to get activity %s: %w", id, ErrNotFound)
	}
	return activity, nil
}

type archivePatch struct {
	IsArchived bool `json:"is_archived"`
}

// SetArchived sets the archived flag of one activity and returns the updated record.
func (c *Client) SetArchived(ctx context.Context, id model.ActivityID, archived bool) (model.Activity, error) {
	var activity model.Activity
	if err := c.do(ctx, http.MethodPatch, activityPath(id), archivePatch{IsArchived: archived}, &activity); err != nil {
		return model.Activity{}, fmt.Errorf("failed to update activity %s: %w", id, err)
	}
	return activity, nil
}

// ToggleArchived flips the archived flag of a.
func ToggleArchived(ctx context.Context, svc ActivityService, a model.Activity) (model.Activity, error) {
	return svc.SetArchived(ctx, a.ID, !a.IsArchived)
}

// ResetActivities clears the archived flag on every activity.
func (c *Client) ResetActivities(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPatch, "/reset", nil, nil); err != nil {
		return fmt.Errorf("failed to reset activities: %w", err)
	}
	return nil
}

func activityPath(id model.ActivityID) string {
	return "/activities/" + url.PathEscape(string(id))
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reqBody)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[api] %s %s failed after %s req=%s: %v", method, path, time.Since(start).Round(time.Millisecond), requestID, err)
		return err
	}
	defer resp.Body.Close()
	log.Printf("[api] %s %s -> %d (%s) req=%s", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// an empty body leaves out untouched
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
