// Package veo wraps the remote video-synthesis backend: one call to submit
// a generation request, one call to fetch operation status. Retry policy
// belongs to the caller.
package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/internal/httpclient"
	"github.com/dreamtide/veod/logger"
)

const (
	submitPath = "/generate-video"
	statusPath = "/check-operation"

	// Response bodies are small JSON documents; anything past this is
	// a misbehaving backend, not an artifact.
	maxResponseBytes = 64 << 20
)

// SubmissionError means the job never started; the caller may retry from
// scratch with a new job.
type SubmissionError struct {
	cause error
}

func (e *SubmissionError) Error() string { return "submission failed: " + e.cause.Error() }
func (e *SubmissionError) Unwrap() error { return e.cause }

// StatusFetchError means a single status poll failed; the polling loop
// decides whether the failure is transient.
type StatusFetchError struct {
	cause error
}

func (e *StatusFetchError) Error() string { return "status fetch failed: " + e.cause.Error() }
func (e *StatusFetchError) Unwrap() error { return e.cause }

// Client talks to the generation backend. It is constructed unresolved;
// every call fails fast with ErrBaseURLUnresolved until SetBaseURL runs.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	http  *httpclient.SaferClient
	model string
}

// NewClient builds an unresolved client. The HTTP client allows private
// targets because the base URL comes from trusted configuration, not from
// user input.
func NewClient(timeout time.Duration, model string) *Client {
	allowPrivate := false
	return &Client{
		http: httpclient.New(timeout, httpclient.Options{
			BlockPrivateIP: &allowPrivate,
		}),
		model: model,
	}
}

// NewClientWithHTTP is for tests that point the client at an httptest server.
func NewClientWithHTTP(hc *httpclient.SaferClient, model string) *Client {
	return &Client{http: hc, model: model}
}

// SetBaseURL resolves the client's network target. Called once by the
// bootstrap step before any submission.
func (c *Client) SetBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("invalid base URL scheme %q", u.Scheme)
	}

	c.mu.Lock()
	c.baseURL = strings.TrimRight(raw, "/")
	c.mu.Unlock()

	logger.Debugw("Backend base URL resolved", "host", u.Host)
	return nil
}

// BaseURL returns the resolved target, or ErrBaseURLUnresolved.
func (c *Client) BaseURL() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == "" {
		return "", errors.ErrBaseURLUnresolved
	}
	return c.baseURL, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Submit dispatches a generation request and returns the remote operation
// id. Single network call, no retry.
func (c *Client) Submit(ctx context.Context, req GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.Model == "" {
		req.Model = c.model
	}

	var resp generateResponse
	if err := c.post(ctx, submitPath, req, &resp); err != nil {
		if errors.Is(err, errors.ErrBaseURLUnresolved) {
			return "", err
		}
		return "", &SubmissionError{cause: err}
	}

	if resp.Name == "" {
		return "", &SubmissionError{cause: errors.New("response missing operation name")}
	}

	return resp.Name, nil
}

// FetchStatus polls a single operation. Single network call, no retry.
func (c *Client) FetchStatus(ctx context.Context, operationID string) (*OperationStatus, error) {
	if operationID == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "operation id cannot be empty")
	}

	var status OperationStatus
	if err := c.post(ctx, statusPath, statusRequest{OperationName: operationID}, &status); err != nil {
		if errors.Is(err, errors.ErrBaseURLUnresolved) {
			return nil, err
		}
		return nil, &StatusFetchError{cause: err}
	}

	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	base, err := c.BaseURL()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "read response from %s", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("backend returned %d: %s", resp.StatusCode, truncate(string(data), 256))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode response from %s", path)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
