/*
client.go - HTTP request collaborator

PURPOSE:
  Sends form submissions to the HR backend over HTTP. Implements
  form.Collaborator so the coordinator never sees HTTP details.

RESPONSE MAPPING:
  2xx                          -> Reply{Successful: true}
  2xx with {"successful":false} -> Reply{Successful: false, Message}
  non-2xx                      -> Reply{Successful: false, Message} where
                                  Message comes from the body's "message"
                                  or "error" field, else the status text
  network error / timeout      -> error (transport failure)

IDEMPOTENCY:
  Every request carries the submission id in the Idempotency-Key header,
  so a backend that honours it can drop duplicates.

SEE ALSO:
  - form/submit.go: Collaborator contract
  - api/sandbox.go: In-process backend used when no URL is configured
*/
package client

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

	"github.com/warp/workforce-hub/form"
)

const (
	// IdempotencyHeader carries the submission id.
	IdempotencyHeader = "Idempotency-Key"

	_defaultTimeout = 10 * time.Second
	_maxBodyBytes   = 1 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = _defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
	}, nil
}

// SubmitRequest POSTs the payload to the submission's endpoint.
func (c *Client) SubmitRequest(ctx context.Context, sub form.Submission) (form.Reply, error) {
	body, err := json.Marshal(sub.Payload)
	if err != nil {
		return form.Reply{}, fmt.Errorf("marshaling payload: %w", err)
	}

	endpoint := c.baseURL.JoinPath(sub.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return form.Reply{}, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sub.ID != "" {
		req.Header.Set(IdempotencyHeader, sub.ID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return form.Reply{}, fmt.Errorf("sending HTTP request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, _maxBodyBytes))
	if err != nil {
		return form.Reply{}, fmt.Errorf("reading response body: %w", err)
	}

	return decodeReply(resp.StatusCode, raw), nil
}

// backendBody covers the shapes the HR backend answers with.
type backendBody struct {
	Successful *bool  `json:"successful"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func decodeReply(status int, raw []byte) form.Reply {
	var b backendBody
	// Non-JSON bodies are fine; the status code decides.
	_ = json.Unmarshal(raw, &b)

	msg := b.Message
	if msg == "" {
		msg = b.Error
	}

	if status >= 200 && status < 300 {
		if b.Successful != nil && !*b.Successful {
			return form.Reply{Successful: false, Message: msg}
		}
		return form.Reply{Successful: true, Message: msg}
	}

	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return form.Reply{Successful: false, Message: msg}
}
