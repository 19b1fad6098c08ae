// Package telegram implements the Bot API calls the relay needs: getUpdates
// with long-poll semantics and getMe for health probing.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const defaultBaseURL = "https://api.telegram.org"

// HTTPClient abstracts the transport so tests can intercept requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// APIError is a non-2xx answer from the Bot API.
type APIError struct {
	Code        int    `json:"error_code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// IsConflict reports whether err is the 409 answer the API gives when more
// than one consumer long-polls with the same token.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// GetUpdatesRequest carries the long-poll parameters. Timeout is the number
// of seconds the server may hold the connection open, not a client deadline.
type GetUpdatesRequest struct {
	Offset         int64    `json:"offset"`
	Limit          int      `json:"limit"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// Client talks to the Bot API for a single token.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	token      string
	log        *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, for tests or local API servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a Client for the given bot token. The underlying
// http.Client has no timeout: the server-side long-poll timeout is the only
// deadline, so a client-side one would race with it. Cancellation happens
// through the request context instead.
func NewClient(token string, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 0},
		baseURL:    defaultBaseURL,
		token:      token,
		log:        log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetUpdates issues one long-poll request. The call blocks until the server
// answers, the long-poll timeout elapses, or ctx is canceled.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdatesRequest) (*UpdatesResponse, error) {
	if req.AllowedUpdates == nil {
		req.AllowedUpdates = []string{}
	}

	var resp UpdatesResponse
	if err := c.call(ctx, "getUpdates", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GetMe fetches the bot account, validating the token in the process.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var resp struct {
		OK     bool  `json:"ok"`
		Result *User `json:"result"`
	}
	if err := c.call(ctx, "getMe", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if !resp.OK || resp.Result == nil {
		return nil, fmt.Errorf("getMe: malformed response")
	}

	return resp.Result, nil
}

// HealthCheck satisfies the health.Checkable contract.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetMe(ctx)
	return err
}

func (c *Client) call(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		apiErr := &APIError{Code: httpResp.StatusCode}

		var envelope struct {
			ErrorCode   int    `json:"error_code"`
			Description string `json:"description"`
		}
		if decodeErr := json.NewDecoder(httpResp.Body).Decode(&envelope); decodeErr == nil {
			if envelope.ErrorCode != 0 {
				apiErr.Code = envelope.ErrorCode
			}
			apiErr.Description = envelope.Description
		}

		return apiErr
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	return nil
}
