// Package authlete implements backend.Backend on top of the Authlete v3 REST API.
package authlete

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

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 4 << 20

// Observer is notified after every API call.
type Observer func(operation string, err error, elapsed time.Duration)

// Client talks to one Authlete service. It never retries: a failed call is
// reported to the caller, which turns it into a 500.
type Client struct {
	baseURL    string
	serviceID  string
	httpClient *http.Client
	observer   Observer
}

var _ backend.Backend = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the bearer-authenticated client. The caller is then
// responsible for sending the service access token.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithObserver records call latency and outcome.
func WithObserver(o Observer) ClientOption {
	return func(cl *Client) {
		cl.observer = o
	}
}

// New creates a client for baseURL (e.g. https://us.authlete.com) and the
// given service, authenticating with the service access token.
func New(baseURL, serviceID, accessToken string, timeout time.Duration, opts ...ClientOption) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = timeout

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceID:  serviceID,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse holds the fields every Authlete verdict response shares.
type apiResponse struct {
	ResultCode      string `json:"resultCode"`
	ResultMessage   string `json:"resultMessage"`
	Action          string `json:"action"`
	ResponseContent string `json:"responseContent"`
	DPoPNonce       string `json:"dpopNonce,omitempty"`
}

func (r *apiResponse) verdict() *backend.Verdict {
	v := &backend.Verdict{
		Action:          backend.ParseAction(r.Action),
		ResponseContent: r.ResponseContent,
	}
	if r.DPoPNonce != "" {
		v.Headers = map[string]string{"DPoP-Nonce": r.DPoPNonce}
	}
	return v
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/api/%s%s", c.baseURL, url.PathEscape(c.serviceID), path)
}

func (c *Client) call(ctx context.Context, operation, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer(operation, err, time.Since(start))
		}
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(errors.ErrInternal, "%s: marshal request: %v", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "%s: build request: %v", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "%s: %v", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(errors.ErrBackendUnavailable, "%s: read response: %v", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure apiResponse
		_ = json.Unmarshal(data, &failure)
		return errors.Wrapf(errors.ErrBackendUnavailable, "%s: status %d %s %s",
			operation, resp.StatusCode, failure.ResultCode, failure.ResultMessage)
	}

	switch o := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*o = data
		return nil
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(errors.ErrBackendUnavailable, "%s: decode response: %v", operation, err)
		}
		return nil
	}
}

// callVerdict posts in and decodes a plain verdict.
func (c *Client) callVerdict(ctx context.Context, operation, path string, in any) (*backend.Verdict, error) {
	var out apiResponse
	if err := c.call(ctx, operation, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return out.verdict(), nil
}
