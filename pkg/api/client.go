package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout           = 30 * time.Second
	DefaultCompletionTimeout = 120 * time.Second
	DefaultUserAgent         = "chatsync"

	chatsPath       = "/api/chats"
	chatPath        = "/api/chats/{id}"
	presetsPath     = "/api/system-messages"
	presetPath      = "/api/system-messages/{id}"
	settingsPath    = "/api/settings"
	infoPath        = "/api/info"
	completionsPath = "/v1/chat/completions"
)

// Client talks to the chat server's REST API.
//
// Everything except CompleteChat follows the same failure policy: errors are
// logged and reported as false, an empty list or an absent value. Retrying is
// left to the caller.
type Client struct {
	baseURL           string
	http              *resty.Client
	httpClient        *http.Client
	timeout           time.Duration
	completionTimeout time.Duration
	userAgent         string
	allowInsecure     *bool
}

type ClientOption func(*Client)

// WithTimeout bounds every call except the completion.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithCompletionTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.completionTimeout = d
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithAllowInsecure permits http and local network servers. When not set,
// it defaults to true for loopback servers only.
func WithAllowInsecure(allow bool) ClientOption {
	return func(c *Client) {
		c.allowInsecure = &allow
	}
}

func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	ret := &Client{
		baseURL:           strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout:           DefaultTimeout,
		completionTimeout: DefaultCompletionTimeout,
		userAgent:         DefaultUserAgent,
	}
	for _, o := range options {
		o(ret)
	}

	allowInsecure := IsLocalHost(ret.baseURL)
	if ret.allowInsecure != nil {
		allowInsecure = *ret.allowInsecure
	}
	if err := ValidateBaseURL(ret.baseURL, URLPolicy{AllowInsecure: allowInsecure}); err != nil {
		return nil, err
	}

	var rc *resty.Client
	if ret.httpClient != nil {
		rc = resty.NewWithClient(ret.httpClient)
	} else {
		rc = resty.New()
	}
	// timeouts are applied per call through the context, see withTimeout
	ret.http = rc.
		SetBaseURL(ret.baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ret.userAgent)

	return ret, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) CompletionTimeout() time.Duration {
	return c.completionTimeout
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// do performs a request and classifies the outcome. A nil error means the
// server answered with a 2xx status.
func (c *Client) do(ctx context.Context, method string, path string, pathParams map[string]string, body interface{}) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.Wrapf(ErrTimedOut, "%s %s", method, path)
		}
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if !resp.IsSuccess() {
		return resp, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}
	return resp, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// send runs a state-mutating call and reports success as a bool.
func (c *Client) send(ctx context.Context, op string, method string, path string, pathParams map[string]string, body interface{}) bool {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.do(ctx, method, path, pathParams, body)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("persistence call failed")
		return false
	}
	log.Debug().Str("op", op).Str("method", method).Str("path", path).Msg("persistence call succeeded")
	return true
}

// fetch runs a GET and decodes the body into out. It returns false when the
// request failed or the body could not be decoded. An empty body leaves out
// untouched and counts as success.
func (c *Client) fetch(ctx context.Context, op string, path string, out interface{}) bool {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("persistence call failed")
		return false
	}
	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Warn().Err(errors.Wrap(ErrInvalidResponse, err.Error())).Str("op", op).Msg("could not decode response")
		return false
	}
	return true
}
