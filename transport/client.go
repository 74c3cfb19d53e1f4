package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonwraymond/salesync/observe"
	"github.com/jonwraymond/salesync/resilience"
	"github.com/jonwraymond/salesync/session"
)

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 10 << 20

// Request is one logical API call.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is relative to the client base URL, e.g. "/customers/42".
	Path string

	// Params are sent as the query string.
	Params url.Values

	// Body is encoded as JSON when non-nil.
	Body any

	// Endpoint names the call in logs, metrics and spans.
	Endpoint string
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Data   json.RawMessage
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithSession sets the token store read when each request is built.
func WithSession(s *session.Store) Option {
	return func(c *Client) {
		c.session = s
	}
}

// WithExecutor sets the guards applied to each request.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) {
		c.exec = e
	}
}

// WithMiddleware sets the telemetry middleware.
func WithMiddleware(m *observe.Middleware) Option {
	return func(c *Client) {
		c.middleware = m
	}
}

// WithLogger sets the client logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client executes requests against one API base URL.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: every failure of Do is an *Error, except ErrInvalidRequest.
// - Auth: the Authorization header is read from the session store when the
//   request is built; requests already sent are never re-signed.
type Client struct {
	base       *url.URL
	http       *http.Client
	session    *session.Store
	exec       *resilience.Executor
	middleware *observe.Middleware
	logger     observe.Logger
	userAgent  string
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		base:      base,
		http:      http.DefaultClient,
		exec:      resilience.NewExecutor(),
		logger:    observe.NopLogger(),
		userAgent: "salesync",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.middleware == nil {
		c.middleware = observe.NewMiddleware(nil, nil, c.logger)
	}
	return c, nil
}

// Do executes req. It never retries.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if req.Path == "" {
		return Response{}, fmt.Errorf("%w: empty path", ErrInvalidRequest)
	}
	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		body = b
	}

	meta := observe.RequestMeta{
		Method:   req.method(),
		Path:     req.Path,
		Endpoint: req.Endpoint,
		Mutation: req.method() != http.MethodGet,
	}

	var resp Response
	cl := &call{req: req, body: body, resp: &resp}
	send := c.middleware.Wrap(func(ctx context.Context, meta observe.RequestMeta) (int, error) {
		return c.roundTrip(ctx, meta, cl)
	})
	if _, err := send(ctx, meta); err != nil {
		return Response{}, err
	}
	return resp, nil
}

type call struct {
	req  Request
	body []byte
	resp *Response
}

func (c *Client) roundTrip(ctx context.Context, meta observe.RequestMeta, cl *call) (int, error) {
	var status int
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		hreq, err := c.build(ctx, meta.Method, cl)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(hreq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
		if err != nil {
			return err
		}
		data := normalizeBody(raw)
		if status < 200 || status > 299 {
			return serverError(status, data)
		}
		*cl.resp = Response{Status: status, Header: resp.Header, Data: data}
		return nil
	})
	if err == nil {
		return status, nil
	}

	var te *Error
	if errors.As(err, &te) {
		return status, te
	}
	if errors.Is(err, ErrInvalidRequest) {
		return status, err
	}
	return status, transportError(err)
}

func (c *Client) build(ctx context.Context, method string, cl *call) (*http.Request, error) {
	u := c.base.JoinPath(cl.req.Path)
	if len(cl.req.Params) > 0 {
		u.RawQuery = cl.req.Params.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", c.userAgent)
	if cl.body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}

	if c.session != nil {
		header, err := c.session.Authorization()
		switch {
		case err == nil:
			hreq.Header.Set("Authorization", header)
		case errors.Is(err, session.ErrTokenExpired):
			c.logger.Warn(ctx, "session token expired, sending request unauthenticated", observe.F("path", cl.req.Path))
		}
	}
	return hreq, nil
}

// normalizeBody keeps JSON bodies as-is and wraps anything else as a JSON string.
func normalizeBody(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return json.RawMessage(quoted)
}
