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
)

// Request is the descriptor threaded through request interceptors
type Request struct {
	Endpoint string
	Method   string
	Header   http.Header
	Query    url.Values
	Body     any
}

// Clone returns a copy that interceptors can modify without affecting the input
func (r *Request) Clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	if r.Query != nil {
		out.Query = url.Values{}
		for k, v := range r.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	return &out
}

// Response is a successful (2xx) response threaded through response interceptors
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *Request
}

// RequestOption adjusts a request descriptor before interceptors run
type RequestOption func(*Request)

// WithQuery adds query parameters
func WithQuery(q url.Values) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = url.Values{}
		}
		for k, v := range q {
			r.Query[k] = append(r.Query[k], v...)
		}
	}
}

// WithHeader sets a header, overriding the defaults
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.Header.Set(key, value)
	}
}

// Client represents an HTTP client for the appdeck REST API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	defaultHeaders http.Header
	pipeline       *Pipeline
}

// New creates a new API client for baseURL (e.g. http://localhost:8000/api)
func New(baseURL string) *Client {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultHeaders: headers,
		pipeline:       NewPipeline(),
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the URL endpoints are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Pipeline exposes the interceptor lists
func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

// AddRequestInterceptor registers a request interceptor on this client
func (c *Client) AddRequestInterceptor(fn RequestInterceptor) func() {
	return c.pipeline.AddRequestInterceptor(fn)
}

// AddResponseInterceptor registers a response interceptor on this client
func (c *Client) AddResponseInterceptor(fn ResponseInterceptor) func() {
	return c.pipeline.AddResponseInterceptor(fn)
}

// AddErrorInterceptor registers an error interceptor on this client
func (c *Client) AddErrorInterceptor(fn ErrorInterceptor) func() {
	return c.pipeline.AddErrorInterceptor(fn)
}

// Get issues a GET request and decodes the response into out
func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Do(ctx, c.newRequest(http.MethodGet, endpoint, nil, opts), out)
}

// Post issues a POST request with body encoded as JSON
func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, c.newRequest(http.MethodPost, endpoint, body, opts), out)
}

// Put issues a PUT request with body encoded as JSON
func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, c.newRequest(http.MethodPut, endpoint, body, opts), out)
}

// Delete issues a DELETE request
func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Do(ctx, c.newRequest(http.MethodDelete, endpoint, nil, opts), out)
}

func (c *Client) newRequest(method, endpoint string, body any, opts []RequestOption) *Request {
	req := &Request{
		Endpoint: endpoint,
		Method:   method,
		Header:   c.defaultHeaders.Clone(),
		Body:     body,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// Do runs req through the pipeline, sends it, and decodes a successful
// response body into out (skipped when out is nil or the body is empty).
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	final, err := c.pipeline.handleRequest(ctx, req.Clone())
	if err != nil {
		return err
	}

	httpReq, err := c.buildHTTPRequest(ctx, final)
	if err != nil {
		return err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.pipeline.handleError(ctx, &ResponseError{
			Method: final.Method,
			URL:    httpReq.URL.String(),
			Err:    err,
		})
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return c.pipeline.handleError(ctx, &ResponseError{
			Method:     final.Method,
			URL:        httpReq.URL.String(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("failed to read response: %w", err),
		})
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return c.pipeline.handleError(ctx, &ResponseError{
			Method:     final.Method,
			URL:        httpReq.URL.String(),
			StatusCode: httpResp.StatusCode,
			Body:       body,
		})
	}

	resp, err := c.pipeline.handleResponse(ctx, &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    final,
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := c.resolveURL(req.Endpoint, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		switch b := req.Body.(type) {
		case []byte:
			body = bytes.NewReader(b)
		case io.Reader:
			body = b
		default:
			jsonData, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", err)
			}
			body = bytes.NewReader(jsonData)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	if req.Body == nil {
		httpReq.Header.Del("Content-Type")
	}
	return httpReq, nil
}

// resolveURL joins endpoint onto the base URL. Absolute endpoints are used as-is.
func (c *Client) resolveURL(endpoint string, query url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			for _, value := range v {
				q.Add(k, value)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
