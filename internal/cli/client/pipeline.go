package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// RequestInterceptor transforms the request descriptor before it is sent.
// It receives the previous interceptor's output and returns the next one.
type RequestInterceptor func(ctx context.Context, req *Request) (*Request, error)

// ResponseInterceptor transforms a successful response before it is decoded.
type ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

// ErrorInterceptor inspects a failed call. Returning a different error
// handles it; returning the same error passes it on to the next
// interceptor. Returning nil breaks the contract.
type ErrorInterceptor func(ctx context.Context, err error) error

// registration is one entry in an interceptor list. Removal is keyed on the
// registration pointer, so registering the same func twice yields two
// independently removable entries.
type registration[F any] struct {
	fn      F
	removed atomic.Bool
}

type chain[F any] struct {
	mu      sync.Mutex
	entries []*registration[F]
}

func (c *chain[F]) add(fn F) func() {
	reg := &registration[F]{fn: fn}

	c.mu.Lock()
	c.entries = append(c.entries, reg)
	c.mu.Unlock()

	return func() {
		reg.removed.Store(true)

		c.mu.Lock()
		defer c.mu.Unlock()
		kept := make([]*registration[F], 0, len(c.entries))
		for _, e := range c.entries {
			if e != reg {
				kept = append(kept, e)
			}
		}
		c.entries = kept
	}
}

// snapshot returns the entries registered at call start. Entries removed
// after the snapshot are skipped through their removed flag.
func (c *chain[F]) snapshot() []*registration[F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*registration[F], len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *chain[F]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Pipeline holds the request, response and error interceptor lists consulted
// by a Client on every call.
type Pipeline struct {
	request  chain[RequestInterceptor]
	response chain[ResponseInterceptor]
	errors   chain[ErrorInterceptor]
}

// NewPipeline returns an empty pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// AddRequestInterceptor registers fn and returns a func that unregisters it
func (p *Pipeline) AddRequestInterceptor(fn RequestInterceptor) func() {
	return p.request.add(fn)
}

// AddResponseInterceptor registers fn and returns a func that unregisters it
func (p *Pipeline) AddResponseInterceptor(fn ResponseInterceptor) func() {
	return p.response.add(fn)
}

// AddErrorInterceptor registers fn and returns a func that unregisters it
func (p *Pipeline) AddErrorInterceptor(fn ErrorInterceptor) func() {
	return p.errors.add(fn)
}

// Len reports how many request, response and error interceptors are registered
func (p *Pipeline) Len() (request, response, errs int) {
	return p.request.len(), p.response.len(), p.errors.len()
}

func (p *Pipeline) handleRequest(ctx context.Context, req *Request) (*Request, error) {
	current := req
	for i, reg := range p.request.snapshot() {
		if reg.removed.Load() {
			continue
		}
		next, err := reg.fn(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("request interceptor %d: %w", i, err)
		}
		if next == nil {
			return nil, &PipelineIntegrityError{Stage: "request", Index: i}
		}
		current = next
	}
	return current, nil
}

func (p *Pipeline) handleResponse(ctx context.Context, resp *Response) (*Response, error) {
	current := resp
	for i, reg := range p.response.snapshot() {
		if reg.removed.Load() {
			continue
		}
		next, err := reg.fn(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("response interceptor %d: %w", i, err)
		}
		if next == nil {
			return nil, &PipelineIntegrityError{Stage: "response", Index: i}
		}
		current = next
	}
	return current, nil
}

// handleError threads err through the error interceptors. It never returns
// nil: either an interceptor's replacement error, an integrity error, or the
// default formatted *Error.
func (p *Pipeline) handleError(ctx context.Context, err error) error {
	for i, reg := range p.errors.snapshot() {
		if reg.removed.Load() {
			continue
		}
		out := reg.fn(ctx, err)
		if out == nil {
			return &PipelineIntegrityError{Stage: "error", Index: i, Err: err}
		}
		if out != err {
			return out
		}
	}
	return formatError(err)
}
