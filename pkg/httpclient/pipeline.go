package httpclient

import (
	"net/http"
	"sync"
)

// Doer sends a single HTTP request. *http.Client, *Client and *Pipeline
// all satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Interceptor decorates a Doer. An interceptor may rewrite the outgoing
// request, inspect or replace the response, or turn it into an error.
type Interceptor func(next Doer) Doer

// Pipeline is an ordered chain of interceptors around a terminal Doer.
// Interceptors run in the order they were added: the first one sees the
// request first and the response last.
type Pipeline struct {
	mu           sync.RWMutex
	base         Doer
	interceptors []Interceptor
	chain        Doer
}

// NewPipeline creates a pipeline that ends in base.
func NewPipeline(base Doer) *Pipeline {
	return &Pipeline{base: base, chain: base}
}

// Use appends interceptors to the chain. nil interceptors are skipped so
// feature-flagged stages can be passed unconditionally.
func (p *Pipeline) Use(interceptors ...Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ic := range interceptors {
		if ic != nil {
			p.interceptors = append(p.interceptors, ic)
		}
	}
	p.chain = Chain(p.base, p.interceptors...)
}

// Len returns the number of installed interceptors.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.interceptors)
}

// Do sends req through every interceptor and the terminal Doer.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	p.mu.RLock()
	chain := p.chain
	p.mu.RUnlock()
	return chain.Do(req)
}

// Chain composes interceptors around base so that interceptors[0] is the
// outermost stage.
func Chain(base Doer, interceptors ...Interceptor) Doer {
	d := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		d = interceptors[i](d)
	}
	return d
}
