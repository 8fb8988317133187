// Package mock provides a scriptable Upstream for tests.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/aigate"
)

// Upstream is a mock generative backend.
type Upstream struct {
	name         string
	latency      time.Duration
	staticErr    error
	script       []error
	usage        aigate.Usage
	text         string
	responseFunc func(aigate.UpstreamRequest) (aigate.UpstreamResponse, error)

	callCount atomic.Int64
	mu        sync.Mutex
	requests  []aigate.UpstreamRequest
}

var _ aigate.Upstream = (*Upstream)(nil)

// Option configures a mock Upstream.
type Option func(*Upstream)

// New creates a mock upstream with the given options.
func New(opts ...Option) *Upstream {
	u := &Upstream{
		name:  "mock",
		text:  "Hello from mock upstream",
		usage: aigate.Usage{InputTokens: 10, OutputTokens: 20},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithName sets the upstream name.
func WithName(name string) Option {
	return func(u *Upstream) { u.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(u *Upstream) { u.latency = d }
}

// WithError makes every call return err.
func WithError(err error) Option {
	return func(u *Upstream) { u.staticErr = err }
}

// WithScript sets per-call errors: call i returns script[i] when it is
// non-nil. Calls past the end of the script succeed.
func WithScript(errs ...error) Option {
	return func(u *Upstream) { u.script = errs }
}

// WithUsage sets the usage reported by the mock.
func WithUsage(usage aigate.Usage) Option {
	return func(u *Upstream) { u.usage = usage }
}

// WithText sets the response text.
func WithText(text string) Option {
	return func(u *Upstream) { u.text = text }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(aigate.UpstreamRequest) (aigate.UpstreamResponse, error)) Option {
	return func(u *Upstream) { u.responseFunc = fn }
}

func (u *Upstream) Name() string { return u.name }

func (u *Upstream) Generate(ctx context.Context, req aigate.UpstreamRequest) (aigate.UpstreamResponse, error) {
	count := u.callCount.Add(1)

	u.mu.Lock()
	u.requests = append(u.requests, req)
	u.mu.Unlock()

	if u.latency > 0 {
		select {
		case <-time.After(u.latency):
		case <-ctx.Done():
			return aigate.UpstreamResponse{}, ctx.Err()
		}
	}

	if u.staticErr != nil {
		return aigate.UpstreamResponse{}, u.staticErr
	}
	if i := int(count) - 1; i < len(u.script) && u.script[i] != nil {
		return aigate.UpstreamResponse{}, u.script[i]
	}

	if u.responseFunc != nil {
		return u.responseFunc(req)
	}

	return aigate.UpstreamResponse{
		Text:         u.text,
		FinishReason: "stop",
		Usage:        u.usage,
		Model:        req.Model,
	}, nil
}

// CallCount returns the number of calls made.
func (u *Upstream) CallCount() int64 { return u.callCount.Load() }

// Requests returns a copy of every request received, in call order.
func (u *Upstream) Requests() []aigate.UpstreamRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]aigate.UpstreamRequest(nil), u.requests...)
}
