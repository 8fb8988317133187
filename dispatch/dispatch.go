// Package dispatch executes function calls emitted by the model against
// handlers supplied by the embedding application.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ineyio/aigate"
)

// Handler runs one named function.
type Handler interface {
	Call(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Call calls f(ctx, args).
func (f HandlerFunc) Call(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Registry resolves function names to handlers.
type Registry interface {
	Lookup(name string) (Handler, bool)
}

// Map is a Registry backed by a map.
type Map map[string]Handler

// Lookup implements Registry.
func (m Map) Lookup(name string) (Handler, bool) {
	h, ok := m[name]
	return h, ok
}

// Register adds fn under name.
func (m Map) Register(name string, fn HandlerFunc) {
	m[name] = fn
}

// Declarations returns one FunctionDeclaration per name in the order given,
// for handlers that also implement Declarer. Others are skipped.
func (m Map) Declarations(names ...string) []aigate.FunctionDeclaration {
	var out []aigate.FunctionDeclaration
	for _, name := range names {
		if d, ok := m[name].(Declarer); ok {
			decl := d.Declaration()
			decl.Name = name
			out = append(out, decl)
		}
	}
	return out
}

// Declarer is implemented by handlers that describe themselves to the model.
type Declarer interface {
	Declaration() aigate.FunctionDeclaration
}

// Dispatcher executes function calls with per-call isolation.
type Dispatcher struct {
	concurrency int
	timeout     time.Duration
	log         *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds how many handlers run at once (default 4).
// Values below 1 run calls one at a time.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithHandlerTimeout bounds each handler call. Zero means no timeout.
func WithHandlerTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithLogger sets the logger for handler faults.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		concurrency: 4,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.concurrency < 1 {
		d.concurrency = 1
	}
	return d
}

// Execute runs every call and returns one result per call, in input order.
// A missing handler, a handler error and a handler panic all become failed
// results; Execute itself never fails. Nothing is retried.
func (d *Dispatcher) Execute(ctx context.Context, calls []aigate.FunctionCallRequest, registry Registry) []aigate.FunctionCallResult {
	results := make([]aigate.FunctionCallResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = d.run(ctx, call, registry)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) run(ctx context.Context, call aigate.FunctionCallRequest, registry Registry) (res aigate.FunctionCallResult) {
	res.Name = call.Name

	var h Handler
	var ok bool
	if registry != nil {
		h, ok = registry.Lookup(call.Name)
	}
	if !ok || h == nil {
		res.Error = "not implemented: " + call.Name
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			fault := &aigate.FunctionHandlerFault{Name: call.Name, Cause: r}
			d.log.Error("function handler panicked", "function", call.Name, "panic", fmt.Sprint(r))
			res = aigate.FunctionCallResult{Name: call.Name, Error: fault.Error()}
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	out, err := h.Call(ctx, args)
	if err != nil {
		d.log.Warn("function handler failed", "function", call.Name, "error", err)
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Result = out
	return res
}
