// Package resolver maps handler references to registered handlers and
// invokes them with a job's params.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/internal/handler"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Kind re-exports the handler invocation strategy.
type Kind = handler.Kind

const (
	KindFunc       = handler.KindFunc
	KindStructured = handler.KindStructured
)

// Resolver holds registered handlers by reference name.
type Resolver struct {
	handlers map[string]*handler.Handler
	mu       sync.RWMutex
}

// New creates an empty Resolver.
func New() *Resolver {
	return &Resolver{handlers: make(map[string]*handler.Handler)}
}

// Register registers fn under name. It panics if the name is invalid or fn
// is not a supported handler shape; use TryRegister to get the error.
//
// fn is either a plain function, called with the job's params, or a
// constructor whose first result implements core.ShouldQueue; the
// constructor receives the params and Handle is invoked on the instance.
func (r *Resolver) Register(name string, fn any) {
	if err := r.TryRegister(name, fn); err != nil {
		panic(err.Error())
	}
}

// TryRegister registers fn under name, returning an error instead of
// panicking.
func (r *Resolver) TryRegister(name string, fn any) error {
	if err := security.ValidateHandlerName(name); err != nil {
		return fmt.Errorf("jobs: invalid handler name %q: %w", name, err)
	}

	h, err := handler.NewHandler(fn)
	if err != nil {
		return fmt.Errorf("jobs: handler for %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return nil
}

// Has checks if a handler is registered.
func (r *Resolver) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// KindOf returns the invocation strategy registered for name.
func (r *Resolver) KindOf(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return 0, false
	}
	return h.Kind, true
}

// Names returns the registered handler names, sorted.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves ref and calls it with params. Unknown references return
// core.ErrInvalidHandler.
func (r *Resolver) Invoke(ctx context.Context, ref string, params core.Params) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[ref]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidHandler, ref)
	}
	return h.Execute(ctx, params)
}

// Handle invokes the handler referenced by job.
func (r *Resolver) Handle(ctx context.Context, job *core.Job) (any, error) {
	return r.Invoke(ctx, job.Handler, job.Params)
}
