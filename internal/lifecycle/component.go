package lifecycle

import "context"

// Component is a long-lived resource whose startup and shutdown are driven by
// a Manager: API clients, exporters, HTTP listeners.
type Component interface {
	// Start acquires the resource. It must be safe to call more than once.
	Start(ctx context.Context) error

	// Stop releases the resource within the deadline of ctx.
	Stop(ctx context.Context) error

	// Name is used in logs and error messages and must not be empty.
	Name() string
}

// Func adapts a pair of functions to a Component.
type Func struct {
	ComponentName string
	OnStart       func(ctx context.Context) error
	OnStop        func(ctx context.Context) error
}

// Start implements Component.
func (f *Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

// Stop implements Component.
func (f *Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Name implements Component.
func (f *Func) Name() string {
	return f.ComponentName
}
