package pipeline

import "context"

type progressKey struct{}

// WithProgress returns a context that carries fn as the progress sink for
// steps running under it.
func WithProgress(ctx context.Context, fn func(string)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFrom returns the progress sink in ctx, or nil.
func ProgressFrom(ctx context.Context) func(string) {
	fn, _ := ctx.Value(progressKey{}).(func(string))
	return fn
}

// Observer receives state transitions. Implementations must be safe for
// concurrent use when one Orchestrator serves concurrent runs.
type Observer interface {
	OnTransition(from, to Phase, state WorkflowState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(from, to Phase, state WorkflowState)

func (f ObserverFunc) OnTransition(from, to Phase, state WorkflowState) { f(from, to, state) }
