package hooks

import "context"

// Dispatch describes the doc event a handler is running under.
type Dispatch struct {
	Seq     int64
	Flow    string
	Event   Event
	Doctype string
	Name    string
}

type dispatchKey struct{}

// WithDispatch returns a context carrying d.
func WithDispatch(ctx context.Context, d Dispatch) context.Context {
	return context.WithValue(ctx, dispatchKey{}, d)
}

// FromContext returns the dispatch a handler is running under.
func FromContext(ctx context.Context) (Dispatch, bool) {
	d, ok := ctx.Value(dispatchKey{}).(Dispatch)
	return d, ok
}
