package harness

import (
	"context"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/hooks"
	"github.com/telimart/telimart/internal/share"
	"github.com/telimart/telimart/internal/store"
	"github.com/telimart/telimart/internal/testutil"
)

// tracer appends events to a result with sequence numbers from a
// deterministic clock.
type tracer struct {
	clock  *testutil.DeterministicClock
	result *Result
}

func (t *tracer) add(ev TraceEvent) {
	ev.Seq = t.clock.Next()
	t.result.Trace = append(t.result.Trace, ev)
}

// recordingStore records every reconciler call before forwarding it.
type recordingStore struct {
	next share.Store
	t    *tracer
}

var _ share.Store = (*recordingStore)(nil)

func (r *recordingStore) Exists(ctx context.Context, storeName string, filters store.Filters) (bool, error) {
	ok, err := r.next.Exists(ctx, storeName, filters)
	r.t.add(storeEvent("Exists", storeName, filters, nil, ok, err))
	return ok, err
}

func (r *recordingStore) Create(ctx context.Context, storeName string, fields store.Fields) (string, error) {
	name, err := r.next.Create(ctx, storeName, fields)
	r.t.add(storeEvent("Create", storeName, fields, nil, name, err))
	return name, err
}

func (r *recordingStore) ListAll(ctx context.Context, storeName string, filters store.Filters, fields ...string) ([]store.Row, error) {
	rows, err := r.next.ListAll(ctx, storeName, filters, fields...)
	items := make([]any, len(rows))
	for i, row := range rows {
		items[i] = map[string]any(row)
	}
	r.t.add(storeEvent("ListAll", storeName, filters, fields, items, err))
	return rows, err
}

func (r *recordingStore) Delete(ctx context.Context, storeName string, filters store.Filters) (int64, error) {
	n, err := r.next.Delete(ctx, storeName, filters)
	r.t.add(storeEvent("Delete", storeName, filters, nil, n, err))
	return n, err
}

func storeEvent[M ~map[string]any](op, storeName string, args M, fields []string, result any, err error) TraceEvent {
	ev := TraceEvent{
		Type:   EventStore,
		Op:     op,
		Store:  storeName,
		Args:   map[string]any(args),
		Fields: fields,
	}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Result = result
	}
	return ev
}

// recordingDispatcher records each doc event before dispatching it.
type recordingDispatcher struct {
	next *hooks.Registry
	t    *tracer
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, event hooks.Event, rec doctype.Record) error {
	d.t.add(TraceEvent{
		Type: EventDispatch,
		Op:   string(event),
		Args: map[string]any{"doctype": rec.Doctype, "name": rec.Name},
	})
	return d.next.Dispatch(ctx, event, rec)
}
