package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telimart/telimart/internal/doctype"
)

// Event names a document lifecycle event.
type Event string

// Supported events.
const (
	// OnUpdate fires after a record has been persisted.
	OnUpdate Event = "on_update"

	// OnTrash fires before a record is deleted.
	OnTrash Event = "on_trash"
)

// AnyDoctype registers a handler for every doctype.
const AnyDoctype = "*"

const tracerName = "github.com/telimart/telimart/internal/hooks"

// ErrUnknownEvent is returned when registering for an unsupported event.
var ErrUnknownEvent = errors.New("unknown doc event")

// Handler reacts to a document event.
type Handler func(ctx context.Context, rec doctype.Record) error

// HandlerError identifies the handler that aborted a dispatch.
type HandlerError struct {
	Event   Event
	Doctype string
	Name    string // record name
	Handler string // registered handler name
	Seq     int64
	Flow    string
	Err     error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s hook %q for %s %q (seq=%d, flow=%s): %v",
		e.Event, e.Handler, e.Doctype, e.Name, e.Seq, e.Flow, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

type registration struct {
	name    string
	handler Handler
}

type key struct {
	event   Event
	doctype string
}

// Registry holds doc-event handlers and dispatches to them.
//
// Thread-safety: Register and Dispatch are safe for concurrent use.
// Handlers registered during a dispatch are not seen by it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[key][]registration

	clock   Sequencer
	flowGen FlowTokenGenerator
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option customizes a Registry.
type Option func(*Registry)

// WithSequencer overrides the dispatch clock.
func WithSequencer(s Sequencer) Option {
	return func(r *Registry) { r.clock = s }
}

// WithFlowGenerator overrides how flow tokens are generated.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(r *Registry) { r.flowGen = g }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithTracer overrides the tracer. Default is the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[key][]registration),
		clock:    NewClock(),
		flowGen:  UUIDv7Generator{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a named handler for event on doctype (or AnyDoctype).
func (r *Registry) Register(event Event, dt, name string, h Handler) error {
	switch event {
	case OnUpdate, OnTrash:
	default:
		return fmt.Errorf("register %q: %w: %q", name, ErrUnknownEvent, event)
	}
	if dt == "" {
		return fmt.Errorf("register %q: doctype is required", name)
	}
	if h == nil {
		return fmt.Errorf("register %q: handler is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{event: event, doctype: dt}
	r.handlers[k] = append(r.handlers[k], registration{name: name, handler: h})
	return nil
}

// Handlers returns the names of the handlers Dispatch would run for
// event on dt, in order.
func (r *Registry) Handlers(event Event, dt string) []string {
	regs := r.lookup(event, dt)
	names := make([]string, len(regs))
	for i, reg := range regs {
		names[i] = reg.name
	}
	return names
}

func (r *Registry) lookup(event Event, dt string) []registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specific := r.handlers[key{event: event, doctype: dt}]
	var wildcard []registration
	if dt != AnyDoctype {
		wildcard = r.handlers[key{event: event, doctype: AnyDoctype}]
	}

	out := make([]registration, 0, len(specific)+len(wildcard))
	out = append(out, specific...)
	out = append(out, wildcard...)
	return out
}

// Dispatch runs the handlers for event on rec and returns the first
// error as a *HandlerError. Remaining handlers are skipped.
func (r *Registry) Dispatch(ctx context.Context, event Event, rec doctype.Record) error {
	regs := r.lookup(event, rec.Doctype)

	d := Dispatch{
		Seq:     r.clock.Next(),
		Flow:    r.flowGen.Generate(),
		Event:   event,
		Doctype: rec.Doctype,
		Name:    rec.Name,
	}
	ctx = WithDispatch(ctx, d)

	ctx, span := r.tracer.Start(ctx, "hooks.Dispatch", trace.WithAttributes(
		attribute.String("event", string(event)),
		attribute.String("doctype", rec.Doctype),
		attribute.String("name", rec.Name),
		attribute.Int64("seq", d.Seq),
		attribute.String("flow", d.Flow),
		attribute.Int("handlers", len(regs)),
	))
	defer span.End()

	log := r.logger.With("event", event, "doctype", rec.Doctype, "name", rec.Name, "seq", d.Seq, "flow", d.Flow)
	log.Debug("dispatching doc event", "handlers", len(regs))

	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return r.abort(span, d, reg.name, err)
		}
		if err := reg.handler(ctx, rec); err != nil {
			log.Error("doc event handler failed", "handler", reg.name, "error", err)
			return r.abort(span, d, reg.name, err)
		}
		log.Debug("doc event handler done", "handler", reg.name)
	}
	return nil
}

func (r *Registry) abort(span trace.Span, d Dispatch, handler string, err error) error {
	herr := &HandlerError{
		Event:   d.Event,
		Doctype: d.Doctype,
		Name:    d.Name,
		Handler: handler,
		Seq:     d.Seq,
		Flow:    d.Flow,
		Err:     err,
	}
	span.RecordError(herr)
	span.SetStatus(codes.Error, herr.Error())
	return herr
}
