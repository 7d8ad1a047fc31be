package share

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/store"
)

// Hook names used as metric labels.
const (
	HookSave   = "on_update"
	HookDelete = "on_trash"
)

const tracerName = "github.com/telimart/telimart/internal/share"

// Store is the slice of the host framework's generic store the reconciler
// needs. *store.Store satisfies it.
type Store interface {
	Exists(ctx context.Context, storeName string, filters store.Filters) (bool, error)
	Create(ctx context.Context, storeName string, fields store.Fields) (string, error)
	ListAll(ctx context.Context, storeName string, filters store.Filters, fields ...string) ([]store.Row, error)
	Delete(ctx context.Context, storeName string, filters store.Filters) (int64, error)
}

// Outcome reports what one reconciliation changed.
type Outcome struct {
	Added   []string // users granted access, in team order
	Removed []string // users whose grant was revoked, in store order
}

// Changed reports whether any grant was written or removed.
func (o Outcome) Changed() bool {
	return len(o.Added) > 0 || len(o.Removed) > 0
}

// Reconciler applies team_members to DocShare.
//
// Thread-safety: a Reconciler holds no mutable state and may be shared
// between goroutines. Concurrent saves of the same record race in the
// store; the unique grant constraint rejects the loser with
// store.ErrDuplicate.
type Reconciler struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	perms   doctype.Perms
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithMetrics records grant counts and latencies in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithTracer overrides the tracer. Default is the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) { r.tracer = t }
}

// New creates a Reconciler over st.
func New(st Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer(tracerName),
		perms:  doctype.FullAccess,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnSave adds a grant for each team member without one, then removes the
// grants of users who are not on the team.
//
// An empty team adds nothing and revokes every grant on the record.
// The first store error aborts reconciliation and is returned.
func (r *Reconciler) OnSave(ctx context.Context, rec doctype.Record) (out Outcome, err error) {
	ctx, span := r.tracer.Start(ctx, "share.OnSave", trace.WithAttributes(
		attribute.String("doctype", rec.Doctype),
		attribute.String("name", rec.Name),
	))
	defer span.End()
	defer r.observe(rec.Doctype, HookSave, time.Now(), &err)

	users := rec.Users()

	for _, user := range users {
		added, err := r.grant(ctx, rec, user)
		if err != nil {
			return out, r.fail(span, err)
		}
		if added {
			out.Added = append(out.Added, user)
		}
	}

	removed, err := r.revokeExcept(ctx, rec, users)
	if err != nil {
		return out, r.fail(span, err)
	}
	out.Removed = removed

	span.SetAttributes(
		attribute.Int("share.added", len(out.Added)),
		attribute.Int("share.removed", len(out.Removed)),
	)
	r.logger.Info("team shares reconciled",
		"doctype", rec.Doctype,
		"name", rec.Name,
		"team", len(users),
		"added", len(out.Added),
		"removed", len(out.Removed),
	)
	return out, nil
}

// OnDelete removes every grant on the record and returns how many were
// removed. A record with no grants is not an error.
func (r *Reconciler) OnDelete(ctx context.Context, rec doctype.Record) (n int64, err error) {
	ctx, span := r.tracer.Start(ctx, "share.OnDelete", trace.WithAttributes(
		attribute.String("doctype", rec.Doctype),
		attribute.String("name", rec.Name),
	))
	defer span.End()
	defer r.observe(rec.Doctype, HookDelete, time.Now(), &err)

	n, err = r.store.Delete(ctx, doctype.DocShare, recordFilter(rec))
	if err != nil {
		return 0, r.fail(span, fmt.Errorf("revoke shares of %s %q: %w", rec.Doctype, rec.Name, err))
	}
	if r.metrics != nil && n > 0 {
		r.metrics.grantsRemoved.WithLabelValues(rec.Doctype, HookDelete).Add(float64(n))
	}

	span.SetAttributes(attribute.Int64("share.removed", n))
	r.logger.Info("record shares revoked", "doctype", rec.Doctype, "name", rec.Name, "removed", n)
	return n, nil
}

// grant creates a full-access grant for user unless one exists.
func (r *Reconciler) grant(ctx context.Context, rec doctype.Record, user string) (bool, error) {
	filter := recordFilter(rec)
	filter["user"] = user

	exists, err := r.store.Exists(ctx, doctype.DocShare, filter)
	if err != nil {
		return false, fmt.Errorf("check share for %q: %w", user, err)
	}
	if exists {
		return false, nil
	}

	id, err := r.store.Create(ctx, doctype.DocShare, store.Fields{
		"share_doctype": rec.Doctype,
		"share_name":    rec.Name,
		"user":          user,
		"read":          r.perms.Read,
		"write":         r.perms.Write,
		"share":         r.perms.Share,
		"notify":        r.perms.Notify,
	})
	if err != nil {
		return false, fmt.Errorf("share with %q: %w", user, err)
	}

	if r.metrics != nil {
		r.metrics.grantsCreated.WithLabelValues(rec.Doctype).Inc()
	}
	r.logger.Debug("share created", "doctype", rec.Doctype, "name", rec.Name, "user", user, "share", id)
	return true, nil
}

// revokeExcept deletes the grants on rec whose user is not in keep.
func (r *Reconciler) revokeExcept(ctx context.Context, rec doctype.Record, keep []string) ([]string, error) {
	team := make(map[string]struct{}, len(keep))
	for _, u := range keep {
		team[u] = struct{}{}
	}

	rows, err := r.store.ListAll(ctx, doctype.DocShare, recordFilter(rec), "user")
	if err != nil {
		return nil, fmt.Errorf("list shares of %s %q: %w", rec.Doctype, rec.Name, err)
	}

	var removed []string
	for _, row := range rows {
		user := row.String("user")
		if _, ok := team[user]; ok {
			continue
		}

		filter := recordFilter(rec)
		filter["user"] = row["user"]
		if _, err := r.store.Delete(ctx, doctype.DocShare, filter); err != nil {
			return removed, fmt.Errorf("unshare %q: %w", user, err)
		}

		if r.metrics != nil {
			r.metrics.grantsRemoved.WithLabelValues(rec.Doctype, HookSave).Inc()
		}
		r.logger.Debug("share removed", "doctype", rec.Doctype, "name", rec.Name, "user", user)
		removed = append(removed, user)
	}
	return removed, nil
}

func (r *Reconciler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (r *Reconciler) observe(dt, hook string, start time.Time, err *error) {
	if r.metrics == nil {
		return
	}
	r.metrics.duration.WithLabelValues(dt, hook).Observe(time.Since(start).Seconds())
	if *err != nil {
		r.metrics.failures.WithLabelValues(dt, hook).Inc()
	}
}

// recordFilter selects every grant on rec. Callers may add keys to the
// returned map.
func recordFilter(rec doctype.Record) store.Filters {
	return store.Filters{
		"share_doctype": rec.Doctype,
		"share_name":    rec.Name,
	}
}
