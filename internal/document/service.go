// Package document implements the host framework's save and delete
// paths for records with doc-event hooks.
//
// Save persists a record and then fires on_update; Delete fires on_trash
// and then removes the record. Hook errors are returned to the caller.
// A failed on_update does not roll the save back, and a failed on_trash
// leaves the record in place.
package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/hooks"
)

// Store persists records. *store.Store satisfies it.
type Store interface {
	SaveRecord(ctx context.Context, rec doctype.Record) error
	GetRecord(ctx context.Context, doctypeName, name string) (doctype.Record, error)
	ListRecords(ctx context.Context, doctypeName string) ([]doctype.Record, error)
	DeleteRecord(ctx context.Context, doctypeName, name string) error
}

// Dispatcher fires doc events. *hooks.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event hooks.Event, rec doctype.Record) error
}

// Service saves and deletes records, running their lifecycle hooks.
type Service struct {
	store  Store
	events Dispatcher
	logger *slog.Logger
}

// NewService creates a Service. A nil logger discards.
func NewService(st Store, events Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: st, events: events, logger: logger}
}

// Save validates and persists rec, then dispatches on_update with the
// record as stored. Returns the normalized record.
func (s *Service) Save(ctx context.Context, rec doctype.Record) (doctype.Record, error) {
	rec = rec.Normalized()
	if err := rec.Validate(); err != nil {
		return doctype.Record{}, err
	}

	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return doctype.Record{}, fmt.Errorf("save %s %q: %w", rec.Doctype, rec.Name, err)
	}
	s.logger.Debug("record saved", "doctype", rec.Doctype, "name", rec.Name, "rows", len(rec.TeamMembers))

	if err := s.events.Dispatch(ctx, hooks.OnUpdate, rec); err != nil {
		return rec, fmt.Errorf("save %s %q: %w", rec.Doctype, rec.Name, err)
	}
	return rec, nil
}

// Get loads a record.
func (s *Service) Get(ctx context.Context, dt, name string) (doctype.Record, error) {
	return s.store.GetRecord(ctx, dt, name)
}

// List returns every record of a doctype.
func (s *Service) List(ctx context.Context, dt string) ([]doctype.Record, error) {
	return s.store.ListRecords(ctx, dt)
}

// Delete loads the record, dispatches on_trash and deletes it.
// Returns store.ErrNotFound (wrapped) when the record does not exist.
func (s *Service) Delete(ctx context.Context, dt, name string) error {
	rec, err := s.store.GetRecord(ctx, dt, name)
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", dt, name, err)
	}

	if err := s.events.Dispatch(ctx, hooks.OnTrash, rec); err != nil {
		return fmt.Errorf("delete %s %q: %w", dt, name, err)
	}

	if err := s.store.DeleteRecord(ctx, dt, name); err != nil {
		return fmt.Errorf("delete %s %q: %w", dt, name, err)
	}
	s.logger.Debug("record deleted", "doctype", dt, "name", name)
	return nil
}

// Reconcile re-runs on_update for a stored record without changing it.
// Used to repair shares edited outside the app.
func (s *Service) Reconcile(ctx context.Context, dt, name string) error {
	rec, err := s.store.GetRecord(ctx, dt, name)
	if err != nil {
		return fmt.Errorf("reconcile %s %q: %w", dt, name, err)
	}
	if err := s.events.Dispatch(ctx, hooks.OnUpdate, rec); err != nil {
		return fmt.Errorf("reconcile %s %q: %w", dt, name, err)
	}
	return nil
}

// ReconcileAll re-runs on_update for every record of dt, stopping at the
// first failure. Returns how many records were reconciled.
func (s *Service) ReconcileAll(ctx context.Context, dt string) (int, error) {
	records, err := s.store.ListRecords(ctx, dt)
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: %w", dt, err)
	}
	for i, rec := range records {
		if err := s.events.Dispatch(ctx, hooks.OnUpdate, rec); err != nil {
			return i, fmt.Errorf("reconcile %s %q: %w", dt, rec.Name, err)
		}
	}
	s.logger.Info("records reconciled", "doctype", dt, "count", len(records))
	return len(records), nil
}
