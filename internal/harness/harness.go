package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/telimart/telimart/internal/app"
	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/document"
	"github.com/telimart/telimart/internal/hooks"
	"github.com/telimart/telimart/internal/share"
	"github.com/telimart/telimart/internal/store"
	"github.com/telimart/telimart/internal/testutil"
)

// scenarioEpoch is the frozen wall clock of every scenario store.
var scenarioEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness holds the wiring for one scenario run.
type Harness struct {
	store  *store.Store
	docs   *document.Service
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible traces.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Wire registry, reconciler and document service with recorders
// 3. Seed setup grants
// 4. Execute steps, checking each step's expectations
// 5. Evaluate assertions
//
// A returned error means the scenario could not be run at all; failed
// expectations are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithNameGenerator(testutil.NewSequenceGenerator("share")),
		store.WithClock(testutil.FixedTime(scenarioEpoch)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	result := NewResult()
	tr := &tracer{clock: testutil.NewDeterministicClock(), result: result}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	reg := hooks.NewRegistry(
		hooks.WithSequencer(testutil.NewDeterministicClock()),
		hooks.WithFlowGenerator(testutil.NewFixedFlowGenerator(scenario.FlowToken)),
		hooks.WithLogger(logger),
	)
	reconciler := share.New(&recordingStore{next: st, t: tr}, share.WithLogger(logger))
	if err := app.Register(reg, reconciler); err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		docs:   document.NewService(st, &recordingDispatcher{next: reg, t: tr}, logger),
		logger: logger,
	}

	ctx := context.Background()

	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}

	return result, nil
}

// seed writes setup grants straight to the store, bypassing the trace.
func (h *Harness) seed(ctx context.Context, setup Setup) error {
	for i, g := range setup.Grants {
		_, err := h.store.Create(ctx, doctype.DocShare, store.Fields{
			"share_doctype": doctype.IWONumber,
			"share_name":    g.Record,
			"user":          g.User,
			"read":          true,
			"write":         false,
			"share":         false,
			"notify":        false,
		})
		if err != nil {
			return fmt.Errorf("grant %d: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one step and records unmet expectations on result.
// Only harness failures (not step failures) are returned.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var (
		record string
		err    error
	)

	switch step.kind() {
	case "save":
		var rec doctype.Record
		rec, err = decodeStepRecord(step.Save)
		if err == nil {
			record = rec.Name
			_, err = h.docs.Save(ctx, rec)
		}
	case "delete":
		record = step.Delete
		err = h.docs.Delete(ctx, doctype.IWONumber, step.Delete)
	case "reconcile":
		record = step.Reconcile
		err = h.docs.Reconcile(ctx, doctype.IWONumber, step.Reconcile)
	default:
		return fmt.Errorf("steps[%d]: no operation", i)
	}

	h.logger.Info("step completed", "step", i, "op", step.kind(), "record", record, "error", err)

	switch {
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got success", i, step.kind(), step.ExpectError))
		return nil
	case step.ExpectError != "":
		if !strings.Contains(err.Error(), step.ExpectError) {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %q", i, step.kind(), step.ExpectError, err.Error()))
		}
		return nil
	case err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.kind(), err))
		return nil
	}

	if step.ExpectGrants != nil {
		got, err := grantedUsers(ctx, h.store, record)
		if err != nil {
			return fmt.Errorf("steps[%d]: read grants: %w", i, err)
		}
		if diff := diffUsers(*step.ExpectGrants, got); diff != "" {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: grants mismatch (-want +got):\n%s", i, step.kind(), record, diff))
		}
	}
	return nil
}

// decodeStepRecord runs a step's document through the same decoder the
// CLI and API use.
func decodeStepRecord(doc map[string]any) (doctype.Record, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return doctype.Record{}, fmt.Errorf("encode step record: %w", err)
	}
	return doctype.DecodeRecord(data)
}

// grantedUsers returns the sorted users holding a grant on an IWO Number.
func grantedUsers(ctx context.Context, st *store.Store, record string) ([]string, error) {
	grants, err := st.Grants(ctx, doctype.IWONumber, record)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(grants))
	for _, g := range grants {
		users = append(users, g.User)
	}
	slices.Sort(users)
	return users, nil
}

// diffUsers compares user sets, ignoring order.
func diffUsers(want, got []string) string {
	w := slices.Clone(want)
	if w == nil {
		w = []string{}
	}
	slices.Sort(w)
	return cmp.Diff(w, got)
}
