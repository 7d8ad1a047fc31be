package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/telimart/telimart/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Type, event.Op, event.Args)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some store call of the given op has
// args matching the assertion's args (subset match).
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventStore && event.Op == a.Op && matchArgs(event.Args, a.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first occur in the given order.
// Ops don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventStore {
			continue
		}
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that op was called exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventStore && event.Op == a.Op {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertGrants checks the final grant set of a record.
func assertGrants(ctx context.Context, st *store.Store, a Assertion) error {
	got, err := grantedUsers(ctx, st, a.Record)
	if err != nil {
		return fmt.Errorf("grants assertion: %w", err)
	}
	if diff := diffUsers(a.Users, got); diff != "" {
		return &AssertionError{
			Type:     AssertGrants,
			Expected: fmt.Sprintf("grants on %s for %v", a.Record, a.Users),
			Actual:   fmt.Sprintf("%v (-want +got):\n%s", got, diff),
		}
	}
	return nil
}

// assertNotifications counts the Notification Log entries of a user.
func assertNotifications(ctx context.Context, st *store.Store, a Assertion) error {
	notes, err := st.Notifications(ctx, a.User)
	if err != nil {
		return fmt.Errorf("notifications assertion: %w", err)
	}
	if len(notes) != a.Count {
		return &AssertionError{
			Type:     AssertNotifications,
			Expected: fmt.Sprintf("%d notifications for %s", a.Count, a.User),
			Actual:   fmt.Sprintf("%d notifications", len(notes)),
		}
	}
	return nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result and the
// final store. Returns a message per failed assertion.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st *store.Store) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertGrants:
			err = assertGrants(ctx, st, a)
		case AssertNotifications:
			err = assertNotifications(ctx, st, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
