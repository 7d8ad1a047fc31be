package share

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/store"
)

func TestOnSave_GrantsTeam(t *testing.T) {
	f := newFakeStore()
	r := New(f)

	out, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "alice", "bob"))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, out.Added)
	assert.Empty(t, out.Removed)
	assert.Equal(t, []string{"alice", "bob"}, f.users("IWO-0001"))
}

func TestOnSave_CreatesFullAccessGrant(t *testing.T) {
	f := newFakeStore()
	r := New(f)

	_, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "alice"))
	require.NoError(t, err)

	require.Equal(t, 1, f.count("Create"))
	for _, c := range f.calls {
		if c.Op != "Create" {
			continue
		}
		assert.Equal(t, store.Fields{
			"share_doctype": doctype.IWONumber,
			"share_name":    "IWO-0001",
			"user":          "alice",
			"read":          true,
			"write":         true,
			"share":         true,
			"notify":        true,
		}, c.Fields)
	}
}

func TestOnSave_ReplacesTeam(t *testing.T) {
	f := newFakeStore()
	r := New(f)
	ctx := context.Background()

	_, err := r.OnSave(ctx, doctype.New("IWO-0001", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.users("IWO-0001"))

	out, err := r.OnSave(ctx, doctype.New("IWO-0001", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, out.Added)
	assert.Equal(t, []string{"a"}, out.Removed)
	assert.Equal(t, []string{"b", "c"}, f.users("IWO-0001"))
}

func TestOnSave_Idempotent(t *testing.T) {
	f := newFakeStore()
	r := New(f)
	ctx := context.Background()
	rec := doctype.New("IWO-0001", "alice", "bob")

	_, err := r.OnSave(ctx, rec)
	require.NoError(t, err)
	f.calls = nil

	out, err := r.OnSave(ctx, rec)
	require.NoError(t, err)
	assert.False(t, out.Changed())
	assert.Zero(t, f.count("Create"))
	assert.Zero(t, f.count("Delete"))
	assert.Equal(t, []string{"alice", "bob"}, f.users("IWO-0001"))
}

func TestOnSave_SkipsEmptyAndDuplicateUsers(t *testing.T) {
	f := newFakeStore()
	r := New(f)

	out, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "alice", "", "   ", "alice", "bob"))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, out.Added)
	assert.Equal(t, 2, f.count("Create"))
	assert.Equal(t, []string{"alice", "bob"}, f.users("IWO-0001"))
}

func TestOnSave_EmptyTeamRevokesAll(t *testing.T) {
	f := newFakeStore("alice", "bob")
	r := New(f)

	out, err := r.OnSave(context.Background(), doctype.New("IWO-0001"))
	require.NoError(t, err)

	assert.Empty(t, out.Added)
	assert.Equal(t, []string{"alice", "bob"}, out.Removed)
	assert.Zero(t, f.count("Create"))
	assert.Zero(t, f.count("Exists"))
	assert.Empty(t, f.users("IWO-0001"))
}

func TestOnSave_OnlyEmptyRowsRevokesAll(t *testing.T) {
	f := newFakeStore("alice")
	r := New(f)

	_, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "", ""))
	require.NoError(t, err)
	assert.Empty(t, f.users("IWO-0001"))
}

func TestOnSave_LeavesOtherRecordsAlone(t *testing.T) {
	f := newFakeStore()
	f.add(doctype.IWONumber, "IWO-0002", "alice")
	r := New(f)

	_, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "bob"))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice"}, f.users("IWO-0002"))
	assert.Equal(t, []string{"bob"}, f.users("IWO-0001"))
}

func TestOnSave_AddsBeforeRemoving(t *testing.T) {
	f := newFakeStore("old")
	r := New(f)

	_, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "new"))
	require.NoError(t, err)

	var ops []string
	for _, c := range f.calls {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"Exists", "Create", "ListAll", "Delete"}, ops)
}

func TestOnSave_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name   string
		failOn string
		failAt int
		// users expected to hold a grant after the failure
		want []string
	}{
		{"exists", "Exists", 1, []string{"old"}},
		{"create first", "Create", 1, []string{"old"}},
		{"create second keeps first", "Create", 2, []string{"a", "old"}},
		{"list", "ListAll", 1, []string{"a", "b", "old"}},
		{"delete", "Delete", 1, []string{"a", "b", "old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStore("old")
			f.failOn, f.failAt, f.failErr = tt.failOn, tt.failAt, boom
			r := New(f)

			_, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "a", "b"))
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tt.want, f.users("IWO-0001"))
		})
	}
}

func TestOnSave_StopsAfterFirstError(t *testing.T) {
	f := newFakeStore()
	f.failOn, f.failErr = "Exists", errors.New("boom")
	r := New(f)

	_, err := r.OnSave(context.Background(), doctype.New("IWO-0001", "a", "b", "c"))
	require.Error(t, err)
	assert.Len(t, f.calls, 1)
}

func TestOnSave_ContextPassedThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &ctxStore{fakeStore: newFakeStore()}
	r := New(st)

	_, err := r.OnSave(ctx, doctype.New("IWO-0001", "alice"))
	assert.ErrorIs(t, err, context.Canceled)
}

// ctxStore fails like a real driver when the context is done.
type ctxStore struct {
	*fakeStore
}

func (s *ctxStore) Exists(ctx context.Context, name string, filters store.Filters) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.fakeStore.Exists(ctx, name, filters)
}

func TestOnDelete_RemovesAllGrants(t *testing.T) {
	f := newFakeStore("alice", "bob")
	f.add(doctype.IWONumber, "IWO-0002", "alice")
	r := New(f)

	n, err := r.OnDelete(context.Background(), doctype.New("IWO-0001", "alice"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), n)
	assert.Empty(t, f.users("IWO-0001"))
	assert.Equal(t, []string{"alice"}, f.users("IWO-0002"))
	require.Len(t, f.calls, 1)
	assert.Equal(t, store.Filters{
		"share_doctype": doctype.IWONumber,
		"share_name":    "IWO-0001",
	}, f.calls[0].Filters)
}

func TestOnDelete_NoGrants(t *testing.T) {
	f := newFakeStore()
	r := New(f)

	n, err := r.OnDelete(context.Background(), doctype.New("IWO-0001"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOnDelete_ErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	f := newFakeStore("alice")
	f.failOn, f.failErr = "Delete", boom
	r := New(f)

	_, err := r.OnDelete(context.Background(), doctype.New("IWO-0001"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"alice"}, f.users("IWO-0001"))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	f := newFakeStore()
	r := New(f, WithMetrics(m))
	ctx := context.Background()

	_, err := r.OnSave(ctx, doctype.New("IWO-0001", "a", "b"))
	require.NoError(t, err)
	_, err = r.OnSave(ctx, doctype.New("IWO-0001", "b"))
	require.NoError(t, err)
	_, err = r.OnDelete(ctx, doctype.New("IWO-0001"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.grantsCreated.WithLabelValues(doctype.IWONumber)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.grantsRemoved.WithLabelValues(doctype.IWONumber, HookSave)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.grantsRemoved.WithLabelValues(doctype.IWONumber, HookDelete)))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.failures.WithLabelValues(doctype.IWONumber, HookSave)))

	f.failOn, f.failErr = "ListAll", errors.New("boom")
	_, err = r.OnSave(ctx, doctype.New("IWO-0001"))
	require.Error(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.failures.WithLabelValues(doctype.IWONumber, HookSave)))
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := NewMetrics(nil)
	assert.Len(t, m.Collectors(), 4)
}
