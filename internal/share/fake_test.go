package share

import (
	"context"
	"fmt"
	"sort"

	"github.com/telimart/telimart/internal/store"
)

// call is one recorded store invocation.
type call struct {
	Op      string
	Filters store.Filters
	Fields  store.Fields
}

// fakeStore is an in-memory DocShare table that records every call and
// can be told to fail a given operation.
type fakeStore struct {
	grants []store.Row
	calls  []call
	nextID int

	failOn  string // operation name to fail
	failErr error
	failAt  int // fail the n-th call of failOn (1-based); 0 means every call
	seen    map[string]int
}

func newFakeStore(users ...string) *fakeStore {
	f := &fakeStore{seen: map[string]int{}}
	for _, u := range users {
		f.add("IWO Number", "IWO-0001", u)
	}
	return f
}

func (f *fakeStore) add(dt, name, user string) {
	f.nextID++
	f.grants = append(f.grants, store.Row{
		"name":          fmt.Sprintf("share-%d", f.nextID),
		"share_doctype": dt,
		"share_name":    name,
		"user":          user,
	})
}

func (f *fakeStore) fail(op string) error {
	f.seen[op]++
	if f.failOn == op && (f.failAt == 0 || f.failAt == f.seen[op]) {
		return f.failErr
	}
	return nil
}

func matches(row store.Row, filters store.Filters) bool {
	for k, v := range filters {
		if row[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeStore) Exists(_ context.Context, _ string, filters store.Filters) (bool, error) {
	f.calls = append(f.calls, call{Op: "Exists", Filters: filters})
	if err := f.fail("Exists"); err != nil {
		return false, err
	}
	for _, g := range f.grants {
		if matches(g, filters) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Create(_ context.Context, _ string, fields store.Fields) (string, error) {
	f.calls = append(f.calls, call{Op: "Create", Fields: fields})
	if err := f.fail("Create"); err != nil {
		return "", err
	}
	f.add(fields["share_doctype"].(string), fields["share_name"].(string), fields["user"].(string))
	return f.grants[len(f.grants)-1].String("name"), nil
}

func (f *fakeStore) ListAll(_ context.Context, _ string, filters store.Filters, fields ...string) ([]store.Row, error) {
	f.calls = append(f.calls, call{Op: "ListAll", Filters: filters})
	if err := f.fail("ListAll"); err != nil {
		return nil, err
	}
	rows := []store.Row{}
	for _, g := range f.grants {
		if !matches(g, filters) {
			continue
		}
		row := store.Row{}
		for _, k := range fields {
			row[k] = g[k]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, filters store.Filters) (int64, error) {
	f.calls = append(f.calls, call{Op: "Delete", Filters: filters})
	if err := f.fail("Delete"); err != nil {
		return 0, err
	}
	kept := f.grants[:0]
	var n int64
	for _, g := range f.grants {
		if matches(g, filters) {
			n++
			continue
		}
		kept = append(kept, g)
	}
	f.grants = kept
	return n, nil
}

// users returns the sorted users holding a grant on one record.
func (f *fakeStore) users(name string) []string {
	out := []string{}
	for _, g := range f.grants {
		if g.String("share_name") == name {
			out = append(out, g.String("user"))
		}
	}
	sort.Strings(out)
	return out
}

// count returns how many calls of op were made.
func (f *fakeStore) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}
