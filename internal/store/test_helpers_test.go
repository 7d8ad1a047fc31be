package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/testutil"
)

// testEpoch is the frozen wall clock used by test stores.
var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store with deterministic names.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithNameGenerator(testutil.NewSequenceGenerator("row")),
		WithClock(testutil.FixedTime(testEpoch)),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// grantFields builds the Create fields for a full-access grant.
func grantFields(record, user string) Fields {
	return Fields{
		"share_doctype": doctype.IWONumber,
		"share_name":    record,
		"user":          user,
		"read":          true,
		"write":         true,
		"share":         true,
		"notify":        true,
	}
}

// recordFilter selects every grant of one IWO Number.
func recordFilter(record string) Filters {
	return Filters{"share_doctype": doctype.IWONumber, "share_name": record}
}
