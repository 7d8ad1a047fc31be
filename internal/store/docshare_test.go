package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telimart/telimart/internal/doctype"
)

func TestCreate_DocShare(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	name, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)
	assert.Equal(t, "row-0001", name)

	grants, err := s.Grants(ctx, doctype.IWONumber, "IWO-0001")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, doctype.Grant{
		Name:         "row-0001",
		ShareDoctype: doctype.IWONumber,
		ShareName:    "IWO-0001",
		User:         "alice",
		Perms:        doctype.FullAccess,
	}, grants[0])
}

func TestCreate_NotifyWritesNotification(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)

	notes, err := s.Notifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "row-0002", notes[0].Name)
	assert.Equal(t, doctype.IWONumber, notes[0].DocumentType)
	assert.Equal(t, "IWO-0001", notes[0].DocumentName)
	assert.Equal(t, "IWO Number IWO-0001 has been shared with you", notes[0].Subject)
}

func TestCreate_WithoutNotify(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	fields := grantFields("IWO-0001", "alice")
	fields["notify"] = false
	_, err := s.Create(ctx, doctype.DocShare, fields)
	require.NoError(t, err)

	notes, err := s.Notifications(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestCreate_DuplicateGrant(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)

	_, err = s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)

	// The failed insert must not leave a second notification behind.
	notes, err := s.Notifications(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestCreate_SameUserDifferentRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)
	_, err = s.Create(ctx, doctype.DocShare, grantFields("IWO-0002", "alice"))
	require.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		storeName string
		fields    Fields
		wantErr   error
		contains  string
	}{
		{"unknown store", "User", Fields{"name": "x"}, ErrUnknownStore, ""},
		{"missing user", doctype.DocShare, Fields{"share_doctype": "IWO Number", "share_name": "IWO-1"}, nil, "user is required"},
		{"blank user", doctype.DocShare, Fields{"share_doctype": "IWO Number", "share_name": "IWO-1", "user": "  "}, nil, "user is required"},
		{"unknown column", doctype.DocShare, Fields{"share_doctype": "IWO Number", "share_name": "IWO-1", "user": "a", "owner": "b"}, ErrUnknownColumn, ""},
		{"generated name", doctype.DocShare, Fields{"share_doctype": "IWO Number", "share_name": "IWO-1", "user": "a", "name": "n"}, nil, "name is generated"},
		{"wrong type", doctype.DocShare, Fields{"share_doctype": "IWO Number", "share_name": "IWO-1", "user": "a", "read": 1}, nil, "unexpected value type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.storeName, tt.fields)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestExists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)

	filter := recordFilter("IWO-0001")
	filter["user"] = "alice"
	ok, err := s.Exists(ctx, doctype.DocShare, filter)
	require.NoError(t, err)
	assert.True(t, ok)

	filter["user"] = "bob"
	ok, err = s.Exists(ctx, doctype.DocShare, filter)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(ctx, doctype.DocShare, recordFilter("IWO-0002"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExists_UnknownColumn(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Exists(context.Background(), doctype.DocShare, Filters{"password": "x"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestListAll_SelectedFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, u := range []string{"alice", "bob"} {
		_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", u))
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0002", "carol"))
	require.NoError(t, err)

	rows, err := s.ListAll(ctx, doctype.DocShare, recordFilter("IWO-0001"), "user")
	require.NoError(t, err)
	assert.Equal(t, []Row{{"user": "alice"}, {"user": "bob"}}, rows)
}

func TestListAll_AllColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)

	rows, err := s.ListAll(ctx, doctype.DocShare, recordFilter("IWO-0001"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{
		"name":          "row-0001",
		"share_doctype": doctype.IWONumber,
		"share_name":    "IWO-0001",
		"user":          "alice",
		"read":          true,
		"write":         true,
		"share":         true,
		"notify":        true,
		"creation":      testEpoch.UnixMilli(),
	}, rows[0])
}

func TestListAll_EmptyResultNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.ListAll(context.Background(), doctype.DocShare, recordFilter("none"), "user")
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, u := range []string{"alice", "bob"} {
		_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", u))
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0002", "alice"))
	require.NoError(t, err)

	filter := recordFilter("IWO-0001")
	filter["user"] = "alice"
	n, err := s.Delete(ctx, doctype.DocShare, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Delete(ctx, doctype.DocShare, recordFilter("IWO-0001"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Nothing left to delete is not an error.
	n, err = s.Delete(ctx, doctype.DocShare, recordFilter("IWO-0001"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// Other records are untouched.
	grants, err := s.Grants(ctx, doctype.IWONumber, "IWO-0002")
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestDelete_RequiresFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Delete(context.Background(), doctype.DocShare, nil)
	assert.ErrorIs(t, err, ErrEmptyFilter)
}

func TestRow_Accessors(t *testing.T) {
	r := Row{"user": "alice", "read": true, "creation": int64(3)}

	assert.Equal(t, "alice", r.String("user"))
	assert.Equal(t, "", r.String("creation"))
	assert.True(t, r.Bool("read"))
	assert.False(t, r.Bool("write"))
}
