package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telimart/telimart/internal/doctype"
)

func TestSaveRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := doctype.New("IWO-0001", "alice", "", "bob")
	require.NoError(t, s.SaveRecord(ctx, rec))

	got, err := s.GetRecord(ctx, doctype.IWONumber, "IWO-0001")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSaveRecord_ReplacesTeam(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0001", "alice", "bob", "carol")))
	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0001", "dave")))

	got, err := s.GetRecord(ctx, doctype.IWONumber, "IWO-0001")
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, got.Users())
	assert.Len(t, got.TeamMembers, 1)
}

func TestSaveRecord_EmptyTeam(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0001")))

	got, err := s.GetRecord(ctx, doctype.IWONumber, "IWO-0001")
	require.NoError(t, err)
	assert.Equal(t, "IWO-0001", got.Name)
	assert.Empty(t, got.TeamMembers)
}

func TestGetRecord_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRecord(context.Background(), doctype.IWONumber, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestListRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0002", "bob")))
	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0001", "alice", "carol")))
	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0003")))
	require.NoError(t, s.SaveRecord(ctx, doctype.Record{Doctype: "Task", Name: "T-1"}))

	records, err := s.ListRecords(ctx, doctype.IWONumber)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "IWO-0001", records[0].Name)
	assert.Equal(t, []string{"alice", "carol"}, records[0].Users())
	assert.Equal(t, "IWO-0002", records[1].Name)
	assert.Equal(t, "IWO-0003", records[2].Name)
	assert.Empty(t, records[2].TeamMembers)
}

func TestListRecords_Empty(t *testing.T) {
	s := createTestStore(t)

	records, err := s.ListRecords(context.Background(), doctype.IWONumber)
	require.NoError(t, err)
	require.NotNil(t, records)
	assert.Empty(t, records)
}

func TestDeleteRecord_CascadesTeamNotGrants(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, doctype.New("IWO-0001", "alice")))
	_, err := s.Create(ctx, doctype.DocShare, grantFields("IWO-0001", "alice"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord(ctx, doctype.IWONumber, "IWO-0001"))

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM team_members`).Scan(&rows))
	assert.Equal(t, 0, rows)

	grants, err := s.Grants(ctx, doctype.IWONumber, "IWO-0001")
	require.NoError(t, err)
	assert.Len(t, grants, 1, "grants are revoked by the reconciler, not the store")
}

func TestDeleteRecord_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.DeleteRecord(context.Background(), doctype.IWONumber, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
