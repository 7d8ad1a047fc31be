package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"records", "team_members", "docshare", "notifications"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpenConfig_UnsupportedDriver(t *testing.T) {
	_, err := OpenConfig(Config{Driver: "oracle", DSN: "x"})
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestOpenConfig_RequiresDSN(t *testing.T) {
	_, err := OpenConfig(Config{Driver: DriverPostgres})
	if err == nil {
		t.Error("expected error for empty DSN, got nil")
	}
}

func TestOpenConfig_DefaultsToSQLite(t *testing.T) {
	s, err := OpenConfig(Config{DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("OpenConfig() failed: %v", err)
	}
	defer s.Close()

	if s.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want %q", s.Driver(), DriverSQLite)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

// Schema tests

func TestSchema_DocShareTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "docshare")
	expected := []string{
		"name", "share_doctype", "share_name", "user",
		"read", "write", "share", "notify", "creation",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("docshare table missing column %q", col)
		}
	}
}

func TestSchema_TeamMembersTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "team_members")
	for _, col := range []string{"parenttype", "parent", "idx", "user"} {
		if !contains(columns, col) {
			t.Errorf("team_members table missing column %q", col)
		}
	}
}

func TestConstraint_DocShareUniquePerUser(t *testing.T) {
	s := createTestStore(t)

	insert := `INSERT INTO docshare (name, share_doctype, share_name, "user", creation) VALUES (?, ?, ?, ?, 0)`
	if _, err := s.db.Exec(insert, "g1", "IWO Number", "IWO-1", "alice"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err := s.db.Exec(insert, "g2", "IWO Number", "IWO-1", "alice")
	if err == nil {
		t.Fatal("expected unique violation, got nil")
	}
	if !isUniqueViolation(err) {
		t.Errorf("isUniqueViolation(%v) = false", err)
	}
}

func TestConstraint_TeamMembersRequireRecord(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO team_members (parenttype, parent, idx, "user") VALUES ('IWO Number', 'missing', 1, 'a')`)
	if err == nil {
		t.Error("expected foreign key violation, got nil")
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Apply schema but NOT migrations (simulates pre-migration state)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if indexes := getTableIndexes(t, s.db, "docshare"); !contains(indexes, "idx_docshare_user") {
		t.Errorf("expected idx_docshare_user after migration, got %v", indexes)
	}
	if indexes := getTableIndexes(t, s.db, "notifications"); !contains(indexes, "idx_notifications_user") {
		t.Errorf("expected idx_notifications_user after migration, got %v", indexes)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT 1 FROM docshare WHERE a = ? AND b = ?`

	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := `SELECT 1 FROM docshare WHERE a = $1 AND b = $2`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
