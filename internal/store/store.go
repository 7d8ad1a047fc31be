package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Schema version tracking (SQLite user_version):
// 0 - Initial schema
// 1 - Added user lookup indexes on docshare and notifications
const currentSchemaVersion = 1

// migrations are applied in order; index i upgrades version i to i+1.
// Statements must be idempotent because PostgreSQL re-runs them on every
// open.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_docshare_user ON docshare("user");
	 CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(for_user)`,
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, such as a second grant for the same user and record.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrUnsupportedDriver is returned by OpenConfig for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Config holds database configuration.
type Config struct {
	Driver string // "sqlite3" (default) or "postgres"
	DSN    string // file path for SQLite, connection string for PostgreSQL

	// PostgreSQL pool settings; zero means default.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NameGenerator produces unique document names for new rows.
type NameGenerator interface {
	Generate() string
}

// UUIDv7Generator names rows with time-sortable UUIDv7 strings.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option customizes a Store.
type Option func(*Store)

// WithNameGenerator overrides how DocShare and Notification Log names are
// generated. Tests use it for deterministic names.
func WithNameGenerator(g NameGenerator) Option {
	return func(s *Store) { s.names = g }
}

// WithClock overrides the wall clock used for creation/modified stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the host persistence layer backed by SQLite or PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect dialect
	names   NameGenerator
	now     func() time.Time
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	return OpenConfig(Config{Driver: DriverSQLite, DSN: path}, opts...)
}

// OpenConfig opens a store for the configured driver.
func OpenConfig(cfg Config, opts ...Option) (*Store, error) {
	var d dialect
	switch cfg.Driver {
	case DriverSQLite, "sqlite", "":
		d = sqliteDialect
	case DriverPostgres, "postgresql":
		d = postgresDialect
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open %s: DSN is required", d.name)
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d.configurePool(db, cfg)

	if err := d.applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		names:   UUIDv7Generator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver reports the driver this store was opened with.
func (s *Store) Driver() string {
	return s.dialect.driver
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// dialect captures the differences between SQLite and PostgreSQL.
type dialect struct {
	name     string
	driver   string
	schema   string
	numbered bool // $1, $2 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite", driver: DriverSQLite, schema: sqliteSchemaSQL}
	postgresDialect = dialect{name: "postgres", driver: DriverPostgres, schema: postgresSchemaSQL, numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) configurePool(db *sql.DB, cfg Config) {
	if !d.numbered {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
}

// applyPragmas sets required SQLite configuration.
func (d dialect) applyPragmas(db *sql.DB) error {
	if d.driver != DriverSQLite {
		return nil
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB, d dialect) error {
	if _, err := db.Exec(d.schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db, d); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations. SQLite tracks the
// applied version in user_version; PostgreSQL re-applies the idempotent
// statements.
func runMigrations(db *sql.DB, d dialect) error {
	version := 0
	if d.driver == DriverSQLite {
		if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			return fmt.Errorf("get user_version: %w", err)
		}
	}

	for v := version; v < len(migrations); v++ {
		for _, stmt := range strings.Split(migrations[v], ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migrate to v%d: %w", v+1, err)
			}
		}
	}

	if d.driver == DriverSQLite {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a uniqueness constraint failure
// from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
