// Package store provides the host framework's persistence layer: records,
// their team_members child rows, DocShare grants and the notification log.
//
// Callers outside this package reach grants through the framework-style
// generic API:
//   - Exists(ctx, storeName, filters)
//   - Create(ctx, storeName, fields)
//   - ListAll(ctx, storeName, filters, fields...)
//   - Delete(ctx, storeName, filters)
//
// storeName is a logical doctype ("DocShare", "Notification Log"), never a
// raw table name. Filter and field names are checked against a per-store
// column whitelist and all values are parameterized.
//
// # Invariants
//
//   - UNIQUE(share_doctype, share_name, user) on docshare: at most one grant
//     per user per record. A violating Create fails with ErrDuplicate.
//   - Every list query has a deterministic ORDER BY.
//   - Creating a DocShare row with notify set also writes exactly one
//     Notification Log row, in the same transaction.
//   - team_members rows are deleted with their record (ON DELETE CASCADE).
//     Grants are not: revoking them is the reconciler's job.
//
// # Database Configuration
//
// Two drivers are supported. SQLite (default) runs with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// PostgreSQL uses the same queries with numbered placeholders.
package store
