package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/telimart/telimart/internal/doctype"
)

// SaveRecord inserts or updates a record and replaces its team_members
// rows, atomically. Empty users are stored as NULL.
func (s *Store) SaveRecord(ctx context.Context, rec doctype.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO records (doctype, name, modified)
		VALUES (?, ?, ?)
		ON CONFLICT (doctype, name) DO UPDATE SET modified = excluded.modified
	`), rec.Doctype, rec.Name, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		DELETE FROM team_members WHERE parenttype = ? AND parent = ?
	`), rec.Doctype, rec.Name)
	if err != nil {
		return fmt.Errorf("save record: clear team: %w", err)
	}

	insert := s.dialect.rebind(`
		INSERT INTO team_members (parenttype, parent, idx, "user")
		VALUES (?, ?, ?, ?)
	`)
	for i, m := range rec.TeamMembers {
		var user sql.NullString
		if m.User != "" {
			user = sql.NullString{String: m.User, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insert, rec.Doctype, rec.Name, i+1, user); err != nil {
			return fmt.Errorf("save record: team row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save record: commit: %w", err)
	}
	return nil
}

// GetRecord loads a record with its team rows in idx order.
// Returns ErrNotFound if the record does not exist.
func (s *Store) GetRecord(ctx context.Context, doctypeName, name string) (doctype.Record, error) {
	records, err := s.listRecords(ctx, `WHERE r.doctype = ? AND r.name = ?`, doctypeName, name)
	if err != nil {
		return doctype.Record{}, fmt.Errorf("get record: %w", err)
	}
	if len(records) == 0 {
		return doctype.Record{}, fmt.Errorf("get record %s %q: %w", doctypeName, name, ErrNotFound)
	}
	return records[0], nil
}

// ListRecords returns every record of a doctype ordered by name.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRecords(ctx context.Context, doctypeName string) ([]doctype.Record, error) {
	records, err := s.listRecords(ctx, `WHERE r.doctype = ?`, doctypeName)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (s *Store) listRecords(ctx context.Context, where string, args ...any) ([]doctype.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT r.doctype, r.name, m.idx, m."user"
		FROM records r
		LEFT JOIN team_members m ON m.parenttype = r.doctype AND m.parent = r.name
		`+where+`
		ORDER BY r.name ASC, m.idx ASC
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []doctype.Record{}
	for rows.Next() {
		var (
			dt, name string
			idx      sql.NullInt64
			user     sql.NullString
		)
		if err := rows.Scan(&dt, &name, &idx, &user); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		n := len(records)
		if n == 0 || records[n-1].Name != name || records[n-1].Doctype != dt {
			records = append(records, doctype.Record{Doctype: dt, Name: name})
			n++
		}
		if idx.Valid {
			records[n-1].TeamMembers = append(records[n-1].TeamMembers, doctype.TeamMember{
				Idx:  int(idx.Int64),
				User: user.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record; its team rows go with it.
// Returns ErrNotFound if nothing was deleted.
func (s *Store) DeleteRecord(ctx context.Context, doctypeName, name string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		DELETE FROM records WHERE doctype = ? AND name = ?
	`), doctypeName, name)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete record %s %q: %w", doctypeName, name, ErrNotFound)
	}
	return nil
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
