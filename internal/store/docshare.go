package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/telimart/telimart/internal/doctype"
)

// Exists reports whether any row of storeName matches filters.
func (s *Store) Exists(ctx context.Context, storeName string, filters Filters) (bool, error) {
	t, err := lookupTable(storeName)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	where, params, err := t.where(filters)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", storeName, err)
	}

	query := s.dialect.rebind("SELECT 1 FROM " + t.name + where + " LIMIT 1")
	var one int
	err = s.db.QueryRowContext(ctx, query, params...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", storeName, err)
	}
	return true, nil
}

// Create inserts a row into storeName and returns its generated name.
// name and creation are always generated and may not be supplied.
//
// For DocShare, share_doctype, share_name and user are required, and a
// row with notify set also writes a Notification Log entry for the user.
// A second grant for the same (share_doctype, share_name, user) fails with
// ErrDuplicate.
func (s *Store) Create(ctx context.Context, storeName string, fields Fields) (string, error) {
	t, err := lookupTable(storeName)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	if storeName == doctype.DocShare {
		for _, required := range []string{"share_doctype", "share_name", "user"} {
			if v, _ := fields[required].(string); strings.TrimSpace(v) == "" {
				return "", fmt.Errorf("create %s: %s is required", storeName, required)
			}
		}
	}

	name := s.names.Generate()
	cols := []string{quote("name"), quote("creation")}
	params := []any{name, s.now().UnixMilli()}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "name" || k == "creation" {
			return "", fmt.Errorf("create %s: %s is generated", storeName, k)
		}
		c, err := t.column(k)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", storeName, err)
		}
		if err := checkKind(c, fields[k]); err != nil {
			return "", fmt.Errorf("create %s: %w", storeName, err)
		}
		cols = append(cols, quote(k))
		params = append(params, fields[k])
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create %s: begin tx: %w", storeName, err)
	}
	defer tx.Rollback() // No-op if committed

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := s.dialect.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), placeholders))
	if _, err := tx.ExecContext(ctx, query, params...); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("create %s: %w: %w", storeName, ErrDuplicate, err)
		}
		return "", fmt.Errorf("create %s: %w", storeName, err)
	}

	if notify, _ := fields["notify"].(bool); storeName == doctype.DocShare && notify {
		if err := s.writeShareNotification(ctx, tx, fields); err != nil {
			return "", fmt.Errorf("create %s: %w", storeName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create %s: commit: %w", storeName, err)
	}
	return name, nil
}

// writeShareNotification records that a document was shared with a user.
func (s *Store) writeShareNotification(ctx context.Context, tx *sql.Tx, grant Fields) error {
	docType, _ := grant["share_doctype"].(string)
	docName, _ := grant["share_name"].(string)
	user, _ := grant["user"].(string)

	_, err := tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO notifications (name, for_user, document_type, document_name, subject, creation)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		s.names.Generate(),
		user,
		docType,
		docName,
		fmt.Sprintf("%s %s has been shared with you", docType, docName),
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// ListAll returns the rows of storeName matching filters, restricted to
// fields (all columns when none are given), in deterministic order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListAll(ctx context.Context, storeName string, filters Filters, fields ...string) ([]Row, error) {
	t, err := lookupTable(storeName)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	cols, err := t.selectColumns(fields)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", storeName, err)
	}
	where, params, err := t.where(filters)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", storeName, err)
	}

	query := s.dialect.rebind(fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		quoteColumns(cols), t.name, where, t.orderBy))
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", storeName, err)
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", storeName, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", storeName, err)
	}
	return result, nil
}

// scanRow scans the current row into a Row, converting each column to its
// declared Go type so SQLite integers come back as bools where expected.
func scanRow(rows *sql.Rows, cols []column) (Row, error) {
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c.kind {
		case kindBool:
			dest[i] = new(bool)
		case kindInt:
			dest[i] = new(int64)
		default:
			dest[i] = new(sql.NullString)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	row := make(Row, len(cols))
	for i, c := range cols {
		switch v := dest[i].(type) {
		case *bool:
			row[c.name] = *v
		case *int64:
			row[c.name] = *v
		case *sql.NullString:
			if v.Valid {
				row[c.name] = v.String
			} else {
				row[c.name] = nil
			}
		}
	}
	return row, nil
}

// Delete removes the rows of storeName matching filters and returns how
// many were deleted. Deleting zero rows is not an error; an empty filter
// set is.
func (s *Store) Delete(ctx context.Context, storeName string, filters Filters) (int64, error) {
	t, err := lookupTable(storeName)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: %w", storeName, ErrEmptyFilter)
	}
	where, params, err := t.where(filters)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", storeName, err)
	}

	result, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM "+t.name+where), params...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", storeName, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: rows affected: %w", storeName, err)
	}
	return n, nil
}

// Grants returns the typed DocShare rows for one record.
func (s *Store) Grants(ctx context.Context, shareDoctype, shareName string) ([]doctype.Grant, error) {
	rows, err := s.ListAll(ctx, doctype.DocShare, Filters{
		"share_doctype": shareDoctype,
		"share_name":    shareName,
	})
	if err != nil {
		return nil, err
	}

	grants := make([]doctype.Grant, 0, len(rows))
	for _, r := range rows {
		grants = append(grants, doctype.Grant{
			Name:         r.String("name"),
			ShareDoctype: r.String("share_doctype"),
			ShareName:    r.String("share_name"),
			User:         r.String("user"),
			Perms: doctype.Perms{
				Read:   r.Bool("read"),
				Write:  r.Bool("write"),
				Share:  r.Bool("share"),
				Notify: r.Bool("notify"),
			},
		})
	}
	return grants, nil
}

// Notifications returns the Notification Log entries for a user.
func (s *Store) Notifications(ctx context.Context, user string) ([]doctype.Notification, error) {
	rows, err := s.ListAll(ctx, doctype.NotificationLog, Filters{"for_user": user})
	if err != nil {
		return nil, err
	}

	out := make([]doctype.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, doctype.Notification{
			Name:         r.String("name"),
			ForUser:      r.String("for_user"),
			DocumentType: r.String("document_type"),
			DocumentName: r.String("document_name"),
			Subject:      r.String("subject"),
		})
	}
	return out, nil
}
