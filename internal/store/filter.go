package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/telimart/telimart/internal/doctype"
)

var (
	// ErrUnknownStore is returned for a storeName with no backing table.
	ErrUnknownStore = errors.New("unknown store")

	// ErrUnknownColumn is returned for a filter or field name that is not
	// part of the store's whitelist.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrEmptyFilter guards Delete against wiping a whole table.
	ErrEmptyFilter = errors.New("delete requires at least one filter")
)

// Filters selects rows by column equality. A nil value matches NULL.
type Filters map[string]any

// Fields are column values for Create.
type Fields map[string]any

// Row is one result row keyed by column name.
type Row map[string]any

// String returns the column as a string, or "" when absent or not a string.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// Bool returns the column as a bool, or false when absent.
func (r Row) Bool(col string) bool {
	b, _ := r[col].(bool)
	return b
}

type columnKind int

const (
	kindText columnKind = iota
	kindBool
	kindInt
)

type column struct {
	name string
	kind columnKind
}

// table maps a logical store name onto a physical table.
type table struct {
	name    string
	columns []column // declaration order, used for SELECT *
	orderBy string
}

// tables is the whitelist of logical stores reachable through the generic
// API. Identifiers are only ever interpolated from here.
var tables = map[string]table{
	doctype.DocShare: {
		name: "docshare",
		columns: []column{
			{"name", kindText},
			{"share_doctype", kindText},
			{"share_name", kindText},
			{"user", kindText},
			{"read", kindBool},
			{"write", kindBool},
			{"share", kindBool},
			{"notify", kindBool},
			{"creation", kindInt},
		},
		orderBy: `creation ASC, name ASC`,
	},
	doctype.NotificationLog: {
		name: "notifications",
		columns: []column{
			{"name", kindText},
			{"for_user", kindText},
			{"document_type", kindText},
			{"document_name", kindText},
			{"subject", kindText},
			{"creation", kindInt},
		},
		orderBy: `creation ASC, name ASC`,
	},
}

func lookupTable(storeName string) (table, error) {
	t, ok := tables[storeName]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", ErrUnknownStore, storeName)
	}
	return t, nil
}

func (t table) column(name string) (column, error) {
	for _, c := range t.columns {
		if c.name == name {
			return c, nil
		}
	}
	return column{}, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

// selectColumns resolves the requested fields, defaulting to every column.
func (t table) selectColumns(fields []string) ([]column, error) {
	if len(fields) == 0 {
		return t.columns, nil
	}
	cols := make([]column, 0, len(fields))
	for _, f := range fields {
		c, err := t.column(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// where compiles filters into a parameterized WHERE clause.
// Keys are sorted so the same filters always produce the same SQL.
// Returns "" when filters is empty.
func (t table) where(filters Filters) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	params := make([]any, 0, len(keys))
	for _, k := range keys {
		c, err := t.column(k)
		if err != nil {
			return "", nil, err
		}
		v := filters[k]
		if v == nil {
			parts = append(parts, quote(c.name)+" IS NULL")
			continue
		}
		if err := checkKind(c, v); err != nil {
			return "", nil, err
		}
		parts = append(parts, quote(c.name)+" = ?")
		params = append(params, v)
	}

	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

// checkKind rejects values whose Go type does not fit the column.
func checkKind(c column, v any) error {
	ok := false
	switch c.kind {
	case kindText:
		_, ok = v.(string)
	case kindBool:
		_, ok = v.(bool)
	case kindInt:
		switch v.(type) {
		case int, int64:
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("column %q: unexpected value type %T", c.name, v)
	}
	return nil
}

// quote double-quotes an identifier. Both SQLite and PostgreSQL accept
// this form, which matters for reserved words such as "user".
func quote(ident string) string {
	return `"` + ident + `"`
}

func quoteColumns(cols []column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quote(c.name)
	}
	return strings.Join(names, ", ")
}
