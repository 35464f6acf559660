package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

// SQLite reads sqlite_master and the table_info/foreign_key_list pragmas.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open SQLite handle. The handle should be read-only.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Dialect() string { return config.DBTypeSQLite }

func (s *SQLite) Close() error { return s.db.Close() }

// Introspect lists the user tables and describes each of them.
func (s *SQLite) Introspect(ctx context.Context) ([]domain.TableDescriptor, error) {
	names, err := s.listTables(ctx)
	if err != nil {
		return nil, err
	}
	customLog.Printf("Introspect: Found %d SQLite tables", len(names))

	tables := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		if !core.IsValidIdentifier(name) {
			return nil, &core.SchemaError{Table: name, Reason: "table name is not a valid identifier"}
		}
		t, err := s.describe(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return finalize(tables)
}

func (s *SQLite) listTables(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name;`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		customLog.Printf("Introspect: Failed to list SQLite tables: %v", err)
		return nil, &core.ConnectionError{Engine: config.DBTypeSQLite, Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// describe runs PRAGMA table_info and PRAGMA foreign_key_list for one table.
// The table name is validated before it is interpolated.
func (s *SQLite) describe(ctx context.Context, table string) (domain.TableDescriptor, error) {
	t := domain.TableDescriptor{Name: table}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s");`, table))
	if err != nil {
		customLog.Printf("Introspect: Failed PRAGMA for Table '%s': %v", table, err)
		return t, fmt.Errorf("describe table %s: %w", table, err)
	}
	defer rows.Close()

	type pkPos struct {
		name string
		pos  int
	}
	var pks []pkPos
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			customLog.Printf("Introspect: Failed scanning PRAGMA for Table '%s': %v", table, err)
			return t, fmt.Errorf("describe table %s: %w", table, err)
		}
		col := domain.ColumnDescriptor{
			Name:       name,
			SourceType: ctype,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		if pk > 0 {
			pks = append(pks, pkPos{name: name, pos: pk})
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("describe table %s: %w", table, err)
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	for _, pk := range pks {
		t.PrimaryKey = append(t.PrimaryKey, pk.name)
	}

	// An INTEGER PRIMARY KEY aliases the rowid and is assigned on insert.
	if len(pks) == 1 {
		for i := range t.Columns {
			if t.Columns[i].Name == pks[0].name && strings.EqualFold(strings.TrimSpace(t.Columns[i].SourceType), "INTEGER") {
				t.Columns[i].AutoIncrement = true
			}
		}
	}

	fks, err := s.foreignKeys(ctx, table)
	if err != nil {
		return t, err
	}
	t.ForeignKeys = fks
	return t, nil
}

func (s *SQLite) foreignKeys(ctx context.Context, table string) ([]domain.ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list("%s");`, table))
	if err != nil {
		return nil, fmt.Errorf("list foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []domain.ForeignKey
	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("list foreign keys of %s: %w", table, err)
		}
		fks = append(fks, domain.ForeignKey{Column: from, ReferencedTable: refTable, ReferencedColumn: to.String})
	}
	return fks, rows.Err()
}
