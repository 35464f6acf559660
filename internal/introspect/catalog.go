package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

// catalogQueries holds the information_schema statements of one dialect.
// Every statement takes the schema as first argument and, except tables,
// the table name as second.
type catalogQueries struct {
	tables      string
	columns     string // name, type, is_nullable, default, extra
	primaryKeys string
	foreignKeys string // column, referenced table, referenced column

	autoIncrement func(dflt, extra string) bool
}

var postgresQueries = catalogQueries{
	tables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columns: `SELECT column_name, data_type, is_nullable, column_default, is_identity
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
	primaryKeys: `SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`,
	foreignKeys: `SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`,
	autoIncrement: func(dflt, identity string) bool {
		return strings.HasPrefix(dflt, "nextval(") || strings.EqualFold(identity, "YES")
	},
}

var mysqlQueries = catalogQueries{
	tables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columns: `SELECT column_name, column_type, is_nullable, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`,
	primaryKeys: `SELECT column_name FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`,
	foreignKeys: `SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position`,
	autoIncrement: func(_, extra string) bool {
		return strings.Contains(strings.ToLower(extra), "auto_increment")
	},
}

// Catalog introspects PostgreSQL and MySQL through information_schema.
type Catalog struct {
	db      *sql.DB
	dialect string
	schema  string
	queries catalogQueries
}

// NewCatalog wraps an open PostgreSQL or MySQL handle. schema is the
// table_schema to read (PostgreSQL: usually "public"; MySQL: the database).
func NewCatalog(db *sql.DB, dialect, schema string) *Catalog {
	q := postgresQueries
	if dialect == config.DBTypeMySQL {
		q = mysqlQueries
	}
	return &Catalog{db: db, dialect: dialect, schema: schema, queries: q}
}

func (c *Catalog) Dialect() string { return c.dialect }

func (c *Catalog) Close() error { return c.db.Close() }

// Introspect lists the base tables of the schema and describes each of them.
func (c *Catalog) Introspect(ctx context.Context) ([]domain.TableDescriptor, error) {
	names, err := c.listTables(ctx)
	if err != nil {
		return nil, err
	}
	customLog.Printf("Introspect: Found %d %s tables in schema '%s'", len(names), c.dialect, c.schema)

	tables := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		t, err := c.describe(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return finalize(tables)
}

func (c *Catalog) listTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, c.queries.tables, c.schema)
	if err != nil {
		customLog.Printf("Introspect: Failed to list %s tables: %v", c.dialect, err)
		return nil, &core.ConnectionError{Engine: c.dialect, Err: err}
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

func (c *Catalog) describe(ctx context.Context, table string) (domain.TableDescriptor, error) {
	t := domain.TableDescriptor{Name: table}

	cols, err := c.columns(ctx, table)
	if err != nil {
		return t, err
	}
	t.Columns = cols

	pks, err := c.stringColumn(ctx, c.queries.primaryKeys, table)
	if err != nil {
		return t, fmt.Errorf("primary key of %s: %w", table, err)
	}
	t.PrimaryKey = pks
	for i := range t.Columns {
		for _, pk := range pks {
			if t.Columns[i].Name == pk {
				t.Columns[i].PrimaryKey = true
			}
		}
	}

	fks, err := c.foreignKeys(ctx, table)
	if err != nil {
		return t, err
	}
	t.ForeignKeys = fks
	return t, nil
}

func (c *Catalog) columns(ctx context.Context, table string) ([]domain.ColumnDescriptor, error) {
	rows, err := c.db.QueryContext(ctx, c.queries.columns, c.schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []domain.ColumnDescriptor
	for rows.Next() {
		var (
			name, dataType, nullable string
			dflt, extra              sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &nullable, &dflt, &extra); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		col := domain.ColumnDescriptor{
			Name:          name,
			SourceType:    dataType,
			Nullable:      strings.EqualFold(nullable, "YES"),
			AutoIncrement: c.queries.autoIncrement(dflt.String, extra.String),
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *Catalog) stringColumn(ctx context.Context, query, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, c.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *Catalog) foreignKeys(ctx context.Context, table string) ([]domain.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, c.queries.foreignKeys, c.schema, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []domain.ForeignKey
	for rows.Next() {
		var fk domain.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
