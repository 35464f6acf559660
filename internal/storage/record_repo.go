// internal/storage/record_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

// Specific errors for record operations
var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrTableNotFound       = errors.New("table not found")
	ErrColumnNotFound      = errors.New("column not found")
	ErrMissingColumn       = errors.New("required column missing")
	ErrTypeMismatch        = errors.New("datatype mismatch")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidFilterValue  = errors.New("invalid value provided for filter")
	ErrInvalidKey          = errors.New("invalid record key")
	ErrKeyImmutable        = errors.New("key column cannot be changed")
)

// Record is one row keyed by column name.
type Record = map[string]any

// RecordStore runs CRUD statements for any table described by a
// domain.TableDescriptor. Every identifier it embeds in SQL comes from the
// descriptor; every value is a bind parameter.
type RecordStore struct {
	db      *sql.DB
	dialect string
}

// NewRecordStore wraps an open connection to a database of the given dialect.
func NewRecordStore(db *sql.DB, dialect string) *RecordStore {
	return &RecordStore{db: db, dialect: dialect}
}

func (s *RecordStore) quote(name string) string {
	if s.dialect == config.DBTypeMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func (s *RecordStore) placeholder(n int) string {
	if s.dialect == config.DBTypePostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *RecordStore) selectSQL(t domain.TableDescriptor) string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = s.quote(col.Name)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + s.quote(t.Name)
}

// where builds the WHERE clause for the filters of opts. Filters on unknown
// columns are ignored; values are converted to the column's kind.
func (s *RecordStore) where(t domain.TableDescriptor, opts *core.ListQueryOptions, first int) (string, []any, error) {
	var clauses []string
	var args []any
	for _, f := range opts.Filters {
		col, ok := t.Column(f.Column)
		if !ok {
			customLog.Debugf("Storage: Ignoring filter on unknown column '%s' of '%s'", f.Column, t.Name)
			continue
		}
		value, err := convertFilter(col, f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidFilterValue, err)
		}
		clauses = append(clauses, s.quote(col.Name)+" = "+s.placeholder(first+len(args)))
		args = append(args, value)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// List returns one page of rows matching the filters of opts.
func (s *RecordStore) List(ctx context.Context, t domain.TableDescriptor, opts *core.ListQueryOptions) ([]Record, error) {
	where, args, err := s.where(t, opts, 1)
	if err != nil {
		return nil, err
	}
	query := s.selectSQL(t) + where
	if col, ok := t.Column(opts.SortBy); ok && opts.SortBy != "" {
		dir := "ASC"
		if opts.SortOrder == "desc" {
			dir = "DESC"
		}
		query += " ORDER BY " + s.quote(col.Name) + " " + dir
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", core.ClampLimit(opts.Limit), opts.Skip)

	customLog.Debugf("Storage: Executing List Records SQL: %s | Args: %v", query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list records")
	}
	defer rows.Close()

	results := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(t, rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed processing all records: %w", err)
	}
	return results, nil
}

// Count returns the number of rows matching the filters of opts.
func (s *RecordStore) Count(ctx context.Context, t domain.TableDescriptor, opts *core.ListQueryOptions) (int64, error) {
	where, args, err := s.where(t, opts, 1)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.quote(t.Name)+where, args...).Scan(&n); err != nil {
		return 0, mapError(err, "count records")
	}
	return n, nil
}

// Get returns the row whose key column equals rawKey.
func (s *RecordStore) Get(ctx context.Context, t domain.TableDescriptor, rawKey string) (Record, error) {
	key, keyValue, err := parseKey(t, rawKey)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, t, key, keyValue)
}

func (s *RecordStore) get(ctx context.Context, t domain.TableDescriptor, key domain.ColumnDescriptor, keyValue any) (Record, error) {
	query := s.selectSQL(t) + " WHERE " + s.quote(key.Name) + " = " + s.placeholder(1)
	rows, err := s.db.QueryContext(ctx, query, keyValue)
	if err != nil {
		return nil, mapError(err, "get record")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed checking for record: %w", err)
		}
		return nil, ErrRecordNotFound
	}
	return scanRecord(t, rows)
}

// Insert validates values as a create request, inserts them and returns the
// stored row.
func (s *RecordStore) Insert(ctx context.Context, t domain.TableDescriptor, values Record) (Record, error) {
	columns, args, err := prepareValues(t, values, modeCreate)
	if err != nil {
		return nil, err
	}
	key, ok := t.KeyColumn()
	if !ok {
		return nil, &core.SchemaError{Table: t.Name, Reason: "no key column"}
	}

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.quote(c)
		marks[i] = s.placeholder(i + 1)
	}
	var query string
	switch {
	case len(columns) > 0:
		query = "INSERT INTO " + s.quote(t.Name) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	case s.dialect == config.DBTypeMySQL:
		query = "INSERT INTO " + s.quote(t.Name) + " () VALUES ()"
	default:
		query = "INSERT INTO " + s.quote(t.Name) + " DEFAULT VALUES"
	}

	var keyValue any
	if s.dialect == config.DBTypeMySQL {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapError(err, "insert record")
		}
		if v, supplied := values[key.Name]; supplied && v != nil {
			keyValue, _ = convertValue(key, v)
		} else {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve ID after insert: %w", err)
			}
			keyValue = id
		}
	} else {
		// SQLite (3.35+) and PostgreSQL hand back the key, including
		// server-side defaults.
		if err := s.db.QueryRowContext(ctx, query+" RETURNING "+s.quote(key.Name), args...).Scan(&keyValue); err != nil {
			return nil, mapError(err, "insert record")
		}
		if b, ok := keyValue.([]byte); ok {
			keyValue = string(b)
		}
	}
	customLog.Debugf("Storage: Inserted into '%s' with key %v", t.Name, keyValue)
	return s.get(ctx, t, key, keyValue)
}

// Update replaces the writable columns of a row; every required column must
// be present.
func (s *RecordStore) Update(ctx context.Context, t domain.TableDescriptor, rawKey string, values Record) (Record, error) {
	return s.update(ctx, t, rawKey, values, modeReplace)
}

// Patch changes only the columns present in values.
func (s *RecordStore) Patch(ctx context.Context, t domain.TableDescriptor, rawKey string, values Record) (Record, error) {
	return s.update(ctx, t, rawKey, values, modePatch)
}

func (s *RecordStore) update(ctx context.Context, t domain.TableDescriptor, rawKey string, values Record, mode writeMode) (Record, error) {
	key, keyValue, err := parseKey(t, rawKey)
	if err != nil {
		return nil, err
	}
	if v, present := values[key.Name]; present {
		values = maps.Clone(values)
		if converted, err := convertValue(key, v); err != nil || fmt.Sprint(converted) != fmt.Sprint(keyValue) {
			return nil, fmt.Errorf("%w: '%s'", ErrKeyImmutable, key.Name)
		}
		delete(values, key.Name)
	}
	columns, args, err := prepareValues(t, values, mode)
	if err != nil {
		return nil, err
	}

	if _, err := s.get(ctx, t, key, keyValue); err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		sets := make([]string, len(columns))
		for i, c := range columns {
			sets[i] = s.quote(c) + " = " + s.placeholder(i+1)
		}
		query := "UPDATE " + s.quote(t.Name) + " SET " + strings.Join(sets, ", ") +
			" WHERE " + s.quote(key.Name) + " = " + s.placeholder(len(columns)+1)
		if _, err := s.db.ExecContext(ctx, query, append(args, keyValue)...); err != nil {
			return nil, mapError(err, "update record")
		}
	}
	return s.get(ctx, t, key, keyValue)
}

// Delete removes the row whose key column equals rawKey.
func (s *RecordStore) Delete(ctx context.Context, t domain.TableDescriptor, rawKey string) error {
	key, keyValue, err := parseKey(t, rawKey)
	if err != nil {
		return err
	}
	query := "DELETE FROM " + s.quote(t.Name) + " WHERE " + s.quote(key.Name) + " = " + s.placeholder(1)
	result, err := s.db.ExecContext(ctx, query, keyValue)
	if err != nil {
		return mapError(err, "delete record")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming delete: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func parseKey(t domain.TableDescriptor, raw string) (domain.ColumnDescriptor, any, error) {
	key, ok := t.KeyColumn()
	if !ok {
		return key, nil, &core.SchemaError{Table: t.Name, Reason: "no key column"}
	}
	value, err := convertFilter(key, raw)
	if err != nil {
		return key, nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, value, nil
}

func scanRecord(t domain.TableDescriptor, rows *sql.Rows) (Record, error) {
	values := make([]any, len(t.Columns))
	scanArgs := make([]any, len(t.Columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := rows.Scan(scanArgs...); err != nil {
		return nil, fmt.Errorf("failed reading record data: %w", err)
	}
	rec := make(Record, len(t.Columns))
	for i, col := range t.Columns {
		rec[col.Name] = convertOutput(col, values[i])
	}
	return rec, nil
}

// mapError maps driver errors to the storage sentinels.
func mapError(err error, op string) error {
	customLog.Printf("Storage: Failed to %s: %v", op, err)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		case sqliteErr.Code == sqlite3.ErrMismatch:
			return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"): // integrity_constraint_violation
			return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "22"): // data_exception
			return fmt.Errorf("%w: %s", ErrTypeMismatch, pgErr.Message)
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1048, 1062, 1451, 1452, 1586, 3819:
			return fmt.Errorf("%w: %s", ErrConstraintViolation, myErr.Message)
		case 1264, 1292, 1366, 1406:
			return fmt.Errorf("%w: %s", ErrTypeMismatch, myErr.Message)
		}
	}

	if strings.Contains(err.Error(), "datatype mismatch") {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return fmt.Errorf("database error during %s: %w", op, err)
}
