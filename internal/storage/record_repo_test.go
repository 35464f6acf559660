package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/typemap"
)

const schoolDDL = `
CREATE TABLE teachers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE courses (
	id INTEGER PRIMARY KEY,
	course_name TEXT NOT NULL,
	teacher_id INTEGER REFERENCES teachers(id),
	credits REAL NOT NULL DEFAULT 3.0,
	starts_on DATE,
	syllabus BLOB
);
INSERT INTO teachers (id, name) VALUES (1, 'Ada'), (2, 'Grace');
`

func courseTable(t *testing.T) domain.TableDescriptor {
	t.Helper()
	three := "3.0"
	tables, err := typemap.New(config.DBTypeSQLite).MapTables([]domain.TableDescriptor{{
		Name: "courses",
		Columns: []domain.ColumnDescriptor{
			{Name: "id", SourceType: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "course_name", SourceType: "TEXT"},
			{Name: "teacher_id", SourceType: "INTEGER", Nullable: true},
			{Name: "credits", SourceType: "REAL", Default: &three},
			{Name: "starts_on", SourceType: "DATE", Nullable: true},
			{Name: "syllabus", SourceType: "BLOB", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}})
	require.NoError(t, err)
	return tables[0]
}

func newSchoolStore(t *testing.T) *RecordStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "school.db")
	seed, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = seed.Exec(schoolDDL)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	cfg := &config.Config{DBType: config.DBTypeSQLite, SQLitePath: path, ConnectTimeout: 5 * time.Second}
	db, err := Connect(context.Background(), cfg, ConnectOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecordStore(db, config.DBTypeSQLite)
}

func body(t *testing.T, raw string) Record {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var rec Record
	require.NoError(t, dec.Decode(&rec))
	return rec
}

func TestRecordStore_InsertRoundTrip(t *testing.T) {
	store := newSchoolStore(t)
	courses := courseTable(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, courses, body(t, `{"course_name":"Mathematics","teacher_id":2,"starts_on":"2024-09-01","syllabus":"aGVsbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created["id"])
	assert.Equal(t, "Mathematics", created["course_name"])
	assert.Equal(t, int64(2), created["teacher_id"])
	assert.Equal(t, 3.0, created["credits"])
	assert.Equal(t, "2024-09-01", created["starts_on"])
	assert.Equal(t, []byte("hello"), created["syllabus"])

	fetched, err := store.Get(ctx, courses, "1")
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	out, err := json.Marshal(fetched)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"course_name":"Mathematics","teacher_id":2,"credits":3,"starts_on":"2024-09-01","syllabus":"aGVsbG8="}`, string(out))
}

func TestRecordStore_InsertErrors(t *testing.T) {
	store := newSchoolStore(t)
	courses := courseTable(t)

	testCases := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"missing required column", `{"teacher_id":1}`, ErrMissingColumn},
		{"unknown column", `{"course_name":"Art","bogus":1}`, ErrColumnNotFound},
		{"string for integer", `{"course_name":"Art","teacher_id":"one"}`, ErrTypeMismatch},
		{"fraction for integer", `{"course_name":"Art","teacher_id":1.5}`, ErrTypeMismatch},
		{"null for not null", `{"course_name":null}`, ErrTypeMismatch},
		{"bad date", `{"course_name":"Art","starts_on":"01/09/2024"}`, ErrTypeMismatch},
		{"bad base64", `{"course_name":"Art","syllabus":"%%%"}`, ErrTypeMismatch},
		{"foreign key", `{"course_name":"Art","teacher_id":99}`, ErrConstraintViolation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := store.Insert(context.Background(), courses, body(t, tc.body))
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, rec)
		})
	}
}

func seedCourses(t *testing.T, store *RecordStore, courses domain.TableDescriptor) {
	t.Helper()
	for _, raw := range []string{
		`{"course_name":"Mathematics","teacher_id":1}`,
		`{"course_name":"Mathematics","teacher_id":2}`,
		`{"course_name":"Physics","teacher_id":2,"credits":4.5}`,
		`{"course_name":"History"}`,
	} {
		_, err := store.Insert(context.Background(), courses, body(t, raw))
		require.NoError(t, err)
	}
}

func listOpts(t *testing.T, query string) *core.ListQueryOptions {
	t.Helper()
	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	opts, err := core.ParseListQueryOptions(values)
	require.NoError(t, err)
	return opts
}

func TestRecordStore_List(t *testing.T) {
	store := newSchoolStore(t)
	courses := courseTable(t)
	seedCourses(t, store, courses)
	ctx := context.Background()

	testCases := []struct {
		query   string
		wantIDs []int64
	}{
		{"", []int64{1, 2, 3, 4}},
		{"course_name=Mathematics&teacher_id=2", []int64{2}},
		{"course_name=Mathematics", []int64{1, 2}},
		{"bogus=1", []int64{1, 2, 3, 4}},
		{"sort_by=credits&order=desc&limit=1", []int64{3}},
		{"sort_by=nope&order=desc", []int64{1, 2, 3, 4}},
		{"sort_by=name%3Bdrop", []int64{1, 2, 3, 4}},
		{"skip=2&limit=1", []int64{3}},
		{"skip=10", []int64{}},
		{"limit=5000", []int64{1, 2, 3, 4}},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			records, err := store.List(ctx, courses, listOpts(t, tc.query))
			require.NoError(t, err)
			ids := make([]int64, 0, len(records))
			for _, r := range records {
				ids = append(ids, r["id"].(int64))
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}

	n, err := store.Count(ctx, courses, listOpts(t, "course_name=Mathematics"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.List(ctx, courses, listOpts(t, "teacher_id=abc"))
	assert.ErrorIs(t, err, ErrInvalidFilterValue)
	_, err = store.Count(ctx, courses, listOpts(t, "credits=lots"))
	assert.ErrorIs(t, err, ErrInvalidFilterValue)
}

func TestRecordStore_UpdatePatchDelete(t *testing.T) {
	store := newSchoolStore(t)
	courses := courseTable(t)
	seedCourses(t, store, courses)
	ctx := context.Background()

	updated, err := store.Update(ctx, courses, "1", body(t, `{"course_name":"Algebra","credits":5}`))
	require.NoError(t, err)
	assert.Equal(t, "Algebra", updated["course_name"])
	assert.Equal(t, 5.0, updated["credits"])
	assert.Nil(t, updated["teacher_id"], "omitted nullable columns are cleared")

	updated, err = store.Update(ctx, courses, "2", body(t, `{"course_name":"Geometry"}`))
	require.NoError(t, err)
	assert.Nil(t, updated["teacher_id"])
	assert.Equal(t, 3.0, updated["credits"], "omitted columns with a default keep their value")

	_, err = store.Update(ctx, courses, "1", body(t, `{"credits":5}`))
	assert.ErrorIs(t, err, ErrMissingColumn)

	patched, err := store.Patch(ctx, courses, "1", body(t, `{"teacher_id":null}`))
	require.NoError(t, err)
	assert.Nil(t, patched["teacher_id"])
	assert.Equal(t, "Algebra", patched["course_name"])

	same, err := store.Patch(ctx, courses, "1", body(t, `{"id":1}`))
	require.NoError(t, err)
	assert.Equal(t, patched, same)

	_, err = store.Patch(ctx, courses, "1", body(t, `{"id":7}`))
	assert.ErrorIs(t, err, ErrKeyImmutable)

	_, err = store.Patch(ctx, courses, "42", body(t, `{"credits":1}`))
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = store.Get(ctx, courses, "abc")
	assert.ErrorIs(t, err, ErrInvalidKey)

	require.NoError(t, store.Delete(ctx, courses, "1"))
	_, err = store.Get(ctx, courses, "1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, store.Delete(ctx, courses, "1"), ErrRecordNotFound)
}

func TestRecordStore_PostgresStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tables, err := typemap.New(config.DBTypePostgres).MapTables([]domain.TableDescriptor{{
		Name: "courses",
		Columns: []domain.ColumnDescriptor{
			{Name: "id", SourceType: "integer", PrimaryKey: true, AutoIncrement: true},
			{Name: "course_name", SourceType: "text"},
			{Name: "teacher_id", SourceType: "integer", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}})
	require.NoError(t, err)
	courses := tables[0]
	store := NewRecordStore(db, config.DBTypePostgres)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "course_name", "teacher_id" FROM "courses" WHERE "course_name" = $1 AND "teacher_id" = $2 ORDER BY "id" DESC LIMIT 100 OFFSET 0`)).
		WithArgs("Mathematics", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_name", "teacher_id"}).AddRow(int64(7), "Mathematics", int64(2)))

	records, err := store.List(context.Background(), courses, listOpts(t, "course_name=Mathematics&teacher_id=2&sort_by=id&order=desc"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0]["id"])

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "courses" ("course_name") VALUES ($1) RETURNING "id"`)).
		WithArgs("Physics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "course_name", "teacher_id" FROM "courses" WHERE "id" = $1`)).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_name", "teacher_id"}).AddRow(int64(8), "Physics", nil))

	created, err := store.Insert(context.Background(), courses, body(t, `{"course_name":"Physics"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(8), created["id"])
	assert.Nil(t, created["teacher_id"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"postgres unique", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, ErrConstraintViolation},
		{"postgres bad input", &pgconn.PgError{Code: "22P02", Message: "invalid input syntax"}, ErrTypeMismatch},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrConstraintViolation},
		{"mysql incorrect value", &mysql.MySQLError{Number: 1366, Message: "Incorrect integer value"}, ErrTypeMismatch},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tc.err, "insert record"), tc.wantErr)
		})
	}

	other := errors.New("connection reset")
	mapped := mapError(other, "insert record")
	assert.ErrorIs(t, mapped, other)
	assert.NotErrorIs(t, mapped, ErrConstraintViolation)
}

func TestConvertOutput(t *testing.T) {
	col := func(kind string) domain.ColumnDescriptor {
		return domain.ColumnDescriptor{Name: "c", Target: domain.TargetType{Kind: kind}}
	}
	at := time.Date(2024, 9, 1, 13, 45, 0, 0, time.UTC)

	assert.Equal(t, "2024-09-01", convertOutput(col(domain.KindDate), at))
	assert.Equal(t, "13:45:00", convertOutput(col(domain.KindTime), at))
	assert.Equal(t, at, convertOutput(col(domain.KindDateTime), at))
	assert.Equal(t, true, convertOutput(col(domain.KindBoolean), int64(1)))
	assert.Equal(t, "12.50", convertOutput(col(domain.KindDecimal), []byte("12.50")))
	assert.Equal(t, int64(42), convertOutput(col(domain.KindInteger), []byte("42")))
	assert.Equal(t, json.RawMessage(`{"a":1}`), convertOutput(col(domain.KindJSON), []byte(`{"a":1}`)))
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", convertOutput(col(domain.KindUUID),
		[16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}))
	assert.Nil(t, convertOutput(col(domain.KindString), nil))
}
