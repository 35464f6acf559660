package generator

import (
	"context"
	"database/sql"
	"errors"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/introspect"
)

const schoolDDL = `
CREATE TABLE teachers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE courses (
	id INTEGER PRIMARY KEY,
	course_name TEXT NOT NULL,
	teacher_id INTEGER REFERENCES teachers(id)
);
`

func newSQLiteFile(t *testing.T, ddl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "school.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("PRAGMA user_version = 1;")
	require.NoError(t, err)
	if ddl != "" {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}
	return path
}

func testConfig(t *testing.T, dbPath string) *config.Config {
	return &config.Config{
		DBType:             config.DBTypeSQLite,
		SQLitePath:         dbPath,
		ConnectTimeout:     5 * time.Second,
		OutputDir:          filepath.Join(t.TempDir(), "school-api"),
		Mode:               config.ModeSQL,
		ModulePath:         "example.com/school-api",
		APITitle:           "School API",
		APIVersion:         "0.1.0",
		JWTAlgorithm:       "HS256",
		AccessTokenExpire:  30 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
	}
}

func TestGenerator_Run(t *testing.T) {
	cfg := testConfig(t, newSQLiteFile(t, schoolDDL))
	cfg.EnableAuth = true

	g := New(cfg)
	assert.Equal(t, StateIdle, g.State())

	report, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, StateDone, g.State())
	assert.Equal(t, []string{"courses", "teachers"}, report.Tables)

	for _, rel := range []string{
		"models/courses.go", "schemas/courses.go", "services/courses.go", "routers/courses.go",
		"models/teachers.go", "routers/teachers.go", "main.go", "go.mod",
		"middleware/auth.go", "cmd/gentoken/main.go", domain.ManifestFile,
	} {
		assert.FileExists(t, filepath.Join(cfg.OutputDir, filepath.FromSlash(rel)))
	}
	assert.Len(t, report.Files, 4*2+7+1+2)

	for _, path := range report.Files {
		if !strings.HasSuffix(path, ".go") {
			continue
		}
		_, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.AllErrors)
		assert.NoError(t, err, path)
	}

	manifest, err := domain.LoadManifest(filepath.Join(cfg.OutputDir, domain.ManifestFile))
	require.NoError(t, err)
	require.Len(t, manifest.Tables, 2)
	assert.Equal(t, domain.KindInteger, manifest.Tables[0].Columns[0].Target.Kind)

	_, err = g.Run(context.Background())
	assert.Error(t, err, "a generator runs once")
}

func TestGenerator_Failures(t *testing.T) {
	testCases := []struct {
		name       string
		ddl        string
		wantErr    error
		wantTables int
	}{
		{"zero tables", "", core.ErrSchema, 0},
		{"no key column", "CREATE TABLE logs (line TEXT);", core.ErrSchema, 0},
		{"unmapped type", "CREATE TABLE places (id INTEGER PRIMARY KEY, shape GEOMETRY);", core.ErrTypeMapping, 1},
		{"unsupported key type", "CREATE TABLE readings (id REAL PRIMARY KEY, value REAL);", core.ErrSchema, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t, newSQLiteFile(t, tc.ddl))

			g := New(cfg)
			report, err := g.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.Equal(t, StateFailed, report.State)
			assert.Len(t, report.Tables, tc.wantTables)
			assert.Empty(t, report.Files)

			_, statErr := os.Stat(cfg.OutputDir)
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing is written after a failed stage")
		})
	}
}

func TestGenerator_ConnectionFailure(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.db"))

	report, err := New(cfg).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConnection))
	assert.Equal(t, StateFailed, report.State)
	assert.NoFileExists(t, cfg.SQLitePath)
}

func TestGenerator_NonEmptyOutput(t *testing.T) {
	cfg := testConfig(t, newSQLiteFile(t, schoolDDL))
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "notes.txt"), []byte("mine"), 0o644))

	report, err := New(cfg).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrFileSystem))
	assert.Equal(t, StateFailed, report.State)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "main.go"))
}

type stubIntrospector struct {
	tables []domain.TableDescriptor
	closed bool
}

func (s *stubIntrospector) Introspect(context.Context) ([]domain.TableDescriptor, error) {
	return s.tables, nil
}
func (s *stubIntrospector) Dialect() string { return config.DBTypePostgres }
func (s *stubIntrospector) Close() error    { s.closed = true; return nil }

func TestGenerator_WithOpener(t *testing.T) {
	stub := &stubIntrospector{tables: []domain.TableDescriptor{{
		Name: "accounts",
		Columns: []domain.ColumnDescriptor{
			{Name: "id", SourceType: "bigint", PrimaryKey: true, AutoIncrement: true},
			{Name: "email", SourceType: "character varying"},
			{Name: "created_at", SourceType: "timestamp with time zone", Default: func() *string { s := "now()"; return &s }()},
		},
		PrimaryKey: []string{"id"},
	}}}
	cfg := testConfig(t, "")
	cfg.DBType = config.DBTypePostgres
	cfg.Mode = config.ModeORM

	report, err := New(cfg).WithOpener(func(context.Context, *config.Config) (introspect.Introspector, error) {
		return stub, nil
	}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, stub.closed)
	assert.Equal(t, []string{"accounts"}, report.Tables)

	service, err := os.ReadFile(filepath.Join(cfg.OutputDir, "services", "accounts.go"))
	require.NoError(t, err)
	assert.Contains(t, string(service), "*gorm.DB")
}

func TestLoadTables_FromManifest(t *testing.T) {
	m := domain.Manifest{Dialect: "postgresql", Tables: []domain.TableDescriptor{{
		Name:       "teachers",
		Columns:    []domain.ColumnDescriptor{{Name: "id", SourceType: "integer", PrimaryKey: true}, {Name: "name", SourceType: "text", Nullable: true}},
		PrimaryKey: []string{"id"},
	}}}
	data, err := m.Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), domain.ManifestFile)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	tables, dialect, err := LoadTables(context.Background(), &config.Config{SchemaFile: path})
	require.NoError(t, err)
	assert.Equal(t, config.DBTypePostgres, dialect)
	require.Len(t, tables, 1)
	assert.Equal(t, "*string", tables[0].Columns[1].Target.GoType)
}
