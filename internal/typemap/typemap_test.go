package typemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		input    string
		wantBase string
		wantArgs string
	}{
		{"VARCHAR(255)", "varchar", "255"},
		{"int(11) unsigned", "int", "11"},
		{"decimal(10, 2)", "decimal", "10,2"},
		{"timestamp(6) with time zone", "timestamp with time zone", "6"},
		{"  Double   Precision ", "double precision", ""},
		{"tinyint(1)", "tinyint", "1"},
		{"", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			base, args := Normalize(tc.input)
			assert.Equal(t, tc.wantBase, base)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestMapper_Map(t *testing.T) {
	testCases := []struct {
		dialect   string
		source    string
		nullable  bool
		wantKind  string
		wantGo    string
		wantSerde string
	}{
		{"sqlite", "INTEGER", false, domain.KindInteger, "int64", domain.SerializeNone},
		{"sqlite", "TEXT", true, domain.KindString, "*string", domain.SerializeNone},
		{"sqlite", "VARCHAR(40)", false, domain.KindString, "string", domain.SerializeNone},
		{"sqlite", "UNSIGNED BIG INT", false, domain.KindInteger, "int64", domain.SerializeNone},
		{"sqlite", "NATIVE CHARACTER(70)", false, domain.KindString, "string", domain.SerializeNone},
		{"sqlite", "FLOATING POINT", false, domain.KindInteger, "int64", domain.SerializeNone}, // "INT" wins, as in SQLite
		{"sqlite", "DATE", false, domain.KindDate, "string", domain.SerializeDate},
		{"sqlite", "DATETIME", true, domain.KindDateTime, "*time.Time", domain.SerializeDateTime},
		{"sqlite", "BLOB", true, domain.KindBytes, "[]byte", domain.SerializeBase64},
		{"sqlite", "BOOLEAN", false, domain.KindBoolean, "bool", domain.SerializeNone},
		{"postgres", "character varying", false, domain.KindString, "string", domain.SerializeNone},
		{"postgres", "timestamp with time zone", false, domain.KindDateTime, "time.Time", domain.SerializeDateTime},
		{"postgres", "numeric", true, domain.KindDecimal, "*string", domain.SerializeDecimal},
		{"postgres", "uuid", false, domain.KindUUID, "string", domain.SerializeNone},
		{"postgres", "jsonb", true, domain.KindJSON, "json.RawMessage", domain.SerializeNone},
		{"postgres", "time without time zone", false, domain.KindTime, "string", domain.SerializeTime},
		{"mysql", "tinyint(1)", false, domain.KindBoolean, "bool", domain.SerializeNone},
		{"mysql", "tinyint(4)", false, domain.KindInteger, "int64", domain.SerializeNone},
		{"mysql", "int(10) unsigned", false, domain.KindInteger, "int64", domain.SerializeNone},
		{"mysql", "enum('a','b')", false, domain.KindString, "string", domain.SerializeNone},
		{"mysql", "longblob", false, domain.KindBytes, "[]byte", domain.SerializeBase64},
		{"mongodb", "objectId", false, domain.KindString, "string", domain.SerializeNone},
		{"mongodb", "int32", true, domain.KindInteger, "*int64", domain.SerializeNone},
		{"mongodb", "date", false, domain.KindDateTime, "time.Time", domain.SerializeDateTime},
		{"mongodb", "array", true, domain.KindJSON, "any", domain.SerializeNone},
	}

	for _, tc := range testCases {
		t.Run(tc.dialect+"/"+tc.source, func(t *testing.T) {
			m := New(tc.dialect)
			got, err := m.Map("t", domain.ColumnDescriptor{Name: "c", SourceType: tc.source, Nullable: tc.nullable})
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, got.Kind)
			assert.Equal(t, tc.wantGo, got.GoType)
			assert.Equal(t, tc.wantSerde, got.Serialization)
		})
	}
}

func TestMapper_UnsupportedTypesFail(t *testing.T) {
	testCases := []struct {
		dialect string
		source  string
	}{
		{"postgres", "USER-DEFINED"},
		{"postgres", "ARRAY"},
		{"postgres", "integer[]"},
		{"postgres", "tsvector"},
		{"mysql", "geometry"},
		{"sqlite", ""},
		{"sqlite", "WHATEVER"},
		{"mongodb", "null"},
		{"mongodb", "javascript"},
	}
	for _, tc := range testCases {
		t.Run(tc.dialect+"/"+tc.source, func(t *testing.T) {
			_, err := New(tc.dialect).Map("shapes", domain.ColumnDescriptor{Name: "outline", SourceType: tc.source})
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrTypeMapping))

			var mapErr *core.TypeMappingError
			require.True(t, errors.As(err, &mapErr))
			assert.Equal(t, "shapes", mapErr.Table)
			assert.Equal(t, "outline", mapErr.Column)
			assert.Contains(t, err.Error(), "shapes.outline")
		})
	}
}

func TestMapper_Idempotent(t *testing.T) {
	m := New("postgresql")
	col := domain.ColumnDescriptor{Name: "starts_at", SourceType: "timestamp without time zone", Nullable: true}
	first, err := m.Map("events", col)
	require.NoError(t, err)
	second, err := m.Map("events", col)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMapper_MapTables(t *testing.T) {
	input := []domain.TableDescriptor{{
		Name:       "courses",
		PrimaryKey: []string{"id"},
		Columns: []domain.ColumnDescriptor{
			{Name: "id", SourceType: "INTEGER", PrimaryKey: true},
			{Name: "course_name", SourceType: "TEXT"},
		},
	}}

	out, err := New("sqlite").MapTables(input)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindInteger, out[0].Columns[0].Target.Kind)
	assert.Equal(t, domain.KindString, out[0].Columns[1].Target.Kind)
	assert.Empty(t, input[0].Columns[0].Target.Kind, "input descriptors stay untouched")

	input[0].Columns[1].SourceType = "POINT"
	_, err = New("postgres").MapTables(input)
	assert.ErrorIs(t, err, core.ErrTypeMapping)
}
