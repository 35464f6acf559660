// Package typemap converts source column types into the target validation
// types used by the renderer and the serve-mode handlers.
package typemap

import (
	"regexp"
	"strings"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

var (
	typeArgs   = regexp.MustCompile(`\(([^)]*)\)`)
	whitespace = regexp.MustCompile(`\s+`)
)

// sqlKinds covers the catalog type names of SQLite, PostgreSQL and MySQL.
var sqlKinds = map[string]string{
	// strings
	"text": domain.KindString, "varchar": domain.KindString, "character varying": domain.KindString,
	"char": domain.KindString, "character": domain.KindString, "nchar": domain.KindString,
	"nvarchar": domain.KindString, "varying character": domain.KindString, "native character": domain.KindString,
	"tinytext": domain.KindString, "mediumtext": domain.KindString, "longtext": domain.KindString,
	"clob": domain.KindString, "citext": domain.KindString, "bpchar": domain.KindString, "name": domain.KindString,
	"enum": domain.KindString, "set": domain.KindString, "inet": domain.KindString, "cidr": domain.KindString,
	"macaddr": domain.KindString, "xml": domain.KindString,

	// integers
	"int": domain.KindInteger, "integer": domain.KindInteger, "int2": domain.KindInteger,
	"int4": domain.KindInteger, "int8": domain.KindInteger, "smallint": domain.KindInteger,
	"mediumint": domain.KindInteger, "bigint": domain.KindInteger, "tinyint": domain.KindInteger,
	"serial": domain.KindInteger, "bigserial": domain.KindInteger, "smallserial": domain.KindInteger,
	"year": domain.KindInteger,

	// floating point
	"real": domain.KindNumber, "float": domain.KindNumber, "float4": domain.KindNumber,
	"float8": domain.KindNumber, "double": domain.KindNumber, "double precision": domain.KindNumber,

	// exact numerics
	"numeric": domain.KindDecimal, "decimal": domain.KindDecimal, "money": domain.KindDecimal,

	"boolean": domain.KindBoolean, "bool": domain.KindBoolean,

	"date":                        domain.KindDate,
	"datetime":                    domain.KindDateTime,
	"timestamp":                   domain.KindDateTime,
	"timestamptz":                 domain.KindDateTime,
	"timestamp without time zone": domain.KindDateTime,
	"timestamp with time zone":    domain.KindDateTime,
	"time":                        domain.KindTime,
	"timetz":                      domain.KindTime,
	"time without time zone":      domain.KindTime,
	"time with time zone":         domain.KindTime,

	"uuid": domain.KindUUID, "uniqueidentifier": domain.KindUUID,
	"json": domain.KindJSON, "jsonb": domain.KindJSON,

	"blob": domain.KindBytes, "tinyblob": domain.KindBytes, "mediumblob": domain.KindBytes,
	"longblob": domain.KindBytes, "bytea": domain.KindBytes, "binary": domain.KindBytes,
	"varbinary": domain.KindBytes,
}

// documentKinds covers the BSON type names reported by document inference.
var documentKinds = map[string]string{
	"string":     domain.KindString,
	"objectid":   domain.KindString,
	"symbol":     domain.KindString,
	"int":        domain.KindInteger,
	"int32":      domain.KindInteger,
	"long":       domain.KindInteger,
	"int64":      domain.KindInteger,
	"double":     domain.KindNumber,
	"decimal":    domain.KindDecimal,
	"decimal128": domain.KindDecimal,
	"bool":       domain.KindBoolean,
	"date":       domain.KindDateTime,
	"datetime":   domain.KindDateTime,
	"timestamp":  domain.KindDateTime,
	"object":     domain.KindJSON,
	"embedded":   domain.KindJSON,
	"array":      domain.KindJSON,
	"bindata":    domain.KindBytes,
	"binary":     domain.KindBytes,
}

var goTypes = map[string]string{
	domain.KindString:   "string",
	domain.KindInteger:  "int64",
	domain.KindNumber:   "float64",
	domain.KindDecimal:  "string",
	domain.KindBoolean:  "bool",
	domain.KindDate:     "string",
	domain.KindDateTime: "time.Time",
	domain.KindTime:     "string",
	domain.KindUUID:     "string",
	domain.KindJSON:     "json.RawMessage",
	domain.KindBytes:    "[]byte",
}

var serializations = map[string]string{
	domain.KindDecimal:  domain.SerializeDecimal,
	domain.KindDate:     domain.SerializeDate,
	domain.KindDateTime: domain.SerializeDateTime,
	domain.KindTime:     domain.SerializeTime,
	domain.KindBytes:    domain.SerializeBase64,
}

// Mapper maps column types of one source dialect. It holds no state beyond
// the dialect, so the same input always yields the same output.
type Mapper struct {
	Dialect string
}

// New returns a mapper for the given data source type.
func New(dialect string) *Mapper {
	return &Mapper{Dialect: config.NormalizeDBType(dialect)}
}

// Normalize lowercases a source type, strips modifiers such as unsigned and
// returns the base name together with the first parenthesized argument list.
func Normalize(sourceType string) (base string, args string) {
	s := strings.ToLower(strings.TrimSpace(sourceType))
	if m := typeArgs.FindStringSubmatch(s); m != nil {
		args = strings.ReplaceAll(m[1], " ", "")
	}
	s = typeArgs.ReplaceAllString(s, " ")
	s = strings.TrimSuffix(s, "[]")
	fields := whitespace.Split(strings.TrimSpace(s), -1)
	kept := fields[:0]
	for _, f := range fields {
		switch f {
		case "unsigned", "signed", "zerofill":
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " "), args
}

// Kind resolves the target kind of a source type, or "" when unsupported.
func (m *Mapper) Kind(sourceType string) string {
	base, args := Normalize(sourceType)
	if m.Dialect == config.DBTypeMongoDB {
		return documentKinds[base]
	}
	if strings.HasSuffix(strings.TrimSpace(sourceType), "[]") || base == "array" || base == "user-defined" {
		return ""
	}

	// MySQL convention for booleans.
	if (base == "tinyint" || base == "bit") && args == "1" {
		return domain.KindBoolean
	}
	if kind, ok := sqlKinds[base]; ok {
		return kind
	}
	if m.Dialect == config.DBTypeSQLite {
		return sqliteAffinity(base)
	}
	return ""
}

// sqliteAffinity applies SQLite's column affinity rules to declared types
// that are not in the lookup table. NUMERIC affinity stays unsupported.
func sqliteAffinity(base string) string {
	switch {
	case base == "":
		return ""
	case strings.Contains(base, "int"):
		return domain.KindInteger
	case strings.Contains(base, "char"), strings.Contains(base, "clob"), strings.Contains(base, "text"):
		return domain.KindString
	case strings.Contains(base, "blob"):
		return domain.KindBytes
	case strings.Contains(base, "real"), strings.Contains(base, "floa"), strings.Contains(base, "doub"):
		return domain.KindNumber
	default:
		return ""
	}
}

// Map returns the target type for one column of a table.
func (m *Mapper) Map(table string, col domain.ColumnDescriptor) (domain.TargetType, error) {
	kind := m.Kind(col.SourceType)
	if kind == "" {
		return domain.TargetType{}, &core.TypeMappingError{Table: table, Column: col.Name, SourceType: col.SourceType}
	}

	goType := goTypes[kind]
	if m.Dialect == config.DBTypeMongoDB && kind == domain.KindJSON {
		goType = "any"
	}
	if col.Nullable && !strings.HasPrefix(goType, "[]") && goType != "json.RawMessage" && goType != "any" {
		goType = "*" + goType
	}

	serialization, ok := serializations[kind]
	if !ok {
		serialization = domain.SerializeNone
	}
	return domain.TargetType{Kind: kind, GoType: goType, Serialization: serialization}, nil
}

// MapTables maps every column of every table. The inputs are left untouched;
// the returned descriptors carry the target types.
func (m *Mapper) MapTables(tables []domain.TableDescriptor) ([]domain.TableDescriptor, error) {
	mapped := make([]domain.TableDescriptor, 0, len(tables))
	for _, t := range tables {
		cols := make([]domain.ColumnDescriptor, len(t.Columns))
		for i, col := range t.Columns {
			target, err := m.Map(t.Name, col)
			if err != nil {
				return nil, err
			}
			col.Target = target
			cols[i] = col
		}
		t.Columns = cols
		mapped = append(mapped, t)
	}
	return mapped, nil
}
