package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

// Service flavors of the generated project.
const (
	modeSQL      = "sql"
	modeORM      = "orm"
	modeDocument = "document"
)

// reservedFields would collide with generated methods.
var reservedFields = map[string]bool{"TableName": true, "Values": true, "Apply": true}

// ormTextTypes are the database package types GORM models use for columns
// the driver decodes as time.Time or []byte but the API exchanges as text.
var ormTextTypes = map[string]string{
	domain.KindDate:    "database.Date",
	domain.KindTime:    "database.Time",
	domain.KindDecimal: "database.Text",
	domain.KindUUID:    "database.Text",
}

// projectData is the template input shared by every file.
type projectData struct {
	ModulePath  string
	Title       string
	Version     string
	Dialect     string
	Mode        string
	Auth        bool
	DriverName  string
	DriverPkg   string
	DefaultPort string
	DBName      string
	SQLitePath  string
	JWTAlgo     string
	AccessMins  int
	RefreshDays int
	Requires    []string
	Tables      []tableData
}

// tableData is the per-table template input.
type tableData struct {
	Name      string
	Type      string
	Var       string
	File      string
	Fields    []fieldData
	Inputs    []inputData
	Key       fieldData
	KeyType   string
	KeyAuto   bool
	KeyExpr   string // how a key value is passed to the driver
	KeyModel  string // model expression holding the key, if not a pointer
	TableSQL  string // Go literal of the quoted table name
	KeySQL    string // Go literal of the quoted key column
	SelectSQL string // Go literal of the SELECT prefix
}

// fieldData describes one column as a Go struct field.
type fieldData struct {
	Column    string
	Name      string
	Kind      string
	ModelType string
	InputType string // request type, differs from ModelType for orm text columns
	ModelTag  string
	ScanExpr  string
	Nullable  bool
	Required  bool
	Primary   bool
	AutoInc   bool
}

// inputData is one request schema: Create, Update or Patch.
type inputData struct {
	Suffix string
	Doc    string
	Fields []inputField
}

type inputField struct {
	Column    string
	Name      string
	Type      string
	Tag       string
	Deref     bool
	ValueExpr string
	ApplyExpr string
	Clear     bool // set to NULL when the request leaves it out
}

// tableView is what per-table templates execute against.
type tableView struct {
	projectData
	tableData
}

func newProjectData(cfg *config.Config, tables []domain.TableDescriptor) (projectData, error) {
	p := projectData{
		ModulePath:  cfg.ModulePath,
		Title:       cfg.APITitle,
		Version:     cfg.APIVersion,
		Dialect:     cfg.DBType,
		Mode:        cfg.Mode,
		Auth:        cfg.EnableAuth,
		DefaultPort: strconv.Itoa(cfg.DBPort),
		DBName:      cfg.DBName,
		SQLitePath:  cfg.SQLitePath,
		JWTAlgo:     cfg.JWTAlgorithm,
		AccessMins:  int(cfg.AccessTokenExpire.Minutes()),
		RefreshDays: int(cfg.RefreshTokenExpire.Hours() / 24),
	}
	if cfg.DBType == config.DBTypeMongoDB {
		p.Mode = modeDocument
	}
	if p.Mode == "" {
		p.Mode = modeSQL
	}
	switch cfg.DBType {
	case config.DBTypeSQLite:
		p.DriverName, p.DriverPkg = "sqlite3", "github.com/mattn/go-sqlite3"
	case config.DBTypePostgres:
		p.DriverName, p.DriverPkg = "pgx", "github.com/jackc/pgx/v5/stdlib"
	case config.DBTypeMySQL:
		p.DriverName, p.DriverPkg = "mysql", "github.com/go-sql-driver/mysql"
	}
	p.Requires = requires(p)

	seenTypes := map[string]string{}
	for _, t := range tables {
		td, err := newTableData(p, t)
		if err != nil {
			return p, err
		}
		if other, dup := seenTypes[td.Type]; dup {
			return p, &core.SchemaError{Table: t.Name, Reason: fmt.Sprintf("type name '%s' collides with table '%s'", td.Type, other)}
		}
		seenTypes[td.Type] = t.Name
		p.Tables = append(p.Tables, td)
	}
	return p, nil
}

// requires lists the go.mod requirements of the generated project.
func requires(p projectData) []string {
	reqs := []string{"github.com/gin-gonic/gin v1.10.0", "github.com/joho/godotenv v1.5.1"}
	if p.Auth {
		reqs = append(reqs, "github.com/golang-jwt/jwt/v5 v5.2.2")
	}
	switch p.Mode {
	case modeDocument:
		reqs = append(reqs, "go.mongodb.org/mongo-driver v1.17.0")
	case modeORM:
		reqs = append(reqs, "gorm.io/gorm v1.31.0")
		switch p.Dialect {
		case config.DBTypeSQLite:
			reqs = append(reqs, "gorm.io/driver/sqlite v1.6.0")
		case config.DBTypePostgres:
			reqs = append(reqs, "gorm.io/driver/postgres v1.6.0")
		case config.DBTypeMySQL:
			reqs = append(reqs, "gorm.io/driver/mysql v1.6.0", "github.com/go-sql-driver/mysql v1.9.3")
		}
	default:
		switch p.Dialect {
		case config.DBTypeSQLite:
			reqs = append(reqs, "github.com/mattn/go-sqlite3 v1.14.24")
		case config.DBTypePostgres:
			reqs = append(reqs, "github.com/jackc/pgx/v5 v5.7.6")
		case config.DBTypeMySQL:
			reqs = append(reqs, "github.com/go-sql-driver/mysql v1.9.3")
		}
	}
	return reqs
}

func newTableData(p projectData, t domain.TableDescriptor) (tableData, error) {
	td := tableData{
		Name: t.Name,
		Type: TypeName(t.Name),
		File: fileBase(t.Name),
	}
	td.Var = lowerName(td.Type)

	key, ok := t.KeyColumn()
	if !ok {
		return td, &core.SchemaError{Table: t.Name, Reason: "no single-column primary key and no 'id' column"}
	}

	seen := map[string]string{}
	for _, col := range t.Columns {
		if col.Target.Kind == "" {
			return td, &core.TypeMappingError{Table: t.Name, Column: col.Name, SourceType: col.SourceType}
		}
		f := newFieldData(p, col)
		if other, dup := seen[f.Name]; dup {
			return td, &core.SchemaError{Table: t.Name, Reason: fmt.Sprintf("columns '%s' and '%s' map to the same field %s", other, col.Name, f.Name)}
		}
		seen[f.Name] = col.Name
		td.Fields = append(td.Fields, f)
		if col.Name == key.Name {
			td.Key = f
		}
	}

	td.KeyType = strings.TrimPrefix(td.Key.InputType, "*")
	if td.KeyType != "int64" && td.KeyType != "string" {
		return td, &core.SchemaError{Table: t.Name, Reason: fmt.Sprintf("key column '%s' has type %s; only integer and string keys are supported", key.Name, td.KeyType)}
	}
	td.KeyAuto = key.AutoIncrement
	td.KeyExpr = "id"
	if p.Mode == modeDocument && key.SourceType == "objectId" {
		td.KeyExpr = "database.ObjectID(id)"
	}
	if !strings.HasPrefix(td.Key.ModelType, "*") {
		td.KeyModel = "m." + td.Key.Name
		if td.Key.ModelType != td.Key.InputType {
			td.KeyModel = td.KeyType + "(m." + td.Key.Name + ")"
		}
	}

	td.TableSQL = strconv.Quote(quoteIdent(p.Dialect, t.Name))
	td.KeySQL = strconv.Quote(quoteIdent(p.Dialect, key.Name))
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = quoteIdent(p.Dialect, col.Name)
	}
	td.SelectSQL = strconv.Quote("SELECT " + strings.Join(cols, ", ") + " FROM " + quoteIdent(p.Dialect, t.Name))

	td.Inputs = newInputs(p, td)
	return td, nil
}

func newFieldData(p projectData, col domain.ColumnDescriptor) fieldData {
	f := fieldData{
		Column:    col.Name,
		Name:      GoName(col.Name),
		Kind:      col.Target.Kind,
		ModelType: col.Target.GoType,
		InputType: col.Target.GoType,
		Nullable:  col.Nullable,
		Required:  col.Required(),
		Primary:   col.PrimaryKey,
		AutoInc:   col.AutoIncrement,
	}
	if reservedFields[f.Name] {
		f.Name += "Field"
	}

	switch p.Mode {
	case modeORM:
		gormTag := "column:" + col.Name
		if col.PrimaryKey {
			gormTag += ";primaryKey"
		}
		if col.AutoIncrement {
			gormTag += ";autoIncrement"
		}
		// Column defaults own timestamps; GORM would fill CreatedAt and
		// UpdatedAt itself.
		if f.Name == "CreatedAt" || f.Name == "UpdatedAt" {
			gormTag += ";autoCreateTime:false;autoUpdateTime:false"
		}
		if textType := ormTextTypes[col.Target.Kind]; textType != "" {
			f.ModelType = textType
			if col.Nullable {
				f.ModelType = "*" + textType
			}
		}
		f.ModelTag = fmt.Sprintf(`json:"%s" gorm:"%s"`, col.Name, gormTag)
	case modeDocument:
		f.ModelTag = fmt.Sprintf(`json:"%s" bson:"%s"`, col.Name, col.Name)
	default:
		f.ModelTag = fmt.Sprintf(`json:"%s" db:"%s"`, col.Name, col.Name)
	}

	f.ScanExpr = "&m." + f.Name
	switch col.Target.Kind {
	case domain.KindDate:
		f.ScanExpr = fmt.Sprintf(`database.Text(&m.%s, "2006-01-02")`, f.Name)
	case domain.KindTime:
		f.ScanExpr = fmt.Sprintf(`database.Text(&m.%s, "15:04:05")`, f.Name)
	case domain.KindDecimal, domain.KindUUID:
		f.ScanExpr = fmt.Sprintf(`database.Text(&m.%s, "")`, f.Name)
	case domain.KindJSON:
		if p.Mode == modeSQL {
			f.ScanExpr = fmt.Sprintf(`database.JSON(&m.%s)`, f.Name)
		}
	}
	return f
}

// newInputs builds the Create, Update and Patch request schemas. Generated
// keys are never accepted; Update and Patch never touch key columns. Update
// replaces the row, so nullable columns it omits become NULL.
func newInputs(p projectData, td tableData) []inputData {
	create := inputData{Suffix: "Create", Doc: "is the request body for creating"}
	update := inputData{Suffix: "Update", Doc: "is the request body for replacing"}
	patch := inputData{Suffix: "Patch", Doc: "is the request body for partially updating"}

	for _, f := range td.Fields {
		if f.AutoInc {
			continue
		}
		in := inputField{Column: f.Column, Name: f.Name, Type: f.InputType}
		switch {
		case isReferenceType(f.InputType):
			in.ValueExpr = "in." + f.Name
			if f.Kind == domain.KindJSON && p.Mode != modeDocument {
				in.ValueExpr = "string(in." + f.Name + ")"
			}
		case strings.HasPrefix(f.InputType, "*"):
			in.ValueExpr = "*in." + f.Name
		default:
			in.Type = "*" + f.InputType
			in.Deref = true
			in.ValueExpr = "*in." + f.Name
		}
		in.ApplyExpr = "in." + f.Name
		if in.Deref {
			in.ApplyExpr = "*in." + f.Name
		}
		if f.ModelType != f.InputType {
			in.ApplyExpr = fmt.Sprintf("(%s)(%s)", f.ModelType, in.ApplyExpr)
		}

		in.Tag = inputTag(f, f.Required)
		create.Fields = append(create.Fields, in)

		if f.Column == td.Key.Column || f.Primary {
			continue
		}
		uin := in
		uin.Clear = f.Nullable
		update.Fields = append(update.Fields, uin)
		pin := in
		pin.Tag = inputTag(f, false)
		patch.Fields = append(patch.Fields, pin)
	}
	return []inputData{create, update, patch}
}

func isReferenceType(goType string) bool {
	return strings.HasPrefix(goType, "[]") || goType == "json.RawMessage" || goType == "any"
}

// inputTag returns the struct tag of a request field; binding rules are
// validator/v10 tags as understood by gin.
func inputTag(f fieldData, required bool) string {
	var rules []string
	if required {
		rules = append(rules, "required")
	}
	format := ""
	switch f.Kind {
	case domain.KindDate:
		format = "datetime=2006-01-02"
	case domain.KindTime:
		format = "datetime=15:04:05"
	case domain.KindUUID:
		format = "uuid"
	}
	if format != "" {
		if !required {
			rules = append(rules, "omitempty")
		}
		rules = append(rules, format)
	}
	if len(rules) == 0 {
		return fmt.Sprintf(`json:"%s"`, f.Column)
	}
	return fmt.Sprintf(`json:"%s" binding:"%s"`, f.Column, strings.Join(rules, ","))
}

// quoteIdent quotes a validated identifier for the target dialect.
func quoteIdent(dialect, name string) string {
	if dialect == config.DBTypeMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
