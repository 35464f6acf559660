// internal/domain/models.go
package domain

import (
	"fmt"
	"strings"
)

// Target kinds produced by the type mapper.
const (
	KindString   = "string"
	KindInteger  = "integer"
	KindNumber   = "number"
	KindDecimal  = "decimal"
	KindBoolean  = "boolean"
	KindDate     = "date"
	KindDateTime = "datetime"
	KindTime     = "time"
	KindUUID     = "uuid"
	KindJSON     = "json"
	KindBytes    = "bytes"
)

// Serialization rules attached to a target type.
const (
	SerializeNone     = "none"
	SerializeDate     = "iso8601-date"
	SerializeDateTime = "iso8601-datetime"
	SerializeTime     = "iso8601-time"
	SerializeBase64   = "base64"
	SerializeDecimal  = "decimal-string"
)

// TargetType is the validation type a source column maps to.
type TargetType struct {
	Kind          string `json:"kind" yaml:"kind"`
	GoType        string `json:"go_type" yaml:"go_type"`
	Serialization string `json:"serialization" yaml:"serialization"`
}

// ColumnDescriptor describes one column of an introspected table.
type ColumnDescriptor struct {
	Name          string     `json:"name" yaml:"name"`
	SourceType    string     `json:"source_type" yaml:"source_type"`
	Nullable      bool       `json:"nullable" yaml:"nullable"`
	Default       *string    `json:"default,omitempty" yaml:"default,omitempty"`
	PrimaryKey    bool       `json:"primary_key" yaml:"primary_key"`
	AutoIncrement bool       `json:"auto_increment" yaml:"auto_increment"`
	Target        TargetType `json:"target" yaml:"target"`
}

// Required reports whether a create request has to supply the column.
func (c ColumnDescriptor) Required() bool {
	return !c.Nullable && c.Default == nil && !c.AutoIncrement
}

// ForeignKey is a single-column reference to another table.
type ForeignKey struct {
	Column           string `json:"column" yaml:"column"`
	ReferencedTable  string `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumn string `json:"referenced_column" yaml:"referenced_column"`
}

// TableDescriptor describes one table or collection.
type TableDescriptor struct {
	Name        string             `json:"name" yaml:"name"`
	Columns     []ColumnDescriptor `json:"columns" yaml:"columns"`
	PrimaryKey  []string           `json:"primary_key" yaml:"primary_key"`
	ForeignKeys []ForeignKey       `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// Column looks up a column by name, case-insensitively.
func (t TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return ColumnDescriptor{}, false
}

// HasColumn reports whether the table has a column with the given name.
func (t TableDescriptor) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// KeyColumn returns the column addressed by /{id} routes: the single-column
// primary key, or a column named "id" when there is no primary key.
func (t TableDescriptor) KeyColumn() (ColumnDescriptor, bool) {
	if len(t.PrimaryKey) == 1 {
		return t.Column(t.PrimaryKey[0])
	}
	if len(t.PrimaryKey) == 0 {
		return t.Column("id")
	}
	return ColumnDescriptor{}, false
}

// Validate checks the structural invariants of a descriptor: unique column
// names and key references that name existing columns.
func (t TableDescriptor) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table has no name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table '%s' has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		key := strings.ToLower(col.Name)
		if seen[key] {
			return fmt.Errorf("table '%s' has duplicate column '%s'", t.Name, col.Name)
		}
		seen[key] = true
	}
	for _, pk := range t.PrimaryKey {
		if !seen[strings.ToLower(pk)] {
			return fmt.Errorf("table '%s': primary key references unknown column '%s'", t.Name, pk)
		}
	}
	for _, fk := range t.ForeignKeys {
		if !seen[strings.ToLower(fk.Column)] {
			return fmt.Errorf("table '%s': foreign key references unknown column '%s'", t.Name, fk.Column)
		}
	}
	return nil
}

// RenderedFile is one generated file, relative to the output root.
type RenderedFile struct {
	Path    string
	Content []byte
}
