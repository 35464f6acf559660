// api/models/database_models.go
package models

// --- Schema Response Structs ---

// ColumnSummary describes one column of a served table.
type ColumnSummary struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // target kind, e.g. "integer", "datetime"
	SourceType string `json:"source_type"`
	Nullable   bool   `json:"nullable"`
	Required   bool   `json:"required"`
	PrimaryKey bool   `json:"primary_key"`
}

// Reference is a foreign key of a served table.
type Reference struct {
	Column string `json:"column"`
	Table  string `json:"table"`
	Target string `json:"target"`
}

// TableSummary is returned by the schema endpoints. Columns and references
// are only filled in for a single table.
type TableSummary struct {
	Name       string          `json:"name"`
	Key        string          `json:"key"`
	Path       string          `json:"path"`
	Columns    []ColumnSummary `json:"columns,omitempty"`
	References []Reference     `json:"references,omitempty"`
}
