// Package introspect reads table and collection structure from a live data
// source and turns it into domain.TableDescriptor values. It only ever issues
// catalog queries; no user data is modified.
package introspect

import (
	"context"
	"fmt"
	"sort"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/logger"
	"github.com/Annany2002/nebula-apigen/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// Introspector discovers the tables of one data source.
type Introspector interface {
	// Introspect returns every user table, sorted by name.
	Introspect(ctx context.Context) ([]domain.TableDescriptor, error)
	// Dialect returns the canonical source type (config.DBType*).
	Dialect() string
	Close() error
}

// New connects to the source described by cfg and returns the matching
// introspector. The connection attempt is bounded by cfg.ConnectTimeout.
func New(ctx context.Context, cfg *config.Config) (Introspector, error) {
	switch cfg.DBType {
	case config.DBTypeSQLite, config.DBTypePostgres, config.DBTypeMySQL:
		db, err := storage.Connect(ctx, cfg, storage.ConnectOptions{ReadOnly: true})
		if err != nil {
			return nil, err
		}
		if cfg.DBType == config.DBTypeSQLite {
			return NewSQLite(db), nil
		}
		return NewCatalog(db, cfg.DBType, catalogSchema(cfg)), nil

	case config.DBTypeMongoDB:
		return OpenMongo(ctx, cfg)

	default:
		return nil, &core.SchemaError{Reason: fmt.Sprintf("unsupported data source '%s'", cfg.DBType)}
	}
}

// catalogSchema is the information_schema.table_schema value to read from.
func catalogSchema(cfg *config.Config) string {
	if cfg.DBType == config.DBTypeMySQL {
		return cfg.DBName
	}
	if cfg.DBSchema != "" {
		return cfg.DBSchema
	}
	return "public"
}

// finalize enforces the invariants every introspector shares: at least one
// table, valid identifiers, consistent keys and an addressable key column.
func finalize(tables []domain.TableDescriptor) ([]domain.TableDescriptor, error) {
	if len(tables) == 0 {
		return nil, &core.SchemaError{Reason: "no tables found in data source"}
	}

	for _, t := range tables {
		if !core.IsValidIdentifier(t.Name) {
			return nil, &core.SchemaError{Table: t.Name, Reason: "table name is not a valid identifier"}
		}
		for _, col := range t.Columns {
			if !core.IsValidIdentifier(col.Name) {
				return nil, &core.SchemaError{Table: t.Name, Reason: fmt.Sprintf("column name '%s' is not a valid identifier", col.Name)}
			}
		}
		if err := t.Validate(); err != nil {
			return nil, &core.SchemaError{Table: t.Name, Reason: err.Error()}
		}
		if _, ok := t.KeyColumn(); !ok {
			return nil, &core.SchemaError{Table: t.Name, Reason: "no single-column primary key and no 'id' column"}
		}
	}

	sort.SliceStable(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}
