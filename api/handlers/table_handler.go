// api/handlers/table_handler.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apigen/api/models"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/storage"
)

// TableHandler describes the served tables.
type TableHandler struct {
	tables []domain.TableDescriptor
}

// NewTableHandler creates a TableHandler over the served descriptors.
func NewTableHandler(tables []domain.TableDescriptor) *TableHandler {
	return &TableHandler{tables: tables}
}

// ListTables handles GET /schema.
func (h *TableHandler) ListTables(c *gin.Context) {
	out := make([]models.TableSummary, 0, len(h.tables))
	for _, t := range h.tables {
		out = append(out, summarize(t, false))
	}
	c.JSON(http.StatusOK, out)
}

// GetTable handles GET /schema/:table_name.
func (h *TableHandler) GetTable(c *gin.Context) {
	name := c.Param("table_name")
	for _, t := range h.tables {
		if t.Name == name {
			c.JSON(http.StatusOK, summarize(t, true))
			return
		}
	}
	_ = c.Error(fmt.Errorf("%w: '%s'", storage.ErrTableNotFound, name))
}

func summarize(t domain.TableDescriptor, withColumns bool) models.TableSummary {
	key, _ := t.KeyColumn()
	s := models.TableSummary{
		Name: t.Name,
		Key:  key.Name,
		Path: "/api/v1/" + t.Name + "/",
	}
	if !withColumns {
		return s
	}
	for _, col := range t.Columns {
		s.Columns = append(s.Columns, models.ColumnSummary{
			Name:       col.Name,
			Type:       col.Target.Kind,
			SourceType: col.SourceType,
			Nullable:   col.Nullable,
			Required:   col.Required(),
			PrimaryKey: col.PrimaryKey,
		})
	}
	for _, fk := range t.ForeignKeys {
		s.References = append(s.References, models.Reference{
			Column: fk.Column,
			Table:  fk.ReferencedTable,
			Target: fk.ReferencedColumn,
		})
	}
	return s
}
