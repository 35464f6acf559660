// api/handlers/record_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apigen/api/models"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/logger"
	"github.com/Annany2002/nebula-apigen/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// RecordHandler serves the CRUD endpoints of a single table. Every
// statement it runs is derived from the table's descriptor.
type RecordHandler struct {
	store *storage.RecordStore
	table domain.TableDescriptor
}

// NewRecordHandler creates a handler for table backed by store.
func NewRecordHandler(store *storage.RecordStore, table domain.TableDescriptor) *RecordHandler {
	return &RecordHandler{store: store, table: table}
}

// Register mounts the table's endpoints on rg under /{table}.
func (h *RecordHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/" + h.table.Name)
	g.GET("/", h.ListRecords)
	g.GET("/count/total", h.CountRecords)
	g.GET("/:id", h.GetRecord)
	g.POST("/", h.CreateRecord)
	g.PUT("/:id", h.UpdateRecord)
	g.PATCH("/:id", h.PatchRecord)
	g.DELETE("/:id", h.DeleteRecord)
}

func (h *RecordHandler) listOptions(c *gin.Context) (*core.ListQueryOptions, bool) {
	opts, err := core.ParseListQueryOptions(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", core.ErrBadRequest, err))
		return nil, false
	}
	return opts, true
}

// ListRecords handles GET /{table}/ with pagination, sorting and equality filters.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	opts, ok := h.listOptions(c)
	if !ok {
		return
	}
	records, err := h.store.List(c.Request.Context(), h.table, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// CountRecords handles GET /{table}/count/total.
func (h *RecordHandler) CountRecords(c *gin.Context) {
	opts, ok := h.listOptions(c)
	if !ok {
		return
	}
	n, err := h.store.Count(c.Request.Context(), h.table, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.CountResponse{Total: n})
}

// GetRecord handles GET /{table}/:id.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), h.table, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CreateRecord handles POST /{table}/ and answers with the stored row.
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	body, ok := decodeBody(c)
	if !ok {
		return
	}
	rec, err := h.store.Insert(c.Request.Context(), h.table, body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Debugf("Handler: Created record in '%s'", h.table.Name)
	c.JSON(http.StatusCreated, rec)
}

// UpdateRecord handles PUT /{table}/:id.
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	body, ok := decodeBody(c)
	if !ok {
		return
	}
	rec, err := h.store.Update(c.Request.Context(), h.table, c.Param("id"), body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// PatchRecord handles PATCH /{table}/:id.
func (h *RecordHandler) PatchRecord(c *gin.Context) {
	body, ok := decodeBody(c)
	if !ok {
		return
	}
	rec, err := h.store.Patch(c.Request.Context(), h.table, c.Param("id"), body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteRecord handles DELETE /{table}/:id.
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), h.table, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Debugf("Handler: Deleted record '%s' from '%s'", c.Param("id"), h.table.Name)
	c.Status(http.StatusNoContent)
}

// decodeBody reads a JSON object, keeping numbers as json.Number so that
// large integers survive.
func decodeBody(c *gin.Context) (storage.Record, bool) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var body storage.Record
	if err := dec.Decode(&body); err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid JSON request body: %v", core.ErrBadRequest, err))
		return nil, false
	}
	if body == nil {
		_ = c.Error(fmt.Errorf("%w: request body must be a JSON object", core.ErrBadRequest))
		return nil, false
	}
	return body, true
}
