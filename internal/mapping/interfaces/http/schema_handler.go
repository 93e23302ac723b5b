package http

import (
	"errors"
	"log"
	"net/http"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

// SchemaHandler serves the canonical field catalog and dataset columns.
type SchemaHandler struct {
	catalog schema.FieldCatalog
	columns schema.ColumnSource
	logger  *log.Logger
}

// NewSchemaHandler constructs a SchemaHandler.
func NewSchemaHandler(catalog schema.FieldCatalog, columns schema.ColumnSource, logger *log.Logger) (*SchemaHandler, error) {
	if catalog == nil {
		return nil, errors.New("schema handler: nil catalog")
	}
	if columns == nil {
		return nil, errors.New("schema handler: nil column source")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SchemaHandler{catalog: catalog, columns: columns, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/schema/fields and
// GET /api/v1/datasets/{id}/columns.
func (h *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/api/v1/schema/fields" {
		h.handleFields(w, r)
		return
	}
	parts := splitPath(r.URL.Path, "/api/v1/datasets")
	if len(parts) == 2 && parts[1] == "columns" {
		h.handleColumns(w, r, parts[0])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *SchemaHandler) handleFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.catalog.CanonicalFields(r.Context())
	if err != nil {
		h.logger.Printf("schema fields error: %v", err)
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	if value := r.URL.Query().Get("category"); value != "" {
		category, err := schema.ParseCategory(value)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		fields = schema.Catalog(fields).ByCategory(category)
	}
	if fields == nil {
		fields = []schema.CanonicalField{}
	}
	writeJSON(w, http.StatusOK, fields)
}

func (h *SchemaHandler) handleColumns(w http.ResponseWriter, r *http.Request, rawID string) {
	datasetID, err := parseDatasetID(rawID)
	if err == nil && datasetID == nil {
		err = mapping.InvalidIdentifierError("columns")
	}
	if err != nil {
		writeError(w, err, nil)
		return
	}
	columns, err := h.columns.DatasetColumns(r.Context(), *datasetID)
	if err != nil {
		failure := mapping.Classify("columns", err, mapping.ErrTransient)
		if !errors.Is(failure, mapping.ErrNotFound) {
			h.logger.Printf("dataset columns error: dataset=%d err=%v", *datasetID, err)
		}
		writeError(w, failure, nil)
		return
	}
	if columns == nil {
		columns = schema.Columns{}
	}
	writeJSON(w, http.StatusOK, columns)
}
