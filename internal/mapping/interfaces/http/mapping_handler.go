package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"datamap-cloud/internal/audit"
	mapping "datamap-cloud/internal/mapping/domain"
	"datamap-cloud/internal/mapping/interfaces/export"
	"datamap-cloud/internal/observability/metrics"
	schema "datamap-cloud/internal/schema/domain"
)

const mappingsPrefix = "/api/v1/mappings"

// ExportRecorder records report downloads.
type ExportRecorder interface {
	RecordExport(ctx context.Context, format string, datasetID *int64)
}

// MappingStore reads persisted mappings.
type MappingStore interface {
	mapping.MappingRepository
	mapping.MappingLister
}

// MappingHandler serves persisted mappings and their report exports.
type MappingHandler struct {
	store    MappingStore
	catalog  schema.FieldCatalog
	recorder ExportRecorder
	logger   *log.Logger
}

// NewMappingHandler constructs a MappingHandler. recorder may be nil.
func NewMappingHandler(store MappingStore, catalog schema.FieldCatalog, recorder ExportRecorder, logger *log.Logger) (*MappingHandler, error) {
	if store == nil {
		return nil, errors.New("mapping handler: nil store")
	}
	if catalog == nil {
		return nil, errors.New("mapping handler: nil catalog")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MappingHandler{store: store, catalog: catalog, recorder: recorder, logger: logger}, nil
}

type mappingResponse struct {
	*mapping.PersistedMapping
	Fingerprint string `json:"fingerprint"`
}

// ServeHTTP handles GET /api/v1/mappings, /api/v1/mappings/{id|template}
// and /api/v1/mappings/{id|template}/export.{xlsx|pdf}.
func (h *MappingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, mappingsPrefix)
	switch len(parts) {
	case 0:
		h.handleList(w, r)
		return
	case 1, 2:
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	datasetID, err := parseDatasetID(parts[0])
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if len(parts) == 1 {
		h.handleGet(w, r, datasetID)
		return
	}
	format, ok := strings.CutPrefix(parts[1], "export.")
	if !ok || (format != export.FormatXLSX && format != export.FormatPDF) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.handleExport(w, r, datasetID, format)
}

func (h *MappingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Printf("mapping list error: %v", err)
		http.Error(w, "query mappings error", http.StatusInternalServerError)
		return
	}
	out := make([]mappingResponse, 0, len(list))
	for _, pm := range list {
		fingerprint, _ := pm.Fingerprint()
		out = append(out, mappingResponse{PersistedMapping: pm, Fingerprint: fingerprint})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MappingHandler) handleGet(w http.ResponseWriter, r *http.Request, datasetID *int64) {
	pm, ok := h.load(w, r, datasetID)
	if !ok {
		return
	}
	fingerprint, err := pm.Fingerprint()
	if err != nil {
		h.logger.Printf("mapping fingerprint error: dataset=%s err=%v", mapping.DatasetLabel(datasetID), err)
		http.Error(w, "fingerprint error", http.StatusInternalServerError)
		return
	}
	etag := strconv.Quote(fingerprint)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, mappingResponse{PersistedMapping: pm, Fingerprint: fingerprint})
}

func (h *MappingHandler) handleExport(w http.ResponseWriter, r *http.Request, datasetID *int64, format string) {
	start := time.Now()
	pm, ok := h.load(w, r, datasetID)
	if !ok {
		metrics.ObserveExport(format, metrics.ResultRejected, time.Since(start))
		return
	}
	fields, err := h.catalog.CanonicalFields(r.Context())
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		h.logger.Printf("mapping export catalog error: %v", err)
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	report, err := export.NewReport(pm, schema.Catalog(fields))
	if err == nil {
		var data []byte
		data, err = export.Build(format, report)
		if err == nil {
			metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(start))
			if h.recorder != nil {
				h.recorder.RecordExport(audit.WithRequest(r.Context(), r), format, datasetID)
			}
			name := "mapping-" + mapping.DatasetLabel(datasetID) + "." + format
			w.Header().Set("Content-Type", export.ContentType(format))
			w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}
	metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
	h.logger.Printf("mapping export error: dataset=%s format=%s err=%v", mapping.DatasetLabel(datasetID), format, err)
	http.Error(w, "export error", http.StatusInternalServerError)
}

func (h *MappingHandler) load(w http.ResponseWriter, r *http.Request, datasetID *int64) (*mapping.PersistedMapping, bool) {
	pm, err := h.store.Get(r.Context(), datasetID)
	if err != nil {
		h.logger.Printf("mapping get error: dataset=%s err=%v", mapping.DatasetLabel(datasetID), err)
		http.Error(w, "query mapping error", http.StatusInternalServerError)
		return nil, false
	}
	if pm == nil {
		http.Error(w, "mapping not found", http.StatusNotFound)
		return nil, false
	}
	return pm, true
}
