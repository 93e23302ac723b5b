package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"datamap-cloud/internal/audit"
	mappingapp "datamap-cloud/internal/mapping/application"
	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

const sessionsPrefix = "/api/v1/mapping/sessions"

// SessionHandler serves the mapping editor session endpoints.
type SessionHandler struct {
	registry *mappingapp.SessionRegistry
	logger   *log.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(registry *mappingapp.SessionRegistry, logger *log.Logger) (*SessionHandler, error) {
	if registry == nil {
		return nil, errors.New("mapping session handler: nil registry")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionHandler{registry: registry, logger: logger}, nil
}

type datasetRequest struct {
	DatasetID *int64 `json:"dataset_id"`
}

type rowRequest struct {
	SourceColumn *string `json:"source_column"`
	TargetField  *string `json:"target_field"`
}

type acceptRequest struct {
	SourceColumn string `json:"source_column"`
	TargetField  string `json:"target_field"`
}

type submitRequest struct {
	Category string `json:"category"`
}

type submitResponse struct {
	Mapping     *mapping.PersistedMapping `json:"mapping"`
	Fingerprint string                    `json:"fingerprint"`
	Session     mappingapp.View           `json:"session"`
}

type rowsResponse struct {
	Added   []mapping.Row   `json:"added"`
	Session mappingapp.View `json:"session"`
}

// ServeHTTP routes session requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, sessionsPrefix)
	if len(parts) == 0 {
		if r.Method == http.MethodPost {
			h.handleCreate(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	session, active, err := h.registry.Get(parts[0])
	if err != nil {
		writeError(w, err, nil)
		return
	}
	ctx := audit.WithRequest(r.Context(), r)
	rest := parts[1:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, session.View())
	case len(rest) == 0 && r.Method == http.MethodDelete:
		h.registry.Remove(session.ID())
		w.WriteHeader(http.StatusNoContent)
	case len(rest) == 1 && rest[0] == "dataset" && r.Method == http.MethodPut:
		h.handleDataset(ctx, w, r, session, active)
	case len(rest) == 1 && rest[0] == "rows" && r.Method == http.MethodPost:
		h.handleAddRow(w, r, session)
	case len(rest) == 2 && rest[0] == "rows" && r.Method == http.MethodPatch:
		h.handleEditRow(w, r, session, rest[1])
	case len(rest) == 2 && rest[0] == "rows" && r.Method == http.MethodDelete:
		if err := session.RemoveRow(rest[1]); err != nil {
			view := session.View()
			writeError(w, err, &view)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(rest) == 1 && rest[0] == "suggestions" && r.Method == http.MethodPost:
		h.handleSuggestions(ctx, w, session)
	case len(rest) == 2 && rest[0] == "suggestions" && rest[1] == "accept" && r.Method == http.MethodPost:
		h.handleAccept(ctx, w, r, session)
	case len(rest) == 2 && rest[0] == "suggestions" && rest[1] == "accept-all" && r.Method == http.MethodPost:
		added, err := session.AcceptAll(ctx)
		h.respondRows(w, session, added, err)
	case len(rest) == 1 && rest[0] == "submit" && r.Method == http.MethodPost:
		h.handleSubmit(ctx, w, r, session)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	if req.DatasetID != nil {
		if err := mapping.ValidateDatasetID("hydrate", *req.DatasetID); err != nil {
			writeError(w, err, nil)
			return
		}
	}
	session, active, err := h.registry.Create()
	if err != nil {
		h.logger.Printf("mapping session create error: %v", err)
		writeError(w, err, nil)
		return
	}
	ctx := audit.WithRequest(r.Context(), r)
	active.Set(ctx, req.DatasetID)
	view := session.View()
	if err := session.LastError(); err != nil {
		writeError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *SessionHandler) handleDataset(ctx context.Context, w http.ResponseWriter, r *http.Request, session *mappingapp.Session, active *mappingapp.ActiveDataset) {
	var req datasetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	if req.DatasetID != nil {
		if err := mapping.ValidateDatasetID("hydrate", *req.DatasetID); err != nil {
			view := session.View()
			writeError(w, err, &view)
			return
		}
	}

	var err error
	if active.Set(ctx, req.DatasetID) {
		err = session.LastError()
	} else if !sameDataset(session.View().DatasetID, req.DatasetID) {
		// A previous switch to this dataset failed and the session kept its old one.
		_, err = session.Open(ctx, req.DatasetID)
	}
	view := session.View()
	if err != nil {
		writeError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) handleAddRow(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req rowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	row, err := session.AddRow(deref(req.SourceColumn), deref(req.TargetField))
	if err != nil {
		view := session.View()
		writeError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *SessionHandler) handleEditRow(w http.ResponseWriter, r *http.Request, session *mappingapp.Session, rowID string) {
	var req rowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	if req.SourceColumn != nil {
		if err := session.SetSourceColumn(rowID, *req.SourceColumn); err != nil {
			view := session.View()
			writeError(w, err, &view)
			return
		}
	}
	if req.TargetField != nil {
		if err := session.SetTargetField(rowID, *req.TargetField); err != nil {
			view := session.View()
			writeError(w, err, &view)
			return
		}
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (h *SessionHandler) handleSuggestions(ctx context.Context, w http.ResponseWriter, session *mappingapp.Session) {
	outcome, err := session.RequestSuggestions(ctx)
	if err != nil {
		view := session.View()
		writeError(w, err, &view)
		return
	}
	status := http.StatusOK
	if outcome.Discarded {
		status = http.StatusAccepted
	}
	writeJSON(w, status, struct {
		Outcome mappingapp.SuggestionOutcome `json:"outcome"`
		Session mappingapp.View              `json:"session"`
	}{Outcome: outcome, Session: session.View()})
}

func (h *SessionHandler) handleAccept(ctx context.Context, w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req acceptRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	added, err := session.AcceptSuggestion(ctx, mapping.IdentityPair{SourceColumn: req.SourceColumn, TargetField: req.TargetField})
	h.respondRows(w, session, added, err)
}

func (h *SessionHandler) respondRows(w http.ResponseWriter, session *mappingapp.Session, added []mapping.Row, err error) {
	view := session.View()
	if err != nil {
		writeError(w, err, &view)
		return
	}
	if added == nil {
		added = []mapping.Row{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{Added: added, Session: view})
}

func (h *SessionHandler) handleSubmit(ctx context.Context, w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	var category schema.Category
	if req.Category != "" {
		parsed, err := schema.ParseCategory(req.Category)
		if err != nil {
			view := session.View()
			writeError(w, err, &view)
			return
		}
		category = parsed
	}
	persisted, err := session.Submit(ctx, category)
	view := session.View()
	if err != nil {
		writeError(w, err, &view)
		return
	}
	fingerprint, err := persisted.Fingerprint()
	if err != nil {
		h.logger.Printf("mapping fingerprint error: dataset=%s err=%v", mapping.DatasetLabel(persisted.DatasetID), err)
	}
	writeJSON(w, http.StatusOK, submitResponse{Mapping: persisted, Fingerprint: fingerprint, Session: view})
}

func sameDataset(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
