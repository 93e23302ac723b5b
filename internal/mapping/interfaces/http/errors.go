package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	mappingapp "datamap-cloud/internal/mapping/application"
	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

type errorBody struct {
	Error     string           `json:"error"`
	Kind      string           `json:"kind"`
	Retryable bool             `json:"retryable"`
	Session   *mappingapp.View `json:"session,omitempty"`
}

var errorStatus = []struct {
	err    error
	status int
	kind   string
}{
	{mappingapp.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{mapping.ErrNotFound, http.StatusNotFound, "not_found"},
	{schema.ErrDatasetNotFound, http.StatusNotFound, "not_found"},
	{mapping.ErrInvalidIdentifier, http.StatusBadRequest, "invalid_identifier"},
	{mapping.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{mapping.ErrUnknownRow, http.StatusBadRequest, "unknown_row"},
	{mapping.ErrUnknownField, http.StatusBadRequest, "unknown_field"},
	{mapping.ErrUnknownColumn, http.StatusBadRequest, "unknown_column"},
	{mappingapp.ErrUnknownSuggestion, http.StatusBadRequest, "unknown_suggestion"},
	{schema.ErrUnknownCategory, http.StatusBadRequest, "unknown_category"},
	{mapping.ErrNoDataset, http.StatusBadRequest, "no_dataset"},
	{mapping.ErrNoMappings, http.StatusUnprocessableEntity, "no_mappings"},
	{mapping.ErrRequestInProgress, http.StatusConflict, "in_progress"},
	{mapping.ErrNotReady, http.StatusConflict, "not_ready"},
	{mapping.ErrTransient, http.StatusServiceUnavailable, "transient"},
	{mapping.ErrPersistence, http.StatusBadGateway, "persistence"},
}

// statusFor maps an engine error to an HTTP status and a stable kind name.
func statusFor(err error) (int, string) {
	for _, entry := range errorStatus {
		if errors.Is(err, entry.err) {
			return entry.status, entry.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, err error, view *mappingapp.View) {
	status, kind := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: kind, Session: view}
	var failure *mapping.Failure
	if errors.As(err, &failure) {
		body.Retryable = failure.Retryable()
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeBody decodes an optional JSON body; an empty body leaves out unchanged.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return mapping.NewFailure(mapping.ErrBadRequest, "decode", "invalid json", err)
	}
	return nil
}

// parseDatasetID accepts a positive integer or "template".
func parseDatasetID(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "template") {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, mapping.InvalidIdentifierError("parse")
	}
	if err := mapping.ValidateDatasetID("parse", id); err != nil {
		return nil, err
	}
	return &id, nil
}

func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
