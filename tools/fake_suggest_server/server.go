package main

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

// fakeServer answers suggestion requests with heuristic scores and can
// inject latency and failures.
type fakeServer struct {
	source       mapping.SuggestionSource
	latency      time.Duration
	failRate     float64
	forcedStatus int
	start        time.Time

	mu         sync.Mutex
	rng        *rand.Rand
	byStatus   map[int]int64
	byDataset  map[int64]int64
	totalCalls int64
}

func newFakeServer(source mapping.SuggestionSource, latency time.Duration, failRate float64, forcedStatus int, rng *rand.Rand) *fakeServer {
	return &fakeServer{
		source:       source,
		latency:      latency,
		failRate:     failRate,
		forcedStatus: forcedStatus,
		start:        time.Now().UTC(),
		rng:          rng,
		byStatus:     make(map[int]int64),
		byDataset:    make(map[int64]int64),
	}
}

func (s *fakeServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/suggestions", s.handleSuggestions)
	return mux
}

func (s *fakeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	byStatus := make(map[string]int64, len(s.byStatus))
	for status, count := range s.byStatus {
		byStatus[strconv.Itoa(status)] = count
	}
	byDataset := make(map[string]int64, len(s.byDataset))
	for id, count := range s.byDataset {
		byDataset[strconv.FormatInt(id, 10)] = count
	}
	s.mu.Unlock()
	payload := map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"by_status":  byStatus,
		"by_dataset": byDataset,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *fakeServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.totalCalls, 1)
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	var req struct {
		DatasetID json.Number `json:"dataset_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, 0, http.StatusBadRequest, "request body must be JSON with a dataset_id")
		return
	}
	datasetID, err := req.DatasetID.Int64()
	if err != nil || datasetID <= 0 {
		s.respondError(w, 0, http.StatusUnprocessableEntity, "dataset_id must be a positive integer")
		return
	}
	if status := s.injectedStatus(); status != 0 {
		s.respondError(w, datasetID, status, http.StatusText(status))
		return
	}

	batch, err := s.source.RequestSuggestions(r.Context(), datasetID)
	switch {
	case errors.Is(err, mapping.ErrNotFound), errors.Is(err, schema.ErrDatasetNotFound):
		s.respondError(w, datasetID, http.StatusNotFound, "dataset not found")
		return
	case errors.Is(err, mapping.ErrBadRequest):
		s.respondError(w, datasetID, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.respondError(w, datasetID, http.StatusInternalServerError, "suggestion engine error")
		return
	}

	s.count(datasetID, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"suggestions": map[string][]mapping.Suggestion{
			"customer": nonNil(batch.Customer),
			"order":    nonNil(batch.Order),
			"product":  nonNil(batch.Product),
		},
	})
}

func (s *fakeServer) injectedStatus() int {
	if s.forcedStatus != 0 {
		return s.forcedStatus
	}
	if s.failRate <= 0 {
		return 0
	}
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()
	if roll < s.failRate {
		return http.StatusServiceUnavailable
	}
	return 0
}

func (s *fakeServer) respondError(w http.ResponseWriter, datasetID int64, status int, message string) {
	s.count(datasetID, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *fakeServer) count(datasetID int64, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byStatus[status]++
	if datasetID > 0 {
		s.byDataset[datasetID]++
	}
}

func nonNil(list []mapping.Suggestion) []mapping.Suggestion {
	if list == nil {
		return []mapping.Suggestion{}
	}
	return list
}
