package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"datamap-cloud/internal/eventbus"
	mapping "datamap-cloud/internal/mapping/domain"
	"datamap-cloud/internal/observability/metrics"
	schema "datamap-cloud/internal/schema/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownSuggestion is returned when accepting a pair that was not offered.
var ErrUnknownSuggestion = errors.New("mapping session: suggestion not offered")

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID   string                    `json:"session_id"`
	State       State                     `json:"state"`
	DatasetID   *int64                    `json:"dataset_id"`
	Columns     schema.Columns            `json:"columns"`
	Rows        []mapping.Row             `json:"rows"`
	Suggestions mapping.SuggestionBatch   `json:"suggestions"`
	Pending     bool                      `json:"pending"`
	Persisted   *mapping.PersistedMapping `json:"persisted,omitempty"`
	Error       string                    `json:"error,omitempty"`
	ErrorKind   string                    `json:"error_kind,omitempty"`
}

// SuggestionOutcome describes the result of one suggestion round trip.
type SuggestionOutcome struct {
	DatasetID int64         `json:"dataset_id"`
	Received  int           `json:"received"`
	Added     []mapping.Row `json:"added"`
	Discarded bool          `json:"discarded"`
}

// Session drives one mapping editor through hydration, suggestion merges,
// edits and submission. The lock is never held while a collaborator is
// called; an epoch bumped on every dataset change discards late results.
type Session struct {
	id        string
	catalog   schema.FieldCatalog
	columns   schema.ColumnSource
	store     mapping.MappingRepository
	source    mapping.SuggestionSource
	threshold float64
	bus       eventbus.EventBus
	logger    *log.Logger
	clock     Clock
	guard     requestGuard

	mu          sync.Mutex
	state       State
	settled     State
	datasetID   *int64
	hydratedID  *int64
	epoch       uint64
	fields      schema.Catalog
	cols        schema.Columns
	set         mapping.Set
	suggestions mapping.SuggestionBatch
	persisted   *mapping.PersistedMapping
	lastErr     error
}

// SessionOption customizes a session.
type SessionOption func(*Session)

// WithThreshold overrides the automatic merge threshold.
func WithThreshold(threshold float64) SessionOption {
	return func(s *Session) {
		if threshold >= 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// WithEventBus assigns the bus lifecycle events are published on.
func WithEventBus(bus eventbus.EventBus) SessionOption {
	return func(s *Session) {
		s.bus = bus
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSessionID pins the session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession constructs an idle session.
func NewSession(catalog schema.FieldCatalog, columns schema.ColumnSource, store mapping.MappingRepository, source mapping.SuggestionSource, opts ...SessionOption) (*Session, error) {
	if catalog == nil {
		return nil, errors.New("mapping session: nil field catalog")
	}
	if columns == nil {
		return nil, errors.New("mapping session: nil column source")
	}
	if store == nil {
		return nil, errors.New("mapping session: nil mapping store")
	}
	if source == nil {
		return nil, errors.New("mapping session: nil suggestion source")
	}
	s := &Session{
		id:        uuid.NewString(),
		catalog:   catalog,
		columns:   columns,
		store:     store,
		source:    source,
		threshold: mapping.DefaultThreshold,
		clock:     systemClock{},
		state:     StateIdle,
		settled:   StateIdle,
		set:       mapping.NewSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	view := View{
		SessionID:   s.id,
		State:       s.state,
		DatasetID:   copyID(s.datasetID),
		Columns:     append(schema.Columns(nil), s.cols...),
		Rows:        s.set.Rows(),
		Suggestions: s.suggestions,
	}
	if s.datasetID != nil {
		view.Pending = s.guard.Busy(*s.datasetID)
	}
	if s.persisted != nil {
		view.Persisted = s.persisted.Clone()
	}
	if s.lastErr != nil {
		view.Error = s.lastErr.Error()
		if kind := mapping.KindOf(s.lastErr); kind != nil {
			view.ErrorKind = kind.Error()
		}
	}
	return view
}

// LastError returns the failure of the most recent operation, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Drain waits for in-flight suggestion requests to finish or ctx to end.
func (s *Session) Drain(ctx context.Context) {
	s.guard.WaitAll(ctx)
}

// Catalog returns the canonical fields loaded at hydration.
func (s *Session) Catalog() schema.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(schema.Catalog(nil), s.fields...)
}

// Bind opens the session whenever the active dataset changes. The returned
// function stops following it.
func (s *Session) Bind(active *ActiveDataset) func() {
	if active == nil {
		return func() {}
	}
	return active.Subscribe(func(ctx context.Context, datasetID *int64) {
		if _, err := s.Open(ctx, datasetID); err != nil {
			s.logf("mapping session %s: open dataset %s error: %v", s.id, mapping.DatasetLabel(datasetID), err)
		}
	})
}

type hydration struct {
	catalog  schema.Catalog
	columns  schema.Columns
	existing *mapping.PersistedMapping
}

// Open hydrates the session for datasetID, nil meaning the template. When
// nothing is stored for a real dataset, suggestions are requested and
// merged right away.
func (s *Session) Open(ctx context.Context, datasetID *int64) (View, error) {
	if datasetID != nil {
		if err := mapping.ValidateDatasetID("hydrate", *datasetID); err != nil {
			return s.View(), err
		}
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.datasetID = copyID(datasetID)
	s.transitionLocked(StateHydrating)
	s.mu.Unlock()

	start := s.clock.Now()
	loaded, err := s.hydrate(ctx, datasetID)
	elapsed := s.clock.Now().Sub(start)

	s.mu.Lock()
	if s.epoch != epoch {
		view := s.viewLocked()
		s.mu.Unlock()
		metrics.ObserveHydration(metrics.ResultDiscarded, elapsed)
		return view, nil
	}
	if err != nil {
		// The epoch is never rolled back; fall back to the last hydrated dataset.
		s.datasetID = copyID(s.hydratedID)
		s.state = s.settled
		s.lastErr = err
		view := s.viewLocked()
		s.mu.Unlock()
		metrics.ObserveHydration(metrics.ResultError, elapsed)
		s.logf("mapping session %s: hydrate dataset %s error: %v", s.id, mapping.DatasetLabel(datasetID), err)
		return view, err
	}

	s.hydratedID = copyID(datasetID)
	s.fields = loaded.catalog
	s.cols = loaded.columns
	s.suggestions = mapping.SuggestionBatch{}
	s.persisted = loaded.existing
	s.lastErr = nil
	if loaded.existing != nil {
		s.set = loaded.existing.ToSet(loaded.columns)
	} else {
		s.set = mapping.NewSet()
	}
	if s.set.Len() > 0 {
		s.transitionLocked(StateHydrated)
	} else {
		s.transitionLocked(StateEmpty)
	}
	auto := s.set.Len() == 0 && datasetID != nil
	s.mu.Unlock()
	metrics.ObserveHydration(metrics.ResultSuccess, elapsed)

	if auto {
		_, err := s.requestSuggestions(ctx, MergeModeAuto)
		if errors.Is(err, mapping.ErrRequestInProgress) {
			s.logf("mapping session %s: auto suggestion for dataset %d skipped: already in progress", s.id, *datasetID)
			err = nil
		}
		if err != nil {
			return s.View(), err
		}
	}
	return s.View(), nil
}

func (s *Session) hydrate(ctx context.Context, datasetID *int64) (hydration, error) {
	var out hydration
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fields, err := s.catalog.CanonicalFields(gctx)
		if err != nil {
			return err
		}
		catalog, err := schema.NewCatalog(fields)
		if err != nil {
			return err
		}
		out.catalog = catalog
		return nil
	})
	if datasetID != nil {
		id := *datasetID
		g.Go(func() error {
			columns, err := s.columns.DatasetColumns(gctx, id)
			if err != nil {
				return err
			}
			out.columns = columns
			return nil
		})
	}
	g.Go(func() error {
		existing, err := s.store.Get(gctx, datasetID)
		if err != nil {
			return err
		}
		out.existing = existing
		return nil
	})
	if err := g.Wait(); err != nil {
		return hydration{}, mapping.Classify("hydrate", err, mapping.ErrTransient)
	}
	return out, nil
}

// RequestSuggestions fetches suggestions for the active dataset and merges
// those at or above the threshold.
func (s *Session) RequestSuggestions(ctx context.Context) (SuggestionOutcome, error) {
	return s.requestSuggestions(ctx, MergeModeRequested)
}

func (s *Session) requestSuggestions(ctx context.Context, mode string) (SuggestionOutcome, error) {
	s.mu.Lock()
	if !s.state.editable() {
		s.mu.Unlock()
		return SuggestionOutcome{}, mapping.ErrNotReady
	}
	if s.datasetID == nil {
		s.mu.Unlock()
		return SuggestionOutcome{}, mapping.ErrNoDataset
	}
	datasetID := *s.datasetID
	epoch := s.epoch
	if !s.guard.TryLock(datasetID) {
		s.mu.Unlock()
		return SuggestionOutcome{DatasetID: datasetID}, mapping.ErrRequestInProgress
	}
	defer s.guard.Unlock(datasetID)
	prevState := s.state
	s.transitionLocked(StateSuggestionRequested)
	s.mu.Unlock()

	start := s.clock.Now()
	batch, err := s.source.RequestSuggestions(ctx, datasetID)
	if err == nil {
		if verr := batch.Validate(); verr != nil {
			err = mapping.NewFailure(mapping.ErrBadRequest, "suggest", "suggestion service returned an invalid payload", verr)
		}
	}
	elapsed := s.clock.Now().Sub(start)
	outcome := SuggestionOutcome{DatasetID: datasetID}

	s.mu.Lock()
	if s.epoch != epoch {
		active := copyID(s.datasetID)
		s.mu.Unlock()
		metrics.ObserveSuggestionRequest(metrics.ResultDiscarded, elapsed)
		metrics.IncStaleResponse()
		s.logf("mapping session %s: discarded suggestions for dataset %d, active dataset is %s", s.id, datasetID, mapping.DatasetLabel(active))
		s.publish(ctx, StaleSuggestionsDiscarded{
			SessionID:       s.id,
			DatasetID:       datasetID,
			ActiveDatasetID: active,
			OccurredAt:      s.clock.Now().UTC(),
		})
		outcome.Discarded = true
		return outcome, nil
	}
	if err != nil {
		failure := mapping.Classify("suggest", err, mapping.ErrTransient)
		if s.state == StateSuggestionRequested {
			s.transitionLocked(prevState)
		}
		s.lastErr = failure
		s.mu.Unlock()
		metrics.ObserveSuggestionRequest(metrics.ResultError, elapsed)
		s.logf("mapping session %s: suggestions for dataset %d error: %v", s.id, datasetID, err)
		return outcome, failure
	}

	s.suggestions = batch
	merged, added := mapping.Merge(s.set, batch.All(), s.cols, mapping.MergeOptions{Threshold: s.threshold})
	s.set = merged
	s.lastErr = nil
	s.transitionLocked(StateMerged)
	s.mu.Unlock()

	metrics.ObserveSuggestionRequest(metrics.ResultSuccess, elapsed)
	metrics.AddMergedRows(mode, len(added))
	outcome.Received = batch.Len()
	outcome.Added = added
	s.publish(ctx, SuggestionsMerged{
		SessionID:  s.id,
		DatasetID:  datasetID,
		Mode:       mode,
		Received:   outcome.Received,
		Added:      len(added),
		OccurredAt: s.clock.Now().UTC(),
	})
	return outcome, nil
}

// AcceptSuggestion merges one offered suggestion regardless of its score.
func (s *Session) AcceptSuggestion(ctx context.Context, pair mapping.IdentityPair) ([]mapping.Row, error) {
	s.mu.Lock()
	if !s.state.editable() {
		s.mu.Unlock()
		return nil, mapping.ErrNotReady
	}
	suggestion, ok := s.suggestions.Find(pair)
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownSuggestion
	}
	added := s.mergeUnfilteredLocked([]mapping.Suggestion{suggestion})
	event := s.mergedEventLocked(MergeModeAccept, 1, len(added))
	s.mu.Unlock()

	metrics.AddMergedRows(MergeModeAccept, len(added))
	s.publish(ctx, event)
	return added, nil
}

// AcceptAll merges every offered suggestion regardless of its score.
func (s *Session) AcceptAll(ctx context.Context) ([]mapping.Row, error) {
	s.mu.Lock()
	if !s.state.editable() {
		s.mu.Unlock()
		return nil, mapping.ErrNotReady
	}
	all := s.suggestions.All()
	if len(all) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	added := s.mergeUnfilteredLocked(all)
	event := s.mergedEventLocked(MergeModeAcceptAll, len(all), len(added))
	s.mu.Unlock()

	metrics.AddMergedRows(MergeModeAcceptAll, len(added))
	s.publish(ctx, event)
	return added, nil
}

func (s *Session) mergeUnfilteredLocked(suggestions []mapping.Suggestion) []mapping.Row {
	merged, added := mapping.Merge(s.set, suggestions, s.cols, mapping.MergeOptions{Unfiltered: true})
	s.set = merged
	s.transitionLocked(StateEditing)
	return added
}

func (s *Session) mergedEventLocked(mode string, received, added int) SuggestionsMerged {
	return SuggestionsMerged{
		SessionID:  s.id,
		DatasetID:  mapping.DatasetKey(s.datasetID),
		Mode:       mode,
		Received:   received,
		Added:      added,
		OccurredAt: s.clock.Now().UTC(),
	}
}

// AddRow appends a manual row. Both names may be empty for a placeholder.
func (s *Session) AddRow(sourceColumn, targetField string) (mapping.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.editable() {
		return mapping.Row{}, mapping.ErrNotReady
	}
	if err := s.checkColumnLocked(sourceColumn); err != nil {
		return mapping.Row{}, err
	}
	if err := s.checkFieldLocked(targetField); err != nil {
		return mapping.Row{}, err
	}
	row := mapping.NewManualRow(sourceColumn, targetField)
	s.set = mapping.Canonicalize(s.set.Append(row), s.cols)
	s.transitionLocked(StateEditing)
	return row, nil
}

// SetSourceColumn changes the source column of a row. An edited row becomes
// manual and loses its confidence.
func (s *Session) SetSourceColumn(rowID, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkColumnLocked(column); err != nil {
		return err
	}
	return s.editLocked(rowID, func(row *mapping.Row) {
		row.SourceColumn = column
	})
}

// SetTargetField changes the target field of a row.
func (s *Session) SetTargetField(rowID, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFieldLocked(field); err != nil {
		return err
	}
	return s.editLocked(rowID, func(row *mapping.Row) {
		row.TargetField = field
	})
}

func (s *Session) editLocked(rowID string, apply func(row *mapping.Row)) error {
	if !s.state.editable() {
		return mapping.ErrNotReady
	}
	row, ok := s.set.Row(rowID)
	if !ok {
		return mapping.ErrUnknownRow
	}
	apply(&row)
	row.Provenance = mapping.ProvenanceManual
	row.Confidence = mapping.Confidence{}
	next, err := s.set.Replace(row)
	if err != nil {
		return err
	}
	s.set = mapping.Canonicalize(next, s.cols)
	s.transitionLocked(StateEditing)
	return nil
}

// RemoveRow deletes a row.
func (s *Session) RemoveRow(rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.editable() {
		return mapping.ErrNotReady
	}
	next, err := s.set.Remove(rowID)
	if err != nil {
		return err
	}
	s.set = next
	s.transitionLocked(StateEditing)
	return nil
}

func (s *Session) checkColumnLocked(column string) error {
	if column == "" || len(s.cols) == 0 {
		return nil
	}
	if _, ok := s.cols.PositionOf(column); !ok {
		return mapping.ErrUnknownColumn
	}
	return nil
}

func (s *Session) checkFieldLocked(field string) error {
	if field == "" || len(s.fields) == 0 {
		return nil
	}
	if _, ok := s.fields.Lookup(field); !ok {
		return mapping.ErrUnknownField
	}
	return nil
}

// Submit projects the working set and persists it. An empty category is
// inferred from the mapped fields. On failure the session returns to
// editing with the error attached.
func (s *Session) Submit(ctx context.Context, category schema.Category) (*mapping.PersistedMapping, error) {
	s.mu.Lock()
	if !s.state.editable() {
		s.mu.Unlock()
		return nil, mapping.ErrNotReady
	}
	if category != "" && !category.Valid() {
		s.mu.Unlock()
		return nil, schema.ErrUnknownCategory
	}
	s.transitionLocked(StateSubmitting)
	pm, err := mapping.BuildPersisted(s.set, s.datasetID, category, s.fields)
	if err != nil {
		s.failSubmitLocked(err)
		s.mu.Unlock()
		metrics.ObserveSubmission(metrics.ResultRejected, 0)
		return nil, err
	}
	epoch := s.epoch
	s.mu.Unlock()

	start := s.clock.Now()
	pm.UpdatedAt = start.UTC()
	err = s.store.Save(ctx, pm)
	elapsed := s.clock.Now().Sub(start)

	s.mu.Lock()
	if err != nil {
		var failure *mapping.Failure
		if !errors.As(err, &failure) {
			failure = mapping.NewFailure(mapping.ErrPersistence, "submit", "the mapping could not be saved, please retry", err)
		}
		if s.epoch == epoch {
			s.failSubmitLocked(failure)
		}
		s.mu.Unlock()
		metrics.ObserveSubmission(metrics.ResultError, elapsed)
		s.logf("mapping session %s: save mapping for dataset %s error: %v", s.id, mapping.DatasetLabel(pm.DatasetID), err)
		return nil, failure
	}
	if s.epoch == epoch {
		s.persisted = pm.Clone()
		s.set = pm.ToSet(s.cols)
		s.lastErr = nil
		s.transitionLocked(StateDone)
	}
	s.mu.Unlock()
	metrics.ObserveSubmission(metrics.ResultSuccess, elapsed)

	fingerprint, err := pm.Fingerprint()
	if err != nil {
		s.logf("mapping session %s: fingerprint error: %v", s.id, err)
	}
	s.publish(ctx, MappingSubmitted{
		SessionID:   s.id,
		DatasetID:   copyID(pm.DatasetID),
		Category:    pm.Category,
		Fields:      len(pm.Fields),
		Fingerprint: fingerprint,
		OccurredAt:  s.clock.Now().UTC(),
	})
	return pm, nil
}

func (s *Session) failSubmitLocked(err error) {
	s.lastErr = err
	s.transitionLocked(StateFailed)
	s.transitionLocked(StateEditing)
}

func (s *Session) transitionLocked(next State) {
	s.state = next
	switch next {
	case StateHydrating, StateSuggestionRequested, StateSubmitting, StateFailed:
	default:
		s.settled = next
	}
}

func (s *Session) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logf("mapping session %s: publish %s error: %v", s.id, eventbus.EventType(event), err)
	}
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
