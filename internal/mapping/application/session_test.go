package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"datamap-cloud/internal/eventbus"
	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	fields []schema.CanonicalField
	err    error
}

func (f fakeCatalog) CanonicalFields(context.Context) ([]schema.CanonicalField, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]schema.CanonicalField(nil), f.fields...), nil
}

type fakeColumns map[int64][]string

func (f fakeColumns) DatasetColumns(_ context.Context, datasetID int64) (schema.Columns, error) {
	header, ok := f[datasetID]
	if !ok {
		return nil, schema.ErrDatasetNotFound
	}
	return schema.ColumnsFromHeader(header), nil
}

// gatedColumns blocks header reads for gated datasets until a result is
// sent on the gate. A nil result falls through to the headers.
type gatedColumns struct {
	headers map[int64][]string
	gates   map[int64]chan error
	started chan int64
}

func (g gatedColumns) DatasetColumns(ctx context.Context, datasetID int64) (schema.Columns, error) {
	if gate, ok := g.gates[datasetID]; ok {
		g.started <- datasetID
		select {
		case err := <-gate:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	header, ok := g.headers[datasetID]
	if !ok {
		return nil, schema.ErrDatasetNotFound
	}
	return schema.ColumnsFromHeader(header), nil
}

type fakeStore struct {
	mu      sync.Mutex
	saved   map[int64]*mapping.PersistedMapping
	saveErr error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[int64]*mapping.PersistedMapping)}
}

func (f *fakeStore) Get(_ context.Context, datasetID *int64) (*mapping.PersistedMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.saved[mapping.DatasetKey(datasetID)]
	if !ok {
		return nil, nil
	}
	return pm.Clone(), nil
}

func (f *fakeStore) Save(_ context.Context, pm *mapping.PersistedMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[mapping.DatasetKey(pm.DatasetID)] = pm.Clone()
	return nil
}

func (f *fakeStore) setSaveErr(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

type fakeSource struct {
	mu      sync.Mutex
	batches map[int64]mapping.SuggestionBatch
	gates   map[int64]chan struct{}
	err     error
	calls   int
	started chan int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		batches: make(map[int64]mapping.SuggestionBatch),
		gates:   make(map[int64]chan struct{}),
		started: make(chan int64, 16),
	}
}

func (f *fakeSource) RequestSuggestions(ctx context.Context, datasetID int64) (mapping.SuggestionBatch, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[datasetID]
	batch := f.batches[datasetID]
	err := f.err
	f.mu.Unlock()

	f.started <- datasetID
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return mapping.SuggestionBatch{}, ctx.Err()
		}
	}
	return batch, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testFields() []schema.CanonicalField {
	return []schema.CanonicalField{
		{Key: "customer_name", Category: schema.CategoryCustomer},
		{Key: "email", Category: schema.CategoryCustomer},
		{Key: "order_id", Category: schema.CategoryOrder},
		{Key: "order_total", Category: schema.CategoryOrder},
		{Key: "product_name", Category: schema.CategoryProduct},
	}
}

type fixture struct {
	session *Session
	store   *fakeStore
	source  *fakeSource
	bus     *eventbus.InMemoryBus
}

func newFixture(t *testing.T, columns schema.ColumnSource) fixture {
	t.Helper()
	store := newFakeStore()
	source := newFakeSource()
	bus := eventbus.NewInMemoryBus()
	session, err := NewSession(fakeCatalog{fields: testFields()}, columns, store, source, WithEventBus(bus))
	require.NoError(t, err)
	return fixture{session: session, store: store, source: source, bus: bus}
}

func id(v int64) *int64 {
	return &v
}

var ignoreRowID = cmpopts.IgnoreFields(mapping.Row{}, "ID")

func pairsOf(rows []mapping.Row) []mapping.IdentityPair {
	out := make([]mapping.IdentityPair, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Key())
	}
	return out
}

func TestNewSession_RejectsNilCollaborators(t *testing.T) {
	_, err := NewSession(nil, fakeColumns{}, newFakeStore(), newFakeSource())
	require.Error(t, err)
	_, err = NewSession(fakeCatalog{}, fakeColumns{}, nil, newFakeSource())
	require.Error(t, err)
}

func TestSession_OpenEmptyDatasetMergesSuggestions(t *testing.T) {
	f := newFixture(t, fakeColumns{7: {"cust", "mail", "amount"}})
	f.source.batches[7] = mapping.SuggestionBatch{
		Customer: []mapping.Suggestion{
			{SourceColumn: "cust", TargetField: "customer_name", Confidence: 0.9},
			{SourceColumn: "mail", TargetField: "email", Confidence: 0.5},
		},
		Order: []mapping.Suggestion{
			{SourceColumn: "amount", TargetField: "order_total", Confidence: 0.8},
		},
	}
	var merged []SuggestionsMerged
	eventbus.SubscribeTyped(f.bus, func(_ context.Context, evt SuggestionsMerged) error {
		merged = append(merged, evt)
		return nil
	})

	view, err := f.session.Open(context.Background(), id(7))
	require.NoError(t, err)
	require.Equal(t, StateMerged, view.State)
	require.Equal(t, 1, f.source.callCount())

	want := []mapping.Row{
		mapping.NewSuggestedRow(mapping.Suggestion{SourceColumn: "cust", TargetField: "customer_name", Confidence: 0.9}),
		mapping.NewSuggestedRow(mapping.Suggestion{SourceColumn: "amount", TargetField: "order_total", Confidence: 0.8}),
	}
	if diff := cmp.Diff(want, view.Rows, ignoreRowID); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 3, view.Suggestions.Len())
	require.False(t, view.Pending)

	require.Len(t, merged, 1)
	require.Equal(t, MergeModeAuto, merged[0].Mode)
	require.Equal(t, 3, merged[0].Received)
	require.Equal(t, 2, merged[0].Added)
}

func TestSession_OpenHydratesStoredMapping(t *testing.T) {
	f := newFixture(t, fakeColumns{7: {"cust", "amount"}})
	f.store.saved[7] = &mapping.PersistedMapping{
		DatasetID: id(7),
		Category:  schema.CategoryOrder,
		Fields:    map[string]string{"order_total": "amount", "customer_name": "cust"},
	}

	view, err := f.session.Open(context.Background(), id(7))
	require.NoError(t, err)
	require.Equal(t, StateHydrated, view.State)
	require.Zero(t, f.source.callCount())
	require.Equal(t, []mapping.IdentityPair{
		{SourceColumn: "cust", TargetField: "customer_name"},
		{SourceColumn: "amount", TargetField: "order_total"},
	}, pairsOf(view.Rows))
	require.NotNil(t, view.Persisted)
}

func TestSession_OpenTemplateDoesNotSuggest(t *testing.T) {
	f := newFixture(t, fakeColumns{})

	view, err := f.session.Open(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, StateEmpty, view.State)
	require.Nil(t, view.DatasetID)
	require.Zero(t, f.source.callCount())

	_, err = f.session.RequestSuggestions(context.Background())
	require.ErrorIs(t, err, mapping.ErrNoDataset)
}

func TestSession_OpenRejectsInvalidIdentifier(t *testing.T) {
	f := newFixture(t, fakeColumns{})

	view, err := f.session.Open(context.Background(), id(0))
	require.ErrorIs(t, err, mapping.ErrInvalidIdentifier)
	require.Equal(t, StateIdle, view.State)
	require.Zero(t, f.source.callCount())
}

func TestSession_OpenUnknownDatasetKeepsState(t *testing.T) {
	f := newFixture(t, fakeColumns{})

	view, err := f.session.Open(context.Background(), id(42))
	require.ErrorIs(t, err, mapping.ErrNotFound)
	require.Equal(t, "please upload a dataset first", err.Error())
	require.Equal(t, StateIdle, view.State)
	require.Nil(t, view.DatasetID)
	require.Equal(t, mapping.ErrNotFound.Error(), view.ErrorKind)
}

func TestSession_FailedSwitchFallsBackToHydratedDataset(t *testing.T) {
	columns := gatedColumns{
		headers: map[int64][]string{5: {"cust5"}, 6: {"c6"}},
		gates:   map[int64]chan error{6: make(chan error, 1), 7: make(chan error, 1)},
		started: make(chan int64, 4),
	}
	f := newFixture(t, columns)
	f.store.saved[5] = &mapping.PersistedMapping{
		DatasetID: id(5),
		Category:  schema.CategoryCustomer,
		Fields:    map[string]string{"customer_name": "cust5"},
	}
	f.store.saved[6] = &mapping.PersistedMapping{
		DatasetID: id(6),
		Category:  schema.CategoryCustomer,
		Fields:    map[string]string{"customer_name": "c6"},
	}

	_, err := f.session.Open(context.Background(), id(5))
	require.NoError(t, err)

	open := func(datasetID int64) chan error {
		done := make(chan error, 1)
		go func() {
			_, err := f.session.Open(context.Background(), id(datasetID))
			done <- err
		}()
		select {
		case got := <-columns.started:
			require.Equal(t, datasetID, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("columns of dataset %d were not requested", datasetID)
		}
		return done
	}
	wait := func(done chan error) error {
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("open did not finish")
			return nil
		}
	}

	open6 := open(6)
	open7 := open(7)
	columns.gates[6] <- nil
	require.NoError(t, wait(open6))
	columns.gates[7] <- schema.ErrDatasetNotFound
	require.ErrorIs(t, wait(open7), mapping.ErrNotFound)

	view := f.session.View()
	require.Equal(t, int64(5), *view.DatasetID)
	require.Equal(t, StateHydrated, view.State)
	require.Equal(t, []mapping.IdentityPair{{SourceColumn: "cust5", TargetField: "customer_name"}}, pairsOf(view.Rows))
	require.Equal(t, uint64(3), f.session.epoch)

	pm, err := f.session.Submit(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, int64(5), *pm.DatasetID)
	require.Equal(t, map[string]string{"customer_name": "c6"}, f.store.saved[6].Fields)
}

func TestSession_SubmitReplacesWorkingSet(t *testing.T) {
	f := newFixture(t, fakeColumns{})
	f.store.saved[0] = &mapping.PersistedMapping{
		Category: schema.CategoryCustomer,
		Fields:   map[string]string{"customer_name": "a"},
	}
	_, err := f.session.Open(context.Background(), nil)
	require.NoError(t, err)
	_, err = f.session.AddRow("b", "customer_name")
	require.NoError(t, err)
	_, err = f.session.AddRow("", "")
	require.NoError(t, err)
	require.Len(t, f.session.View().Rows, 3)

	pm, err := f.session.Submit(context.Background(), schema.CategoryCustomer)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"customer_name": "a"}, pm.Fields)

	view := f.session.View()
	require.Equal(t, StateDone, view.State)
	want := []mapping.Row{{SourceColumn: "a", TargetField: "customer_name", Provenance: mapping.ProvenanceManual}}
	if diff := cmp.Diff(want, view.Rows, ignoreRowID); diff != "" {
		t.Fatalf("working set after submit mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_StaleSuggestionsAreDiscarded(t *testing.T) {
	f := newFixture(t, fakeColumns{5: {"cust5"}, 6: {"c6"}})
	f.store.saved[6] = &mapping.PersistedMapping{
		DatasetID: id(6),
		Category:  schema.CategoryCustomer,
		Fields:    map[string]string{"customer_name": "c6"},
	}
	f.source.batches[5] = mapping.SuggestionBatch{
		Customer: []mapping.Suggestion{{SourceColumn: "cust5", TargetField: "customer_name", Confidence: 0.95}},
	}
	gate := make(chan struct{})
	f.source.gates[5] = gate

	var stale []StaleSuggestionsDiscarded
	var staleMu sync.Mutex
	eventbus.SubscribeTyped(f.bus, func(_ context.Context, evt StaleSuggestionsDiscarded) error {
		staleMu.Lock()
		stale = append(stale, evt)
		staleMu.Unlock()
		return nil
	})

	active := NewActiveDataset()
	unbind := f.session.Bind(active)
	defer unbind()

	done := make(chan struct{})
	go func() {
		defer close(done)
		active.Set(context.Background(), id(5))
	}()

	select {
	case got := <-f.source.started:
		require.Equal(t, int64(5), got)
	case <-time.After(2 * time.Second):
		t.Fatal("suggestion request for dataset 5 was not issued")
	}

	require.True(t, active.Set(context.Background(), id(6)))
	close(gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dataset 5 open did not finish")
	}

	view := f.session.View()
	require.Equal(t, int64(6), *view.DatasetID)
	require.Equal(t, StateHydrated, view.State)
	require.Equal(t, []mapping.IdentityPair{{SourceColumn: "c6", TargetField: "customer_name"}}, pairsOf(view.Rows))
	require.Zero(t, view.Suggestions.Len())

	staleMu.Lock()
	defer staleMu.Unlock()
	require.Len(t, stale, 1)
	require.Equal(t, int64(5), stale[0].DatasetID)
	require.Equal(t, int64(6), *stale[0].ActiveDatasetID)
}

func TestSession_SecondRequestWhilePendingIsRejected(t *testing.T) {
	f := newFixture(t, fakeColumns{5: {"cust"}})
	f.store.saved[5] = &mapping.PersistedMapping{
		DatasetID: id(5),
		Category:  schema.CategoryCustomer,
		Fields:    map[string]string{"customer_name": "cust"},
	}
	_, err := f.session.Open(context.Background(), id(5))
	require.NoError(t, err)

	gate := make(chan struct{})
	f.source.gates[5] = gate
	type result struct {
		outcome SuggestionOutcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		outcome, err := f.session.RequestSuggestions(context.Background())
		first <- result{outcome: outcome, err: err}
	}()
	<-f.source.started

	require.True(t, f.session.View().Pending)
	require.Equal(t, StateSuggestionRequested, f.session.View().State)
	_, err = f.session.RequestSuggestions(context.Background())
	require.ErrorIs(t, err, mapping.ErrRequestInProgress)
	require.Equal(t, 1, f.source.callCount())

	close(gate)
	got := <-first
	require.NoError(t, got.err)
	require.False(t, got.outcome.Discarded)
	require.False(t, f.session.View().Pending)
	require.Equal(t, StateMerged, f.session.View().State)
}

func TestSession_SuggestionFailureIsClassified(t *testing.T) {
	f := newFixture(t, fakeColumns{5: {"cust"}})
	f.source.err = mapping.NewFailure(mapping.ErrBadRequest, "suggest", "dataset has no rows", nil)

	view, err := f.session.Open(context.Background(), id(5))
	require.ErrorIs(t, err, mapping.ErrBadRequest)
	require.Equal(t, "dataset has no rows", err.Error())
	require.Equal(t, StateEmpty, view.State)
	require.Equal(t, "dataset has no rows", view.Error)
}

func TestSession_InvalidSuggestionPayloadIsBadRequest(t *testing.T) {
	f := newFixture(t, fakeColumns{5: {"cust"}})
	f.source.batches[5] = mapping.SuggestionBatch{
		Order: []mapping.Suggestion{{SourceColumn: "cust", TargetField: "order_id", Confidence: 1.5}},
	}

	_, err := f.session.Open(context.Background(), id(5))
	require.ErrorIs(t, err, mapping.ErrBadRequest)
	require.Empty(t, f.session.View().Rows)
}

func TestSession_EditsBecomeManual(t *testing.T) {
	f := newFixture(t, fakeColumns{7: {"cust", "mail"}})
	f.source.batches[7] = mapping.SuggestionBatch{
		Customer: []mapping.Suggestion{{SourceColumn: "cust", TargetField: "customer_name", Confidence: 0.9}},
	}
	view, err := f.session.Open(context.Background(), id(7))
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	rowID := view.Rows[0].ID

	require.ErrorIs(t, f.session.SetTargetField(rowID, "nope"), mapping.ErrUnknownField)
	require.ErrorIs(t, f.session.SetSourceColumn(rowID, "nope"), mapping.ErrUnknownColumn)
	require.ErrorIs(t, f.session.SetSourceColumn("missing", "mail"), mapping.ErrUnknownRow)

	require.NoError(t, f.session.SetTargetField(rowID, "email"))
	view = f.session.View()
	require.Equal(t, StateEditing, view.State)
	row := view.Rows[0]
	require.Equal(t, rowID, row.ID)
	require.Equal(t, "email", row.TargetField)
	require.Equal(t, mapping.ProvenanceManual, row.Provenance)
	require.False(t, row.Confidence.Valid)

	placeholder, err := f.session.AddRow("", "")
	require.NoError(t, err)
	require.Len(t, f.session.View().Rows, 2)
	require.NoError(t, f.session.RemoveRow(placeholder.ID))
	require.ErrorIs(t, f.session.RemoveRow(placeholder.ID), mapping.ErrUnknownRow)
	require.Len(t, f.session.View().Rows, 1)
}

func TestSession_CommandsRequireHydration(t *testing.T) {
	f := newFixture(t, fakeColumns{})

	_, err := f.session.AddRow("", "")
	require.ErrorIs(t, err, mapping.ErrNotReady)
	_, err = f.session.Submit(context.Background(), "")
	require.ErrorIs(t, err, mapping.ErrNotReady)
	_, err = f.session.RequestSuggestions(context.Background())
	require.ErrorIs(t, err, mapping.ErrNotReady)
}

func TestSession_AcceptIgnoresThreshold(t *testing.T) {
	f := newFixture(t, fakeColumns{7: {"cust", "mail", "sku"}})
	f.source.batches[7] = mapping.SuggestionBatch{
		Customer: []mapping.Suggestion{
			{SourceColumn: "cust", TargetField: "customer_name", Confidence: 0.9},
			{SourceColumn: "mail", TargetField: "email", Confidence: 0.5},
		},
		Product: []mapping.Suggestion{
			{SourceColumn: "sku", TargetField: "product_name", Confidence: 0.2},
		},
	}
	_, err := f.session.Open(context.Background(), id(7))
	require.NoError(t, err)
	require.Len(t, f.session.View().Rows, 1)

	_, err = f.session.AcceptSuggestion(context.Background(), mapping.IdentityPair{SourceColumn: "cust", TargetField: "order_id"})
	require.ErrorIs(t, err, ErrUnknownSuggestion)

	added, err := f.session.AcceptSuggestion(context.Background(), mapping.IdentityPair{SourceColumn: "mail", TargetField: "email"})
	require.NoError(t, err)
	require.Len(t, added, 1)

	added, err = f.session.AcceptAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []mapping.IdentityPair{{SourceColumn: "sku", TargetField: "product_name"}}, pairsOf(added))

	require.Equal(t, []mapping.IdentityPair{
		{SourceColumn: "cust", TargetField: "customer_name"},
		{SourceColumn: "mail", TargetField: "email"},
		{SourceColumn: "sku", TargetField: "product_name"},
	}, pairsOf(f.session.View().Rows))

	added, err = f.session.AcceptAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, added)
}

func TestSession_SubmitWithoutMappingsFails(t *testing.T) {
	f := newFixture(t, fakeColumns{})
	_, err := f.session.Open(context.Background(), nil)
	require.NoError(t, err)
	_, err = f.session.AddRow("", "customer_name")
	require.NoError(t, err)

	_, err = f.session.Submit(context.Background(), "")
	require.ErrorIs(t, err, mapping.ErrNoMappings)
	view := f.session.View()
	require.Equal(t, StateEditing, view.State)
	require.Equal(t, "map at least one field before submitting", view.Error)
	require.Zero(t, f.store.saves)
}

func TestSession_SubmitFailureReturnsToEditing(t *testing.T) {
	f := newFixture(t, fakeColumns{})
	var submitted []MappingSubmitted
	eventbus.SubscribeTyped(f.bus, func(_ context.Context, evt MappingSubmitted) error {
		submitted = append(submitted, evt)
		return nil
	})
	_, err := f.session.Open(context.Background(), nil)
	require.NoError(t, err)
	_, err = f.session.AddRow("cust", "customer_name")
	require.NoError(t, err)

	f.store.setSaveErr(errors.New("connection reset"))
	_, err = f.session.Submit(context.Background(), schema.CategoryCustomer)
	require.ErrorIs(t, err, mapping.ErrPersistence)
	view := f.session.View()
	require.Equal(t, StateEditing, view.State)
	require.NotEmpty(t, view.Error)
	require.Len(t, view.Rows, 1)
	require.Empty(t, submitted)

	f.store.setSaveErr(nil)
	pm, err := f.session.Submit(context.Background(), schema.CategoryCustomer)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"customer_name": "cust"}, pm.Fields)
	require.Equal(t, schema.CategoryCustomer, pm.Category)
	require.True(t, pm.IsTemplate())

	view = f.session.View()
	require.Equal(t, StateDone, view.State)
	require.Empty(t, view.Error)
	require.NotNil(t, view.Persisted)
	require.Len(t, submitted, 1)
	require.NotEmpty(t, submitted[0].Fingerprint)
	require.Equal(t, 1, submitted[0].Fields)

	stored, err := f.store.Get(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, pm.Fields, stored.Fields)
}

func TestSession_SubmitInfersCategory(t *testing.T) {
	f := newFixture(t, fakeColumns{})
	_, err := f.session.Open(context.Background(), nil)
	require.NoError(t, err)
	_, err = f.session.AddRow("id", "order_id")
	require.NoError(t, err)
	_, err = f.session.AddRow("total", "order_total")
	require.NoError(t, err)
	_, err = f.session.AddRow("name", "customer_name")
	require.NoError(t, err)

	_, err = f.session.Submit(context.Background(), schema.Category("Invoice"))
	require.ErrorIs(t, err, schema.ErrUnknownCategory)

	pm, err := f.session.Submit(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, schema.CategoryOrder, pm.Category)
}
