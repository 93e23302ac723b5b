package mapping

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	schema "datamap-cloud/internal/schema/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		fallback error
		want     error
	}{
		{name: "dataset not found", err: fmt.Errorf("columns: %w", schema.ErrDatasetNotFound), want: ErrNotFound},
		{name: "bad request kind", err: fmt.Errorf("wrapped: %w", ErrBadRequest), want: ErrBadRequest},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTransient},
		{name: "raw error default", err: errors.New("connection reset"), want: ErrTransient},
		{name: "raw error persistence", err: errors.New("constraint"), fallback: ErrPersistence, want: ErrPersistence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify("op", tc.err, tc.fallback)
			require.True(t, errors.Is(got, tc.want), "got %v", got)
			require.True(t, errors.Is(got, tc.err), "cause must stay reachable")
			require.Equal(t, tc.want, KindOf(got))
		})
	}
}

func TestClassify_KeepsExistingFailure(t *testing.T) {
	original := NewFailure(ErrBadRequest, "suggest", "unsupported dataset format", nil)
	got := Classify("hydrate", original, nil)
	require.Same(t, original, got)
	require.Equal(t, "unsupported dataset format", got.Error())
}

func TestSuggestionBatchValidate(t *testing.T) {
	var batch SuggestionBatch
	require.NoError(t, batch.Add(schema.CategoryCustomer, Suggestion{SourceColumn: "a", TargetField: "b", Confidence: 0.5}))
	require.NoError(t, batch.Validate())
	require.ErrorIs(t, batch.Add("Vendor", Suggestion{}), schema.ErrUnknownCategory)

	require.NoError(t, batch.Add(schema.CategoryOrder, Suggestion{SourceColumn: "a", TargetField: "b", Confidence: 1.5}))
	require.Error(t, batch.Validate())

	best, ok := batch.Find(IdentityPair{SourceColumn: "a", TargetField: "b"})
	require.True(t, ok)
	require.Equal(t, 1.5, best.Confidence)
}
