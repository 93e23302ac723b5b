package mapping

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	schema "datamap-cloud/internal/schema/domain"
)

func testCatalog(t *testing.T) schema.Catalog {
	t.Helper()
	catalog, err := schema.NewCatalog([]schema.CanonicalField{
		{Key: "customer_name", Category: schema.CategoryCustomer},
		{Key: "total_spent", Category: schema.CategoryCustomer, Type: "number"},
		{Key: "order_date", Category: schema.CategoryOrder, Type: "date"},
		{Key: "order_total", Category: schema.CategoryOrder, Type: "number"},
		{Key: "product_name", Category: schema.CategoryProduct},
	})
	require.NoError(t, err)
	return catalog
}

func TestBuildPersisted_SingleRow(t *testing.T) {
	set := NewSet(NewManualRow("cust", "customer_name"))
	got, err := BuildPersisted(set, nil, schema.CategoryCustomer, testCatalog(t))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"customer_name": "cust"}, got.Fields)
	require.Equal(t, schema.CategoryCustomer, got.Category)
	require.True(t, got.IsTemplate())
}

func TestProject_EmptyFailsWithNoMappings(t *testing.T) {
	for name, set := range map[string]Set{
		"empty":        NewSet(),
		"placeholders": NewSet(NewManualRow("cust", ""), NewManualRow("", "customer_name")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Project(set)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrNoMappings))
			var failure *Failure
			require.ErrorAs(t, err, &failure)
			require.False(t, failure.Retryable())
		})
	}
}

func TestProject_NeverFailsWithCompleteRow(t *testing.T) {
	set := NewSet(NewManualRow("", ""), NewManualRow("a", "b"))
	fields, err := Project(set)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"b": "a"}, fields)
}

func TestProject_FirstWriterWins(t *testing.T) {
	columns := schema.ColumnsFromHeader([]string{"order_date", "cust", "amt"})
	set := Canonicalize(NewSet(
		Row{ID: "late", SourceColumn: "amt", TargetField: "customer_name", Provenance: ProvenanceSuggested, Confidence: Scored(0.99)},
		Row{ID: "early", SourceColumn: "cust", TargetField: "customer_name", Provenance: ProvenanceManual},
	), columns)

	fields, err := Project(set)
	require.NoError(t, err)
	require.Equal(t, "cust", fields["customer_name"])
}

func TestInferCategory(t *testing.T) {
	catalog := testCatalog(t)
	cases := []struct {
		name string
		rows []Row
		want schema.Category
	}{
		{
			name: "majority customer",
			rows: []Row{NewManualRow("a", "customer_name"), NewManualRow("b", "total_spent"), NewManualRow("c", "order_date")},
			want: schema.CategoryCustomer,
		},
		{
			name: "tie order over customer",
			rows: []Row{NewManualRow("a", "customer_name"), NewManualRow("c", "order_date")},
			want: schema.CategoryOrder,
		},
		{
			name: "tie customer over product",
			rows: []Row{NewManualRow("a", "customer_name"), NewManualRow("c", "product_name")},
			want: schema.CategoryCustomer,
		},
		{
			name: "unknown fields fall back to priority",
			rows: []Row{NewManualRow("a", "mystery")},
			want: schema.CategoryOrder,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, InferCategory(NewSet(tc.rows...), catalog))
		})
	}
}

func TestBuildPersisted_InfersCategory(t *testing.T) {
	id := int64(5)
	set := NewSet(NewManualRow("p", "product_name"))
	got, err := BuildPersisted(set, &id, "", testCatalog(t))
	require.NoError(t, err)
	require.Equal(t, schema.CategoryProduct, got.Category)
	require.Equal(t, int64(5), *got.DatasetID)

	id = 7
	require.Equal(t, int64(5), *got.DatasetID, "dataset id must be copied")
}
