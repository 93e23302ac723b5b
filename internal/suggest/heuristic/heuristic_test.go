package heuristic

import (
	"context"
	"testing"

	mapping "datamap-cloud/internal/mapping/domain"
	"datamap-cloud/internal/schema/infrastructure/memory"
	schema "datamap-cloud/internal/schema/domain"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	cases := map[string][]string{
		"OrderDate":     {"order", "date"},
		"order_date":    {"order", "date"},
		"Order Date":    {"order", "date"},
		"customerID":    {"customer", "id"},
		"XMLParser":     {"xml", "parser"},
		"address2":      {"address", "2"},
		"  --total--  ": {"total"},
		"":              nil,
	}
	for input, want := range cases {
		require.Equal(t, want, Tokenize(input), input)
	}
}

func TestLevenshteinAndSimilarity(t *testing.T) {
	require.Equal(t, 3, Levenshtein("kitten", "sitting"))
	require.Equal(t, 0, Levenshtein("same", "same"))
	require.Equal(t, 4, Levenshtein("", "four"))
	require.Equal(t, 1.0, Similarity("abc", "abc"))
	require.Equal(t, 1.0, Similarity("", ""))
	require.Equal(t, 0.0, Similarity("ab", "cd"))
}

func TestScore(t *testing.T) {
	require.Equal(t, 1.0, Score("Customer Name", "customer_name"))
	require.Equal(t, 1.0, Score("cust_id", "customer_id"))
	require.Equal(t, 0.0, Score("", "email"))
	require.Less(t, Score("zzz", "email"), DefaultFloor)
	require.Greater(t, Score("orderTotal", "order_total_amount"), Score("orderTotal", "product_name"))
}

func testFields() []schema.CanonicalField {
	return []schema.CanonicalField{
		{Key: "customer_id", Label: "Customer ID", Category: schema.CategoryCustomer},
		{Key: "email", Label: "Email", Category: schema.CategoryCustomer},
		{Key: "order_id", Label: "Order ID", Category: schema.CategoryOrder},
		{Key: "quantity", Label: "Quantity", Category: schema.CategoryOrder},
	}
}

func TestSuggest_BestFieldPerColumnAndCategory(t *testing.T) {
	columns := schema.ColumnsFromHeader([]string{"cust_id", "email", "qty"})

	batch := Suggest(columns, testFields(), DefaultFloor)
	require.NoError(t, batch.Validate())
	require.Equal(t, []mapping.Suggestion{
		{SourceColumn: "cust_id", TargetField: "customer_id", Confidence: 1},
		{SourceColumn: "email", TargetField: "email", Confidence: 1},
	}, batch.Customer)
	require.Empty(t, batch.Product)

	qty, ok := batch.Find(mapping.IdentityPair{SourceColumn: "qty", TargetField: "quantity"})
	require.True(t, ok)
	require.GreaterOrEqual(t, qty.Confidence, DefaultFloor)
	require.Less(t, qty.Confidence, mapping.DefaultThreshold)

	for _, s := range batch.All() {
		require.GreaterOrEqual(t, s.Confidence, DefaultFloor)
	}
	for i := 1; i < len(batch.Order); i++ {
		require.GreaterOrEqual(t, batch.Order[i-1].Confidence, batch.Order[i].Confidence)
	}
}

func TestSuggester_RequestSuggestions(t *testing.T) {
	catalog := memory.NewFieldCatalog(testFields()...)
	columns := memory.NewColumnStore()
	require.NoError(t, columns.Put(1, []string{"Email"}))
	require.NoError(t, columns.Put(2, []string{""}))

	suggester, err := New(catalog, columns, WithFloor(0.9))
	require.NoError(t, err)

	batch, err := suggester.RequestSuggestions(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	require.Equal(t, "email", batch.Customer[0].TargetField)

	_, err = suggester.RequestSuggestions(context.Background(), -1)
	require.ErrorIs(t, err, mapping.ErrInvalidIdentifier)

	_, err = suggester.RequestSuggestions(context.Background(), 9)
	require.ErrorIs(t, err, schema.ErrDatasetNotFound)

	_, err = suggester.RequestSuggestions(context.Background(), 2)
	require.ErrorIs(t, err, mapping.ErrBadRequest)

	_, err = New(nil, columns)
	require.Error(t, err)
}
