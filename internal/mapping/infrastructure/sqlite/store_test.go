package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"

	"github.com/stretchr/testify/require"
)

func TestStore_SaveGetList(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "mappings.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	id := int64(21)
	got, err := store.Get(ctx, &id)
	require.NoError(t, err)
	require.Nil(t, got)

	updated := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	pm := &mapping.PersistedMapping{
		DatasetID: &id,
		Category:  schema.CategoryProduct,
		Fields:    map[string]string{"sku": "SKU", "price": "Unit Price"},
		UpdatedAt: updated,
	}
	require.NoError(t, store.Save(ctx, pm))
	require.NoError(t, store.Save(ctx, &mapping.PersistedMapping{
		Category: schema.CategoryCustomer,
		Fields:   map[string]string{"email": "mail"},
	}))

	got, err = store.Get(ctx, &id)
	require.NoError(t, err)
	require.Equal(t, id, *got.DatasetID)
	require.Equal(t, schema.CategoryProduct, got.Category)
	require.Equal(t, pm.Fields, got.Fields)
	require.True(t, updated.Equal(got.UpdatedAt))

	pm.Fields = map[string]string{"sku": "code"}
	require.NoError(t, store.Save(ctx, pm))
	got, err = store.Get(ctx, &id)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"sku": "code"}, got.Fields)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].IsTemplate())

	require.Error(t, store.Save(ctx, &mapping.PersistedMapping{Category: schema.CategoryProduct}))
}

func TestStore_InMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, got)
}
