package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoryPriorityFollowsInferenceOrder(t *testing.T) {
	for i := 1; i < len(Categories); i++ {
		require.Greater(t, Categories[i-1].Priority(), Categories[i].Priority())
	}
	require.Zero(t, Category("Invoice").Priority())
	require.False(t, Category("Invoice").Valid())
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory(" ORDER ")
	require.NoError(t, err)
	require.Equal(t, CategoryOrder, got)

	_, err = ParseCategory("invoice")
	require.ErrorIs(t, err, ErrUnknownCategory)
}
