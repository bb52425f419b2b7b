package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-order-engine/apperror"
)

func ptr[T any](v T) *T { return &v }

func TestStore_Create(t *testing.T) {
	s := NewStore()

	item, err := s.Create(s.NextID(), "  Burger ", decimal.RequireFromString("5.005"), ptr(" http://img/b.png "))
	require.NoError(t, err)

	assert.Equal(t, uint(1), item.ID)
	assert.Equal(t, "Burger", item.Name)
	assert.True(t, decimal.RequireFromString("5.01").Equal(item.Price), item.Price.String())
	require.NotNil(t, item.ImageURL)
	assert.Equal(t, "http://img/b.png", *item.ImageURL)
	assert.False(t, item.CreatedAt.IsZero())
}

func TestStore_CreateValidation(t *testing.T) {
	s := NewStore()

	_, err := s.Create(s.NextID(), "   ", decimal.NewFromInt(1), nil)
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = s.Create(s.NextID(), "Soup", decimal.NewFromInt(-1), nil)
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	free, err := s.Create(s.NextID(), "Water", decimal.Zero, nil)
	require.NoError(t, err)
	assert.True(t, free.Price.IsZero())

	_, err = s.Create(free.ID, "Dup", decimal.Zero, nil)
	assert.Equal(t, apperror.Conflict, apperror.KindOf(err))

	assert.Len(t, s.List(), 1)
}

func TestStore_UpdateAppliesOnlySuppliedFields(t *testing.T) {
	s := NewStore()
	item, err := s.Create(s.NextID(), "Burger", decimal.NewFromInt(5), ptr("http://img/b.png"))
	require.NoError(t, err)

	updated, err := s.Update(item.ID, Patch{Price: ptr(decimal.RequireFromString("6.50"))})
	require.NoError(t, err)
	assert.Equal(t, "Burger", updated.Name)
	assert.True(t, decimal.RequireFromString("6.5").Equal(updated.Price))
	require.NotNil(t, updated.ImageURL)

	cleared, err := s.Update(item.ID, Patch{ImageURL: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.ImageURL)
	assert.True(t, decimal.RequireFromString("6.5").Equal(cleared.Price))

	_, err = s.Update(item.ID, Patch{Name: ptr("")})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = s.Update(item.ID, Patch{Price: ptr(decimal.NewFromInt(-3))})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	got, err := s.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Burger", got.Name)
	assert.True(t, decimal.RequireFromString("6.5").Equal(got.Price))

	_, err = s.Update(99, Patch{Name: ptr("Ghost")})
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	item, err := s.Create(s.NextID(), "Fries", decimal.NewFromInt(2), nil)
	require.NoError(t, err)

	removed, err := s.Delete(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fries", removed.Name)

	_, err = s.Delete(item.ID)
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))
	_, err = s.Get(item.ID)
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))
	assert.Empty(t, s.List())
}

func TestStore_ListOrderedAndIsolated(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"A", "B", "C"} {
		_, err := s.Create(s.NextID(), name, decimal.NewFromInt(1), ptr("http://img/"+name))
		require.NoError(t, err)
	}

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []uint{1, 2, 3}, []uint{list[0].ID, list[1].ID, list[2].ID})

	*list[0].ImageURL = "mutated"
	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "http://img/A", *got.ImageURL)
}

func TestStore_PriceBounds(t *testing.T) {
	s := NewStore()

	for _, raw := range []string{"1e30000000", "1e-30000000", "1000000.01", "2e6", "0.000000001", "12345678901234567"} {
		start := time.Now()
		_, err := s.Create(s.NextID(), "Caviar", decimal.RequireFromString(raw), nil)
		assert.Equal(t, apperror.Validation, apperror.KindOf(err), raw)
		assert.Less(t, time.Since(start), time.Second, raw)
	}

	item, err := s.Create(s.NextID(), "Caviar", decimal.RequireFromString("1000000"), nil)
	require.NoError(t, err)
	assert.True(t, MaxPrice.Equal(item.Price))

	_, err = s.Update(item.ID, Patch{Price: ptr(decimal.RequireFromString("1e30000000"))})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	got, err := s.Get(item.ID)
	require.NoError(t, err)
	assert.True(t, MaxPrice.Equal(got.Price))
}
