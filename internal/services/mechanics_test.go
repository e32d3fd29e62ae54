package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
)

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 1, PageNumber("", 3))
	assert.Equal(t, 1, PageNumber("abc", 3))
	assert.Equal(t, 2, PageNumber("2", 3))
	assert.Equal(t, 3, PageNumber("9", 3))
	assert.Equal(t, 3, PageNumber("0", 3))
	assert.Equal(t, 1, PageNumber("5", 1))
}

func TestListPaginatesAndSorts(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 14; i++ {
		env.createShop(t, fmt.Sprintf("Shop %02d", i), 40.7, -74.0, float64(i%5), true)
	}
	env.createShop(t, "Hidden", 40.7, -74.0, 5, false)
	svc := NewMechanicService(env.store)
	ctx := context.Background()

	page, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(14), page.Total)
	assert.Equal(t, 2, page.NumPages)
	assert.Len(t, page.Shops, PageSize)
	assert.Equal(t, "Shop 00", page.Shops[0].Name)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrevious)

	page, err = svc.List(ctx, ListParams{Page: "99"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	assert.Len(t, page.Shops, 2)

	page, err = svc.List(ctx, ListParams{Sort: "rating"})
	require.NoError(t, err)
	assert.Equal(t, "Shop 04", page.Shops[0].Name)
	assert.Equal(t, "Shop 09", page.Shops[1].Name)
}

func TestListSearchAndRating(t *testing.T) {
	env := newTestEnv(t)
	env.createShop(t, "ABC Auto Repair", 40.7, -74.0, 4.8, true)
	env.createShop(t, "Quick Fix Garage", 40.7, -74.0, 3.9, true)
	svc := NewMechanicService(env.store)
	ctx := context.Background()

	page, err := svc.List(ctx, ListParams{Search: "auto"})
	require.NoError(t, err)
	require.Len(t, page.Shops, 1)
	assert.Equal(t, "ABC Auto Repair", page.Shops[0].Name)

	page, err = svc.List(ctx, ListParams{Rating: "4"})
	require.NoError(t, err)
	require.Len(t, page.Shops, 1)

	page, err = svc.List(ctx, ListParams{Rating: "high"})
	require.NoError(t, err)
	assert.Len(t, page.Shops, 2, "unparsable rating is ignored")
}

func TestHomeDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.createShop(t, "B Shop", 40.7, -74.0, 4.0, true)
	env.createShop(t, "A Shop", 40.7, -74.0, 4.0, true)
	env.createShop(t, "Top Shop", 40.7, -74.0, 4.9, true)
	svc := NewMechanicService(env.store)

	home, err := svc.Home(context.Background(), HomeParams{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, home.Radius)
	assert.Equal(t, 0.0, home.Rating)
	assert.Equal(t, "distance", home.SortBy)
	require.Len(t, home.Shops, 3)
	assert.Equal(t, []string{"Top Shop", "A Shop", "B Shop"},
		[]string{home.Shops[0].Name, home.Shops[1].Name, home.Shops[2].Name})

	home, err = svc.Home(context.Background(), HomeParams{Rating: "4.5", Radius: "25"})
	require.NoError(t, err)
	assert.Equal(t, 25.0, home.Radius)
	require.Len(t, home.Shops, 1)
}

func TestDetail(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t, "ABC Auto Repair", 40.7128, -74.0060, 4.8, true)
	closed := env.createShop(t, "Closed", 40.7128, -74.0060, 4.8, false)
	svc := NewMechanicService(env.store)
	ctx := context.Background()

	got, err := svc.Detail(ctx, shop.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, got.Distance)

	got, err = svc.Detail(ctx, shop.ID, &geo.Point{Lat: 40.7128, Lng: -74.0060})
	require.NoError(t, err)
	require.NotNil(t, got.Distance)
	assert.Equal(t, 0.0, *got.Distance)

	_, err = svc.Detail(ctx, closed.ID, nil)
	assert.ErrorIs(t, err, ErrShopNotFound)

	_, err = svc.Detail(ctx, 999, nil)
	assert.ErrorIs(t, err, ErrShopNotFound)
}

func TestNonFiniteQueryValuesAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.createShop(t, "ABC Auto Repair", 40.7128, -74.0060, 4.8, true)
	env.createShop(t, "Budget Brakes", 40.7200, -74.0000, 2.0, true)
	svc := NewMechanicService(env.store)
	ctx := context.Background()

	for _, raw := range []string{"NaN", "Inf", "-Inf", "+Inf"} {
		page, err := svc.List(ctx, ListParams{Rating: raw})
		require.NoError(t, err, raw)
		assert.Equal(t, int64(2), page.Total, raw)

		home, err := svc.Home(ctx, HomeParams{Radius: raw, Rating: raw})
		require.NoError(t, err, raw)
		assert.Equal(t, DefaultRadiusKm, home.Radius, raw)
		assert.Equal(t, 0.0, home.Rating, raw)
		_, err = json.Marshal(home)
		assert.NoError(t, err, raw)
	}
}
