package database

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	require.NoError(t, Seed(ctx, store, rand.New(rand.NewSource(1)), zap.NewNop()))
	require.NoError(t, Seed(ctx, store, rand.New(rand.NewSource(2)), zap.NewNop()))

	shops, err := store.FindShops(ctx, storage.ShopFilter{})
	require.NoError(t, err)
	assert.Len(t, shops, len(sampleShops))
	for _, shop := range shops {
		assert.True(t, shop.IsActive)
		assert.True(t, shop.Rating.LessThanOrEqual(models.MaxRating))
		lat, _ := shop.Latitude.Float64()
		assert.InDelta(t, seedLat, lat, 0.1)
	}

	user, err := store.GetUserByUsername(ctx, "john_doe")
	require.NoError(t, err)
	assert.True(t, services.CheckPassword(user.PasswordHash, SamplePassword))
	assert.True(t, user.IsActive)
	assert.False(t, user.IsStaff)
}
