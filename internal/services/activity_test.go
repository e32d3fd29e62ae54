package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	values [][]byte
	fail   error
	closed bool
}

func (p *fakePublisher) Publish(ctx context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestActivityLoggerPublishesEvents(t *testing.T) {
	store := storage.NewMemoryStore()
	events := &fakePublisher{}
	logger := NewActivityLogger(store, events, zap.NewNop())
	userID := uint(9)

	logger.Log(context.Background(), RequestMeta{UserID: &userID, IP: "203.0.113.9"}, models.ActionView, "Viewed mechanic: ABC Auto Repair")
	logger.Flush()

	require.Len(t, events.keys, 1)
	assert.Equal(t, models.ActionView, events.keys[0])

	var event activityEvent
	require.NoError(t, json.Unmarshal(events.values[0], &event))
	assert.Equal(t, "Viewed mechanic: ABC Auto Repair", event.Details)
	assert.Equal(t, "203.0.113.9", event.IPAddress)
	require.NotNil(t, event.UserID)
	assert.Equal(t, userID, *event.UserID)
	assert.NotZero(t, event.ID)

	require.NoError(t, logger.Close())
	assert.True(t, events.closed)
}

func TestActivityLoggerSurvivesPublishFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := NewActivityLogger(store, &fakePublisher{fail: errors.New("broker down")}, zap.NewNop())
	userID := uint(1)

	logger.Log(context.Background(), RequestMeta{UserID: &userID}, models.ActionCall, "Called mechanic")
	logger.Flush()

	rows, err := store.GetRecentActivity(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestActivityLoggerWithoutKafka(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := NewActivityLogger(store, NewKafkaPublisher("", "activity", zap.NewNop()), zap.NewNop())

	logger.Log(context.Background(), RequestMeta{}, models.ActionSearch, "anonymous search")
	logger.RecordSearch(context.Background(), &models.SearchQuery{QueryType: models.QueryTypeDistance, UserLocation: "1.000000,2.000000", Radius: 10})
	require.NoError(t, logger.Close())

	types, err := store.CountSearchesByType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.KeyCount{{Key: models.QueryTypeDistance, Count: 1}}, types)
}
