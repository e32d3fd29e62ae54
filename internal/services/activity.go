package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/metrics"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// RequestMeta identifies who made a request and from where.
type RequestMeta struct {
	UserID    *uint
	IP        string
	UserAgent string
}

// activityEvent is the JSON document published for every stored row.
type activityEvent struct {
	ID        uint      `json:"id"`
	UserID    *uint     `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityLogger persists audit rows off the request path. A failed write
// is logged and counted but never reaches the caller.
type ActivityLogger struct {
	store   storage.Store
	events  EventPublisher
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

func NewActivityLogger(store storage.Store, events EventPublisher, log *zap.Logger) *ActivityLogger {
	return &ActivityLogger{
		store:   store,
		events:  events,
		log:     log.Named("activity"),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Log records an action. The write happens on its own goroutine with a
// context detached from ctx, since ctx usually ends with the request.
func (l *ActivityLogger) Log(ctx context.Context, meta RequestMeta, action, details string) {
	entry := &models.ActivityLog{
		UserID:    meta.UserID,
		Action:    action,
		Details:   details,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Timestamp: l.now(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.write(context.WithoutCancel(ctx), entry)
	}()
}

func (l *ActivityLogger) write(ctx context.Context, entry *models.ActivityLog) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.CreateActivityLog(ctx, entry); err != nil {
		metrics.ActivityWriteFailures.Inc()
		l.log.Error("failed to store activity",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return
	}

	if l.events == nil {
		return
	}
	payload, err := json.Marshal(activityEvent{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		l.log.Error("failed to encode activity event", zap.Error(err))
		return
	}
	if err := l.events.Publish(ctx, []byte(entry.Action), payload); err != nil {
		metrics.KafkaPublishErrors.Inc()
		l.log.Warn("failed to publish activity event",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

// RecordSearch stores a search query row asynchronously.
func (l *ActivityLogger) RecordSearch(ctx context.Context, query *models.SearchQuery) {
	if query.Timestamp.IsZero() {
		query.Timestamp = l.now()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		if err := l.store.CreateSearchQuery(ctx, query); err != nil {
			metrics.ActivityWriteFailures.Inc()
			l.log.Error("failed to store search query", zap.Error(err))
		}
	}()
}

// Flush blocks until every pending write has finished.
func (l *ActivityLogger) Flush() {
	l.wg.Wait()
}

// Close flushes pending writes and closes the event publisher.
func (l *ActivityLogger) Close() error {
	l.Flush()
	if l.events != nil {
		return l.events.Close()
	}
	return nil
}
