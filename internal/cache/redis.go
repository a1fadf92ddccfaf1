// internal/cache/redis.go

// Package cache ships session action records to the Redis list drained by the historian.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/czar/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for session action logs.
const DefaultQueueName = "czar_actions"

// ConnectRedis opens a client and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// PublishAction serializes the record to JSON and pushes it onto queue.
func PublishAction(ctx context.Context, rdb redis.Cmdable, queue string, rec models.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queue, err)
	}
	return nil
}

// ActionLog buffers records from sessions and publishes them from a single goroutine,
// so a slow Redis never stalls a session.
type ActionLog struct {
	rdb    redis.Cmdable
	queue  string
	ch     chan models.ActionRecord
	logger *logrus.Logger
}

func NewActionLog(rdb redis.Cmdable, queue string, buffer int, logger *logrus.Logger) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ActionLog{
		rdb:    rdb,
		queue:  queue,
		ch:     make(chan models.ActionRecord, buffer),
		logger: logger,
	}
}

// Record enqueues rec. When the buffer is full the record is dropped and logged.
func (l *ActionLog) Record(rec models.ActionRecord) {
	select {
	case l.ch <- rec:
	default:
		l.logger.WithFields(logrus.Fields{
			"session": rec.SessionID,
			"index":   rec.ActionIndex,
			"type":    rec.ActionType,
		}).Warn("action log buffer full, dropping record")
	}
}

// Run publishes buffered records until ctx is done, then drains what is left.
func (l *ActionLog) Run(ctx context.Context) {
	for {
		select {
		case rec := <-l.ch:
			l.publish(ctx, rec)
		case <-ctx.Done():
			l.drain(ctx)
			return
		}
	}
}

func (l *ActionLog) drain(ctx context.Context) {
	for {
		select {
		case rec := <-l.ch:
			l.publish(ctx, rec)
		default:
			return
		}
	}
}

// publish outlives cancellation of ctx so records accepted before shutdown still land.
func (l *ActionLog) publish(ctx context.Context, rec models.ActionRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := PublishAction(ctx, l.rdb, l.queue, rec); err != nil {
		l.logger.WithError(err).WithField("session", rec.SessionID).Error("publish action")
	}
}
