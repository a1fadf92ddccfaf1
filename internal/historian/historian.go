// internal/historian/historian.go

// Package historian drains session action records from Redis into the session_actions table.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/czar/internal/database"
	"github.com/jason-s-yu/czar/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const insertActionQ = `
	INSERT INTO session_actions (
		session_id, action_index, actor_player_id, action_type, action_payload, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (session_id, action_index) DO NOTHING
`

// Options configure a Service. Zero values fall back to the defaults below.
type Options struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration

	// PopTimeout bounds each BLPOP so cancellation is noticed.
	PopTimeout time.Duration

	// MaxPending caps records kept for retry after failed flushes.
	MaxPending int
}

// Service accumulates records popped from the queue and writes them in batches.
type Service struct {
	rdb    redis.Cmdable
	db     database.DBTX
	opts   Options
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []models.ActionRecord

	// flushMu serializes writers so retries keep their place at the front of the batch.
	flushMu sync.Mutex
	written atomic.Int64
}

func NewService(rdb redis.Cmdable, db database.DBTX, opts Options, logger *logrus.Logger) *Service {
	if opts.Queue == "" {
		opts.Queue = "czar_actions"
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.MaxPending < opts.BatchSize {
		opts.MaxPending = opts.BatchSize * 50
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:    rdb,
		db:     db,
		opts:   opts,
		logger: logger,
		batch:  make([]models.ActionRecord, 0, opts.BatchSize),
	}
}

// Written reports how many records have been committed so far.
func (s *Service) Written() int64 {
	return s.written.Load()
}

// Run reads the queue until ctx is done. A final flush runs before it returns.
func (s *Service) Run(ctx context.Context) {
	s.logger.WithField("queue", s.opts.Queue).Info("historian started")
	defer s.logger.Info("historian stopped")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()

	s.readLoop(ctx)
	wg.Wait()
	s.flush(context.WithoutCancel(ctx))
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := s.rdb.BLPop(ctx, s.opts.PopTimeout, s.opts.Queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Error("BLPOP failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload
		if len(res) < 2 {
			continue
		}

		var rec models.ActionRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			s.logger.WithError(err).Warn("invalid action record")
			continue
		}
		if s.appendToBatch(rec) {
			s.flush(ctx)
		}
	}
}

// appendToBatch adds rec and reports whether the batch reached its size threshold.
func (s *Service) appendToBatch(rec models.ActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.opts.BatchSize
}

// flush writes the pending records in one transaction. On failure they are put back
// for the next attempt, oldest dropped first once MaxPending is exceeded.
func (s *Service) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.batchMu.Lock()
	pending := s.batch
	s.batch = make([]models.ActionRecord, 0, s.opts.BatchSize)
	s.batchMu.Unlock()
	if len(pending) == 0 {
		return
	}

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range pending {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %s/%d: %w", rec.SessionID, rec.ActionIndex, err)
			}
		}
		return nil
	})
	if err != nil {
		s.requeue(pending)
		s.logger.WithError(err).WithField("records", len(pending)).Error("flush failed")
		return
	}
	s.written.Add(int64(len(pending)))
	s.logger.WithField("records", len(pending)).Debug("flushed actions")
}

func (s *Service) requeue(failed []models.ActionRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	merged := append(failed, s.batch...)
	if over := len(merged) - s.opts.MaxPending; over > 0 {
		s.logger.WithField("dropped", over).Warn("historian backlog full, dropping oldest records")
		merged = merged[over:]
	}
	s.batch = merged
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec models.ActionRecord) error {
	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertActionQ,
		rec.SessionID, rec.ActionIndex, rec.ActorPlayerID, rec.ActionType, payload,
		time.UnixMilli(rec.Timestamp).UTC(),
	)
	return err
}
