package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
)

const (
	ProgressQueue = "queue:study-progress"

	popTimeout    = 5 * time.Second
	doneKeyTTL    = 7 * 24 * time.Hour
	maxRetries    = 3
	handleTimeout = 30 * time.Second
	popErrBackoff = 2 * time.Second
)

// queue is the slice of Redis the pool needs.
type queue interface {
	Push(ctx context.Context, payload string) error
	// Pop returns redis.Nil when nothing arrived within timeout.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisQueue struct {
	rdb *redis.Client
}

func (q redisQueue) Push(ctx context.Context, payload string) error {
	return q.rdb.LPush(ctx, ProgressQueue, payload).Err()
}

func (q redisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.rdb.BLPop(ctx, timeout, ProgressQueue).Result()
	if err != nil {
		return "", err
	}
	if len(result) < 2 {
		return "", redis.Nil
	}
	return result[1], nil
}

func (q redisQueue) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return q.rdb.SetNX(ctx, key, "1", ttl).Result()
}

func (q redisQueue) Release(ctx context.Context, key string) error {
	return q.rdb.Del(ctx, key).Err()
}

type progressHandler interface {
	Handle(ctx context.Context, ev models.FinishEvent) (*models.StudyProgress, error)
}

// job is one queued finish event plus its delivery attempts.
type job struct {
	Event      models.FinishEvent `json:"event"`
	RetryCount int                `json:"retryCount"`
}

// Pool drains the progress queue. Producers call OnFinish; worker
// goroutines BLPOP events and fold them into the user's progress once per
// history id.
type Pool struct {
	queue       queue
	progress    progressHandler
	log         *logger.Logger
	workerCount int

	// after schedules retries; tests run them inline.
	after func(d time.Duration, f func())

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPool(redisClient *redis.Client, progress progressHandler, log *logger.Logger, workerCount int) *Pool {
	return newPool(redisQueue{rdb: redisClient}, progress, log, workerCount)
}

func newPool(q queue, progress progressHandler, log *logger.Logger, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{
		queue:       q,
		progress:    progress,
		log:         log,
		workerCount: workerCount,
		after:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		stopChan:    make(chan struct{}),
	}
}

// OnFinish queues ev for the workers.
func (p *Pool) OnFinish(ctx context.Context, ev models.FinishEvent) error {
	return p.enqueue(ctx, job{Event: ev})
}

func (p *Pool) enqueue(ctx context.Context, j job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode finish event: %w", err)
	}
	return p.queue.Push(ctx, string(data))
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("started progress workers", "count", p.workerCount)
}

// Stop signals the workers and waits for the in-flight events.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			p.log.Debug("progress worker shutting down", "worker", id)
			return
		default:
		}

		ctx := context.Background()

		payload, err := p.queue.Pop(ctx, popTimeout)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			p.log.Warn("progress queue pop failed", "worker", id, "error", err)
			select {
			case <-p.stopChan:
			case <-time.After(popErrBackoff):
			}
			continue
		}

		var j job
		if err := json.Unmarshal([]byte(payload), &j); err != nil {
			p.log.Warn("dropping malformed progress event", "worker", id, "error", err)
			continue
		}
		p.process(ctx, id, j)
	}
}

func doneKey(historyID string) string {
	return fmt.Sprintf("progress_done:%s", historyID)
}

// process applies one event at most once per history id.
func (p *Pool) process(ctx context.Context, id int, j job) {
	ev := j.Event
	if ev.HistoryID == "" {
		p.log.Warn("progress event without history id", "worker", id, "user_id", ev.UserID)
		return
	}

	key := doneKey(ev.HistoryID)
	claimed, err := p.queue.Claim(ctx, key, doneKeyTTL)
	if err != nil {
		p.handleFailure(ctx, j, fmt.Errorf("claim %s: %w", key, err))
		return
	}
	if !claimed {
		return // Already applied or claimed by another worker
	}

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	_, err = p.progress.Handle(hctx, ev)
	cancel()
	if err == nil {
		p.log.Debug("progress updated", "worker", id, "user_id", ev.UserID, "history_id", ev.HistoryID)
		return
	}

	// release the claim so a retry can apply it
	if rerr := p.queue.Release(ctx, key); rerr != nil {
		p.log.Warn("failed to release progress claim", "history_id", ev.HistoryID, "error", rerr)
	}
	p.handleFailure(ctx, j, err)
}

func (p *Pool) handleFailure(ctx context.Context, j job, err error) {
	j.RetryCount++
	if j.RetryCount >= maxRetries {
		p.log.Error("progress event failed permanently", "user_id", j.Event.UserID, "history_id", j.Event.HistoryID, "error", err)
		return
	}

	p.log.Warn("progress event failed, retrying", "history_id", j.Event.HistoryID, "attempt", j.RetryCount, "error", err)
	backoff := time.Duration(1<<uint(j.RetryCount)) * time.Second
	p.after(backoff, func() {
		if err := p.enqueue(context.Background(), j); err != nil {
			p.log.Error("failed to requeue progress event", "history_id", j.Event.HistoryID, "error", err)
		}
	})
}
