package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/RiverSpider/PavelBot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	popTimeout    = time.Second
	retryInterval = 5 * time.Second
)

// RedisQueue is a list-backed work queue with delayed retries (sorted set)
// and a dead-letter list. Producers and consumers may run in different
// processes; a queue with no registered jobs only publishes.
type RedisQueue struct {
	log        *logger.Logger
	cfg        Config
	client     *redis.Client
	dispatcher *Dispatcher

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRedisQueue(log *logger.Logger, cfg Config, client *redis.Client, dispatcher *Dispatcher) *RedisQueue {
	if cfg.Name == "" {
		cfg.Name = "jobs"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}

	return &RedisQueue{
		log:        log.With(logger.String("queue", cfg.Name)),
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
	}
}

// Start launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("queue %s already running", r.cfg.Name)
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true

	types := r.dispatcher.Types()
	if len(types) == 0 {
		r.log.Info("queue started in publish-only mode")
		return nil
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryLoop()

	r.log.Info("queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Strings("types", types))
	return nil
}

// Stop cancels in-flight work and waits for the workers, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop queue %s: %w", r.cfg.Name, ctx.Err())
	}
}

// PublishMessage implements Publisher.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return r.push(ctx, r.messagesKey(), msg)
}

func (r *RedisQueue) push(ctx context.Context, key string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		res, err := r.client.BRPop(r.ctx, popTimeout, r.messagesKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			r.log.Error("brpop failed", logger.Int("worker", id), logger.Error(err))
			sleepCtx(r.ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("drop undecodable message", logger.Error(err))
			continue
		}
		r.handle(msg)
	}
}

func (r *RedisQueue) handle(msg Message) {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := r.dispatcher.Dispatch(ctx, msg)
	if err == nil {
		r.log.Debug("message handled",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Duration("elapsed_ms", time.Since(start)))
		return
	}
	if errors.Is(err, context.Canceled) && r.ctx.Err() != nil {
		// shutting down, hand the message back for the next run
		_ = r.push(context.Background(), r.messagesKey(), msg)
		return
	}

	r.log.Error("message failed",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if !ShouldRetry(msg, r.cfg.RetryLimit) {
		if err := r.push(context.Background(), r.deadLetterKey(), msg); err != nil {
			r.log.Error("dead-letter push failed", logger.Error(err))
		}
		return
	}

	msg.Attempts++
	data, _ := json.Marshal(msg)
	at := time.Now().Add(r.cfg.RetryDelay)
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		r.log.Error("schedule retry failed", logger.Error(err))
	}
}

// ShouldRetry reports whether a failed message still has attempts left.
func ShouldRetry(msg Message, limit int) bool {
	return msg.Attempts < limit
}

func (r *RedisQueue) retryLoop() {
	defer r.wg.Done()

	t := time.NewTicker(retryInterval)
	defer t.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			r.moveDueRetries()
		}
	}
}

func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("read retry set", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), member)
		pipe.LPush(r.ctx, r.messagesKey(), member)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				r.log.Error("requeue retry", logger.Error(err))
			}
			return
		}
	}
}

func (r *RedisQueue) messagesKey() string { return r.cfg.Name + ":messages" }
func (r *RedisQueue) retryKey() string { return r.cfg.Name + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.cfg.Name + ":dlq" }

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
