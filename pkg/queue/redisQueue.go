package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = 5 * time.Second
	defaultQueueTimeout = 5 * time.Second
	defaultDLQThreshold = 1000
	delayedPollInterval = 10 * time.Second
	metricsInterval     = 30 * time.Second
)

// RedisQueue implements Queue on Redis: a list for ready tasks, a sorted set
// scored by execute time for delayed ones, a processing list for in-flight
// tasks and a sorted set as dead letter queue.
type RedisQueue struct {
	client          *redis.Client
	prefix          string
	mainQueue       string
	delayedQueue    string
	processingQueue string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

type RedisQueueConfig struct {
	// Prefix namespaces every key, e.g. "outreach" gives "outreach:tasks".
	Prefix       string
	MaxRetries   int
	BaseDelay    time.Duration
	QueueTimeout time.Duration
	DLQThreshold int
	EnableDLQ    bool
}

func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		Prefix:       "outreach",
		MaxRetries:   defaultMaxRetries,
		BaseDelay:    defaultBaseDelay,
		QueueTimeout: defaultQueueTimeout,
		DLQThreshold: defaultDLQThreshold,
		EnableDLQ:    true,
	}
}

// NewRedisQueue builds a queue on an existing client. The client is shared
// with the rest of the application and is not closed by Close.
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, retryManager *RetryManager, dlqHandler DLQHandler) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	mainQueue := cfg.Prefix + ":tasks"

	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay)
	}
	if dlqHandler == nil && cfg.EnableDLQ {
		dlqHandler = NewDefaultDLQHandler(client, cfg.Prefix+":dlq", mainQueue)
	}

	q := &RedisQueue{
		client:          client,
		prefix:          cfg.Prefix,
		mainQueue:       mainQueue,
		delayedQueue:    cfg.Prefix + ":tasks:delayed",
		processingQueue: cfg.Prefix + ":tasks:processing",
		retryManager:    retryManager,
		dlqHandler:      dlqHandler,
		config:          cfg,
		stopChan:        make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"main":    q.mainQueue,
		"delayed": q.delayedQueue,
	}).Info("redis queue initialized")

	return q
}

// DLQ exposes the dead letter handler for inspection.
func (r *RedisQueue) DLQ() DLQHandler {
	return r.dlqHandler
}

// Publish pushes a ready task onto the main list, or parks it in the delayed
// set when ExecuteAt is in the future.
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	r.fillDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if task.ExecuteAt.After(time.Now()) {
		z := &redis.Z{Score: unixScore(task.ExecuteAt), Member: taskData}
		if err := r.client.ZAdd(ctx, r.delayedQueue, z).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		r.incrementMetric(ctx, "tasks_delayed")
		logrus.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"execute_at": task.ExecuteAt.Format(time.RFC3339),
		}).Debug("task scheduled")
		return nil
	}

	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish immediate task: %w", err)
	}
	r.incrementMetric(ctx, "tasks_queued")
	logrus.WithField("task_id", task.ID).Debug("task published")

	return nil
}

// Subscribe starts the consumer, the delayed-set mover and the size monitor.
func (r *RedisQueue) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.wg.Add(3)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)
	go r.monitorQueue(ctx)

	logrus.Info("redis queue subscriber started")
	return nil
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler Handler) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("main queue processor stopped by context")
			return
		case <-r.stopChan:
			logrus.Info("main queue processor stopped")
			return
		default:
			if err := r.processNext(ctx, handler); err != nil {
				logrus.Errorf("error processing queue: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// processNext moves one task to the processing list, runs it and either
// drops it, schedules a retry or parks it in the DLQ.
func (r *RedisQueue) processNext(ctx context.Context, handler Handler) error {
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		if err := r.client.LRem(ctx, r.processingQueue, 1, taskData).Err(); err != nil {
			logrus.Errorf("failed to remove task from processing queue: %v", err)
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		logrus.Errorf("failed to unmarshal task: %v", err)
		r.moveToDLQ(ctx, &Task{
			ID:        fmt.Sprintf("corrupted_%d", time.Now().UnixNano()),
			Type:      "corrupted",
			Data:      map[string]interface{}{"raw_data": taskData},
			CreatedAt: time.Now(),
		}, fmt.Errorf("corrupted task: %w", err))
		return nil
	}

	task.Attempts++
	log := logrus.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"type":     task.Type,
		"attempts": task.Attempts,
	})

	started := time.Now()
	err = handler(ctx, &task)
	if err == nil {
		r.incrementMetric(ctx, "tasks_success")
		log.WithField("duration", time.Since(started).String()).Info("task completed")
		return nil
	}
	r.incrementMetric(ctx, "tasks_failure")

	shouldRetry, delay := r.retryManager.ShouldRetry(&task, err)
	if !shouldRetry {
		log.Errorf("task failed permanently: %v", err)
		r.moveToDLQ(ctx, &task, err)
		return nil
	}

	task.ExecuteAt = time.Now().Add(delay)
	if pubErr := r.Publish(ctx, &task); pubErr != nil {
		log.Errorf("failed to schedule retry, moving to DLQ: %v", pubErr)
		r.moveToDLQ(ctx, &task, err)
		return nil
	}
	log.WithField("delay", delay.String()).Warnf("task failed, retry scheduled: %v", err)
	return nil
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(delayedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx, time.Now()); err != nil {
				logrus.Errorf("failed to process delayed tasks: %v", err)
			}
		}
	}
}

// moveReadyDelayedTasks moves delayed tasks due at or before now to the main queue.
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context, now time.Time) error {
	due := &redis.ZRangeBy{Min: "0", Max: fmt.Sprintf("%f", unixScore(now))}

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, due).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, taskData := range tasks {
		pipe.LPush(ctx, r.mainQueue, taskData)
		pipe.ZRem(ctx, r.delayedQueue, taskData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move delayed tasks: %w", err)
	}

	logrus.WithField("count", len(tasks)).Debug("delayed tasks moved to main queue")
	return nil
}

func (r *RedisQueue) moveToDLQ(ctx context.Context, task *Task, err error) {
	if !r.config.EnableDLQ || r.dlqHandler == nil {
		return
	}
	r.dlqHandler.HandleFailedTask(ctx, task, err)
	r.incrementMetric(ctx, "tasks_dlq")
}

func (r *RedisQueue) fillDefaults(task *Task) {
	if task.ID == "" {
		task.ID = "task_" + uuid.NewString()
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
}

// unixScore is the sorted-set score of t: unix seconds with a fraction.
func unixScore(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func (r *RedisQueue) monitorQueue(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			stats, err := r.GetQueueStats(ctx)
			if err != nil {
				logrus.Errorf("failed to collect queue metrics: %v", err)
				continue
			}
			if r.config.DLQThreshold > 0 && stats.MainQueue > int64(r.config.DLQThreshold) {
				logrus.WithFields(logrus.Fields{
					"size":      stats.MainQueue,
					"threshold": r.config.DLQThreshold,
				}).Warn("main queue size exceeds threshold")
			}
		}
	}
}

func (r *RedisQueue) incrementMetric(ctx context.Context, metric string) {
	key := fmt.Sprintf("%s:metrics:%s", r.prefix, metric)
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Debugf("failed to record metric %s: %v", metric, err)
	}
}

// GetQueueStats reads the length of every list and set in one round trip.
func (r *RedisQueue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	pipe := r.client.Pipeline()

	mainLen := pipe.LLen(ctx, r.mainQueue)
	delayedLen := pipe.ZCard(ctx, r.delayedQueue)
	processingLen := pipe.LLen(ctx, r.processingQueue)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	stats := &QueueStats{
		MainQueue:       mainLen.Val(),
		DelayedQueue:    delayedLen.Val(),
		ProcessingQueue: processingLen.Val(),
		Timestamp:       time.Now(),
	}

	if r.dlqHandler != nil {
		dlq, err := r.dlqHandler.GetDLQStats(ctx)
		if err != nil {
			return nil, err
		}
		stats.DLQ = dlq.QueueSize
	}

	return stats, nil
}

// Close stops the background processors. Safe to call more than once.
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	logrus.Info("redis queue closed")
	return nil
}

func (r *RedisQueue) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

type QueueStats struct {
	MainQueue       int64     `json:"main_queue"`
	DelayedQueue    int64     `json:"delayed_queue"`
	ProcessingQueue int64     `json:"processing_queue"`
	DLQ             int64     `json:"dlq"`
	Timestamp       time.Time `json:"timestamp"`
}
