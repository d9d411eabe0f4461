package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RabbitQueue implements Queue on RabbitMQ. Failed deliveries are retried
// through a TTL queue that dead-letters back into the main queue; exhausted
// ones are rejected into "<queue>.dlq".
type RabbitQueue struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queueName    string
	retryQueue   string
	dlqName      string
	retryManager *RetryManager
	maxRetries   int
	mu           sync.Mutex
}

type RabbitQueueConfig struct {
	URL        string
	QueueName  string
	MaxRetries int
	BaseDelay  time.Duration
}

func NewRabbitQueue(cfg RabbitQueueConfig) (*RabbitQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	q := &RabbitQueue{
		conn:         conn,
		channel:      channel,
		queueName:    cfg.QueueName,
		retryQueue:   cfg.QueueName + ".retry",
		dlqName:      cfg.QueueName + ".dlq",
		retryManager: NewRetryManager(cfg.MaxRetries, cfg.BaseDelay),
		maxRetries:   cfg.MaxRetries,
	}

	if err := q.declare(); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logrus.WithField("queue", cfg.QueueName).Info("rabbitmq queue initialized")
	return q, nil
}

func (r *RabbitQueue) declare() error {
	if _, err := r.channel.QueueDeclare(r.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	_, err := r.channel.QueueDeclare(
		r.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-queue-mode":              "lazy",
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": r.dlqName,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// messages wait here for their per-message TTL, then return to the main queue
	_, err = r.channel.QueueDeclare(
		r.retryQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": r.queueName,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}
	return nil
}

func (r *RabbitQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.maxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	if delay := time.Until(task.ExecuteAt); delay > 0 {
		return r.publish(ctx, r.retryQueue, task, delay)
	}
	return r.publish(ctx, r.queueName, task, 0)
}

func (r *RabbitQueue) publish(ctx context.Context, routingKey string, task *Task, delay time.Duration) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID,
		Timestamp:    time.Now(),
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.PublishWithContext(ctx, "", routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (r *RabbitQueue) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.channel.Consume(
		r.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume messages: %w", err)
	}

	go r.handleMessages(ctx, msgs, handler)
	return nil
}

func (r *RabbitQueue) handleMessages(ctx context.Context, msgs <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handleDelivery(ctx, msg, handler)
		}
	}
}

func (r *RabbitQueue) handleDelivery(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		logrus.Errorf("failed to unmarshal task, rejecting: %v", err)
		msg.Nack(false, false)
		return
	}

	task.Attempts++
	log := logrus.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"type":     task.Type,
		"attempts": task.Attempts,
	})

	err := handler(ctx, &task)
	if err == nil {
		msg.Ack(false)
		return
	}

	shouldRetry, delay := r.retryManager.ShouldRetry(&task, err)
	if shouldRetry {
		if pubErr := r.publish(ctx, r.retryQueue, &task, delay); pubErr == nil {
			log.WithField("delay", delay.String()).Warnf("task failed, retry scheduled: %v", err)
			msg.Ack(false)
			return
		}
	}

	log.Errorf("task failed permanently, dead-lettered: %v", err)
	msg.Nack(false, false)
}

func (r *RabbitQueue) Close() error {
	var errs []error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}
	return nil
}

func (r *RabbitQueue) HealthCheck(ctx context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("RabbitMQ health check failed: %w", err)
	}
	return ch.Close()
}
