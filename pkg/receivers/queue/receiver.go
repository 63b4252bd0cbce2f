// Package queue provides a Redis-backed ingestion receiver.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/planstudio/flowhistory/pkg/models"
)

// DefaultQueue is the Redis list ingested when no name is configured.
const DefaultQueue = "flowhistory:executions"

// Ingester accepts finished or in-flight execution records.
type Ingester interface {
	IngestExecution(ctx context.Context, execution *models.FlowExecution) error
}

// Receiver pops execution records off a Redis list and hands them to the
// ingester. Malformed payloads are logged and dropped.
type Receiver struct {
	Addr     string
	Password string
	DB       int
	Queue    string

	client   redis.UniversalClient
	ingester Ingester
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReceiver creates a receiver for the given Redis connection.
func NewReceiver(addr, password string, db int, queue string, logger *slog.Logger) *Receiver {
	if addr == "" {
		addr = "localhost:6379"
	}

	if queue == "" {
		queue = DefaultQueue
	}

	return &Receiver{
		Addr:     addr,
		Password: password,
		DB:       db,
		Queue:    queue,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", queue,
		),
	}
}

// Start connects to Redis and begins consuming in the background.
func (r *Receiver) Start(ctx context.Context, ingester Ingester) error {
	r.logger.InfoContext(ctx, "Starting queue receiver")
	r.ingester = ingester

	err := r.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) initializeClient(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", r.Addr, "db", r.DB)

	return nil
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	r.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := r.processMessage(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	payload := result[1]

	var execution models.FlowExecution
	if err := json.Unmarshal([]byte(payload), &execution); err != nil {
		r.logger.ErrorContext(ctx, "Dropping malformed execution payload", "error", err)

		return nil
	}

	if execution.Timestamp.IsZero() {
		execution.Timestamp = time.Now().UTC()
	}

	err = r.ingester.IngestExecution(ctx, &execution)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to ingest execution", "execution_id", execution.ID, "error", err)

		return nil
	}

	r.logger.InfoContext(ctx, "Ingested execution from queue", "execution_id", execution.ID)

	return nil
}

// Stop halts consumption and closes the connection.
func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		err := r.client.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
