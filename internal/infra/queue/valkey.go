package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/evaluator-ai/internal/domain/playground"
)

type jobEnvelope struct {
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// ValkeyQueue persists jobs in a Valkey list and delivers them to a handler.
type ValkeyQueue struct {
	client      valkey.Client
	queueKey    string
	workers     int
	handler     Handler
	logger      *slog.Logger
	pollTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewValkeyQueue constructs a Valkey-backed queue with workers consumers.
func NewValkeyQueue(client valkey.Client, queueKey string, workers int, logger *slog.Logger) *ValkeyQueue {
	if queueKey == "" {
		queueKey = "evaluator:jobs"
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ValkeyQueue{
		client:      client,
		queueKey:    queueKey,
		workers:     workers,
		logger:      logger.With("component", "queue.valkey"),
		pollTimeout: 5 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetHandler starts the worker loops that pop jobs and invoke the handler.
func (q *ValkeyQueue) SetHandler(handler Handler) {
	q.handler = handler
	if handler == nil {
		return
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.consume()
	}
}

// Enqueue pushes a job onto the queue.
func (q *ValkeyQueue) Enqueue(ctx context.Context, name string, payload any) error {
	typed, ok := payload.(map[string]any)
	if !ok {
		typed = map[string]any{}
	}
	encoded, err := json.Marshal(jobEnvelope{Name: name, Payload: typed, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	cmd := q.client.B().Lpush().Key(q.queueKey).Element(string(encoded)).Build()
	return q.client.Do(ctx, cmd).Error()
}

// Stop ends the worker loops and waits for in-flight jobs.
func (q *ValkeyQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *ValkeyQueue) consume() {
	defer q.wg.Done()
	for {
		if q.ctx.Err() != nil {
			return
		}
		resp := q.client.Do(q.ctx, q.client.B().Brpop().Key(q.queueKey).Timeout(q.pollTimeout.Seconds()).Build())
		values, err := resp.ToArray()
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			if !valkey.IsValkeyNil(err) {
				q.logger.Warn("valkey queue pop failed", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(values) < 2 {
			continue
		}
		raw, err := values[1].ToString()
		if err != nil {
			q.logger.Warn("valkey queue payload decode failed", "error", err)
			continue
		}
		job, err := decodeJob(raw)
		if err != nil {
			q.logger.Warn("valkey queue unmarshal failed", "error", err)
			continue
		}
		q.handler(q.ctx, job.Name, job.Payload)
	}
}

func decodeJob(raw string) (jobEnvelope, error) {
	var job jobEnvelope
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return jobEnvelope{}, err
	}
	if job.Payload == nil {
		job.Payload = map[string]any{}
	}
	return job, nil
}

var (
	_ HandlerQueue        = (*ValkeyQueue)(nil)
	_ playground.JobQueue = (*ValkeyQueue)(nil)
)
