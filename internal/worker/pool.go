package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueNotificacion = "jobs:notificacion"
	QueueComprobante  = "jobs:comprobante"

	// MaxAttempts before a job is moved to its dead letter queue.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueNotificacion pushes an email notification job.
func (d *Dispatcher) EnqueueNotificacion(ctx context.Context, payload NotificacionJobPayload) error {
	return d.enqueue(ctx, QueueNotificacion, "notificacion", payload)
}

// EnqueueComprobante pushes a nota de crédito job for a processed devolución.
func (d *Dispatcher) EnqueueComprobante(ctx context.Context, payload ComprobanteJobPayload) error {
	return d.enqueue(ctx, QueueComprobante, "comprobante", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Processor handles the payload of one queue. A returned error makes the
// pool retry the job, up to MaxAttempts.
type Processor interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Pool consumes the registered queues with N goroutines.
type Pool struct {
	rdb        *redis.Client
	metrics    *infra.Metrics
	processors map[string]Processor
	queues     []string

	// push and dlq are swapped in tests
	push func(ctx context.Context, queue string, data []byte) error
	dlq  func(ctx context.Context, queue string, job Job, reason string)
}

func NewPool(rdb *redis.Client, metrics *infra.Metrics) *Pool {
	p := &Pool{rdb: rdb, metrics: metrics, processors: map[string]Processor{}}
	p.push = func(ctx context.Context, queue string, data []byte) error {
		return rdb.LPush(ctx, queue, data).Err()
	}
	p.dlq = NewDeadLetters(rdb).Push
	return p
}

func (p *Pool) Register(queue string, proc Processor) {
	if _, ok := p.processors[queue]; !ok {
		p.queues = append(p.queues, queue)
	}
	p.processors[queue] = proc
}

// Start launches numWorkers goroutines consuming all registered queues.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Int("workers", numWorkers).Strs("queues", p.queues).Msg("worker pool started")
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.handle(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) handle(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.metrics.Job(queue, "invalido")
		return
	}
	proc, ok := p.processors[queue]
	if !ok {
		log.Error().Str("queue", queue).Msg("no processor registered")
		return
	}

	job.Attempts++
	err := proc.Process(ctx, job.Payload)
	if err == nil {
		p.metrics.Job(queue, "ok")
		return
	}

	if job.Attempts >= MaxAttempts {
		p.metrics.Job(queue, "dlq")
		p.dlq(ctx, queue, job, err.Error())
		return
	}

	log.Warn().Err(err).Str("queue", queue).Int("attempt", job.Attempts).Msg("job failed, requeueing")
	p.metrics.Job(queue, "reintento")
	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		return
	}
	if pErr := p.push(ctx, queue, encoded); pErr != nil {
		log.Error().Err(pErr).Str("queue", queue).Msg("requeue failed")
	}
}
