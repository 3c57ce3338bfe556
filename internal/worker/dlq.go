package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// Queues lists every queue the pool consumes, in the order /health reports them.
var Queues = []string{QueueNotificacion, QueueComprobante}

// DLQEntry is a job that failed MaxAttempts times, with the last failure reason.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339
	Attempts      int             `json:"attempts"`
}

// retryJob rebuilds the job envelope with a fresh attempt budget.
func (e DLQEntry) retryJob() Job {
	return Job{Type: e.JobType, Payload: e.Payload}
}

// DeadLetters keeps one Redis list per source queue: dlq:{queue}.
type DeadLetters struct {
	rdb *redis.Client
	now func() time.Time
}

func NewDeadLetters(rdb *redis.Client) *DeadLetters {
	return &DeadLetters{rdb: rdb, now: time.Now}
}

// Push stores a failed job. Failures to store are logged, not returned: the
// pool has nowhere else to put the job.
func (d *DeadLetters) Push(ctx context.Context, queue string, job Job, reason string) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       job.Type,
		Payload:       job.Payload,
		Reason:        reason,
		FailedAt:      d.now().UTC().Format(time.RFC3339),
		Attempts:      job.Attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}
	if err := d.rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to push entry")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job moved to dead letter queue")
}

func (d *DeadLetters) Len(ctx context.Context, queue string) (int64, error) {
	return d.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Lengths reports the dead letter count of every known queue.
func (d *DeadLetters) Lengths(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Queues))
	for _, q := range Queues {
		n, err := d.Len(ctx, q)
		if err != nil {
			return nil, err
		}
		out[q] = n
	}
	return out, nil
}

// Requeue moves up to limit entries, oldest first, back onto their queue with
// a fresh attempt budget. It returns how many were moved.
func (d *DeadLetters) Requeue(ctx context.Context, queue string, limit int) (int, error) {
	if !IsKnownQueue(queue) {
		return 0, fmt.Errorf("cola desconocida: %s", queue)
	}
	moved := 0
	for moved < limit {
		raw, err := d.rdb.RPop(ctx, DLQPrefix+queue).Bytes()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, err
		}
		var entry DLQEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: dropping unreadable entry")
			continue
		}
		encoded, err := json.Marshal(entry.retryJob())
		if err != nil {
			return moved, err
		}
		if err := d.rdb.LPush(ctx, queue, encoded).Err(); err != nil {
			// put it back so the entry is not lost
			_ = d.rdb.RPush(ctx, DLQPrefix+queue, raw).Err()
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("moved", moved).Msg("dlq: jobs requeued")
	}
	return moved, nil
}

func IsKnownQueue(queue string) bool {
	for _, q := range Queues {
		if q == queue {
			return true
		}
	}
	return false
}
