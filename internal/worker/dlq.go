package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// deadLetterKey is the Redis list holding jobs a queue gave up on.
func deadLetterKey(queue string) string { return "dead:" + queue }

// DeadLetter is a job parked after exhausting its attempts, or one that can
// never succeed (bad payload, no recipient, unknown type).
type DeadLetter struct {
	Job      Job       `json:"job"`
	Queue    string    `json:"queue"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

func park(ctx context.Context, rdb *redis.Client, queue string, job Job, reason string) {
	data, err := json.Marshal(DeadLetter{
		Job:      job,
		Queue:    queue,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("could not encode dead letter")
		return
	}
	if err := rdb.LPush(ctx, deadLetterKey(queue), data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("could not park job")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("job parked")
}

// DeadLetterDepth is reported by the health endpoint.
func DeadLetterDepth(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, deadLetterKey(queue)).Result()
}

// PeekDeadLetters returns up to n parked jobs, oldest first, without
// removing them.
func PeekDeadLetters(ctx context.Context, rdb *redis.Client, queue string, n int64) ([]DeadLetter, error) {
	raw, err := rdb.LRange(ctx, deadLetterKey(queue), -n, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read dead letters")
	}
	out := make([]DeadLetter, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw[i]), &dl); err != nil {
			return nil, errors.Wrap(err, "decode dead letter")
		}
		out = append(out, dl)
	}
	return out, nil
}

// ReplayDeadLetters moves up to n parked jobs back onto their queue with a
// fresh attempt count, e.g. once the mail server is reachable again.
func ReplayDeadLetters(ctx context.Context, rdb *redis.Client, queue string, n int) (int, error) {
	replayed := 0
	for replayed < n {
		raw, err := rdb.RPop(ctx, deadLetterKey(queue)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return replayed, errors.Wrap(err, "pop dead letter")
		}
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dropping undecodable dead letter")
			continue
		}
		dl.Job.Attempts = 0
		if err := push(ctx, rdb, queue, dl.Job); err != nil {
			return replayed, errors.Wrap(err, "requeue job")
		}
		replayed++
	}
	return replayed, nil
}
