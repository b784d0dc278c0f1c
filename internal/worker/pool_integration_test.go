//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/infra"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type countingProcessor struct {
	calls atomic.Int32
	err   error
}

func (p *countingProcessor) Process(context.Context, json.RawMessage) error {
	p.calls.Add(1)
	return p.err
}

func popAndHandle(t *testing.T, p *Pool) {
	t.Helper()
	ctx := context.Background()
	res, err := p.rdb.BRPop(ctx, time.Second, QueueEmail).Result()
	require.NoError(t, err)
	p.handle(ctx, res[0], res[1])
}

func TestPool_RetriesThenParks(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	proc := &countingProcessor{err: errors.New("smtp unreachable")}
	pool := NewPool(rdb, map[string]Processor{JobReceiptEmail: proc})

	require.NoError(t, NewDispatcher(rdb).EnqueueReceiptEmail(ctx, ReceiptEmailJob{To: "bob@example.com"}))

	for i := 0; i < MaxAttempts; i++ {
		popAndHandle(t, pool)
	}
	assert.EqualValues(t, MaxAttempts, proc.calls.Load())

	queued, err := rdb.LLen(ctx, QueueEmail).Result()
	require.NoError(t, err)
	assert.Zero(t, queued)

	depth, err := DeadLetterDepth(ctx, rdb, QueueEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	parked, err := PeekDeadLetters(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, JobReceiptEmail, parked[0].Job.Type)
	assert.Equal(t, MaxAttempts, parked[0].Job.Attempts)
	assert.Equal(t, "smtp unreachable", parked[0].Reason)
}

func TestPool_PermanentErrorParksImmediately(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	proc := &countingProcessor{err: errors.Wrap(ErrPermanent, "no recipient")}
	pool := NewPool(rdb, map[string]Processor{JobReceiptEmail: proc})

	require.NoError(t, NewDispatcher(rdb).EnqueueReceiptEmail(ctx, ReceiptEmailJob{}))
	popAndHandle(t, pool)

	assert.EqualValues(t, 1, proc.calls.Load())
	depth, err := DeadLetterDepth(ctx, rdb, QueueEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestPool_UnknownJobTypeIsParked(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	pool := NewPool(rdb, map[string]Processor{})

	require.NoError(t, push(ctx, rdb, QueueEmail, Job{Type: "fax", Payload: json.RawMessage(`{}`)}))
	popAndHandle(t, pool)

	parked, err := PeekDeadLetters(ctx, rdb, QueueEmail, 1)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "no processor for job type", parked[0].Reason)
}

func TestReplayDeadLetters(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	proc := &countingProcessor{err: errors.Wrap(ErrPermanent, "bounce")}
	pool := NewPool(rdb, map[string]Processor{JobReceiptEmail: proc})
	d := NewDispatcher(rdb)

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, d.EnqueueReceiptEmail(ctx, ReceiptEmailJob{To: to}))
		popAndHandle(t, pool)
	}

	parked, err := PeekDeadLetters(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	require.Len(t, parked, 3)
	var first ReceiptEmailJob
	require.NoError(t, json.Unmarshal(parked[0].Job.Payload, &first))
	assert.Equal(t, "a@example.com", first.To, "oldest first")

	n, err := ReplayDeadLetters(ctx, rdb, QueueEmail, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	depth, err := DeadLetterDepth(ctx, rdb, QueueEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	// Replayed jobs get a clean slate and succeed once the server is back.
	proc.err = nil
	popAndHandle(t, pool)
	popAndHandle(t, pool)
	assert.EqualValues(t, 5, proc.calls.Load())

	n, err = ReplayDeadLetters(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = ReplayDeadLetters(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}
