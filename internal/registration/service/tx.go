package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// numEventShards spreads per-event locks so unrelated events rarely contend.
const numEventShards = 128

// DefaultTxTimeout bounds a registration transaction when ctx has no deadline.
const DefaultTxTimeout = 5 * time.Second

// ShardedTx serializes mutations per event with a fixed set of mutexes. It is
// the RegistrationTx for in-memory stores, which have no rollback: a failed
// step is undone by the orchestrator's compensation.
type ShardedTx struct {
	shards  [numEventShards]sync.Mutex
	stores  Stores
	timeout time.Duration
}

func NewShardedTx(stores Stores, timeout time.Duration) *ShardedTx {
	return &ShardedTx{stores: stores, timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context, stores Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &t.shards[shardFor(eventID)]
	shard.Lock()
	defer shard.Unlock()

	// The wait for the lock may have used up the deadline.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.stores)
}

func shardFor(eventID id.EventID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(eventID[:])
	return h.Sum32() % numEventShards
}
