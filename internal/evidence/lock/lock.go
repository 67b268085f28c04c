// Package lock serializes mutations per (tenant, entity). Different entities
// proceed in parallel; the same entity is processed one request at a time.
package lock

import (
	"context"
	"hash/fnv"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// Key identifies the entity being mutated.
type Key struct {
	TenantID id.TenantID
	Entity   string
}

func (k Key) String() string {
	return k.TenantID.String() + ":" + k.Entity
}

// DraftKey and EvidenceKey build keys for the two lockable aggregates.
func DraftKey(tenantID id.TenantID, draftID id.DraftID) Key {
	return Key{TenantID: tenantID, Entity: "draft:" + draftID.String()}
}

func EvidenceKey(tenantID id.TenantID, evidenceID id.EvidenceID) Key {
	return Key{TenantID: tenantID, Entity: "evidence:" + evidenceID.String()}
}

// Locker acquires a lock for key, blocking until it is free or ctx is done.
// The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key Key) (release func(), err error)
}

const numShards = 128

// Local is an in-process Locker built on sharded semaphores. Keys hashing to
// the same shard share a lock, which only costs throughput.
type Local struct {
	shards [numShards]chan struct{}
}

func NewLocal() *Local {
	l := &Local{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *Local) Acquire(ctx context.Context, key Key) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, busy(err)
	}
	shard := l.shards[shardOf(key)]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, busy(ctx.Err())
	}
}

func shardOf(key Key) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return h.Sum32() % numShards
}

func busy(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "record is busy, retry shortly")
}
