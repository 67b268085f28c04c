package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	key := EvidenceKey(id.NewTenantID(), id.NewEvidenceID())

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), key)
			require.NoError(t, err)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	key := DraftKey(id.NewTenantID(), id.NewDraftID())

	release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, key)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestKeysAreTenantScoped(t *testing.T) {
	evidence := id.NewEvidenceID()
	a := EvidenceKey(id.NewTenantID(), evidence)
	b := EvidenceKey(id.NewTenantID(), evidence)
	assert.NotEqual(t, a.String(), b.String())
}
