package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/models"
)

func TestKeyedLockerExcludesSameKey(t *testing.T) {
	locker := NewKeyedLocker()
	node := uuid.New()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), node, models.KindPolygon)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, locker.size())
}

func TestKeyedLockerIndependentKeys(t *testing.T) {
	locker := NewKeyedLocker()
	node := uuid.New()

	unlockPolygons, err := locker.Lock(context.Background(), node, models.KindPolygon)
	require.NoError(t, err)
	defer unlockPolygons()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockTexts, err := locker.Lock(ctx, node, models.KindText)
	require.NoError(t, err, "texts of the same node must not wait for polygons")
	unlockTexts()

	unlockOther, err := locker.Lock(ctx, uuid.New(), models.KindPolygon)
	require.NoError(t, err)
	unlockOther()
}

func TestKeyedLockerHonoursContext(t *testing.T) {
	locker := NewKeyedLocker()
	node := uuid.New()

	unlock, err := locker.Lock(context.Background(), node, models.KindText)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, node, models.KindText)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, locker.size())
}
