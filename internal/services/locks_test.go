package services

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserLocks(t *testing.T) {
	t.Run("serializes_same_user", func(t *testing.T) {
		locks := NewUserLocks()
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock("u1")
				defer unlock()
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				inside.Add(-1)
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), maxInside.Load())
		require.Equal(t, 0, locks.size())
	})

	t.Run("independent_users", func(t *testing.T) {
		locks := NewUserLocks()
		unlockA := locks.Lock("a")
		unlockB := locks.Lock("b")
		require.Equal(t, 2, locks.size())
		unlockA()
		unlockB()
		require.Equal(t, 0, locks.size())
	})
}
