package handlers

import (
	"sync"
	"testing"
	"time"
)

func TestLocks(t *testing.T) {
	t.Run("same key is held by one at a time", func(t *testing.T) {
		testee := NewLocks()

		holding := 0
		max := 0
		mux := sync.Mutex{}
		wg := sync.WaitGroup{}
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := testee.Lock("doll")
				defer unlock()

				mux.Lock()
				holding += 1
				if max < holding {
					max = holding
				}
				mux.Unlock()

				time.Sleep(2 * time.Millisecond)

				mux.Lock()
				holding -= 1
				mux.Unlock()
			}()
		}
		wg.Wait()

		if max != 1 {
			t.Errorf("%d goroutines held the lock at once", max)
		}
		if s := testee.size(); s != 0 {
			t.Errorf("locks are left: %d", s)
		}
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		testee := NewLocks()
		unlockA := testee.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			defer close(done)
			unlock := testee.Lock("b")
			unlock()
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock for b is blocked by a")
		}
		if s := testee.size(); s != 1 {
			t.Errorf("unexpected lock count: %d", s)
		}
	})
}
