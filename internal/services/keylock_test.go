package services

import (
	"sync"
	"testing"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	locks := newKeyLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("ride_1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestKeyLockDifferentKeysAreIndependent(t *testing.T) {
	locks := newKeyLock()

	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	<-done
}

func TestKeyLockReusableAfterUnlock(t *testing.T) {
	locks := newKeyLock()

	unlock := locks.Lock("k")
	unlock()
	unlock = locks.Lock("k")
	unlock()
}
