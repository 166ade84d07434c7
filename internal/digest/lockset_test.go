package digest

import (
	"sync"
	"testing"
)

func TestLockSetAcquireRelease(t *testing.T) {
	locks := NewLockSet()

	if !locks.TryAcquire("studio-a") {
		t.Fatal("expected first acquire to succeed")
	}
	if locks.TryAcquire("studio-a") {
		t.Fatal("expected second acquire to fail while held")
	}
	if !locks.TryAcquire("studio-b") {
		t.Fatal("expected unrelated tenant to acquire")
	}

	locks.Release("studio-a")
	if !locks.TryAcquire("studio-a") {
		t.Fatal("expected acquire after release to succeed")
	}

	// Releasing an unheld tenant must not panic or affect others.
	locks.Release("studio-c")
	if !locks.Held("studio-a") || !locks.Held("studio-b") {
		t.Fatal("expected held tenants to stay held")
	}
}

func TestLockSetConcurrentSingleWinner(t *testing.T) {
	locks := NewLockSet()

	const attempts = 64
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locks.TryAcquire("studio-a") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}
