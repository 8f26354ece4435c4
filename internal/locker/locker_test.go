package locker

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "alice", "item-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if len(m.locks) != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", len(m.locks))
	}
}

func TestMemoryLockerDistinctKeysDoNotBlock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "alice", "item-1")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	// A different item and a different owner with the same item id
	// must both be acquirable while item-1 is held.
	releaseB, err := m.Acquire(ctx, "alice", "item-2")
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	releaseB()

	releaseC, err := m.Acquire(ctx, "bob", "item-1")
	if err != nil {
		t.Fatalf("acquire c: %v", err)
	}
	releaseC()
}

func TestMemoryLockerCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Acquire(ctx, "alice", "item-1"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
