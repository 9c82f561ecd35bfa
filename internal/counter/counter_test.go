package counter

import (
	"sync"
	"testing"
)

func TestDaily_IncrementAndRemaining(t *testing.T) {
	daily := New(2)

	if got := daily.Increment(); got != 1 {
		t.Fatalf("expected count 1 after first increment, got %d", got)
	}
	if got := daily.Remaining(); got != 1 {
		t.Fatalf("expected 1 remaining, got %d", got)
	}

	daily.Increment()
	if got := daily.Remaining(); got != 0 {
		t.Fatalf("expected 0 remaining at cap, got %d", got)
	}

	daily.Increment()
	if got := daily.Remaining(); got != 0 {
		t.Fatalf("remaining must floor at zero, got %d", got)
	}
}

func TestDaily_DecrementClampsAtZero(t *testing.T) {
	daily := New(5)
	daily.Increment()

	if got := daily.Decrement(3); got != 0 {
		t.Fatalf("decrement beyond current count must clamp to zero, got %d", got)
	}
	if got := daily.Count(); got != 0 {
		t.Fatalf("count must never go negative, got %d", got)
	}
}

func TestDaily_Reset(t *testing.T) {
	daily := New(5)
	daily.Increment()
	daily.Increment()

	if got := daily.Reset(); got != 0 {
		t.Fatalf("expected count 0 after reset, got %d", got)
	}
}

func TestDaily_ConcurrentMutations(t *testing.T) {
	daily := New(1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			daily.Increment()
		}()
		go func() {
			defer wg.Done()
			daily.Decrement(1)
		}()
	}
	wg.Wait()

	if got := daily.Count(); got < 0 {
		t.Fatalf("count must never be negative, got %d", got)
	}
}
