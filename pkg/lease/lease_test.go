package lease_test

import (
	"sync"
	"testing"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
)

func TestTryAcquireExclusive(t *testing.T) {
	r := lease.New()

	first, ok := r.TryAcquire("conn-1")
	if !ok {
		t.Fatal("first acquire failed")
	}
	if first.Key() != "conn-1" {
		t.Errorf("Key = %s, want conn-1", first.Key())
	}

	if _, ok := r.TryAcquire("conn-1"); ok {
		t.Error("second acquire succeeded while lease held")
	}
	if !r.Holding("conn-1") {
		t.Error("Holding = false while lease held")
	}

	first.Release()

	if r.Holding("conn-1") {
		t.Error("Holding = true after release")
	}
	if _, ok := r.TryAcquire("conn-1"); !ok {
		t.Error("acquire failed after release")
	}
}

func TestIndependentKeys(t *testing.T) {
	r := lease.New()

	if _, ok := r.TryAcquire("conn-1"); !ok {
		t.Fatal("acquire conn-1 failed")
	}
	if _, ok := r.TryAcquire("conn-2"); !ok {
		t.Error("acquire conn-2 failed while conn-1 held")
	}
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	r := lease.New()

	l, _ := r.TryAcquire("conn-1")
	l.Release()
	l.Release()

	next, ok := r.TryAcquire("conn-1")
	if !ok {
		t.Fatal("reacquire failed")
	}

	// The stale handle must not release the new holder's claim.
	l.Release()
	if !r.Holding("conn-1") {
		t.Error("stale release evicted the current holder")
	}
	next.Release()
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	r := lease.New()

	var wg sync.WaitGroup
	wins := make(chan *lease.Lease, 32)

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l, ok := r.TryAcquire("conn-1"); ok {
				wins <- l
			}
		}()
	}
	wg.Wait()
	close(wins)

	if len(wins) != 1 {
		t.Errorf("winners = %d, want 1", len(wins))
	}
}
