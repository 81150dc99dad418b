package manager

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedLocks_SerializesSameID(t *testing.T) {
	t.Parallel()

	k := newKeyedLocks()
	var counter, max int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.acquire("a")
			defer release()
			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()
			time.Sleep(time.Microsecond)
			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", max)
	}
	if len(k.locks) != 0 {
		t.Fatalf("lock map has %d entries after release, want 0", len(k.locks))
	}
}

func TestKeyedLocks_DifferentIDsDoNotBlock(t *testing.T) {
	t.Parallel()

	k := newKeyedLocks()
	releaseA := k.acquire("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := k.acquire("b")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire on a different id blocked")
	}
}

func TestKeyedLocks_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	k := newKeyedLocks()
	release := k.acquire("a")
	release()
	release()

	release = k.acquire("a")
	release()
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: EventExecuted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if ev := <-ch; ev.Type != EventExecuted {
		t.Fatalf("event = %s, want executed", ev.Type)
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(4)
	cancel()
	cancel() // safe to call twice

	b.Publish(Event{Type: EventCreated})
	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
}
