// ABOUTME: Tests for the TTL dedupe cache
// ABOUTME: Covers duplicate marking, expiry, capacity eviction and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSeen(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	if c.Seen("a") {
		t.Error("first sighting should not be a duplicate")
	}
	if !c.Seen("a") {
		t.Error("second sighting should be a duplicate")
	}
	if c.Seen("b") {
		t.Error("distinct key should not be a duplicate")
	}
}

func TestSeen_TTLExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 100)
	defer c.Close()

	c.Seen("a")
	time.Sleep(40 * time.Millisecond)

	if c.Seen("a") {
		t.Error("expired key should not count as a duplicate")
	}
}

func TestSeen_CapacityEviction(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	c.Seen("a")
	c.Seen("b")
	c.Seen("c")
	c.Seen("d") // evicts a

	if c.Len() != 3 {
		t.Errorf("expected 3 tracked keys, got %d", c.Len())
	}
	if c.Seen("a") {
		t.Error("evicted key should not count as a duplicate")
	}
}

func TestSeen_Concurrent(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	const goroutines = 16
	var dupes int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := int64(0)
			for i := 0; i < 100; i++ {
				if c.Seen(fmt.Sprintf("key-%d", i)) {
					local++
				}
			}
			mu.Lock()
			dupes += local
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 16 goroutines racing on 100 keys: exactly one winner per key
	want := int64(goroutines*100 - 100)
	if dupes != want {
		t.Errorf("expected %d duplicates, got %d", want, dupes)
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
