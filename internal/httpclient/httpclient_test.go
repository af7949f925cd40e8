package httpclient

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	c := WithTimeout(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", c.Timeout)
	}
	if c.Transport == defaultClient.Transport {
		t.Fatal("transport must be cloned, not shared by pointer")
	}
	if Default().Timeout != DefaultTimeout {
		t.Fatalf("default timeout = %v", Default().Timeout)
	}
}

func TestHostSemaphore_limitsConcurrency(t *testing.T) {
	const limit = 2
	sem := NewHostSemaphore(limit)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := sem.Acquire("http://panel:8080/player_api.php?action=x")
			defer release()
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()
	if p := atomic.LoadInt32(&peak); p > limit {
		t.Fatalf("peak concurrency %d exceeds limit %d", p, limit)
	}
}

func TestHostSemaphore_perHost(t *testing.T) {
	sem := NewHostSemaphore(1)
	releaseA := sem.Acquire("http://host-a/x")
	defer releaseA()

	// A different host must not be blocked by host-a's slot.
	done := make(chan struct{})
	go func() {
		release := sem.Acquire("http://host-b/y")
		release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("host-b blocked behind host-a")
	}
}
