package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_DeduplicatesConcurrentCalls(t *testing.T) {
	var flight SingleFlight
	var executions atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = flight.Do("key", func() (any, error) {
			executions.Add(1)
			close(entered)
			<-release
			return 42, nil
		})
	}()
	<-entered

	// Followers join while the leader is still in flight.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err, _ := flight.Do("key", func() (any, error) {
				executions.Add(1)
				return 42, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if out != 42 {
				t.Errorf("unexpected value: %v", out)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Fatalf("expected a single execution, got %d", got)
	}
}

func TestSingleFlight_IndependentKeysRunSeparately(t *testing.T) {
	var flight SingleFlight

	a, _, _ := flight.Do("a", func() (any, error) { return "a", nil })
	b, _, _ := flight.Do("b", func() (any, error) { return "b", nil })

	if a != "a" || b != "b" {
		t.Fatalf("unexpected results: %v %v", a, b)
	}
}
