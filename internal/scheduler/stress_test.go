package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestEngineStressConcurrentSchedule(t *testing.T) {
	engine := NewEngine(4096)
	engine.Start()
	defer engine.Stop()

	const workers = 8
	const perWorker = 200
	total := workers * perWorker

	now := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				delay := time.Duration((w+i)%50+10) * time.Millisecond
				ev := FireEvent{
					ReminderID: fmt.Sprintf("w%d-%d", w, i),
					SubjectID:  fmt.Sprintf("subject-%d", i),
					FireAt:     now.Add(delay),
				}
				if err := engine.Schedule(ev); err != nil {
					t.Errorf("schedule failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	received := 0
	for received < total {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting events: received=%d total=%d", received, total)
		case <-engine.C():
			received++
		}
	}

	if received != total {
		t.Fatalf("unexpected received count: got=%d want=%d", received, total)
	}
}
