// Package scheduler runs a single-goroutine timer wheel over a min-heap
// of pending fire events. It owns no reminder semantics; the reminder
// service persists state and consumes fired events from C().
package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidFireTime = errors.New("scheduler: invalid fire time")
	ErrStopped         = errors.New("scheduler: engine stopped")
)

// FireEvent is a due reminder surfacing out of the engine.
type FireEvent struct {
	ReminderID string
	SubjectID  string
	FireAt     time.Time
}

type queueItem struct {
	event FireEvent
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].event.FireAt.Before(pq[j].event.FireAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

type Engine struct {
	mu       sync.Mutex
	queue    priorityQueue
	canceled map[string]struct{}
	out      chan FireEvent
	wakeup   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopped  bool
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:    make(priorityQueue, 0),
		canceled: make(map[string]struct{}),
		out:      make(chan FireEvent, bufferSize),
		wakeup:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// C is closed when the engine stops; every armed, uncanceled event is
// emitted exactly once before that.
func (e *Engine) C() <-chan FireEvent {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

func (e *Engine) Schedule(ev FireEvent) error {
	if ev.FireAt.IsZero() {
		return ErrInvalidFireTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}

	// Re-arming a previously canceled id revives it.
	delete(e.canceled, ev.ReminderID)
	heap.Push(&e.queue, queueItem{event: ev})
	e.signalWakeup()
	return nil
}

// Cancel disarms a pending event. Removal is lazy: the id is marked and
// skipped when it reaches the head of the queue. Ids not in the queue
// are ignored; a mark for them would never be swept.
func (e *Engine) Cancel(reminderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	for i := range e.queue {
		if e.queue[i].event.ReminderID == reminderID {
			e.canceled[reminderID] = struct{}{}
			return
		}
	}
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := time.Until(next.FireAt)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, ev := range e.popDue(time.Now()) {
				select {
				case e.out <- ev:
				case <-e.stopCh:
					stopTimer(timer)
					return
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (FireEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) > 0 {
		next := e.queue[0].event
		if _, gone := e.canceled[next.ReminderID]; !gone {
			return next, true
		}
		heap.Pop(&e.queue)
		delete(e.canceled, next.ReminderID)
	}
	return FireEvent{}, false
}

func (e *Engine) popDue(now time.Time) []FireEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]FireEvent, 0)
	for len(e.queue) > 0 {
		next := e.queue[0].event
		if next.FireAt.After(now) {
			break
		}
		item := heap.Pop(&e.queue).(queueItem)
		if _, gone := e.canceled[item.event.ReminderID]; gone {
			delete(e.canceled, item.event.ReminderID)
			continue
		}
		out = append(out, item.event)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
