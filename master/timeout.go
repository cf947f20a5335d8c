package master

import (
	"container/heap"
	"sync"
	"time"

	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/workerpool"
)

// EventKind distinguishes what a fired timeout entry should do.
type EventKind int

const (
	QueueTimeoutEvent EventKind = iota
	JobTimeoutEvent
	TaskTimeoutEvent
	CommandRetryEvent
)

type timeoutEvent struct {
	fireAt time.Time
	kind   EventKind
	jobId  int64
	task   workerpool.WorkerTask
	ip     string
	cmd    workerpool.Command
	index  int // heap.Interface bookkeeping
}

// timeoutHeap is a min-heap over fireAt, grounded on the stdlib
// container/heap example in the standard library documentation --
// even armadaproject-armada, the richest-dependency repo in the
// example pack, reaches for container/heap rather than a third-party
// priority queue for this exact shape (see DESIGN.md).
type timeoutHeap []*timeoutEvent

func (h timeoutHeap) Len() int           { return len(h) }
func (h timeoutHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }
func (h timeoutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timeoutHeap) Push(x interface{}) {
	e := x.(*timeoutEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timeoutHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimeoutManager is the monotonic-clock priority queue of component F:
// a single worker goroutine sleeps until the head entry's fireAt, pops
// everything expired, and dispatches it against the scheduler. Jobs
// removed from the table before their timeout fires are skipped lazily
// at pop time rather than actively cancelled.
type TimeoutManager struct {
	mu    sync.Mutex
	h     timeoutHeap
	wake  chan struct{}
	sched *Scheduler
}

// NewTimeoutManager returns a manager dispatching against sched.
func NewTimeoutManager(sched *Scheduler) *TimeoutManager {
	return &TimeoutManager{wake: make(chan struct{}, 1), sched: sched}
}

func (m *TimeoutManager) push(e *timeoutEvent) {
	m.mu.Lock()
	heap.Push(&m.h, e)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// ScheduleJobTimeout arms jobId's run (or queue) timeout.
func (m *TimeoutManager) ScheduleJobTimeout(jobId int64, at time.Time) {
	m.push(&timeoutEvent{fireAt: at, kind: JobTimeoutEvent, jobId: jobId})
}

// ScheduleTaskTimeout arms a single dispatched task's timeout.
func (m *TimeoutManager) ScheduleTaskTimeout(task workerpool.WorkerTask, ip string, at time.Time) {
	m.push(&timeoutEvent{fireAt: at, kind: TaskTimeoutEvent, task: task, ip: ip, jobId: task.JobId})
}

// ScheduleCommandRetry arms a re-delivery attempt for cmd after delay.
func (m *TimeoutManager) ScheduleCommandRetry(cmd workerpool.Command, ip string, delay time.Duration) {
	m.push(&timeoutEvent{fireAt: time.Now().Add(delay), kind: CommandRetryEvent, cmd: cmd, ip: ip})
}

// Run drives the manager until stop is closed. It is meant to run in
// its own goroutine.
func (m *TimeoutManager) Run(stop <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		m.mu.Lock()
		var d time.Duration
		if len(m.h) == 0 {
			d = time.Hour
		} else {
			d = time.Until(m.h[0].fireAt)
			if d < 0 {
				d = 0
			}
		}
		m.mu.Unlock()
		timer.Reset(d)

		select {
		case <-stop:
			return
		case <-m.wake:
			continue
		case <-timer.C:
			m.fireExpired()
		}
	}
}

func (m *TimeoutManager) fireExpired() {
	now := time.Now()
	var expired []*timeoutEvent
	m.mu.Lock()
	for len(m.h) > 0 && !m.h[0].fireAt.After(now) {
		expired = append(expired, heap.Pop(&m.h).(*timeoutEvent))
	}
	m.mu.Unlock()

	for _, e := range expired {
		switch e.kind {
		case QueueTimeoutEvent, JobTimeoutEvent:
			if m.sched.IsJobActive(e.jobId) {
				m.sched.OnJobTimeout(e.jobId)
			}
		case TaskTimeoutEvent:
			if m.sched.IsJobActive(e.jobId) {
				m.sched.OnTaskTimeout(e.task, e.ip)
			}
		case CommandRetryEvent:
			m.sched.registry.CommandQueue(e.ip).Push(e.cmd)
			m.sched.notify(observer.CommandsChanged)
		}
	}
}
