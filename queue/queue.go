// Package queue implements the job queue (component B): the
// thread-safe, priority- and DAG-aware holding area jobs sit in before
// the scheduler first dispatches them.
//
// Grounded on sched/queue/memory/simple.go's in-memory queue, adapted
// from its channel-actor style to the single-mutex style
// original_source/src/master/job.h's JobQueue uses, since the spec
// requires synchronous Pop/GetById/Delete semantics rather than a
// blocking channel protocol.
package queue

import (
	"sort"
	"sync"

	"github.com/scootdev/dispatch/job"
)

// Queue is the thread-safe holding area for jobs accepted from
// operators but not yet handed to the scheduler's in-flight table.
type Queue struct {
	mu      sync.Mutex
	byId    map[int64]*entry
	nextSeq int64
}

type entry struct {
	job     *job.Job
	groupId int64
	seq     int64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{byId: make(map[int64]*entry)}
}

// Push adds a single job to the queue under the given DAG group id (use
// job.Id if the job isn't part of a multi-job DAG).
func (q *Queue) Push(j *job.Job, groupId int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushLocked(j, groupId)
}

// PushAll adds every job to the queue under one group id, preserving
// the given insertion order.
func (q *Queue) PushAll(jobs []*job.Job, groupId int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range jobs {
		q.pushLocked(j, groupId)
	}
}

func (q *Queue) pushLocked(j *job.Job, groupId int64) {
	q.byId[j.Id] = &entry{job: j, groupId: groupId, seq: q.nextSeq}
	q.nextSeq++
}

// Pop removes and returns the highest-priority job whose DAG dependency
// count is zero. Ties are broken by smaller groupId (older groups
// first), then by insertion order.
func (q *Queue) Pop() (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var candidates []*entry
	for _, e := range q.byId {
		if e.job.NumDepends() == 0 {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	sort.SliceStable(candidates, func(i, k int) bool {
		a, b := candidates[i], candidates[k]
		if a.job.Priority != b.job.Priority {
			return a.job.Priority > b.job.Priority
		}
		if a.groupId != b.groupId {
			return a.groupId < b.groupId
		}
		return a.seq < b.seq
	})

	top := candidates[0]
	delete(q.byId, top.job.Id)
	return top.job, true
}

// GetById looks up a queued job without removing it.
func (q *Queue) GetById(id int64) (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byId[id]
	if !ok {
		return nil, false
	}
	return e.job, true
}

// Delete removes a job from the queue before it was ever dispatched
// (e.g. an admin-requested cancellation of a still-queued job). It
// returns the removed job and whether it was present.
//
// Design decision (spec.md §9, open question 1): the original source's
// JobQueue::Delete releases the job's DAG dependents exactly as a
// successful completion would. We preserve that behavior here rather
// than silently stranding dependents of an admin-cancelled job. The
// release has already happened by the time Delete returns.
func (q *Queue) Delete(id int64) (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byId[id]
	if !ok {
		return nil, false
	}
	delete(q.byId, id)
	e.job.Group().Release(e.job)
	return e.job, true
}

// DeleteGroup removes every job queued under groupId, returning them.
// Each removed job releases its own DAG dependents, same as Delete.
func (q *Queue) DeleteGroup(groupId int64) []*job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var removed []*job.Job
	for id, e := range q.byId {
		if e.groupId == groupId {
			removed = append(removed, e.job)
			delete(q.byId, id)
			e.job.Group().Release(e.job)
		}
	}
	return removed
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byId = make(map[int64]*entry)
}

// Len reports how many jobs are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byId)
}
