// Package master implements the scheduling core: the scheduled-jobs
// table (component D), the scheduler (component E), the timeout
// manager (component F), the worker-command sender (component G), and
// the event adapter (component H).
//
// Grounded on sched/scheduler/stateful_scheduler.go's event-loop
// scheduler and original_source/src/master/scheduler.{h,cpp}, whose
// Scheduler class this package's Scheduler type tracks operation for
// operation.
package master

import (
	"fmt"

	"github.com/scootdev/dispatch/job"
)

// scheduledJob is one row of the scheduled-jobs table: a job that has
// left the queue and is being actively placed.
type scheduledJob struct {
	job           *job.Job
	plannedExec   int
	remainingExec int
}

// jobTable owns the set of active jobs and their remaining-execution
// counters. Grounded on original_source/src/master/job.h's Job
// bookkeeping, generalized from a single counter to the richer
// plannedExec/remainingExec split GetNumPlannedExec requires.
//
// jobTable is not safe for concurrent use on its own: callers (the
// Scheduler) hold jobsMutex around every call.
type jobTable struct {
	jobs     map[int64]*scheduledJob
	order    []int64 // insertion order, for "iterate active jobs in insertion order"
	onRemove func(jobId int64, status string)
	groups   map[int64]*job.JobGroup
}

func newJobTable(onRemove func(jobId int64, status string)) *jobTable {
	return &jobTable{
		jobs:     make(map[int64]*scheduledJob),
		groups:   make(map[int64]*job.JobGroup),
		onRemove: onRemove,
	}
}

// Add inserts a newly-planned job into the table.
func (t *jobTable) Add(j *job.Job, plannedExec int, group *job.JobGroup) {
	t.jobs[j.Id] = &scheduledJob{job: j, plannedExec: plannedExec, remainingExec: plannedExec}
	t.order = append(t.order, j.Id)
	if group != nil {
		t.groups[j.Id] = group
	}
}

// Get returns the scheduled job row, if active.
func (t *jobTable) Get(jobId int64) (*scheduledJob, bool) {
	sj, ok := t.jobs[jobId]
	return sj, ok
}

// Active reports whether jobId is currently in the table.
func (t *jobTable) Active(jobId int64) bool {
	_, ok := t.jobs[jobId]
	return ok
}

// InOrder returns every active jobId in insertion order.
func (t *jobTable) InOrder() []int64 {
	out := make([]int64, 0, len(t.order))
	for _, id := range t.order {
		if _, ok := t.jobs[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// DecrementJobExecution subtracts n from jobId's remaining-execution
// count. Once it reaches zero or below, the job is removed with status
// "success". It reports whether the job is still active afterward.
func (t *jobTable) DecrementJobExecution(jobId int64, n int) (stillActive bool) {
	sj, ok := t.jobs[jobId]
	if !ok {
		return false
	}
	sj.remainingExec -= n
	if sj.remainingExec <= 0 {
		t.RemoveJob(jobId, "success")
		return false
	}
	return true
}

// RemoveJob removes jobId from the table with the given status,
// invoking its completion callback, the on-remove hook, and releasing
// its DAG successors. It returns the successors that became eligible
// for scheduling (their dependency count reached zero).
func (t *jobTable) RemoveJob(jobId int64, status string) []*job.Job {
	sj, ok := t.jobs[jobId]
	if !ok {
		return nil
	}
	delete(t.jobs, jobId)
	group := t.groups[jobId]
	delete(t.groups, jobId)

	if sj.job.OnComplete != nil {
		sj.job.OnComplete(fmt.Sprintf("job %d: %s", jobId, status))
	}
	if t.onRemove != nil {
		t.onRemove(jobId, status)
	}
	if group != nil {
		return group.Release(sj.job)
	}
	return nil
}
