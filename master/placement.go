package master

import (
	"github.com/scootdev/dispatch/job"
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/workerpool"
)

// GetTaskToSend is the placement decision (4.E.3): it finds the first
// worker, in descending free-CPU/memory order, that can take on work
// right now, fills its planned assignment from the reschedule FIFO or,
// if that yields nothing, from fresh tasksToSend, and returns that
// assignment.
// If nothing could be placed but some worker had spare capacity, it
// pulls the next job off the queue instead so the next call has
// something to place.
func (s *Scheduler) GetTaskToSend() (planned *workerpool.WorkerJob, ip string, j *job.Job, ok bool) {
	s.workersMutex.Lock()
	s.jobsMutex.Lock()

	nodes := make([]*NodeState, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sortNodesByCPUAndMemory(nodes)

	anyFree := false
	for _, n := range nodes {
		if !n.Available() || n.FreeCPU() <= 0 {
			continue
		}
		anyFree = true

		candidate := workerpool.NewWorkerJob()
		s.fillFromRescheduleLocked(n, candidate)
		if candidate.Total() == 0 {
			s.fillFromTasksToSendLocked(n, candidate)
		}
		if candidate.Total() == 0 {
			continue
		}

		n.Worker.Job().Merge(candidate)
		n.busyCPU += candidate.Total()

		var placedJob *job.Job
		for _, jobId := range candidate.JobIds() {
			if sj, active := s.table.Get(jobId); active {
				placedJob = sj.job
			}
			break
		}

		s.jobsMutex.Unlock()
		s.workersMutex.Unlock()
		s.stats.Counter("tasks_placed").Inc(int64(candidate.Total()))
		s.notify(observer.JobsChanged)
		return candidate, n.Worker.IP, placedJob, true
	}

	madeProgress := false
	if anyFree {
		madeProgress = s.planJobExecutionLocked()
	}
	s.jobsMutex.Unlock()
	s.workersMutex.Unlock()
	if madeProgress {
		s.notify(observer.JobsChanged)
	}
	return nil, "", nil, false
}

// fillFromRescheduleLocked drains the head of needReschedule into
// candidate as long as entries belong to a still-active job, the
// worker isn't blocklisted for that job, CanAddTaskToWorker allows it,
// and the worker isn't yet saturated. It stops at the first entry
// naming a different jobId than the first one taken, so candidate never
// mixes jobs within one call. Must be called with both mutexes held.
func (s *Scheduler) fillFromRescheduleLocked(n *NodeState, candidate *workerpool.WorkerJob) {
	var kept []workerpool.WorkerTask
	var takenJobId int64
	haveTaken := false
	stopped := false

	for _, wt := range s.needReschedule {
		if stopped || candidate.Total() >= n.FreeCPU() {
			kept = append(kept, wt)
			continue
		}
		sj, active := s.table.Get(wt.JobId)
		if !active {
			continue // drop: job no longer active
		}
		if haveTaken && wt.JobId != takenJobId {
			stopped = true
			kept = append(kept, wt)
			continue
		}
		if s.isFailedWorkerLocked(wt.JobId, n.Worker.IP) {
			kept = append(kept, wt)
			continue
		}
		if s.workerHoldsForeignExclusiveLocked(n.Worker.Job(), wt.JobId) || s.workerHoldsForeignExclusiveLocked(candidate, wt.JobId) {
			kept = append(kept, wt)
			continue
		}
		if !canAddTaskToWorker(n.Worker.Job(), candidate, wt.JobId, sj.job) {
			kept = append(kept, wt)
			continue
		}
		candidate.AddTask(wt.JobId, wt.TaskId)
		takenJobId = wt.JobId
		haveTaken = true
	}
	s.needReschedule = kept
}

// fillFromTasksToSendLocked drains tasksToSend for the first active job
// (in insertion order) this worker is eligible to receive, until the
// worker saturates or that job's pending tasks are exhausted. Must be
// called with both mutexes held.
func (s *Scheduler) fillFromTasksToSendLocked(n *NodeState, candidate *workerpool.WorkerJob) {
	for _, jobId := range s.table.InOrder() {
		if candidate.Total() > 0 {
			break // a prior jobId in this loop already contributed
		}
		sj, _ := s.table.Get(jobId)
		jb := sj.job

		if s.isFailedWorkerLocked(jobId, n.Worker.IP) {
			continue
		}
		if jb.HostAllow != nil && !jb.HostAllow[n.Worker.IP] {
			continue
		}
		if jb.GroupAllow != nil && !jb.GroupAllow[n.Worker.Group] {
			continue
		}

		if s.workerHoldsForeignExclusiveLocked(n.Worker.Job(), jobId) {
			continue
		}

		pending := s.tasksToSend[jobId]
		for taskId := range pending {
			if candidate.Total() >= n.FreeCPU() {
				break
			}
			if !canAddTaskToWorker(n.Worker.Job(), candidate, jobId, jb) {
				break
			}
			candidate.AddTask(jobId, taskId)
			delete(pending, taskId)
		}
		if len(pending) == 0 {
			delete(s.tasksToSend, jobId)
		}
	}
}

// workerHoldsForeignExclusiveLocked reports whether wj already carries
// tasks of some active job other than jobId that is itself exclusive.
// P6 is symmetric: an exclusive job's worker must hold nothing else, no
// matter which side of the pairing is being considered for placement.
// Must be called with jobsMutex held.
func (s *Scheduler) workerHoldsForeignExclusiveLocked(wj *workerpool.WorkerJob, jobId int64) bool {
	for _, heldId := range wj.JobIds() {
		if heldId == jobId {
			continue
		}
		if sj, active := s.table.Get(heldId); active && sj.job.Flags.Exclusive {
			return true
		}
	}
	return false
}

// canAddTaskToWorker implements CanAddTaskToWorker (4.E.3).
func canAddTaskToWorker(current, planned *workerpool.WorkerJob, jobId int64, j *job.Job) bool {
	if j.Flags.Exclusive {
		for _, id := range current.JobIds() {
			if id != jobId {
				return false
			}
		}
		for _, id := range planned.JobIds() {
			if id != jobId {
				return false
			}
		}
	}
	if j.Limits.MaxCPUPerHost >= 0 {
		if current.NumTasks(jobId)+planned.NumTasks(jobId) >= j.Limits.MaxCPUPerHost {
			return false
		}
	}
	return true
}
