package master

import (
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/workerpool"
)

// stopWorkers implements StopWorkers(jobId) (4.E.6): every node
// currently holding a task of jobId gets one StopTask command per held
// taskId, then has that job's accounting wiped from its WorkerJob and
// its busyCPU freed. Takes workersMutex itself; callers must NOT be
// holding jobsMutex, since the spec's lock order is
// workersMutex-then-jobsMutex and never the reverse.
func (s *Scheduler) stopWorkers(jobId int64) {
	s.workersMutex.Lock()
	for ip, n := range s.nodes {
		wj := n.Worker.Job()
		if wj == nil || wj.NumTasks(jobId) == 0 {
			continue
		}
		q := s.registry.CommandQueue(ip)
		for _, taskId := range wj.TaskIds(jobId) {
			q.Push(workerpool.Command{Kind: workerpool.StopTask, JobId: jobId, TaskId: taskId})
		}
		removed := wj.DeleteJob(jobId)
		n.busyCPU -= removed
		if n.busyCPU < 0 {
			n.busyCPU = 0
		}
	}
	s.workersMutex.Unlock()
}

// StopJob stops every worker holding jobId and removes it from the
// scheduled-jobs table with status "stopped".
func (s *Scheduler) StopJob(jobId int64) {
	s.jobsMutex.Lock()
	if s.table.Active(jobId) {
		s.table.RemoveJob(jobId, "stopped")
		s.pendingStops = append(s.pendingStops, jobId)
	}
	toStop := s.drainPendingStopsLocked()
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	if len(toStop) > 0 {
		s.notify(observer.CommandsChanged)
	}
}

// StopJobGroup stops every active job sharing groupId's DAG group.
func (s *Scheduler) StopJobGroup(groupId int64) {
	s.jobsMutex.Lock()
	var toStop []int64
	for _, jobId := range s.table.InOrder() {
		sj, _ := s.table.Get(jobId)
		if sj.job.GroupId == groupId {
			toStop = append(toStop, jobId)
		}
	}
	for _, jobId := range toStop {
		s.table.RemoveJob(jobId, "stopped")
	}
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	if len(toStop) > 0 {
		s.notify(observer.CommandsChanged)
	}
}

// StopAllJobs stops every active job, then broadcasts StopAllJobsCommand
// to every node so workers abandon anything the table lost track of.
func (s *Scheduler) StopAllJobs() {
	s.jobsMutex.Lock()
	toStop := append([]int64(nil), s.table.InOrder()...)
	for _, jobId := range toStop {
		s.table.RemoveJob(jobId, "stopped")
	}
	s.jobsMutex.Unlock()

	s.flushStops(toStop)

	s.workersMutex.Lock()
	for ip := range s.nodes {
		s.registry.CommandQueue(ip).Push(workerpool.Command{Kind: workerpool.StopAllJobs})
	}
	s.workersMutex.Unlock()
	s.notify(observer.CommandsChanged)
}

// StopPreviousJobs broadcasts StopPreviousJobsCommand to every node,
// telling workers to discard work from a prior master incarnation
// without touching this scheduler's own table.
func (s *Scheduler) StopPreviousJobs() {
	s.workersMutex.Lock()
	for ip := range s.nodes {
		s.registry.CommandQueue(ip).Push(workerpool.Command{Kind: workerpool.StopPreviousJobs})
	}
	s.workersMutex.Unlock()
	s.notify(observer.CommandsChanged)
}
