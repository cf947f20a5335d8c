package master

import (
	"time"

	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/workerpool"
)

// OnTaskSendCompletion reacts to the transport layer's report of
// whether a just-placed assignment was actually delivered. Success
// needs no further action -- the assignment was already accounted for
// in GetTaskToSend. Failure marks the worker failed for every job in
// the assignment and reschedules it.
func (s *Scheduler) OnTaskSendCompletion(success bool, wj *workerpool.WorkerJob, ip string) {
	if success {
		return
	}

	s.workersMutex.Lock()
	if n, ok := s.nodes[ip]; ok {
		for _, jobId := range wj.JobIds() {
			for _, taskId := range wj.TaskIds(jobId) {
				n.Worker.Job().DeleteTask(jobId, taskId)
			}
		}
		n.busyCPU -= wj.Total()
		if n.busyCPU < 0 {
			n.busyCPU = 0
		}
	}
	s.workersMutex.Unlock()

	s.jobsMutex.Lock()
	for _, jobId := range wj.JobIds() {
		s.markFailedLocked(jobId, ip)
	}
	s.rescheduleLocked(wj)
	toStop := s.drainPendingStopsLocked()
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	s.notify(observer.JobsChanged)
}

// OnTaskCompletion reacts to a worker's report on one task.
// NodeJobCompletionNotFound is a silent no-op (the idempotency guard
// behind P8: a duplicate completion for a task the worker no longer
// holds changes nothing). errCode == 0 is success. NodeJobTimeout scopes
// the failure to the single reported task; any other non-zero errCode
// fails and reschedules every task this worker holds for the task's
// jobId, since a worker reporting an unexpected error about one task is
// no longer trusted with the rest of that job either.
func (s *Scheduler) OnTaskCompletion(errCode int, execTime time.Duration, task workerpool.WorkerTask, ip string) {
	if errCode == NodeJobCompletionNotFound {
		return
	}

	if errCode == 0 {
		s.completeTaskSuccess(task, ip)
		return
	}

	s.failTask(task, ip, errCode == NodeJobTimeout)
}

func (s *Scheduler) completeTaskSuccess(task workerpool.WorkerTask, ip string) {
	s.workersMutex.Lock()
	n, ok := s.nodes[ip]
	freed := ok && n.Worker.Job().DeleteTask(task.JobId, task.TaskId)
	if freed {
		n.busyCPU--
		if n.busyCPU < 0 {
			n.busyCPU = 0
		}
	}
	s.workersMutex.Unlock()
	if !freed {
		return
	}

	s.jobsMutex.Lock()
	s.table.DecrementJobExecution(task.JobId, 1)
	s.jobsMutex.Unlock()
	s.stats.Counter("tasks_completed").Inc(1)
	s.notify(observer.JobsChanged)
}

// failTask fails and reschedules either the one task (scopeToTask) or
// every task this worker holds for task.JobId.
func (s *Scheduler) failTask(task workerpool.WorkerTask, ip string, scopeToTask bool) {
	s.workersMutex.Lock()
	n, ok := s.nodes[ip]
	failed := workerpool.NewWorkerJob()
	if ok {
		if scopeToTask {
			if n.Worker.Job().DeleteTask(task.JobId, task.TaskId) {
				failed.AddTask(task.JobId, task.TaskId)
				n.busyCPU--
			}
		} else {
			for _, taskId := range n.Worker.Job().TaskIds(task.JobId) {
				failed.AddTask(task.JobId, taskId)
			}
			removed := n.Worker.Job().DeleteJob(task.JobId)
			n.busyCPU -= removed
		}
		if n.busyCPU < 0 {
			n.busyCPU = 0
		}
	}
	s.workersMutex.Unlock()
	if failed.Empty() {
		return
	}

	s.jobsMutex.Lock()
	s.markFailedLocked(task.JobId, ip)
	s.rescheduleLocked(failed)
	toStop := s.drainPendingStopsLocked()
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	s.stats.Counter("tasks_failed").Inc(int64(failed.Total()))
	s.notify(observer.JobsChanged)
}

// OnTaskTimeout fires when the timeout manager's per-task entry
// expires. If the worker still holds the task, a StopTask command is
// sent and the task is treated as a NodeJobTimeout completion.
func (s *Scheduler) OnTaskTimeout(task workerpool.WorkerTask, ip string) {
	s.workersMutex.Lock()
	n, ok := s.nodes[ip]
	stillHeld := ok && n.Worker.Job().HasTask(task.JobId, task.TaskId)
	if stillHeld {
		s.registry.CommandQueue(ip).Push(workerpool.Command{Kind: workerpool.StopTask, JobId: task.JobId, TaskId: task.TaskId})
	}
	s.workersMutex.Unlock()
	if !stillHeld {
		return
	}
	s.notify(observer.CommandsChanged)
	s.OnTaskCompletion(NodeJobTimeout, 0, task, ip)
}

// OnJobTimeout fires when a job's queue or run timeout expires: every
// worker holding it is stopped and the job is removed with status
// "timeout".
func (s *Scheduler) OnJobTimeout(jobId int64) {
	s.jobsMutex.Lock()
	if s.table.Active(jobId) {
		s.table.RemoveJob(jobId, "timeout")
		s.pendingStops = append(s.pendingStops, jobId)
	}
	toStop := s.drainPendingStopsLocked()
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	s.notify(observer.JobsChanged)
}
