package master

import "github.com/scootdev/dispatch/workerpool"

// markFailedLocked records that ip must never again receive a task of
// jobId. Must be called with jobsMutex held.
func (s *Scheduler) markFailedLocked(jobId int64, ip string) {
	set, ok := s.failedWorkers[jobId]
	if !ok {
		set = make(map[string]bool)
		s.failedWorkers[jobId] = set
	}
	set[ip] = true
}

func (s *Scheduler) failedWorkerCountLocked(jobId int64) int {
	return len(s.failedWorkers[jobId])
}

func (s *Scheduler) isFailedWorkerLocked(jobId int64, ip string) bool {
	return s.failedWorkers[jobId][ip]
}

// rescheduleLocked implements RescheduleJob(wj) (4.E.4): for every
// jobId the abandoned WorkerJob names, either abort the job (too many
// failed workers), abandon its tasks (noReschedule), or queue every
// task for re-placement. Must be called with jobsMutex held.
func (s *Scheduler) rescheduleLocked(wj *workerpool.WorkerJob) {
	for _, jobId := range wj.JobIds() {
		sj, active := s.table.Get(jobId)
		if !active {
			continue
		}
		taskIds := wj.TaskIds(jobId)

		if sj.job.Limits.MaxFailedNodes > 0 && s.failedWorkerCountLocked(jobId) >= sj.job.Limits.MaxFailedNodes {
			s.table.RemoveJob(jobId, "max failed nodes limit exceeded")
			s.pendingStops = append(s.pendingStops, jobId)
			continue
		}

		if sj.job.Flags.NoReschedule {
			s.table.DecrementJobExecution(jobId, len(taskIds))
			continue
		}

		for _, taskId := range taskIds {
			s.needReschedule = append(s.needReschedule, workerpool.WorkerTask{JobId: jobId, TaskId: taskId})
		}
	}
}
