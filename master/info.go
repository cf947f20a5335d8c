package master

import "github.com/davecgh/go-spew/spew"

// JobInfo is a point-in-time snapshot of one scheduled job, returned by
// GetJobInfo. Grounded on
// original_source/src/master/scheduler.cpp's GetJobInfo, which reports
// the same shape from its own jobsMut_-guarded table.
type JobInfo struct {
	JobId         int64
	PlannedExec   int
	RemainingExec int
	FailedWorkers int
}

// IsJobActive reports whether jobId is still in the scheduled-jobs
// table. The timeout manager uses this for lazy cancellation: a timer
// entry for a job that was already removed is simply dropped when it
// fires rather than actively unscheduled from the heap.
func (s *Scheduler) IsJobActive(jobId int64) bool {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()
	return s.table.Active(jobId)
}

// GetJobInfo reports jobId's current planning state, or ok=false if it
// is not active (queued-but-not-yet-planned or already removed).
func (s *Scheduler) GetJobInfo(jobId int64) (info JobInfo, ok bool) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()
	sj, active := s.table.Get(jobId)
	if !active {
		return JobInfo{}, false
	}
	return JobInfo{
		JobId:         jobId,
		PlannedExec:   sj.plannedExec,
		RemainingExec: sj.remainingExec,
		FailedWorkers: s.failedWorkerCountLocked(jobId),
	}, true
}

// Statistics is the cluster-wide snapshot GetStatistics reports.
type Statistics struct {
	ActiveJobs       int
	AvailableWorkers int
	TotalWorkers     int
	TotalCPU         int
	BusyCPU          int
	PendingReschedule int
}

// GetStatistics reports a point-in-time view across both mutexes, taken
// in the mandated order (workers, then jobs).
func (s *Scheduler) GetStatistics() Statistics {
	s.workersMutex.Lock()
	defer s.workersMutex.Unlock()
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	stats := Statistics{
		TotalWorkers:      len(s.nodes),
		PendingReschedule: len(s.needReschedule),
	}
	for _, n := range s.nodes {
		stats.TotalCPU += n.Worker.TotalCPU
		stats.BusyCPU += n.busyCPU
		if n.Available() {
			stats.AvailableWorkers++
		}
	}
	stats.ActiveJobs = len(s.table.InOrder())
	return stats
}

// DebugDump renders the full nodes/table state for human inspection,
// the way cluster_state.go's String() leans on spew.Sdump instead of a
// hand-written field-by-field formatter. Not on any hot path -- for the
// admin CLI's verbose status query only.
func (s *Scheduler) DebugDump() string {
	s.workersMutex.Lock()
	defer s.workersMutex.Unlock()
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	return spew.Sdump(s.nodes) + spew.Sdump(s.table.InOrder())
}
