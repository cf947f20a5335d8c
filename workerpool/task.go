package workerpool

// WorkerTask names one execution of one job's script.
type WorkerTask struct {
	JobId  int64
	TaskId int
}

// WorkerJob is the multiset of WorkerTasks assigned to a single worker,
// grouped by jobId. Grounded on the teacher's clusterState.nodeGroups
// bookkeeping (map-of-map accounting) and original_source's WorkerJob
// (job.h / scheduler.cpp's WorkerJob::AddTask/DeleteTask/GetNumTasks).
type WorkerJob struct {
	tasks map[int64]map[int]bool
}

// NewWorkerJob returns an empty WorkerJob.
func NewWorkerJob() *WorkerJob {
	return &WorkerJob{tasks: make(map[int64]map[int]bool)}
}

// AddTask adds (jobId, taskId) to the set. It is a no-op if already present.
func (w *WorkerJob) AddTask(jobId int64, taskId int) {
	if w.tasks[jobId] == nil {
		w.tasks[jobId] = make(map[int]bool)
	}
	w.tasks[jobId][taskId] = true
}

// DeleteTask removes (jobId, taskId). It reports whether the task was
// present (callers use this to detect already-processed completions).
func (w *WorkerJob) DeleteTask(jobId int64, taskId int) bool {
	set := w.tasks[jobId]
	if set == nil || !set[taskId] {
		return false
	}
	delete(set, taskId)
	if len(set) == 0 {
		delete(w.tasks, jobId)
	}
	return true
}

// DeleteJob removes every task belonging to jobId, returning how many
// tasks were removed.
func (w *WorkerJob) DeleteJob(jobId int64) int {
	set := w.tasks[jobId]
	n := len(set)
	delete(w.tasks, jobId)
	return n
}

// HasTask reports whether (jobId, taskId) is currently assigned.
func (w *WorkerJob) HasTask(jobId int64, taskId int) bool {
	return w.tasks[jobId] != nil && w.tasks[jobId][taskId]
}

// NumTasks returns the number of tasks assigned for jobId.
func (w *WorkerJob) NumTasks(jobId int64) int {
	return len(w.tasks[jobId])
}

// Total returns the number of tasks assigned across all jobs.
func (w *WorkerJob) Total() int {
	n := 0
	for _, set := range w.tasks {
		n += len(set)
	}
	return n
}

// JobIds returns the distinct job ids with at least one assigned task.
func (w *WorkerJob) JobIds() []int64 {
	ids := make([]int64, 0, len(w.tasks))
	for id := range w.tasks {
		ids = append(ids, id)
	}
	return ids
}

// TaskIds returns the task ids assigned for jobId.
func (w *WorkerJob) TaskIds(jobId int64) []int {
	set := w.tasks[jobId]
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Merge adds every task of other into w.
func (w *WorkerJob) Merge(other *WorkerJob) {
	for jobId, set := range other.tasks {
		for taskId := range set {
			w.AddTask(jobId, taskId)
		}
	}
}

// Empty reports whether no tasks are assigned.
func (w *WorkerJob) Empty() bool {
	return len(w.tasks) == 0
}
