package master

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/scootdev/dispatch/job"
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/queue"
	"github.com/scootdev/dispatch/stats"
	"github.com/scootdev/dispatch/workerpool"
)

// NodeJobCompletionNotFound is the worker error code meaning "I don't
// hold that (jobId, taskId) anymore" -- the idempotency guard for a
// duplicate completion report (P8).
const NodeJobCompletionNotFound = -1

// NodeJobTimeout is the synthetic error code OnTaskTimeout uses to
// funnel a timed-out task through the same failure path as any other
// worker-reported error.
const NodeJobTimeout = -2

// Scheduler is the core (component E): the single place that decides
// which task goes to which worker, and reacts to every worker- and
// timer-driven event that can change that decision.
//
// Grounded operation-for-operation on
// original_source/src/master/scheduler.cpp, restructured into Go's
// explicit-mutex style the way sched/scheduler/stateful_scheduler.go
// guards its jobState/clusterState maps.
type Scheduler struct {
	// workersMutex is always acquired before jobsMutex, never the
	// reverse, per the spec's lock-ordering rule.
	workersMutex sync.Mutex
	jobsMutex    sync.Mutex

	registry *workerpool.Registry
	nodes    map[string]*NodeState // by worker IP; guarded by workersMutex

	jobQueue *queue.Queue
	table    *jobTable // guarded by jobsMutex

	// failedWorkers[jobId] is the set of worker IPs that must never
	// again receive a task of jobId.
	failedWorkers map[int64]map[string]bool
	// tasksToSend[jobId] is the set of taskIds not yet assigned to any
	// worker for an active job.
	tasksToSend map[int64]map[int]bool
	// needReschedule is the FIFO of (jobId, taskId) pairs bumped off a
	// worker and awaiting re-placement, in failure order.
	needReschedule []workerpool.WorkerTask
	// pendingStops accumulates jobIds that decided (while jobsMutex was
	// held) that every worker holding them must be sent StopTask. It is
	// drained only after jobsMutex is released, so the actual
	// workersMutex acquisition never nests inside a held jobsMutex --
	// the spec's lock order is workersMutex-then-jobsMutex, never the
	// reverse.
	pendingStops []int64

	bus   *observer.Bus
	log   *logrus.Entry
	stats stats.StatsReceiver
}

// New constructs a Scheduler over an already-populated worker registry
// and an empty job queue. Pass stats.NilStatsReceiver() if the caller
// doesn't need metrics (e.g. in most unit tests).
func New(registry *workerpool.Registry, q *queue.Queue, bus *observer.Bus, sr stats.StatsReceiver) *Scheduler {
	if sr == nil {
		sr = stats.NilStatsReceiver()
	}
	s := &Scheduler{
		registry:      registry,
		nodes:         make(map[string]*NodeState),
		jobQueue:      q,
		failedWorkers: make(map[int64]map[string]bool),
		tasksToSend:   make(map[int64]map[int]bool),
		bus:           bus,
		log:           logrus.WithField("component", "scheduler"),
		stats:         sr.Scope("scheduler"),
	}
	s.table = newJobTable(func(jobId int64, status string) {
		delete(s.failedWorkers, jobId)
		delete(s.tasksToSend, jobId)
		s.needReschedule = removeJobFromReschedule(s.needReschedule, jobId)
		s.stats.Scope("jobs_removed").Counter(status).Inc(1)
	})
	for _, w := range registry.Workers() {
		s.nodes[w.IP] = newNodeState(w)
	}
	return s
}

// drainPendingStopsLocked returns and clears the accumulated pendingStops.
// Callers must hold jobsMutex when calling this and must not act on the
// result until after jobsMutex has been released.
func (s *Scheduler) drainPendingStopsLocked() []int64 {
	if len(s.pendingStops) == 0 {
		return nil
	}
	out := s.pendingStops
	s.pendingStops = nil
	return out
}

// flushStops sends StopTask to every worker holding any of jobIds and
// frees their accounting. Must be called with neither mutex held.
func (s *Scheduler) flushStops(jobIds []int64) {
	for _, jobId := range jobIds {
		s.stopWorkers(jobId)
	}
}

func removeJobFromReschedule(items []workerpool.WorkerTask, jobId int64) []workerpool.WorkerTask {
	out := items[:0]
	for _, wt := range items {
		if wt.JobId != jobId {
			out = append(out, wt)
		}
	}
	return out
}

// notify wakes the observer bus. Callers must already have released
// both mutexes; never call this while holding either one.
func (s *Scheduler) notify(kind observer.Kind) {
	if s.bus != nil {
		s.bus.Notify(kind)
	}
}

// --- 4.E.1 public contract ---

// OnHostAppearance registers a newly-discovered worker and wakes
// observers so the job-sender reconsiders placement.
func (s *Scheduler) OnHostAppearance(w *workerpool.Worker) {
	s.workersMutex.Lock()
	s.registry.Add(w)
	s.nodes[w.IP] = newNodeState(w)
	s.workersMutex.Unlock()
	s.notify(observer.JobsChanged)
}

// DeleteWorker drops the named host from the scheduler and the
// registry, marks it failed for each held job, and reschedules its
// tasks. No StopTask command is sent to the host: its command queue is
// removed together with it.
func (s *Scheduler) DeleteWorker(host string) {
	s.workersMutex.Lock()
	n, ok := s.nodes[host]
	if !ok {
		s.workersMutex.Unlock()
		return
	}
	wj := n.Worker.Job()
	n.Worker.ResetJob()
	n.busyCPU = 0
	delete(s.nodes, host)
	s.registry.Remove(host)
	s.workersMutex.Unlock()

	if wj == nil || wj.Empty() {
		return
	}
	s.jobsMutex.Lock()
	for _, jobId := range wj.JobIds() {
		s.markFailedLocked(jobId, host)
	}
	s.rescheduleLocked(wj)
	toStop := s.drainPendingStopsLocked()
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	s.notify(observer.JobsChanged)
}

// OnChangedWorkerState reacts to a batch of worker IPs that just
// transitioned to not-available. Any task those workers were holding
// is failed-on-this-ip and rescheduled.
func (s *Scheduler) OnChangedWorkerState(becameUnavailable []string) {
	s.workersMutex.Lock()
	type drop struct {
		ip string
		wj *workerpool.WorkerJob
	}
	var drops []drop
	for _, ip := range becameUnavailable {
		n, ok := s.nodes[ip]
		if !ok || n.busyCPU <= 0 {
			continue
		}
		wj := n.Worker.Job()
		n.Worker.ResetJob()
		n.busyCPU = 0
		if wj != nil && !wj.Empty() {
			drops = append(drops, drop{ip: ip, wj: wj})
		}
	}
	s.workersMutex.Unlock()

	if len(drops) == 0 {
		return
	}
	s.jobsMutex.Lock()
	for _, d := range drops {
		for _, jobId := range d.wj.JobIds() {
			s.markFailedLocked(jobId, d.ip)
		}
		s.rescheduleLocked(d.wj)
	}
	toStop := s.drainPendingStopsLocked()
	s.jobsMutex.Unlock()

	s.flushStops(toStop)
	s.notify(observer.JobsChanged)
}

// OnNewJob pulls the next job from the queue into the scheduled-jobs
// table, if any worker currently has spare capacity.
func (s *Scheduler) OnNewJob() {
	s.workersMutex.Lock()
	anyFree := false
	for _, n := range s.nodes {
		if n.FreeCPU() > 0 {
			anyFree = true
			break
		}
	}
	s.workersMutex.Unlock()
	if !anyFree {
		return
	}

	s.jobsMutex.Lock()
	planned := s.planJobExecutionLocked()
	s.jobsMutex.Unlock()
	if planned {
		s.notify(observer.JobsChanged)
	}
}

// planJobExecutionLocked pops the next eligible job off the queue (if
// any) and admits it into the scheduled-jobs table. Must be called
// with jobsMutex held; reads registry.TotalCPU() which takes no lock of
// its own that could invert with jobsMutex.
func (s *Scheduler) planJobExecutionLocked() bool {
	j, ok := s.jobQueue.Pop()
	if !ok {
		return false
	}
	plannedExec := getNumPlannedExec(j, s.registry.TotalCPU())
	s.table.Add(j, plannedExec, j.Group())
	tasks := make(map[int]bool, plannedExec)
	for t := 0; t < plannedExec; t++ {
		tasks[t] = true
	}
	s.tasksToSend[j.Id] = tasks
	return true
}

func getNumPlannedExec(j *job.Job, totalCPU int) int {
	if j.Limits.NumExec > 0 {
		return j.Limits.NumExec
	}
	n := totalCPU
	if j.Limits.MaxClusterCPU > 0 && j.Limits.MaxClusterCPU < n {
		n = j.Limits.MaxClusterCPU
	}
	if n < 1 {
		n = 1
	}
	return n
}
