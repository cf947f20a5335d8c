// Package job provides the data model for jobs, the scripts a master
// dispatches to workers, and the DAG that links jobs with precedence
// constraints.
package job

import (
	"sync/atomic"
	"time"
)

// Limits bounds how widely a job's tasks may be spread.
type Limits struct {
	// MaxClusterCPU caps the number of tasks planned for this job, if > 0.
	MaxClusterCPU int
	// MaxCPUPerHost caps tasks-of-this-job held by a single worker, if >= 0.
	MaxCPUPerHost int
	// MaxFailedNodes aborts the job once this many distinct workers have failed it.
	MaxFailedNodes int
	// NumExec, if > 0, is an explicit task count overriding cluster-size-derived planning.
	NumExec int
}

// Timeouts bounds how long a job may wait or run.
type Timeouts struct {
	Queue time.Duration
	Job   time.Duration
	Task  time.Duration
}

// Flags are per-job scheduling toggles.
type Flags struct {
	// NoReschedule abandons a task rather than re-placing it after a failure.
	NoReschedule bool
	// Exclusive means a worker holding this job's tasks may hold no other job's.
	Exclusive bool
}

// Job is a script plus the parameters controlling how many times and
// where it runs.
type Job struct {
	Id       int64
	GroupId  int64
	Priority int
	Script   []byte
	Language string

	Limits   Limits
	Timeouts Timeouts
	Flags    Flags

	// HostAllow and GroupAllow, when non-nil, restrict placement to the
	// named hosts/groups. A nil map means unrestricted.
	HostAllow  map[string]bool
	GroupAllow map[string]bool

	// OnComplete is invoked exactly once, with a human-readable completion
	// status, when the job leaves the scheduled-jobs table.
	OnComplete func(status string)

	group      *JobGroup
	vertex     int
	numDepends int64 // atomic; 0 once all predecessors have completed successfully
}

// NumDepends returns the number of not-yet-satisfied predecessor jobs.
// A job with NumDepends() > 0 must never be popped from the queue.
func (j *Job) NumDepends() int {
	return int(atomic.LoadInt64(&j.numDepends))
}

func (j *Job) setNumDepends(n int) {
	atomic.StoreInt64(&j.numDepends, int64(n))
}

func (j *Job) decrementDepends() int {
	return int(atomic.AddInt64(&j.numDepends, -1))
}

// InGroup reports whether this job was created as part of a DAG group.
func (j *Job) InGroup() bool {
	return j.group != nil
}

// Group returns the DAG this job belongs to, or nil if it was queued
// standalone.
func (j *Job) Group() *JobGroup {
	return j.group
}
