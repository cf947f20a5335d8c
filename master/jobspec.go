package master

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/scootdev/dispatch/job"
)

// JobSpec is the on-disk JSON shape the admin protocol's
// {command: "job", file: path} reads (spec.md §6). Its exact format,
// like the hosts file's, is an out-of-scope external detail (spec.md
// §1); this is the minimal shape LoadJobFile needs to build a job.Job.
type JobSpec struct {
	Id       int64  `json:"id"`
	GroupId  int64  `json:"groupId"`
	Priority int    `json:"priority"`
	Script   []byte `json:"script"`
	Language string `json:"language"`

	MaxClusterCPU  int `json:"maxClusterCpu"`
	MaxCPUPerHost  int `json:"maxCpuPerHost"`
	MaxFailedNodes int `json:"maxFailedNodes"`
	NumExec        int `json:"numExec"`

	QueueTimeoutMillis int64 `json:"queueTimeoutMillis"`
	JobTimeoutMillis   int64 `json:"jobTimeoutMillis"`
	TaskTimeoutMillis  int64 `json:"taskTimeoutMillis"`

	NoReschedule bool `json:"noReschedule"`
	Exclusive    bool `json:"exclusive"`

	HostAllow  []string `json:"hostAllow,omitempty"`
	GroupAllow []string `json:"groupAllow,omitempty"`
}

// ToJob builds a job.Job from the decoded spec. A zero GroupId defaults
// to the job's own id, the same convention queue.Push's callers use for
// a standalone (non-DAG) job.
func (s JobSpec) ToJob() *job.Job {
	j := &job.Job{
		Id:       s.Id,
		GroupId:  s.GroupId,
		Priority: s.Priority,
		Script:   s.Script,
		Language: s.Language,
		Limits: job.Limits{
			MaxClusterCPU:  s.MaxClusterCPU,
			MaxCPUPerHost:  s.MaxCPUPerHost,
			MaxFailedNodes: s.MaxFailedNodes,
			NumExec:        s.NumExec,
		},
		Timeouts: job.Timeouts{
			Queue: time.Duration(s.QueueTimeoutMillis) * time.Millisecond,
			Job:   time.Duration(s.JobTimeoutMillis) * time.Millisecond,
			Task:  time.Duration(s.TaskTimeoutMillis) * time.Millisecond,
		},
		Flags: job.Flags{NoReschedule: s.NoReschedule, Exclusive: s.Exclusive},
	}
	if j.GroupId == 0 {
		j.GroupId = j.Id
	}
	if len(s.HostAllow) > 0 {
		j.HostAllow = make(map[string]bool, len(s.HostAllow))
		for _, h := range s.HostAllow {
			j.HostAllow[h] = true
		}
	}
	if len(s.GroupAllow) > 0 {
		j.GroupAllow = make(map[string]bool, len(s.GroupAllow))
		for _, g := range s.GroupAllow {
			j.GroupAllow[g] = true
		}
	}
	return j
}

// LoadJobFile reads and decodes a JobSpec from path.
func LoadJobFile(path string) (*job.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening job file %s", path)
	}
	defer f.Close()

	var spec JobSpec
	if err := json.NewDecoder(f).Decode(&spec); err != nil {
		return nil, errors.Wrapf(err, "decoding job file %s", path)
	}
	return spec.ToJob(), nil
}
