package master

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/scootdev/dispatch/job"
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/queue"
	"github.com/scootdev/dispatch/stats"
	"github.com/scootdev/dispatch/workerpool"
)

// Property P1: no worker is ever assigned more CPU than it has.
func Test_Property_NoOverSubscription(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("busyCPU never exceeds totalCPU across the fleet", prop.ForAll(
		func(numWorkers, numJobs int) bool {
			if numWorkers < 1 {
				numWorkers = 1
			}
			if numJobs < 1 {
				numJobs = 1
			}
			reg := workerpool.NewRegistry(3)
			var hosts []workerpool.HostSpec
			for i := 0; i < numWorkers%6+1; i++ {
				hosts = append(hosts, workerpool.HostSpec{
					IP: fmt.Sprintf("10.0.0.%d", i+1), TotalCPU: 1 + i%4, MemoryMB: 1024 * (i + 1),
				})
			}
			reg.LoadHosts(hosts)
			q := queue.New()
			bus := observer.New()
			sched := New(reg, q, bus, stats.NilStatsReceiver())

			for i := 0; i < numJobs%6+1; i++ {
				j := &job.Job{Id: int64(i + 1), GroupId: int64(i + 1),
					Limits: job.Limits{NumExec: 1 + i%4, MaxCPUPerHost: -1}}
				q.Push(j, j.GroupId)
			}
			for i := 0; i < 50; i++ {
				sched.OnNewJob()
				if _, _, _, ok := sched.GetTaskToSend(); !ok {
					break
				}
				st := sched.GetStatistics()
				if st.BusyCPU > st.TotalCPU {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))
	properties.TestingRun(t)
}

// Property P8: a duplicate successful completion report for the same
// (jobId, taskId) never fires the completion callback twice.
func Test_Property_IdempotentCompletion(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("duplicate success reports fire the callback at most once", prop.ForAll(
		func(numExec int) bool {
			numExec = numExec%6 + 1
			reg := workerpool.NewRegistry(3)
			reg.LoadHosts([]workerpool.HostSpec{{IP: "10.0.0.1", TotalCPU: numExec, MemoryMB: 1024}})
			q := queue.New()
			bus := observer.New()
			sched := New(reg, q, bus, stats.NilStatsReceiver())

			calls := 0
			j := &job.Job{Id: 1, Limits: job.Limits{NumExec: numExec, MaxCPUPerHost: -1},
				OnComplete: func(status string) { calls++ }}
			q.Push(j, 1)
			sched.OnNewJob()

			wj, ip, _, ok := sched.GetTaskToSend()
			if !ok {
				return false
			}
			tasks := wj.TaskIds(1)
			for _, taskId := range tasks {
				sched.OnTaskCompletion(0, 0, workerpool.WorkerTask{JobId: 1, TaskId: taskId}, ip)
			}
			// Replaying every completion a second time must change nothing.
			for _, taskId := range tasks {
				sched.OnTaskCompletion(0, 0, workerpool.WorkerTask{JobId: 1, TaskId: taskId}, ip)
			}
			return calls == 1
		},
		gen.IntRange(1, 6),
	))
	properties.TestingRun(t)
}

// Property P6: an exclusive job never shares a worker with any other job.
func Test_Property_ExclusivityHolds(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("exclusive job's worker never also holds another job", prop.ForAll(
		func(totalCPU int) bool {
			totalCPU = totalCPU%4 + 2
			reg := workerpool.NewRegistry(3)
			reg.LoadHosts([]workerpool.HostSpec{{IP: "10.0.0.1", TotalCPU: totalCPU, MemoryMB: 1024}})
			q := queue.New()
			bus := observer.New()
			sched := New(reg, q, bus, stats.NilStatsReceiver())

			excl := &job.Job{Id: 1, GroupId: 1, Priority: 1,
				Limits: job.Limits{NumExec: totalCPU, MaxCPUPerHost: -1}, Flags: job.Flags{Exclusive: true}}
			other := &job.Job{Id: 2, GroupId: 2,
				Limits: job.Limits{NumExec: totalCPU, MaxCPUPerHost: -1}}
			q.Push(excl, 1)
			q.Push(other, 2)
			sched.OnNewJob()
			sched.OnNewJob()

			for i := 0; i < 10; i++ {
				_, ip, _, ok := sched.GetTaskToSend()
				if !ok {
					break
				}
				held := sched.nodes[ip].Worker.Job()
				if len(held.JobIds()) > 1 {
					ids := held.JobIds()
					hasExcl := (ids[0] == 1 || ids[1] == 1)
					if hasExcl {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 6),
	))
	properties.TestingRun(t)
}

// Property P1 over random inputs: admitting a fully-randomized job onto
// a fully-randomized worker and draining placement never exceeds that
// worker's advertised TotalCPU. The generated jobs carry no per-host cap
// (MaxCPUPerHost is -1), so the P7 host cap is not exercised here.
func Test_Property_RandomJobsNeverOversubscribeARandomWorker(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("a randomly-generated job never oversubscribes a randomly-generated worker", prop.ForAll(
		func(j *job.Job, w *workerpool.Worker) bool {
			reg := workerpool.NewRegistry(3)
			reg.LoadHosts([]workerpool.HostSpec{{IP: w.IP, Hostname: w.Hostname, Group: w.Group, TotalCPU: w.TotalCPU, MemoryMB: w.MemoryMB}})
			q := queue.New()
			bus := observer.New()
			sched := New(reg, q, bus, stats.NilStatsReceiver())

			j.GroupId = j.Id
			j.OnComplete = nil
			q.Push(j, j.GroupId)
			sched.OnNewJob()

			for i := 0; i < 20; i++ {
				if _, _, _, ok := sched.GetTaskToSend(); !ok {
					break
				}
				if st := sched.GetStatistics(); st.BusyCPU > st.TotalCPU {
					return false
				}
			}
			return true
		},
		job.GopterGenJob(),
		workerpool.GopterGenWorker(),
	))
	properties.TestingRun(t)
}
