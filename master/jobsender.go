package master

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scootdev/dispatch/job"
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/wire"
	"github.com/scootdev/dispatch/workerpool"
)

// JobSender is the job-sender thread: it repeatedly asks the scheduler
// for the next placement decision and pushes it over Transport,
// reporting the outcome back so the scheduler can reschedule on
// failure. Grounded on sched/scheduler/stateful_scheduler.go's
// step()-driven event loop, narrowed to the one responsibility
// original_source splits into its own thread pool
// (num_job_send_thread).
type JobSender struct {
	sched     *Scheduler
	transport Transport
	timeouts  *TimeoutManager
	masterId  string
	log       *logrus.Entry
}

// NewJobSender wires a sender against sched.
func NewJobSender(sched *Scheduler, transport Transport, timeouts *TimeoutManager, masterId string) *JobSender {
	return &JobSender{sched: sched, transport: transport, timeouts: timeouts, masterId: masterId,
		log: logrus.WithField("component", "job_sender")}
}

// Run drives placement until stop is closed, waking on JobsChanged and
// also polling on a slow interval as a backstop (mirrors the teacher's
// step() loop, which never relies solely on its wakeup channel either).
func (js *JobSender) Run(ctx context.Context, bus *observer.Bus, stop <-chan struct{}) {
	sub := bus.Subscribe()
	defer sub.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		js.drainPlacements(ctx)
		select {
		case <-stop:
			return
		case <-sub.C():
		case <-ticker.C:
		}
	}
}

// drainPlacements calls GetTaskToSend until it returns nothing to send.
func (js *JobSender) drainPlacements(ctx context.Context) {
	for {
		wj, ip, j, ok := js.sched.GetTaskToSend()
		if !ok {
			return
		}
		js.sendAndReport(ctx, wj, ip, j)
	}
}

// sendAndReport delivers wj in a single wire message per jobId: every
// task id a (job, worker) placement carries rides in one ExecRequest's
// Tasks batch, matching original_source/src/worker/node_job.h's
// ParseSendScript(jobId, tasks, numTasks, ...) and
// original_source/src/master/scheduler.cpp's GetTaskToSend, both of
// which place a job's whole task-id set for one worker on the wire at
// once rather than one message per task.
func (js *JobSender) sendAndReport(ctx context.Context, wj *workerpool.WorkerJob, ip string, j *job.Job) {
	success := true
	for _, jobId := range wj.JobIds() {
		taskIds := wj.TaskIds(jobId)
		env, err := wire.Encode(wire.TypeExec, wire.ExecRequest{
			Language: j.Language,
			Script:   j.Script,
			JobId:    jobId,
			MasterId: js.masterId,
			Tasks:    taskIds,
			NumTasks: wj.NumTasks(jobId),
		})
		if err != nil {
			js.log.WithError(err).Error("could not encode exec request")
			success = false
			continue
		}
		if _, err := js.transport.Send(ctx, ip, env); err != nil {
			js.log.WithError(err).WithFields(logrus.Fields{"ip": ip, "jobId": jobId, "tasks": taskIds}).Warn("exec send failed")
			success = false
			continue
		}
		if j.Timeouts.Task > 0 && js.timeouts != nil {
			for _, taskId := range taskIds {
				js.timeouts.ScheduleTaskTimeout(workerpool.WorkerTask{JobId: jobId, TaskId: taskId}, ip, time.Now().Add(j.Timeouts.Task))
			}
		}
	}
	js.sched.OnTaskSendCompletion(success, wj, ip)
	if !success {
		js.log.Warn(fmt.Sprintf("partial/failed delivery to %s", ip))
	}
}
