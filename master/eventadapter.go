package master

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/wire"
	"github.com/scootdev/dispatch/workerpool"
)

// EventAdapter is component H: it translates wire-level messages
// arriving from workers (heartbeats, completion pings, send-command
// acks) into the Scheduler operations those messages imply. Kept
// separate from the transport/listener so the scheduler's own tests
// can drive it without binding to any socket.
type EventAdapter struct {
	sched     *Scheduler
	transport Transport
	timeouts  *TimeoutManager
	masterId  string
	log       *logrus.Entry
}

// NewEventAdapter wires an adapter against sched.
func NewEventAdapter(sched *Scheduler, transport Transport, timeouts *TimeoutManager, masterId string) *EventAdapter {
	return &EventAdapter{sched: sched, transport: transport, timeouts: timeouts, masterId: masterId,
		log: logrus.WithField("component", "event_adapter")}
}

// OnHeartbeat handles a worker's periodic UDP heartbeat: a valid
// heartbeat clears its miss counter and, if it was NotAvailable, flips
// it back to Available and wakes observers so the job-sender
// reconsiders placement.
func (ea *EventAdapter) OnHeartbeat(ip string, hb wire.Heartbeat) {
	w, existed := ea.sched.registry.GetWorkerByIP(ip)
	if !existed {
		w = workerpool.NewWorker(ip, hb.Host, hb.Group, hb.NumCPU, hb.MemorySizeMB)
		ea.sched.OnHostAppearance(w)
		return
	}
	_ = w
	if ea.sched.registry.OnHeartbeat(ip) {
		ea.sched.notify(observer.JobsChanged)
	}
}

// OnHeartbeatMissed is driven by the out-of-scope UDP receiver's
// per-worker timeout timer (heartbeat_timeout/heartbeat_max_droped from
// config). If this miss tips the worker over the threshold, the
// scheduler is told it just became unavailable.
func (ea *EventAdapter) OnHeartbeatMissed(ip string) {
	_, becameUnavailable := ea.sched.registry.MissHeartbeat(ip)
	if becameUnavailable {
		ea.sched.OnChangedWorkerState([]string{ip})
	}
}

// OnJobCompletionPing handles a worker's UDP notification that a task
// finished, triggering a synchronous get_result round-trip to learn
// the actual errCode/execTime before reporting completion -- mirroring
// original_source's split between the lightweight UDP ping and the TCP
// result fetch, rather than trusting the UDP payload for the final
// outcome.
func (ea *EventAdapter) OnJobCompletionPing(ctx context.Context, ip string, ping wire.JobCompletionPing) {
	req, err := wire.Encode(wire.TypeGetResult, wire.GetResultRequest{
		MasterId: ea.masterId,
		JobId:    ping.JobId,
		TaskId:   ping.TaskId,
	})
	if err != nil {
		ea.log.WithError(err).Error("could not encode get_result request")
		return
	}
	resp, err := ea.transport.Send(ctx, ip, req)
	if err != nil {
		ea.log.WithError(err).WithField("ip", ip).Warn("get_result send failed")
		return
	}
	var result wire.GetResultResponse
	if err := wire.Decode(resp, &result); err != nil {
		ea.log.WithError(err).Error("could not decode get_result response")
		return
	}
	task := workerpool.WorkerTask{JobId: ping.JobId, TaskId: ping.TaskId}
	ea.sched.OnTaskCompletion(result.ErrCode, time.Duration(result.ExecTime), task, ip)
}

// OnSendCommandResult handles a worker's acknowledgement of a control
// command. A non-zero errCode is logged but otherwise ignored: the
// command-sender's own retry policy is what governs redelivery, not
// this ack.
func (ea *EventAdapter) OnSendCommandResult(ip string, result wire.SendCommandResult) {
	if result.ErrCode != 0 {
		ea.log.WithFields(logrus.Fields{"ip": ip, "errCode": result.ErrCode}).Warn("worker rejected command")
	}
}
