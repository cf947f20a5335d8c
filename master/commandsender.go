package master

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/wire"
	"github.com/scootdev/dispatch/workerpool"
)

var errUnknownCommandKind = errors.New("commandsender: unknown command kind")

// CommandSender is the worker-command queue's drain side (component
// G): it watches the observer bus for CommandsChanged, pops every
// worker's pending commands, and delivers them over Transport with an
// exponential-backoff retry policy on failure. Grounded on
// original_source/src/master/command_sender.cpp's per-worker queue +
// retry loop, expressed with cenkalti/backoff in place of the C++
// semaphore-driven retry counter.
type CommandSender struct {
	sched       *Scheduler
	transport   Transport
	timeouts    *TimeoutManager
	masterId    string
	maxAttempts uint64
	baseDelay   time.Duration
	log         *logrus.Entry
}

// NewCommandSender wires a sender against sched's registry/bus.
// baseDelay, when positive, is the backoff's initial interval. Every
// delivery starts a fresh backoff and consults it once, so a failed
// command is re-queued after roughly baseDelay each time it fails;
// maxAttempts == 0 disables retries, and any other value does not cap
// how many times a command is re-queued.
func NewCommandSender(sched *Scheduler, transport Transport, timeouts *TimeoutManager, masterId string, maxAttempts uint64, baseDelay time.Duration) *CommandSender {
	return &CommandSender{
		sched:       sched,
		transport:   transport,
		timeouts:    timeouts,
		masterId:    masterId,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		log:         logrus.WithField("component", "command_sender"),
	}
}

// Run drains command queues until stop is closed, waking whenever the
// observer bus reports CommandsChanged (and once up front, in case
// commands were already queued before Run started).
func (cs *CommandSender) Run(ctx context.Context, bus *observer.Bus, stop <-chan struct{}) {
	sub := bus.Subscribe()
	defer sub.Close()

	cs.drainAll(ctx)
	for {
		select {
		case <-stop:
			return
		case kind := <-sub.C():
			if kind == observer.CommandsChanged {
				cs.drainAll(ctx)
			}
		}
	}
}

func (cs *CommandSender) drainAll(ctx context.Context) {
	for _, w := range cs.sched.registry.Workers() {
		q := cs.sched.registry.CommandQueue(w.IP)
		for {
			cmd, ok := q.Pop()
			if !ok {
				break
			}
			cs.deliver(ctx, w.IP, cmd)
		}
	}
}

func (cs *CommandSender) deliver(ctx context.Context, ip string, cmd workerpool.Command) {
	env, err := encodeCommand(cmd)
	if err != nil {
		cs.log.WithError(err).WithField("ip", ip).Error("could not encode command")
		return
	}

	eb := backoff.NewExponentialBackOff()
	if cs.baseDelay > 0 {
		eb.InitialInterval = cs.baseDelay
		eb.Reset()
	}
	b := backoff.WithMaxRetries(eb, cs.maxAttempts)
	_, err = cs.transport.Send(ctx, ip, env)
	if err == nil {
		return
	}

	delay := b.NextBackOff()
	if delay == backoff.Stop {
		cs.log.WithFields(logrus.Fields{"ip": ip, "kind": cmd.Kind}).Warn("command exhausted retries")
		return
	}
	if cs.timeouts != nil {
		cs.timeouts.ScheduleCommandRetry(cmd, ip, delay)
	}
}

func encodeCommand(cmd workerpool.Command) (wire.Envelope, error) {
	switch cmd.Kind {
	case workerpool.StopTask:
		return wire.Encode(wire.TypeStopTask, wire.StopTaskCommand{JobId: cmd.JobId, TaskId: cmd.TaskId})
	case workerpool.StopAllJobs:
		return wire.Encode(wire.TypeStopAllJobs, wire.StopAllJobsCommand{})
	case workerpool.StopPreviousJobs:
		return wire.Encode(wire.TypeStopPreviousJobs, wire.StopPreviousJobsCommand{})
	default:
		return wire.Envelope{}, errUnknownCommandKind
	}
}
