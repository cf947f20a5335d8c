package master

import (
	"bufio"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/scootdev/dispatch/queue"
	"github.com/scootdev/dispatch/wire"
)

// AdminServer serves the admin protocol from spec.md §6: length-prefixed
// JSON requests of {command, ...} over TCP, answered with an
// AdminResult. Grounded on master/tcptransport.go's framing and
// scootapi/client's one-command-per-action cobra commands, mirrored
// here on the serving side instead of the calling side.
type AdminServer struct {
	sched *Scheduler
	q     *queue.Queue
	log   *logrus.Entry
}

// NewAdminServer wires an admin server against sched/q.
func NewAdminServer(sched *Scheduler, q *queue.Queue) *AdminServer {
	return &AdminServer{sched: sched, q: q, log: logrus.WithField("component", "admin_server")}
}

// Serve listens on addr and handles admin requests until stop is closed.
func (a *AdminServer) Serve(addr string, stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-stop
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				return err
			}
		}
		go a.handleConn(conn)
	}
}

func (a *AdminServer) handleConn(conn net.Conn) {
	defer conn.Close()

	env, err := wire.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		a.log.WithError(err).Warn("admin request read failed")
		return
	}
	var req wire.AdminRequest
	if err := wire.Decode(env, &req); err != nil {
		a.log.WithError(err).Warn("admin request decode failed")
		return
	}

	res := a.dispatch(req)
	resEnv, err := wire.Encode(wire.TypeAdminResult, res)
	if err != nil {
		a.log.WithError(err).Error("could not encode admin result")
		return
	}
	if err := wire.WriteFrame(conn, resEnv); err != nil {
		a.log.WithError(err).Warn("admin response write failed")
	}
}

// dispatch runs one admin command against the in-process scheduler.
func (a *AdminServer) dispatch(req wire.AdminRequest) wire.AdminResult {
	switch req.Command {
	case "job":
		j, err := LoadJobFile(req.File)
		if err != nil {
			return wire.AdminResult{Error: err.Error()}
		}
		a.q.Push(j, j.GroupId)
		a.sched.OnNewJob()
		return wire.AdminResult{OK: true, Message: fmt.Sprintf("job %d queued", j.Id)}
	case "stop_job":
		a.sched.StopJob(req.JobId)
		return wire.AdminResult{OK: true, Message: fmt.Sprintf("job %d stopped", req.JobId)}
	case "stop_group":
		a.sched.StopJobGroup(req.GroupId)
		return wire.AdminResult{OK: true, Message: fmt.Sprintf("group %d stopped", req.GroupId)}
	case "stop_all":
		a.sched.StopAllJobs()
		return wire.AdminResult{OK: true, Message: "all jobs stopped"}
	default:
		return wire.AdminResult{Error: "unknown admin command: " + req.Command}
	}
}
