package master

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scootdev/dispatch/job"
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/queue"
	"github.com/scootdev/dispatch/stats"
	"github.com/scootdev/dispatch/wire"
	"github.com/scootdev/dispatch/workerpool"
)

func sendAdmin(t *testing.T, addr string, req wire.AdminRequest) wire.AdminResult {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer conn.Close()

	env, err := wire.Encode(wire.TypeAdminCommand, req)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if err := wire.WriteFrame(conn, env); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	resEnv, err := wire.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	var res wire.AdminResult
	if err := wire.Decode(resEnv, &res); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	return res
}

func Test_AdminServer_JobCommandLoadsFileAndQueuesIt(t *testing.T) {
	reg := workerpool.NewRegistry(3)
	reg.LoadHosts([]workerpool.HostSpec{{IP: "10.0.0.1", TotalCPU: 2, MemoryMB: 1024}})
	q := queue.New()
	bus := observer.New()
	sched := New(reg, q, bus, stats.NilStatsReceiver())

	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	body, _ := json.Marshal(JobSpec{Id: 1, Priority: 1, NumExec: 2, MaxCPUPerHost: -1})
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	admin := NewAdminServer(sched, q)
	stop := make(chan struct{})
	defer close(stop)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ln.Close()
	addr := ln.Addr().String()
	go admin.Serve(addr, stop)
	time.Sleep(20 * time.Millisecond)

	res := sendAdmin(t, addr, wire.AdminRequest{Command: "job", File: path})
	if !res.OK {
		t.Fatalf("expected a successful submission, got %+v", res)
	}
	// The worker has free CPU, so OnNewJob admits the queued job into the
	// scheduled-jobs table straight away.
	if info, active := sched.GetJobInfo(1); !active || info.PlannedExec != 2 {
		t.Fatalf("expected job 1 to be queued and admitted with 2 planned tasks, got %+v active=%v", info, active)
	}
}

func Test_AdminServer_StopAllStopsEveryActiveJob(t *testing.T) {
	reg := workerpool.NewRegistry(3)
	reg.LoadHosts([]workerpool.HostSpec{{IP: "10.0.0.1", TotalCPU: 2, MemoryMB: 1024}})
	q := queue.New()
	bus := observer.New()
	sched := New(reg, q, bus, stats.NilStatsReceiver())

	var called int
	q.Push(&job.Job{Id: 1, Limits: job.Limits{NumExec: 1, MaxCPUPerHost: -1},
		OnComplete: func(status string) { called++ }}, 1)
	sched.OnNewJob()

	admin := NewAdminServer(sched, q)
	stop := make(chan struct{})
	defer close(stop)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ln.Close()
	addr := ln.Addr().String()
	go admin.Serve(addr, stop)
	time.Sleep(20 * time.Millisecond)

	res := sendAdmin(t, addr, wire.AdminRequest{Command: "stop_all"})
	if !res.OK {
		t.Fatalf("expected stop_all to succeed, got %+v", res)
	}
	if _, active := sched.GetJobInfo(1); active {
		t.Fatal("expected job 1 to no longer be active after stop_all")
	}
	if called != 1 {
		t.Fatalf("expected the completion callback to fire once, got %d", called)
	}
}

func Test_AdminServer_UnknownCommandReturnsError(t *testing.T) {
	reg := workerpool.NewRegistry(3)
	q := queue.New()
	bus := observer.New()
	sched := New(reg, q, bus, stats.NilStatsReceiver())

	admin := NewAdminServer(sched, q)
	stop := make(chan struct{})
	defer close(stop)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ln.Close()
	addr := ln.Addr().String()
	go admin.Serve(addr, stop)
	time.Sleep(20 * time.Millisecond)

	res := sendAdmin(t, addr, wire.AdminRequest{Command: "bogus"})
	if res.OK || res.Error == "" {
		t.Fatalf("expected an error for an unknown command, got %+v", res)
	}
}
