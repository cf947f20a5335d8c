// Command master runs the scheduler core behind the admin JSON
// protocol from spec.md §6. Wiring only: config -> workerpool.Registry
// -> queue.Queue -> master.Scheduler -> a cobra command tree, grounded
// on scootapi/client/cli.go's one-command-per-action structure.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nu7hatch/gouuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scootdev/dispatch/config"
	"github.com/scootdev/dispatch/master"
	"github.com/scootdev/dispatch/observer"
	"github.com/scootdev/dispatch/queue"
	"github.com/scootdev/dispatch/stats"
	"github.com/scootdev/dispatch/wire"
	"github.com/scootdev/dispatch/workerpool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Fatal("master exited with error")
	}
}

type app struct {
	configPath string
	cfg        config.Config
	masterId   string
	registry   *workerpool.Registry
	jobQueue   *queue.Queue
	bus        *observer.Bus
	sched      *master.Scheduler
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	a.masterId = "master-" + id.String()

	hosts, err := loadHosts(cfg.HostsFile)
	if err != nil {
		return err
	}

	a.registry = workerpool.NewRegistry(cfg.HeartbeatMaxDroped)
	a.registry.LoadHosts(hosts)
	a.jobQueue = queue.New()
	a.bus = observer.New()
	a.sched = master.New(a.registry, a.jobQueue, a.bus, stats.NewStatsReceiver())
	return nil
}

// loadHosts reads a flat JSON array of workerpool.HostSpec. The hosts
// file's exact format is an out-of-scope external collaborator (spec.md
// §1); this is the minimal shape the rest of the module needs to boot.
func loadHosts(path string) ([]workerpool.HostSpec, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var hosts []workerpool.HostSpec
	if err := json.NewDecoder(f).Decode(&hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "master",
		Short: "master runs the job-execution scheduler core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "master.json", "path to the JSON config file")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newJobCmd(a))
	root.AddCommand(newStopCmd(a))
	return root
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the scheduler's background threads until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			stop := make(chan struct{})

			timeouts := master.NewTimeoutManager(a.sched)
			go timeouts.Run(stop)

			transport := master.NewTCPTransport()
			sender := master.NewJobSender(a.sched, transport, timeouts, a.masterId)
			go sender.Run(ctx, a.bus, stop)

			commandSender := master.NewCommandSender(a.sched, transport, timeouts, a.masterId,
				a.cfg.CommandRetryMaxAttempts, a.cfg.CommandRetryBaseDelay())
			go commandSender.Run(ctx, a.bus, stop)

			admin := master.NewAdminServer(a.sched, a.jobQueue)
			go func() {
				if err := admin.Serve(a.cfg.AdminAddr, stop); err != nil {
					logrus.WithError(err).Error("admin server exited")
				}
			}()

			logrus.WithFields(logrus.Fields{"masterId": a.masterId, "adminAddr": a.cfg.AdminAddr}).Info("master serving")

			sigchan := make(chan os.Signal, 1)
			signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
			<-sigchan
			logrus.Info("master shutting down")
			close(stop)
			return nil
		},
	}
}

// newJobCmd submits a job description file to a running master's admin
// listener, the client side of the {command: "job", file} admin
// protocol from spec.md §6. Grounded on scootapi/client/run_job_cmd.go's
// one-command-submits-one-job shape.
func newJobCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "job",
		Short: "submit a job description file to a running master",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := sendAdminRequest(a.cfg.AdminAddr, wire.AdminRequest{Command: "job", File: file})
			if err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("job submission failed: %s", res.Error)
			}
			fmt.Println(res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the job description file")
	cmd.MarkFlagRequired("file")
	return cmd
}

// newStopCmd stops a job, a DAG group, or every active job on a running
// master, the client side of the admin protocol's stop_job/stop_group/
// stop_all commands. Grounded on scootapi/client/get_status_cmd.go's
// one-command-per-action shape.
func newStopCmd(a *app) *cobra.Command {
	var jobId, groupId int64
	var all bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "stop a job, a job group, or every active job on a running master",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.AdminRequest{}
			switch {
			case all:
				req.Command = "stop_all"
			case groupId != 0:
				req.Command, req.GroupId = "stop_group", groupId
			default:
				req.Command, req.JobId = "stop_job", jobId
			}
			res, err := sendAdminRequest(a.cfg.AdminAddr, req)
			if err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("stop request failed: %s", res.Error)
			}
			fmt.Println(res.Message)
			return nil
		},
	}
	cmd.Flags().Int64Var(&jobId, "job", 0, "job id to stop")
	cmd.Flags().Int64Var(&groupId, "group", 0, "DAG group id to stop")
	cmd.Flags().BoolVar(&all, "all", false, "stop every active job")
	return cmd
}

// sendAdminRequest dials a running master's admin listener, sends req
// as a single framed wire.AdminRequest, and decodes the response.
func sendAdminRequest(addr string, req wire.AdminRequest) (wire.AdminResult, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return wire.AdminResult{}, err
	}
	defer conn.Close()

	env, err := wire.Encode(wire.TypeAdminCommand, req)
	if err != nil {
		return wire.AdminResult{}, err
	}
	if err := wire.WriteFrame(conn, env); err != nil {
		return wire.AdminResult{}, err
	}

	resEnv, err := wire.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		return wire.AdminResult{}, err
	}
	var res wire.AdminResult
	if err := wire.Decode(resEnv, &res); err != nil {
		return wire.AdminResult{}, err
	}
	return res, nil
}

func newStatsCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "print a point-in-time snapshot of cluster statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.sched.GetStatistics()
			fmt.Printf("%+v\n", st)
			if verbose {
				fmt.Println(a.sched.DebugDump())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "also dump the full nodes/jobs table")
	return cmd
}
