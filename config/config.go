// Package config loads the master's runtime configuration from a JSON
// file. The teacher's sched/config.go wires the same kind of struct
// through an ice.MagicBag dependency-injection container; we drop ice
// (see DESIGN.md) since nothing in this module needs multi-module DI,
// and load the struct directly with encoding/json instead.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Config mirrors the JSON keys spec.md §6 names, plus the
// scheduler-internal knobs original_source's SchedulerConfig carries
// alongside them.
type Config struct {
	NumPingReceiverThread  int `json:"num_ping_receiver_thread"`
	NumJobSendThread       int `json:"num_job_send_thread"`
	NumResultGetterThread  int `json:"num_result_getter_thread"`
	MaxSimultResultGetters int `json:"max_simult_result_getters"`
	SendBufferSize         int `json:"send_buffer_size"`
	MaxSimultSendingJobs   int `json:"max_simult_sending_jobs"`

	// HeartbeatMaxDroped is the registry's missed-heartbeat threshold
	// (4.C). HeartbeatTimeoutMillis, the length of one heartbeat
	// interval, is not read by the registry.
	HeartbeatTimeoutMillis int `json:"heartbeat_timeout"`
	HeartbeatMaxDroped     int `json:"heartbeat_max_droped"`

	// MaxFailedNodesDefault is loaded but not applied to jobs: a job
	// whose MaxFailedNodes is left at zero has no failed-node limit.
	MaxFailedNodesDefault int `json:"max_failed_nodes_default"`

	// CommandRetryBaseMillis/CommandRetryMaxAttempts parameterize the
	// command-sender's cenkalti/backoff policy.
	CommandRetryBaseMillis  int    `json:"command_retry_base_millis"`
	CommandRetryMaxAttempts uint64 `json:"command_retry_max_attempts"`

	HostsFile string `json:"hosts_file"`
	AdminAddr string `json:"admin_addr"`
}

// Default returns a Config with the same defaults
// sched/config.go's Config struct carries, adapted to this module's
// field names.
func Default() Config {
	return Config{
		NumPingReceiverThread:   2,
		NumJobSendThread:        4,
		NumResultGetterThread:   4,
		MaxSimultResultGetters:  16,
		SendBufferSize:          1 << 16,
		MaxSimultSendingJobs:    16,
		HeartbeatTimeoutMillis:  1000,
		HeartbeatMaxDroped:      3,
		MaxFailedNodesDefault:   2,
		CommandRetryBaseMillis:  100,
		CommandRetryMaxAttempts: 5,
		AdminAddr:               ":9090",
	}
}

// HeartbeatTimeout is HeartbeatTimeoutMillis as a time.Duration.
func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMillis) * time.Millisecond
}

// CommandRetryBaseDelay is CommandRetryBaseMillis as a time.Duration.
func (c Config) CommandRetryBaseDelay() time.Duration {
	return time.Duration(c.CommandRetryBaseMillis) * time.Millisecond
}

// Load reads a Config from path, starting from Default() and
// overwriting whichever fields the file sets.
func Load(path string) (Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "opening config %s", path)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return Config{}, errors.Wrapf(err, "decoding config %s", path)
	}
	return c, nil
}
