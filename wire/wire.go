// Package wire implements the master<->worker and admin wire protocol
// from spec.md §6: a decimal length prefix, a newline, then a JSON
// envelope. The teacher serializes sched.Job with Apache Thrift
// (sched/definitions.go); our protocol is a flat JSON framing instead
// (see DESIGN.md for why thrift was dropped), grounded on the same
// "one struct per message type" shape sched/definitions.go uses.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Envelope is the top-level frame every message is wrapped in.
type Envelope struct {
	Protocol string          `json:"protocol"`
	Version  int             `json:"version"`
	Type     string          `json:"type"`
	Body     json.RawMessage `json:"body"`
}

const (
	ProtocolJSON   = "json"
	CurrentVersion = 1
)

// Message type names, matching spec.md §6 exactly.
const (
	TypeExec              = "exec"
	TypeGetResult         = "get_result"
	TypeStopTask          = "stop_task"
	TypeStopAllJobs       = "stop_all_jobs"
	TypeStopPreviousJobs  = "stop_previous_jobs"
	TypeSendCommandResult = "send_command_result"
	TypeJobCompletionPing = "job_completion_ping"
	TypeHeartbeat         = "heartbeat"
	TypeAdminCommand      = "admin_command"
	TypeAdminResult       = "admin_result"
)

// ExecRequest is the master->worker body for TypeExec.
type ExecRequest struct {
	Language string `json:"language"`
	Script   []byte `json:"script"` // base64 via encoding/json's []byte handling
	JobId    int64  `json:"jobId"`
	TaskId   int    `json:"taskId"`
	MasterId string `json:"masterId"`
	Tasks    []int  `json:"tasks"`
	NumTasks int    `json:"numTasks"`
	Timeout  int64  `json:"timeout"` // nanoseconds
}

// GetResultRequest is the master->worker body for TypeGetResult.
type GetResultRequest struct {
	MasterId string `json:"masterId"`
	JobId    int64  `json:"jobId"`
	TaskId   int    `json:"taskId"`
}

// GetResultResponse is the worker->master body replying to GetResultRequest.
type GetResultResponse struct {
	ErrCode  int   `json:"errCode"`
	ExecTime int64 `json:"execTime"` // nanoseconds
}

// StopTaskCommand is the master->worker body for TypeStopTask.
type StopTaskCommand struct {
	JobId  int64 `json:"jobId"`
	TaskId int   `json:"taskId"`
}

// StopAllJobsCommand is the master->worker body for TypeStopAllJobs. It
// carries no fields: the instruction is unconditional.
type StopAllJobsCommand struct{}

// StopPreviousJobsCommand is the master->worker body for TypeStopPreviousJobs.
type StopPreviousJobsCommand struct{}

// SendCommandResult is the worker->master body acknowledging a command.
type SendCommandResult struct {
	ErrCode int `json:"errCode"`
}

// JobCompletionPing is the worker->master UDP body reporting task completion.
type JobCompletionPing struct {
	JobId  int64 `json:"jobId"`
	TaskId int   `json:"taskId"`
}

// Heartbeat is the worker->master UDP body proving liveness.
type Heartbeat struct {
	NumCPU       int    `json:"numCPU"`
	MemorySizeMB int    `json:"memorySizeMB"`
	Host         string `json:"host"`
	Group        string `json:"group"`
}

// AdminRequest is the admin-protocol body: "{command, ...}" per
// spec.md §6. Command is one of "job" (File names a local job
// description to load and push onto the queue), "stop_job" (JobId),
// "stop_group" (GroupId), or "stop_all"; the admin server answers any
// other command with an error result.
type AdminRequest struct {
	Command string `json:"command"`
	File    string `json:"file,omitempty"`
	JobId   int64  `json:"jobId,omitempty"`
	GroupId int64  `json:"groupId,omitempty"`
}

// AdminResult is the admin protocol's response body.
type AdminResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Encode wraps body (any of the above structs) in an Envelope of the
// given type.
func Encode(msgType string, body interface{}) (Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "encoding %s body", msgType)
	}
	return Envelope{Protocol: ProtocolJSON, Version: CurrentVersion, Type: msgType, Body: raw}, nil
}

// Decode unmarshals env.Body into out, which must be a pointer to one
// of the body structs matching env.Type.
func Decode(env Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Body, out); err != nil {
		return errors.Wrapf(err, "decoding %s body", env.Type)
	}
	return nil
}

// WriteFrame writes env to w as "<decimal length>\n<json>".
func WriteFrame(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshaling envelope")
	}
	if _, err := fmt.Fprintf(w, "%d\n", len(payload)); err != nil {
		return errors.Wrap(err, "writing frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "writing frame body")
	}
	return nil
}

// ReadFrame reads one "<decimal length>\n<json>" frame from r.
func ReadFrame(r *bufio.Reader) (Envelope, error) {
	lengthLine, err := r.ReadString('\n')
	if err != nil {
		return Envelope{}, errors.Wrap(err, "reading frame length")
	}
	var n int
	if _, err := fmt.Sscanf(lengthLine, "%d", &n); err != nil {
		return Envelope{}, errors.Wrapf(err, "parsing frame length %q", lengthLine)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, errors.Wrap(err, "reading frame body")
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "unmarshaling envelope")
	}
	return env, nil
}
