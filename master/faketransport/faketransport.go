// Package faketransport provides an in-memory master.Transport for
// tests, grounded on the teacher's habit of shipping an in-process fake
// alongside every real networked collaborator (e.g. sched/worker's
// generated mock, runner's fake implementations).
package faketransport

import (
	"context"
	"sync"

	"github.com/scootdev/dispatch/wire"
)

// Handler answers one Send call for a given worker IP.
type Handler func(ctx context.Context, ip string, msg wire.Envelope) (wire.Envelope, error)

// Transport is a fake master.Transport: each Send call is routed to a
// per-IP Handler installed by the test, or fails if none is installed.
type Transport struct {
	mu       sync.Mutex
	handlers map[string]Handler
	sent     []Sent
}

// Sent records one delivered message for test assertions.
type Sent struct {
	IP  string
	Msg wire.Envelope
}

// New returns an empty fake transport.
func New() *Transport {
	return &Transport{handlers: make(map[string]Handler)}
}

// OnIP installs h to answer every Send call addressed to ip.
func (t *Transport) OnIP(ip string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[ip] = h
}

// Send implements master.Transport.
func (t *Transport) Send(ctx context.Context, ip string, msg wire.Envelope) (wire.Envelope, error) {
	t.mu.Lock()
	h, ok := t.handlers[ip]
	t.sent = append(t.sent, Sent{IP: ip, Msg: msg})
	t.mu.Unlock()
	if !ok {
		return wire.Envelope{}, errNoHandler(ip)
	}
	return h(ctx, ip, msg)
}

// Sent returns every message delivered so far, in order.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Sent, len(t.sent))
	copy(out, t.sent)
	return out
}

type noHandlerError string

func (e noHandlerError) Error() string { return "faketransport: no handler installed for " + string(e) }

func errNoHandler(ip string) error { return noHandlerError(ip) }
