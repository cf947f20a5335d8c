package master

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/scootdev/dispatch/wire"
)

// TCPTransport is the real master.Transport: one short-lived TCP
// connection per Send, framed with wire.WriteFrame/wire.ReadFrame. The
// wire protocol codec and transport are explicitly out-of-scope
// collaborators for the scheduler core itself (spec.md §1); this is
// just enough of a real implementation for cmd/master to actually run,
// grounded on the same request/response-per-connection shape
// scootapi/client/dialer.go uses for its thrift transport.
type TCPTransport struct {
	DialTimeout time.Duration
}

// NewTCPTransport returns a transport with a sensible default dial timeout.
func NewTCPTransport() *TCPTransport {
	return &TCPTransport{DialTimeout: 5 * time.Second}
}

// Send implements Transport.
func (t *TCPTransport) Send(ctx context.Context, ip string, msg wire.Envelope) (wire.Envelope, error) {
	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", ip)
	if err != nil {
		return wire.Envelope{}, errors.Wrapf(err, "dialing %s", ip)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := wire.WriteFrame(conn, msg); err != nil {
		return wire.Envelope{}, errors.Wrapf(err, "sending to %s", ip)
	}
	resp, err := wire.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		return wire.Envelope{}, errors.Wrapf(err, "reading reply from %s", ip)
	}
	return resp, nil
}
