package master

import (
	"context"

	"github.com/scootdev/dispatch/wire"
)

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks github.com/scootdev/dispatch/master Transport

// Transport is how the job-sender and command-sender threads actually
// reach a worker. The real implementation dials the wire protocol's
// length-prefixed JSON framing over TCP; master/faketransport provides
// an in-memory stand-in for tests, and master/mocks a gomock-generated
// stand-in for call-order/argument assertions.
type Transport interface {
	Send(ctx context.Context, ip string, msg wire.Envelope) (wire.Envelope, error)
}
