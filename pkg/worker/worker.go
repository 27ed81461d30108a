package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/ipc"
	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/nv"
	"github.com/cuemby/replicad/pkg/types"
)

// ErrChannelLost means the daemon's end of the control channel is gone.
// The process should exit with supervisor.ExitTempFail.
var ErrChannelLost = errors.New("control channel lost")

// replyTimeout bounds a single reply to the daemon
const replyTimeout = 5 * time.Second

// Worker answers the daemon's requests about one resource
type Worker struct {
	resource string
	channel  *ipc.Channel
	provider StatusProvider
	logger   zerolog.Logger
}

// New creates a worker serving requests from channel
func New(resource string, channel *ipc.Channel, provider StatusProvider) *Worker {
	return &Worker{
		resource: resource,
		channel:  channel,
		provider: provider,
		logger:   log.WithComponent("worker").With().Str("resource", resource).Logger(),
	}
}

// Run serves requests until ctx is cancelled or the channel fails.
// Cancellation closes the channel and returns nil; any other failure
// returns an error wrapping ErrChannelLost.
func (w *Worker) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		w.channel.Close()
	})
	defer stop()

	for {
		req, err := w.channel.Receive(0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error().Err(err).Msg("unable to receive control request")
			return fmt.Errorf("%w: %v", ErrChannelLost, err)
		}

		reply := w.handle(req)
		if err := w.channel.Send(reply, replyTimeout); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error().Err(err).Msg("unable to send control reply")
			return fmt.Errorf("%w: %v", ErrChannelLost, err)
		}
	}
}

// handle builds the reply to one request
func (w *Worker) handle(req *nv.Message) *nv.Message {
	reply := nv.New()

	cmd, ok := req.GetUint8("cmd")
	if !ok || cmd == 0 {
		w.logger.Warn().Msg("control request without command")
		reply.AddInt16("error", int16(types.ErrInvalidRequest))
		return reply
	}

	switch types.WorkerCommand(cmd) {
	case types.WorkerCommandStatus:
		report := w.provider.Status()
		reply.AddString("status", report.Status)
		reply.AddUint32("extentsize", report.ExtentSize)
		reply.AddUint32("keepdirty", report.KeepDirty)
		reply.AddUint64("dirty", report.Dirty)
	default:
		w.logger.Warn().Uint8("cmd", cmd).Msg("unknown control command")
		reply.AddInt16("error", int16(types.ErrUnimplemented))
	}
	return reply
}
