package relay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/metrics"
	"github.com/cuemby/replicad/pkg/nv"
	"github.com/cuemby/replicad/pkg/resource"
	"github.com/cuemby/replicad/pkg/types"
)

// DefaultTimeout bounds one status exchange with a worker
const DefaultTimeout = 5 * time.Second

// Relay forwards status queries to resource workers
type Relay struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a relay. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{
		timeout: timeout,
		logger:  log.WithComponent("relay"),
	}
}

// QueryStatus returns the status of res. Without a worker the report is
// synthesized locally and never fails. With a worker, any channel
// failure or malformed reply is ErrWorkerUnreachable and the channel is
// closed, which makes the worker exit and be restarted.
func (r *Relay) QueryStatus(res *resource.Resource) (types.StatusReport, error) {
	if res.Worker == nil {
		return types.StatusReport{
			Status:     types.StatusDegraded,
			ExtentSize: res.ExtentSize,
		}, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StatusQueryDuration)

	report, err := r.query(res)
	if err != nil {
		metrics.StatusQueryFailures.Inc()
		return types.StatusReport{}, err
	}

	if res.Role != types.RolePrimary {
		report.Dirty = 0
		report.KeepDirty = 0
	}
	return report, nil
}

func (r *Relay) query(res *resource.Resource) (types.StatusReport, error) {
	var report types.StatusReport
	channel := res.Worker.Channel()
	logger := log.WithWorker(res.Name, res.Worker.PID())

	req := nv.New()
	req.AddUint8("cmd", uint8(types.WorkerCommandStatus))

	reply, err := channel.Call(req, r.timeout)
	if err != nil {
		logger.Error().Err(err).Msg("status query failed")
		channel.Close()
		return report, fmt.Errorf("%w: %v", types.ErrWorkerUnreachable, err)
	}

	if code, ok := reply.GetInt16("error"); ok && code != 0 {
		logger.Warn().Int16("code", code).Msg("worker rejected status query")
		return report, types.Code(code)
	}

	status, ok := reply.GetString("status")
	if !ok {
		logger.Error().Msg("worker reply carries no status")
		channel.Close()
		return report, fmt.Errorf("%w: reply without status", types.ErrWorkerUnreachable)
	}

	report.Status = status
	report.Dirty, _ = reply.GetUint64("dirty")
	report.ExtentSize, _ = reply.GetUint32("extentsize")
	report.KeepDirty, _ = reply.GetUint32("keepdirty")
	return report, nil
}
