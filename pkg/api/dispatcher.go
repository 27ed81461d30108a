package api

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/metrics"
	"github.com/cuemby/replicad/pkg/nv"
	"github.com/cuemby/replicad/pkg/resource"
	"github.com/cuemby/replicad/pkg/types"
)

const (
	// readTimeout is how long a client may take to send its request
	readTimeout = 30 * time.Second

	// writeTimeout bounds writing the response
	writeTimeout = 10 * time.Second

	// maxRequestSize is the maximum size of one encoded request
	maxRequestSize = 1024 * 1024

	// targetAll selects every configured resource
	targetAll = "all"
)

// RoleSetter applies role changes
type RoleSetter interface {
	SetRole(name string, role types.Role) (types.Role, error)
}

// StatusQuerier reports the status of a resource
type StatusQuerier interface {
	QueryStatus(res *resource.Resource) (types.StatusReport, error)
}

// Dispatcher answers control requests against the resource table. It
// is not safe for concurrent use; requests are handled one at a time.
type Dispatcher struct {
	table  *resource.Table
	roles  RoleSetter
	status StatusQuerier
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(table *resource.Table, roles RoleSetter, status StatusQuerier) *Dispatcher {
	return &Dispatcher{
		table:  table,
		roles:  roles,
		status: status,
		logger: log.WithComponent("dispatcher"),
	}
}

// result is the outcome of a request for one resource. Only the
// encoder turns the list of results into suffixed keys.
type result struct {
	name string
	res  *resource.Resource
	role types.Role

	// report is set for successful status queries
	report *types.StatusReport
	err    error
}

// Handle serves exactly one request on conn and closes it. A request
// that cannot be decoded gets no response.
func (d *Dispatcher) Handle(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	req, err := nv.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		metrics.ControlRequestsTotal.WithLabelValues("undecodable", "dropped").Inc()
		d.logger.Warn().Err(err).Msg("unable to decode control request")
		return
	}

	resp := d.Process(req)

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := nv.Write(conn, resp); err != nil {
		d.logger.Warn().Err(err).Msg("unable to send control response")
	}
}

// Process executes a decoded request and builds the response
func (d *Dispatcher) Process(req *nv.Message) *nv.Message {
	timer := metrics.NewTimer()

	cmd, _ := req.GetUint8("cmd")
	command := types.Command(cmd)
	label := commandLabel(command)

	results, err := d.execute(req, command)

	resp := encodeResults(command, results)
	if err == nil && resp.Err() != nil {
		d.logger.Error().Err(resp.Err()).Msg("unable to build control response")
		err = types.ErrNoMemory
	}
	if err != nil {
		code := types.CodeOf(err)
		if code == types.ErrNoMemory {
			resp = nv.New()
		}
		resp.AddInt16("error", int16(code))
		metrics.ControlRequestsTotal.WithLabelValues(label, "error").Inc()
		d.logger.Warn().Err(err).Str("command", command.String()).Msg("control request failed")
	} else {
		metrics.ControlRequestsTotal.WithLabelValues(label, "ok").Inc()
	}

	timer.ObserveDurationVec(metrics.ControlRequestDuration, label)
	return resp
}

// execute validates the request and runs the command for every target.
// A returned error is a request-level failure.
func (d *Dispatcher) execute(req *nv.Message, command types.Command) ([]result, error) {
	if command == 0 {
		return nil, types.ErrInvalidRequest
	}

	names := req.Strings("resource")
	if len(names) == 0 {
		return nil, types.ErrInvalidRequest
	}

	switch command {
	case types.CommandSetRole:
		raw, ok := req.GetUint8("role")
		if !ok {
			return nil, types.ErrInvalidRequest
		}
		role := types.Role(raw)
		if !role.Requestable() {
			return nil, types.ErrInvalidRole
		}
		return d.each(names, func(r *result) {
			r.role, r.err = d.roles.SetRole(r.name, role)
		}), nil

	case types.CommandStatus:
		return d.each(names, func(r *result) {
			r.role = r.res.Role
			report, err := d.status.QueryStatus(r.res)
			if err != nil {
				r.err = err
				return
			}
			r.report = &report
		}), nil

	default:
		return nil, types.ErrUnimplemented
	}
}

// each resolves the targets and runs fn for every configured one.
// Unknown names get a NoSuchResource result without calling fn.
func (d *Dispatcher) each(names []string, fn func(r *result)) []result {
	var targets []result
	if names[0] == targetAll {
		for _, res := range d.table.All() {
			targets = append(targets, result{name: res.Name, res: res})
		}
	} else {
		for _, name := range names {
			targets = append(targets, result{name: name, res: d.table.Find(name)})
		}
	}

	for i := range targets {
		r := &targets[i]
		if r.res == nil {
			r.err = types.ErrNoSuchResource
			continue
		}
		fn(r)
		if r.err != nil {
			d.logger.Warn().Err(r.err).Str("resource", r.name).Msg("request failed for resource")
		}
	}
	return targets
}

func encodeResults(command types.Command, results []result) *nv.Message {
	resp := nv.New()
	for i, r := range results {
		resp.AddString(nv.Key("resource", i), r.name)
		if r.res == nil {
			resp.AddInt16(nv.Key("error", i), int16(types.CodeOf(r.err)))
			continue
		}

		resp.AddString(nv.Key("role", i), r.role.String())
		if command == types.CommandStatus {
			resp.AddString(nv.Key("provname", i), r.res.Provider)
			resp.AddString(nv.Key("localpath", i), r.res.LocalPath)
			resp.AddString(nv.Key("remoteaddr", i), r.res.RemoteAddress)
			if r.res.SourceAddress != "" {
				resp.AddString(nv.Key("sourceaddr", i), r.res.SourceAddress)
			}
			resp.AddString(nv.Key("replication", i), r.res.Replication.String())
			if r.report != nil {
				resp.AddString(nv.Key("status", i), r.report.Status)
				resp.AddUint64(nv.Key("dirty", i), r.report.Dirty)
				resp.AddUint32(nv.Key("extentsize", i), r.report.ExtentSize)
				resp.AddUint32(nv.Key("keepdirty", i), r.report.KeepDirty)
			}
		}
		if r.err != nil {
			resp.AddInt16(nv.Key("error", i), int16(types.CodeOf(r.err)))
		}
	}
	return resp
}

func commandLabel(c types.Command) string {
	switch c {
	case types.CommandSetRole, types.CommandStatus:
		return c.String()
	default:
		return "unknown"
	}
}
