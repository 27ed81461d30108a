package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/replicad/pkg/nv"
	"github.com/cuemby/replicad/pkg/types"
)

// DefaultTimeout bounds one request-response exchange. Status queries
// against many resources wait on each worker in turn, so it is generous.
const DefaultTimeout = 2 * time.Minute

// Client talks to a replicad daemon over its control socket. Every
// request uses a fresh connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// RoleResult is the outcome of a role change for one resource
type RoleResult struct {
	Resource     string
	PreviousRole string
	Err          error
}

// StatusResult is the status of one resource
type StatusResult struct {
	Resource      string
	Role          string
	Provider      string
	LocalPath     string
	RemoteAddress string
	SourceAddress string
	Replication   string

	// Report is nil when the daemon could not obtain a status
	Report *types.StatusReport
	Err    error
}

// NewClient creates a client for the daemon listening on socketPath
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
	}
}

// WithTimeout sets the exchange timeout
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// Call sends req and returns the daemon's response
func (c *Client) Call(ctx context.Context, req *nv.Message) (*nv.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := nv.Write(conn, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp, err := nv.NewDecoder(conn).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// SetRole asks the daemon to move the named resources to role. The
// single name "all" selects every configured resource.
func (c *Client) SetRole(ctx context.Context, role types.Role, names ...string) ([]RoleResult, error) {
	req := newRequest(types.CommandSetRole, names)
	req.AddUint8("role", uint8(role))

	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	var results []RoleResult
	for i := 0; ; i++ {
		name, ok := resp.GetStringAt("resource", i)
		if !ok {
			break
		}
		result := RoleResult{Resource: name, Err: entryError(resp, i)}
		result.PreviousRole, _ = resp.GetStringAt("role", i)
		results = append(results, result)
	}
	return results, requestError(resp)
}

// Status queries the named resources. The single name "all" selects
// every configured resource.
func (c *Client) Status(ctx context.Context, names ...string) ([]StatusResult, error) {
	resp, err := c.Call(ctx, newRequest(types.CommandStatus, names))
	if err != nil {
		return nil, err
	}

	var results []StatusResult
	for i := 0; ; i++ {
		name, ok := resp.GetStringAt("resource", i)
		if !ok {
			break
		}
		result := StatusResult{Resource: name, Err: entryError(resp, i)}
		result.Role, _ = resp.GetStringAt("role", i)
		result.Provider, _ = resp.GetStringAt("provname", i)
		result.LocalPath, _ = resp.GetStringAt("localpath", i)
		result.RemoteAddress, _ = resp.GetStringAt("remoteaddr", i)
		result.SourceAddress, _ = resp.GetStringAt("sourceaddr", i)
		result.Replication, _ = resp.GetStringAt("replication", i)

		if status, ok := resp.GetStringAt("status", i); ok {
			report := &types.StatusReport{Status: status}
			report.Dirty, _ = resp.GetUint64At("dirty", i)
			report.ExtentSize, _ = resp.GetUint32At("extentsize", i)
			report.KeepDirty, _ = resp.GetUint32At("keepdirty", i)
			result.Report = report
		}
		results = append(results, result)
	}
	return results, requestError(resp)
}

func newRequest(cmd types.Command, names []string) *nv.Message {
	req := nv.New()
	req.AddUint8("cmd", uint8(cmd))
	for i, name := range names {
		req.AddString(nv.Key("resource", i), name)
	}
	return req
}

func entryError(resp *nv.Message, i int) error {
	if code, ok := resp.GetInt16At("error", i); ok && code != 0 {
		return types.Code(code)
	}
	return nil
}

func requestError(resp *nv.Message) error {
	if code, ok := resp.GetInt16("error"); ok && code != 0 {
		return types.Code(code)
	}
	return nil
}
