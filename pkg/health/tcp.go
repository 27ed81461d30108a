package health

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// TCPChecker checks that a TCP endpoint accepts connections
type TCPChecker struct {
	// Address is host:port, optionally prefixed with tcp://
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: strings.TrimPrefix(address, "tcp://"),
		Timeout: 5 * time.Second,
	}
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}

// Check dials the endpoint once. The probe is bounded by both ctx and
// Timeout.
func (t *TCPChecker) Check(ctx context.Context) Result {
	res := Result{CheckedAt: time.Now()}

	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	res.Duration = time.Since(res.CheckedAt)
	if err != nil {
		res.Message = fmt.Sprintf("%s unreachable: %v", t.Address, err)
		return res
	}
	_ = conn.Close()

	res.Healthy = true
	res.Message = "connected to " + t.Address
	return res
}
