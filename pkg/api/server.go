package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/metrics"
	"github.com/cuemby/replicad/pkg/supervisor"
)

// Controller is the role state machine as seen by the control loop
type Controller interface {
	RoleSetter
	HandleExit(exit supervisor.Exit)
	Restart(name string)
	Restarts() <-chan string
}

// ServerConfig holds configuration for the control server
type ServerConfig struct {
	SocketPath string
	Dispatcher *Dispatcher
	Controller Controller

	// Exits delivers reaped workers, normally Supervisor.Exits
	Exits <-chan supervisor.Exit
}

// Server runs the daemon's control loop: it accepts control
// connections on a Unix socket and handles them strictly one at a
// time, interleaved with worker exits and restarts. Everything that
// touches the resource table runs on the Serve goroutine.
type Server struct {
	socketPath string
	dispatcher *Dispatcher
	controller Controller
	exits      <-chan supervisor.Exit
	logger     zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a control server
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		socketPath: cfg.SocketPath,
		dispatcher: cfg.Dispatcher,
		controller: cfg.Controller,
		exits:      cfg.Exits,
		logger:     log.WithComponent("control"),
	}
}

// Addr returns the listening address, or nil before Serve listens
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the control loop until ctx is cancelled. Any existing
// socket file at the configured path is removed before listening, and
// the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		metrics.UpdateComponent("control", false, err.Error())
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("restricting %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	conns := make(chan net.Conn)
	var accepting sync.WaitGroup
	accepting.Add(1)
	go func() {
		defer accepting.Done()
		s.acceptLoop(ctx, listener, conns)
	}()

	defer func() {
		listener.Close()
		accepting.Wait()
		os.Remove(s.socketPath)
		metrics.UpdateComponent("control", false, "stopped")
	}()

	metrics.UpdateComponent("control", true, "listening")
	s.logger.Info().Str("path", s.socketPath).Msg("control socket listening")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("control loop stopping")
			return nil
		case conn := <-conns:
			s.dispatcher.Handle(conn)
		case exit := <-s.exits:
			s.controller.HandleExit(exit)
		case name := <-s.controller.Restarts():
			s.controller.Restart(name)
		}
	}
}

// acceptLoop hands accepted connections to the control loop, one at a
// time
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener, conns chan<- net.Conn) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}
