package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/d2verb/katago-sgf/internal/protocol"
)

// Server accepts protocol requests on a unix socket or TCP address. A
// connection may carry any number of requests; each gets exactly one
// response line.
type Server struct {
	daemon   *Daemon
	network  string
	address  string
	logger   *slog.Logger
	listener net.Listener
	cancel   context.CancelFunc
	conns    sync.WaitGroup
}

// NewServer creates a server for d listening on network ("unix" or "tcp")
// and address.
func NewServer(d *Daemon, network, address string, logger *slog.Logger) *Server {
	return &Server{
		daemon:  d,
		network: network,
		address: address,
		logger:  logger,
	}
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start starts listening and serving connections until Stop.
func (s *Server) Start(ctx context.Context) error {
	if s.network == "unix" {
		if err := os.Remove(s.address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listen on %s %s: %w", s.network, s.address, err)
	}
	s.listener = listener

	if s.network == "unix" {
		// owner-only
		if err := os.Chmod(s.address, 0600); err != nil {
			listener.Close()
			return fmt.Errorf("chmod socket: %w", err)
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("listening", "network", s.network, "address", listener.Addr().String())
	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.cancel()
	s.conns.Wait()
	if s.network == "unix" {
		os.Remove(s.address)
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	dec := json.NewDecoder(conn)
	for {
		var req protocol.Request
		err := dec.Decode(&req)

		var typeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		switch {
		case err == nil:
		case errors.As(err, &typeErr):
			// well-formed JSON that is not a request object
			if !s.writeResponse(conn, protocol.NewErrorResponse(nil, protocol.CodeInvalidRequest, "invalid request", err.Error())) {
				return
			}
			continue
		case errors.As(err, &syntaxErr):
			s.logger.Warn("unparsable request", "remote", conn.RemoteAddr().String(), "error", err)
			s.writeResponse(conn, protocol.NewErrorResponse(nil, protocol.CodeParseError, "parse error", err.Error()))
			return
		default:
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("connection closed", "error", err)
			}
			return
		}

		if !s.writeResponse(conn, s.handleRequest(&req)) {
			return
		}
	}
}

func (s *Server) handleRequest(req *protocol.Request) *protocol.Response {
	switch req.Method {
	case "":
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidRequest, "invalid request", "method is required")
	case protocol.MethodSubmit:
		return s.handleSubmit(req)
	case protocol.MethodListJobs:
		return s.result(req.ID, s.daemon.ListJobs())
	case protocol.MethodStatus:
		status := s.daemon.Status()
		status.Listen = s.network + ":" + s.Addr().String()
		return s.result(req.ID, status)
	default:
		return protocol.NewErrorResponse(req.ID, protocol.CodeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) handleSubmit(req *protocol.Request) *protocol.Response {
	if len(req.Params) == 0 {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "invalid params", "filename is required")
	}
	var params protocol.SubmitParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "invalid params", err.Error())
	}
	if params.Filename == "" {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "invalid params", "filename is required")
	}

	id, err := s.daemon.Submit(params)
	if err != nil {
		var fe *FileNotFoundError
		if errors.As(err, &fe) {
			return protocol.NewErrorResponse(req.ID, protocol.CodeFileNotFound, "file not found", fe.Path)
		}
		s.logger.Error("submit", "job", params.Filename, "error", err)
		return protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, "internal error", err.Error())
	}
	return s.result(req.ID, id)
}

func (s *Server) result(id json.RawMessage, v any) *protocol.Response {
	resp, err := protocol.NewResultResponse(id, v)
	if err != nil {
		return protocol.NewErrorResponse(id, protocol.CodeInternalError, "internal error", err.Error())
	}
	return resp
}

// writeResponse writes one response line. It reports whether the connection
// is still usable.
func (s *Server) writeResponse(conn net.Conn, resp *protocol.Response) bool {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		return false
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.logger.Debug("write response", "error", err)
		return false
	}
	return true
}
