package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"lux/internal/logging"
	"lux/internal/protocol"
)

// ErrAlreadyRunning indicates the socket path already exists. The socket is
// the daemon's liveness token: its presence, even stale, refuses a second
// instance. Stale sockets from an unclean shutdown must be removed manually.
var ErrAlreadyRunning = errors.New("daemon already running")

// Server accepts client connections on a unix socket and dispatches each to
// its own worker. The accept loop never blocks on request handling.
type Server struct {
	path     string
	handler  *protocol.Handler
	logger   *slog.Logger
	listener net.Listener

	// onStop is invoked once after a stop command has been acknowledged.
	// It must not block; shutdown proceeds on the caller's side.
	onStop func()

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer binds the listening socket, failing fast when the path exists.
func NewServer(ctx context.Context, path string, handler *protocol.Handler, onStop func(), logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("ipc server requires a protocol handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if _, err := os.Lstat(path); err == nil {
		return nil, fmt.Errorf("%w: socket %s exists (remove it if stale)", ErrAlreadyRunning, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat socket path: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:     path,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "ipc"),
		listener: listener,
		onStop:   onStop,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Serve starts accepting connections until the context is canceled or the
// server is closed.
func (s *Server) Serve() {
	s.logger.Debug("listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions"),
					logging.String(logging.FieldImpact, "clients may fail to connect"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handleConn(c)
			}(conn)
		}
	}()
}

// handleConn reads exactly one command line, writes exactly one reply line,
// and closes. A read failure or short read drops the connection silently.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}

	reply, stop := s.handler.Execute(s.ctx, line)
	if _, err := fmt.Fprintln(conn, reply); err != nil {
		s.logger.Debug("reply write failed", logging.Error(err))
	}

	if stop {
		s.logger.Info("stop command received",
			logging.String(logging.FieldEventType, "daemon_stop"))
		s.stopOnce.Do(func() {
			if s.onStop != nil {
				s.onStop()
			}
		})
	}
}

// Close stops accepting, waits for in-flight workers, and removes the socket.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
			logging.String(logging.FieldImpact, "stale socket will block the next daemon start"))
	}
}
