package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/session"
)

// Server accepts client connections and runs one session per connection.
type Server struct {
	address  string
	listener net.Listener
	hub      *session.Hub
	opts     session.Options
	logger   *zap.Logger

	nextID   atomic.Uint64
	quit     chan struct{}
	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// New creates a TCP server that registers its sessions in hub and creates
// them with opts.
func New(address string, hub *session.Hub, opts session.Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		address: address,
		hub:     hub,
		opts:    opts,
		logger:  logger,
		quit:    make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.Wrap(err, "failed to start TCP server")
	}
	s.listener = listener
	s.logger.Info("TCP server started", zap.String("addr", listener.Addr().String()))
	return nil
}

// Serve accepts connections until Stop is called. Listen must have
// succeeded first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to accept TCP connection", zap.Error(err))
			continue
		}
		s.accept(conn)
	}
}

// Start listens and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) accept(conn net.Conn) {
	sess := session.New(s.nextID.Add(1), NewConn(conn), s.opts)

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.hub.Register(sess)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.handleSession(sess)
}

func (s *Server) handleSession(sess *session.Session) {
	defer s.wg.Done()
	defer s.hub.Unregister(sess)
	if err := sess.Run(context.Background()); err != nil {
		s.logger.Warn("session ended with error", zap.Uint64("session", sess.ID()), zap.Error(err))
	}
}

// Stop closes the listener and every live session, then waits for the
// sessions to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	close(s.quit)
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.hub.CloseAll()
	s.wg.Wait()
	s.logger.Info("TCP server stopped")
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	return s.hub.Count()
}
