// Package session runs one constrained client connection: it reads client
// lines, executes gateway commands, relays everything else to the upstream
// gateway and normalizes what comes back.
package session

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/metrics"
	"github.com/omochice/j2me-gateway/internal/normalize"
	"github.com/omochice/j2me-gateway/internal/upstream"
	"github.com/omochice/j2me-gateway/pkg/protocol"
)

const defaultTypingTimeout = 10 * time.Second

// TypingSender triggers a typing indicator on the upstream service.
type TypingSender interface {
	Send(ctx context.Context, channelID, token string) error
}

// Mask is the client identification written over identify payloads. Empty
// fields are left as the client sent them.
type Mask struct {
	OS      string
	Browser string
}

// Options configures a Session.
type Options struct {
	Dialer     upstream.Dialer
	Typing     TypingSender // nil ignores typing commands
	Normalizer *normalize.Normalizer
	Mask       Mask

	// TypingTimeout bounds one typing request.
	TypingTimeout time.Duration

	// DetachOnUpstreamLoss keeps the client connected after the upstream
	// connection fails, so it can send a fresh connect command.
	DetachOnUpstreamLoss bool

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Session is one client connection and at most one upstream connection.
type Session struct {
	id     uint64
	conn   Conn
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex

	mu         sync.Mutex
	settings   normalize.Settings
	token      string
	upstream   upstream.Conn
	generation uint64
	closed     bool

	closeOnce sync.Once
}

// New creates a session for conn. It does nothing until Run is called.
func New(id uint64, conn Conn, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil)
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = defaultTypingTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:   id,
		conn: conn,
		opts: opts,
		logger: opts.Logger.With(
			zap.Uint64("session", id),
			zap.String("remote", conn.RemoteAddr()),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the session id.
func (s *Session) ID() uint64 {
	return s.id
}

// Run greets the client and processes its input until the client goes
// away, the session is closed, or ctx is done. Every goroutine the session
// started has exited when Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.opts.Metrics.SessionOpened()
	s.logger.Info("session opened")

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer func() {
		stop()
		s.Close()
		s.wg.Wait()
		s.opts.Metrics.SessionClosed()
		s.logger.Info("session closed")
	}()

	if err := s.sendControl(protocol.TagHello, nil); err != nil {
		return errors.Wrap(err, "send hello")
	}

	splitter := protocol.NewSplitter()
	for {
		chunk, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "read from client")
		}
		for _, line := range splitter.Push(chunk) {
			s.handleLine(line)
		}
	}
}

// Close closes the upstream connection, if any, and the client connection.
// It never notifies the client and is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.generation++
		up := s.upstream
		s.upstream = nil
		s.mu.Unlock()

		s.cancel()
		if up != nil {
			up.Close()
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Session) handleLine(line []byte) {
	env, err := protocol.DecodeEnvelope(line)
	if err != nil {
		s.opts.Metrics.ClientLine(metrics.LineInvalid)
		s.logger.Warn("dropping undecodable client line", zap.Error(err), zap.Int("bytes", len(line)))
		return
	}
	if env.IsControl() {
		s.opts.Metrics.ClientLine(metrics.LineControl)
		s.handleControl(env)
		return
	}
	s.forward(line, env)
}

// snapshot returns the settings the normalizer reads. The filter map is
// replaced, never mutated, so sharing it is safe.
func (s *Session) snapshot() normalize.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// write sends one delimited line to the client.
func (s *Session) write(line []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(s.ctx, line)
}

func (s *Session) sendControl(tag string, data any) error {
	line, err := (&protocol.Payload{Op: protocol.OpGateway, T: tag, D: data}).Encode()
	if err != nil {
		return err
	}
	return s.write(line)
}
