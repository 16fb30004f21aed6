package session

import (
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/normalize"
	"github.com/omochice/j2me-gateway/internal/upstream"
	"github.com/omochice/j2me-gateway/pkg/protocol"
)

// connect replaces the upstream connection with a new one to url. The dial
// runs in the background; client lines arriving before it completes are
// dropped.
func (s *Session) connect(url string, filter normalize.EventFilter) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.settings.Filter = filter
	s.generation++
	gen := s.generation
	prev := s.upstream
	s.upstream = nil
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	s.logger.Info("connecting upstream", zap.String("url", url))
	go s.dial(gen, url)
}

// disconnect closes the upstream connection without notifying the client.
func (s *Session) disconnect() {
	s.mu.Lock()
	s.generation++
	up := s.upstream
	s.upstream = nil
	s.mu.Unlock()

	if up != nil {
		s.logger.Info("upstream disconnected by client")
		up.Close()
	}
}

func (s *Session) dial(gen uint64, url string) {
	defer s.wg.Done()

	up, err := s.opts.Dialer.Dial(s.ctx, url)
	if err != nil {
		s.upstreamLost(gen, nil, err)
		return
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		up.Close()
		return
	}
	s.upstream = up
	s.wg.Add(1)
	s.mu.Unlock()

	s.relay(gen, up)
}

// relay copies upstream messages to the client until the connection ends.
func (s *Session) relay(gen uint64, up upstream.Conn) {
	defer s.wg.Done()

	for {
		data, err := up.Read(s.ctx)
		if err != nil {
			s.upstreamLost(gen, up, err)
			return
		}
		if !s.current(gen) {
			return
		}

		lines, action, err := s.opts.Normalizer.Normalize(data, s.snapshot())
		s.opts.Metrics.UpstreamEvent(action.String())
		if err != nil {
			s.logger.Warn("dropping upstream message", zap.Error(err))
			continue
		}
		for _, line := range lines {
			if err := s.write(line); err != nil {
				s.logger.Debug("client write failed", zap.Error(err))
				s.Close()
				return
			}
		}
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// upstreamLost handles the end of an upstream connection the gateway did
// not close itself: the client gets one disconnect notice carrying the
// reason, then the session ends unless it detaches.
func (s *Session) upstreamLost(gen uint64, up upstream.Conn, err error) {
	s.mu.Lock()
	if s.generation != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.upstream = nil
	s.mu.Unlock()

	if up != nil {
		up.Close()
	}

	reason := upstream.CloseReason(err)
	s.logger.Info("upstream connection lost", zap.String("reason", reason), zap.Error(err))

	if err := s.sendControl(protocol.TagDisconnect, protocol.DisconnectData{Message: reason}); err != nil {
		s.logger.Debug("failed to notify client", zap.Error(err))
	}
	if !s.opts.DetachOnUpstreamLoss {
		s.Close()
	}
}
