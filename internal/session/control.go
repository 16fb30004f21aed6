package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/metrics"
	"github.com/omochice/j2me-gateway/internal/normalize"
	"github.com/omochice/j2me-gateway/internal/typing"
	"github.com/omochice/j2me-gateway/pkg/protocol"
)

func (s *Session) handleControl(env protocol.Envelope) {
	tag := env.Type()
	s.logger.Debug("control message", zap.String("t", tag))

	switch tag {
	case protocol.TagConnect:
		var data protocol.ConnectData
		if err := decodeData(env.Data(), &data); err != nil {
			s.logger.Warn("invalid connect payload", zap.Error(err))
			return
		}
		if data.URL == "" {
			s.logger.Warn("connect without url")
			return
		}
		s.connect(data.URL, normalize.NewEventFilter(data.SupportedEvents))

	case protocol.TagDisconnect:
		s.disconnect()

	case protocol.TagUpdateSupportedEvents:
		var data protocol.SupportedEventsData
		if err := decodeData(env.Data(), &data); err != nil {
			s.logger.Warn("invalid supported events payload", zap.Error(err))
			return
		}
		filter := normalize.NewEventFilter(data.SupportedEvents)
		s.mu.Lock()
		s.settings.Filter = filter
		s.mu.Unlock()

	case protocol.TagShowGuildEmoji:
		show := protocol.Truthy(env.Data())
		s.mu.Lock()
		s.settings.ShowGuildEmoji = show
		s.mu.Unlock()

	case protocol.TagSendTyping:
		channelID, _ := protocol.TextValue(env.Data())
		s.sendTyping(channelID)

	default:
		s.logger.Debug("ignoring unknown control message", zap.String("t", tag))
	}
}

// decodeData decodes a command payload. A missing or null payload leaves v
// at its zero value.
func decodeData(raw json.RawMessage, v any) error {
	if protocol.IsNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (s *Session) sendTyping(channelID string) {
	if s.opts.Typing == nil {
		return
	}
	if !typing.ValidChannelID(channelID) {
		s.opts.Metrics.TypingRequest(metrics.TypingRejected)
		s.logger.Debug("ignoring typing for invalid channel id", zap.String("channel", channelID))
		return
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.TypingTimeout)
		defer cancel()
		if err := s.opts.Typing.Send(ctx, channelID, token); err != nil {
			s.logger.Warn("typing request failed", zap.String("channel", channelID), zap.Error(err))
		}
	}()
}
