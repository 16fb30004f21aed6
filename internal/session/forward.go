package session

import (
	"bytes"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/metrics"
	"github.com/omochice/j2me-gateway/pkg/protocol"
)

// forward sends a client line to the upstream connection after capturing
// the auth token and masking the client identification.
func (s *Session) forward(line []byte, env protocol.Envelope) {
	data, _ := protocol.DecodeEnvelope(env.Data())

	if token, ok := protocol.TextValue(data["token"]); ok && token != "" {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	}

	if data != nil {
		masked, err := maskIdentity(env, data, s.opts.Mask)
		if err != nil {
			s.opts.Metrics.ClientLine(metrics.LineInvalid)
			s.logger.Warn("failed to mask client identity", zap.Error(err))
			return
		}
		if masked != nil {
			line = masked
		}
	}

	s.mu.Lock()
	up := s.upstream
	s.mu.Unlock()
	if up == nil {
		s.opts.Metrics.ClientLine(metrics.LineDropped)
		s.logger.Debug("dropping client line without upstream connection")
		return
	}

	s.opts.Metrics.ClientLine(metrics.LineForwarded)
	if err := up.Write(s.ctx, line); err != nil {
		// The relay reports the loss when its read fails.
		s.logger.Warn("failed to write upstream", zap.Error(err))
	}
}

// maskIdentity overwrites d.properties.os and d.properties.browser when the
// client set them. It returns nil when nothing changed. Values other than
// the masked ones keep their original encoding.
func maskIdentity(env, data protocol.Envelope, m Mask) ([]byte, error) {
	props, err := protocol.DecodeEnvelope(data["properties"])
	if err != nil {
		// no properties object
		return nil, nil
	}

	changed := false
	for _, field := range []struct{ key, value string }{
		{"os", m.OS},
		{"browser", m.Browser},
	} {
		if field.value == "" || !protocol.Truthy(props[field.key]) {
			continue
		}
		raw, err := protocol.Marshal(field.value)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(bytes.TrimSpace(props[field.key]), raw) {
			continue
		}
		props[field.key] = raw
		changed = true
	}
	if !changed {
		return nil, nil
	}

	if data["properties"], err = props.Encode(); err != nil {
		return nil, errors.Wrap(err, "encode properties")
	}
	if env["d"], err = data.Encode(); err != nil {
		return nil, errors.Wrap(err, "encode data")
	}
	return env.Encode()
}
