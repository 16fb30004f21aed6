// Package typing sends typing indicators to the upstream REST API on behalf
// of a client session.
package typing

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/config"
	"github.com/omochice/j2me-gateway/internal/metrics"
)

var (
	// ErrInvalidChannel is returned for channel ids that are not snowflakes.
	ErrInvalidChannel = errors.New("invalid channel id")
	// ErrNoToken is returned when the session has not identified yet.
	ErrNoToken = errors.New("no auth token captured")
)

var channelIDPattern = regexp.MustCompile(`^\d{17,30}$`)

// ValidChannelID reports whether id looks like an upstream channel id.
func ValidChannelID(id string) bool {
	return channelIDPattern.MatchString(id)
}

// Dispatcher posts typing indicators.
type Dispatcher struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a Dispatcher for the REST API rooted at apiBase.
// A nil logger discards output and nil metrics records nothing.
func NewDispatcher(apiBase string, timeout time.Duration, id config.Identity, logger *zap.Logger, m *metrics.Metrics) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	headers, err := Headers(id)
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeaders(headers).
		SetLogger(logger.Sugar())

	return &Dispatcher{
		client:   client,
		endpoint: strings.TrimRight(apiBase, "/") + "/channels/{channelID}/typing",
		logger:   logger,
		metrics:  m,
	}, nil
}

// Send triggers the typing indicator in channelID using token.
func (d *Dispatcher) Send(ctx context.Context, channelID, token string) error {
	if !ValidChannelID(channelID) {
		d.metrics.TypingRequest(metrics.TypingRejected)
		return errors.Wrapf(ErrInvalidChannel, "%q", channelID)
	}
	if token == "" {
		d.metrics.TypingRequest(metrics.TypingSkipped)
		return ErrNoToken
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("channelID", channelID).
		SetHeader("Authorization", token).
		Post(d.endpoint)
	if err != nil {
		d.metrics.TypingRequest(metrics.TypingFailed)
		return errors.Wrapf(err, "post typing to %s", channelID)
	}
	if resp.IsError() {
		d.metrics.TypingRequest(metrics.TypingFailed)
		return errors.Errorf("post typing to %s: %s", channelID, resp.Status())
	}

	d.metrics.TypingRequest(metrics.TypingSent)
	d.logger.Debug("typing sent", zap.String("channel", channelID))
	return nil
}
