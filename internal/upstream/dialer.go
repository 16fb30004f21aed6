package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/pkg/errors"
)

// Dialer opens upstream connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials the upstream gateway with gobwas/ws.
type WSDialer struct {
	dialer ws.Dialer
}

// NewDialer creates a WSDialer. userAgent is sent with the handshake when
// non-empty.
func NewDialer(timeout time.Duration, userAgent string) *WSDialer {
	d := ws.Dialer{Timeout: timeout}
	if userAgent != "" {
		d.Header = ws.HandshakeHeaderHTTP(http.Header{"User-Agent": []string{userAgent}})
	}
	return &WSDialer{dialer: d}
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, br, _, err := d.dialer.Dial(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewConn(conn, br), nil
}
