// Package upstream provides the WebSocket connection to the upstream chat
// gateway.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/pkg/errors"
)

const closeWriteTimeout = time.Second

// Conn is one upstream gateway connection.
type Conn interface {
	// Read returns the next text or binary message. Control frames are
	// answered internally. A close frame from upstream is reported as a
	// wsutil.ClosedError.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one text message.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection. It is safe to call more than once.
	Close() error
}

// WSConn adapts a client-side gobwas/ws connection to Conn. Reads must come
// from a single goroutine; writes may come from any.
type WSConn struct {
	conn   net.Conn
	reader *wsutil.Reader

	writeMu   sync.Mutex
	closeSent atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a handshaken connection. br holds bytes buffered during the
// handshake and may be nil.
func NewConn(conn net.Conn, br *bufio.Reader) *WSConn {
	c := &WSConn{conn: conn}
	var src io.Reader = conn
	if br != nil {
		src = br
	}
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	return c
}

// Read implements Conn.
func (c *WSConn) Read(ctx context.Context) ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, c.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(c.reader)
	}
}

// handleControl answers pings and close frames. The reply is assembled first
// and written in one call so it cannot interleave with a concurrent Write.
func (c *WSConn) handleControl(hdr ws.Header, r io.Reader) error {
	var reply bytes.Buffer
	handler := wsutil.ControlHandler{
		Src:   r,
		Dst:   &reply,
		State: ws.StateClientSide,
	}
	err := handler.Handle(hdr)
	if hdr.OpCode == ws.OpClose {
		c.closeSent.Store(true)
	}
	if reply.Len() > 0 {
		c.writeMu.Lock()
		_, werr := c.conn.Write(reply.Bytes())
		c.writeMu.Unlock()
		if err == nil && werr != nil {
			err = errors.Wrap(werr, "write control reply")
		}
	}
	return err
}

// Write implements Conn.
func (c *WSConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientText(c.conn, data)
}

// Close implements Conn. A close frame is sent unless one was already
// exchanged or a write is in flight.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		if !c.closeSent.Load() && c.writeMu.TryLock() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
			body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
			_ = ws.WriteFrame(c.conn, ws.MaskFrameInPlace(ws.NewCloseFrame(body)))
			c.writeMu.Unlock()
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the upstream address for logging.
func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// CloseReason extracts the text to report to the client when the upstream
// leg ends with err.
func CloseReason(err error) string {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return closed.Reason
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ""
	}
	return err.Error()
}
