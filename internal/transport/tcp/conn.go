// Package tcp provides the client-facing TCP listener.
package tcp

import (
	"context"
	"net"
)

const readBufferSize = 4096

// Conn adapts net.Conn to session.Conn.
type Conn struct {
	conn net.Conn
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Read implements session.Conn.
// Reads available bytes from the TCP connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, readBufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write implements session.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Close implements session.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements session.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
