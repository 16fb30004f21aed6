package session

import "context"

// Conn abstracts the stream connection to a constrained client.
type Conn interface {
	// Read returns the next chunk of bytes. Chunk boundaries carry no
	// meaning. Returns io.EOF when the client closes the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends bytes to the client.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
