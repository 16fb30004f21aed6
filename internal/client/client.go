// Package client is a line protocol client for the gateway. It stands in
// for a constrained device when probing a running gateway.
package client

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/pkg/protocol"
)

// Client represents a connection to the gateway.
type Client struct {
	address string
	logger  *zap.Logger
	conn    net.Conn
	lines   chan []byte
	mu      sync.RWMutex
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// New creates a new Client instance. A nil logger discards output.
func New(address string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		address: address,
		logger:  logger,
		lines:   make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

// Connect establishes a connection to the gateway.
func (c *Client) Connect() error {
	conn, err := net.Dial("tcp", c.address)
	if err != nil {
		return errors.Wrap(err, "failed to connect to gateway")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// Start receiving lines
	c.wg.Add(1)
	go c.receiveLines(conn)

	return nil
}

// Disconnect closes the connection to the gateway.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Lines returns the channel of lines received from the gateway, without
// delimiters. It is closed when the connection ends.
func (c *Client) Lines() <-chan []byte {
	return c.lines
}

// ConnectUpstream asks the gateway to open the upstream connection.
func (c *Client) ConnectUpstream(url string, events []string) error {
	if events == nil {
		events = []string{}
	}
	return c.sendControl(protocol.TagConnect, protocol.ConnectData{URL: url, SupportedEvents: events})
}

// DisconnectUpstream asks the gateway to close the upstream connection.
func (c *Client) DisconnectUpstream() error {
	return c.sendControl(protocol.TagDisconnect, nil)
}

// UpdateSupportedEvents replaces the event filter.
func (c *Client) UpdateSupportedEvents(events []string) error {
	if events == nil {
		events = []string{}
	}
	return c.sendControl(protocol.TagUpdateSupportedEvents, protocol.SupportedEventsData{SupportedEvents: events})
}

// ShowGuildEmoji toggles custom emoji references in message text.
func (c *Client) ShowGuildEmoji(show bool) error {
	return c.sendControl(protocol.TagShowGuildEmoji, show)
}

// SendTyping triggers the typing indicator in a channel.
func (c *Client) SendTyping(channelID string) error {
	return c.sendControl(protocol.TagSendTyping, channelID)
}

// Send writes one raw message, which the gateway relays upstream.
func (c *Client) Send(raw []byte) error {
	line := make([]byte, 0, len(raw)+1)
	line = append(line, raw...)
	return c.write(append(line, protocol.Delimiter))
}

func (c *Client) sendControl(tag string, data any) error {
	line, err := (&protocol.Payload{Op: protocol.OpGateway, T: tag, D: data}).Encode()
	if err != nil {
		return err
	}
	return c.write(line)
}

func (c *Client) write(line []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.New("not connected to gateway")
	}
	if _, err := conn.Write(line); err != nil {
		return errors.Wrap(err, "failed to send message")
	}
	return nil
}

// receiveLines continuously receives lines from the gateway.
func (c *Client) receiveLines(conn net.Conn) {
	defer c.wg.Done()
	defer close(c.lines)

	splitter := protocol.NewSplitter()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug("gateway connection ended", zap.Error(err))
			}
			return
		}
		for _, line := range splitter.Push(buf[:n]) {
			select {
			case c.lines <- line:
			case <-c.done:
				return
			}
		}
	}
}
