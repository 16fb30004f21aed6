package client_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/omochice/j2me-gateway/internal/client"
)

// startMockGateway greets every connection and echoes what it receives.
func startMockGateway(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start mock gateway: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				c.Write([]byte(`{"op":-1,"t":"GATEWAY_HELLO"}` + "\n"))
				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
					c.Write(append(scanner.Bytes(), '\n'))
				}
			}(conn)
		}
	}()
	return listener.Addr().String()
}

func next(t *testing.T, c *client.Client) string {
	t.Helper()
	select {
	case line, ok := <-c.Lines():
		if !ok {
			t.Fatal("connection closed")
		}
		return string(line)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for line")
	}
	return ""
}

func TestClient_Connect(t *testing.T) {
	c := client.New(startMockGateway(t), nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	if !c.IsConnected() {
		t.Error("Client should be connected")
	}
	if got := next(t, c); got != `{"op":-1,"t":"GATEWAY_HELLO"}` {
		t.Errorf("first line = %q", got)
	}

	c.Disconnect()

	if c.IsConnected() {
		t.Error("Client should be disconnected")
	}
	c.Disconnect()
}

func TestClient_Commands(t *testing.T) {
	c := client.New(startMockGateway(t), nil)
	if err := c.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer c.Disconnect()
	next(t, c)

	tests := []struct {
		name string
		send func() error
		want string
	}{
		{
			name: "connect",
			send: func() error { return c.ConnectUpstream("wss://gateway.test", []string{"J2ME_READY"}) },
			want: `{"op":-1,"t":"GATEWAY_CONNECT","d":{"url":"wss://gateway.test","supported_events":["J2ME_READY"]}}`,
		},
		{
			name: "connect without events",
			send: func() error { return c.ConnectUpstream("wss://gateway.test", nil) },
			want: `{"op":-1,"t":"GATEWAY_CONNECT","d":{"url":"wss://gateway.test","supported_events":[]}}`,
		},
		{
			name: "disconnect",
			send: c.DisconnectUpstream,
			want: `{"op":-1,"t":"GATEWAY_DISCONNECT"}`,
		},
		{
			name: "update events",
			send: func() error { return c.UpdateSupportedEvents([]string{"MESSAGE_DELETE"}) },
			want: `{"op":-1,"t":"GATEWAY_UPDATE_SUPPORTED_EVENTS","d":{"supported_events":["MESSAGE_DELETE"]}}`,
		},
		{
			name: "show guild emoji",
			send: func() error { return c.ShowGuildEmoji(true) },
			want: `{"op":-1,"t":"GATEWAY_SHOW_GUILD_EMOJI","d":true}`,
		},
		{
			name: "typing",
			send: func() error { return c.SendTyping("123456789012345678") },
			want: `{"op":-1,"t":"GATEWAY_SEND_TYPING","d":"123456789012345678"}`,
		},
		{
			name: "raw",
			send: func() error { return c.Send([]byte(`{"op":1,"d":null}`)) },
			want: `{"op":1,"d":null}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatalf("send error = %v", err)
			}
			if got := next(t, c); got != tt.want {
				t.Errorf("sent %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_ShowGuildEmojiFalse(t *testing.T) {
	c := client.New(startMockGateway(t), nil)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()
	next(t, c)

	if err := c.ShowGuildEmoji(false); err != nil {
		t.Fatal(err)
	}
	if got := next(t, c); got != `{"op":-1,"t":"GATEWAY_SHOW_GUILD_EMOJI","d":false}` {
		t.Errorf("sent %q", got)
	}
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := client.New("127.0.0.1:1", nil)
	if err := c.Send([]byte(`{}`)); err == nil {
		t.Error("Send() without connection succeeded")
	}
}

func TestClient_ConnectError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	if err := client.New(addr, nil).Connect(); err == nil {
		t.Error("Connect() to a closed port succeeded")
	}
}
