package main

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"
)

func TestProbeCmd(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	received := make(chan []string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(`{"op":-1,"t":"GATEWAY_HELLO"}` + "\n"))

		var lines []string
		scanner := bufio.NewScanner(conn)
		for len(lines) < 3 && scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		received <- lines
	}()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"probe", "--addr", listener.Addr().String(), "--url", "wss://gateway.test", "--events", "J2ME_READY,READY", "--show-guild-emoji"})
	cmd.SetIn(strings.NewReader("\n" + `{"op":1,"d":null}` + "\n"))
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := strings.TrimSpace(out.String()); got != `{"op":-1,"t":"GATEWAY_HELLO"}` {
		t.Errorf("output = %q", got)
	}
	want := []string{
		`{"op":-1,"t":"GATEWAY_SHOW_GUILD_EMOJI","d":true}`,
		`{"op":-1,"t":"GATEWAY_CONNECT","d":{"url":"wss://gateway.test","supported_events":["J2ME_READY","READY"]}}`,
		`{"op":1,"d":null}`,
	}
	lines := <-received
	if len(lines) != len(want) {
		t.Fatalf("gateway received %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
