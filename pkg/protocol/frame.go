package protocol

import (
	"bytes"
	"encoding/json"
)

// Delimiter terminates every message on the client connection.
const Delimiter byte = '\n'

// Splitter cuts a byte stream into delimited messages. Chunks may end in the
// middle of a message; the unterminated tail is held until the next Push.
type Splitter struct {
	pending []byte
}

// NewSplitter creates an empty Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Push consumes one chunk and returns every message it completes, without
// delimiters. Returned slices do not alias chunk.
func (s *Splitter) Push(chunk []byte) [][]byte {
	var messages [][]byte
	for {
		i := bytes.IndexByte(chunk, Delimiter)
		if i < 0 {
			break
		}
		msg := make([]byte, 0, len(s.pending)+i)
		msg = append(msg, s.pending...)
		msg = append(msg, chunk[:i]...)
		messages = append(messages, msg)
		s.pending = s.pending[:0]
		chunk = chunk[i+1:]
	}
	s.pending = append(s.pending, chunk...)
	return messages
}

// Pending returns the number of buffered bytes not yet terminated.
func (s *Splitter) Pending() int {
	return len(s.pending)
}

// Frame turns a raw JSON message into one delimited line. Messages are
// expected to be compact already; one that contains a delimiter byte is
// compacted first.
func Frame(raw []byte) []byte {
	if bytes.IndexByte(raw, Delimiter) >= 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			raw = buf.Bytes()
		}
	}
	line := make([]byte, 0, len(raw)+1)
	line = append(line, raw...)
	return append(line, Delimiter)
}
