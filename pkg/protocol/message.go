// Package protocol defines the line protocol spoken between the gateway and
// the constrained client, and the envelope shared with the upstream gateway.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// OpGateway is the operation code reserved for gateway control messages.
const OpGateway = -1

// Control tags exchanged with the client.
const (
	TagHello                 = "GATEWAY_HELLO"
	TagConnect               = "GATEWAY_CONNECT"
	TagDisconnect            = "GATEWAY_DISCONNECT"
	TagUpdateSupportedEvents = "GATEWAY_UPDATE_SUPPORTED_EVENTS"
	TagShowGuildEmoji        = "GATEWAY_SHOW_GUILD_EMOJI"
	TagSendTyping            = "GATEWAY_SEND_TYPING"
)

// Synthesized events. MarkerPrefix is prepended to upstream event names that
// the gateway rewrites.
const (
	MarkerPrefix  = "J2ME_"
	TagReady      = MarkerPrefix + "READY"
	TagReadStates = MarkerPrefix + "READ_STATES"
)

// Upstream event names the gateway looks at.
const (
	EventReady         = "READY"
	EventMessageCreate = "MESSAGE_CREATE"
	EventMessageUpdate = "MESSAGE_UPDATE"
)

// ErrNotObject is returned when a line decodes to something other than a
// JSON object.
var ErrNotObject = errors.New("message is not a JSON object")

// Payload is an outbound message built by the gateway.
type Payload struct {
	Op int             `json:"op"`
	S  json.RawMessage `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
	D  any             `json:"d,omitempty"`
}

// ConnectData is the payload of GATEWAY_CONNECT.
type ConnectData struct {
	URL             string   `json:"url"`
	SupportedEvents []string `json:"supported_events"`
}

// SupportedEventsData is the payload of GATEWAY_UPDATE_SUPPORTED_EVENTS.
type SupportedEventsData struct {
	SupportedEvents []string `json:"supported_events"`
}

// DisconnectData is the payload of a GATEWAY_DISCONNECT sent to the client.
type DisconnectData struct {
	Message string `json:"message"`
}

// Encode encodes the payload as one delimited line.
func (p *Payload) Encode() ([]byte, error) {
	data, err := Marshal(p)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", p.T)
	}
	return append(data, Delimiter), nil
}

// Marshal encodes v as compact JSON without HTML escaping, so text such as
// "<:name:id>" reaches the client unchanged.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Envelope is a decoded message whose fields are kept raw, so a message can
// be forwarded or re-encoded without touching values the gateway does not own.
type Envelope map[string]json.RawMessage

// DecodeEnvelope decodes one JSON object.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if env == nil {
		return nil, ErrNotObject
	}
	return env, nil
}

// IsControl reports whether the envelope carries the gateway operation code.
func (e Envelope) IsControl() bool {
	raw, ok := e["op"]
	if !ok {
		return false
	}
	var op float64
	if err := json.Unmarshal(raw, &op); err != nil {
		return false
	}
	return op == OpGateway
}

// Type returns the event or command tag, or "" when it is absent, null or
// not a string.
func (e Envelope) Type() string {
	var t string
	if raw, ok := e["t"]; ok {
		_ = json.Unmarshal(raw, &t)
	}
	return t
}

// Sequence returns the raw sequence number, nil when absent.
func (e Envelope) Sequence() json.RawMessage {
	return e["s"]
}

// Data returns the raw payload, nil when absent.
func (e Envelope) Data() json.RawMessage {
	return e["d"]
}

// Encode re-encodes the envelope as compact JSON.
func (e Envelope) Encode() ([]byte, error) {
	data, err := Marshal(map[string]json.RawMessage(e))
	if err != nil {
		return nil, errors.Wrap(err, "encode envelope")
	}
	return data, nil
}

// IsNull reports whether a raw value is absent or JSON null.
func IsNull(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// Truthy interprets a raw value the way a loosely typed client expects:
// false, 0, "", null and absence are false; everything else is true.
func Truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case 't', '[', '{':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return false
		}
		return s != ""
	default:
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f != 0
	}
}

// TextValue returns the textual form of a string or number value.
func TextValue(raw json.RawMessage) (string, bool) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return "", false
	}
	switch {
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case v[0] == '-' || (v[0] >= '0' && v[0] <= '9'):
		return string(v), true
	}
	return "", false
}
