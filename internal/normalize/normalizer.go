// Package normalize rewrites upstream gateway events into the compact shapes
// the constrained client parses.
package normalize

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/omochice/j2me-gateway/internal/emoji"
	"github.com/omochice/j2me-gateway/pkg/protocol"
)

// Action says what happened to an upstream event.
type Action int

const (
	ActionDropped Action = iota
	ActionForwarded
	ActionRewritten
)

// String returns the string representation of Action
func (a Action) String() string {
	switch a {
	case ActionDropped:
		return "dropped"
	case ActionForwarded:
		return "forwarded"
	case ActionRewritten:
		return "rewritten"
	default:
		return "unknown"
	}
}

// ErrMissingUser is returned for a readiness event without a user id.
var ErrMissingUser = errors.New("ready event without user id")

// Normalizer turns upstream events into client lines. It holds no per-session
// state and may be shared.
type Normalizer struct {
	conv Converter
}

// New creates a Normalizer. A nil converter uses the bundled emoji table.
func New(conv Converter) *Normalizer {
	if conv == nil {
		conv = emoji.Default()
	}
	return &Normalizer{conv: conv}
}

type readyData struct {
	User struct {
		ID json.RawMessage `json:"id"`
	} `json:"user"`
	ReadState json.RawMessage `json:"read_state"`
}

type readStateEntry struct {
	ID            json.RawMessage `json:"id"`
	LastMessageID json.RawMessage `json:"last_message_id"`
}

type readyNotice struct {
	ID json.RawMessage `json:"id"`
}

// Normalize decodes one upstream frame and returns the lines to send to the
// client, each terminated by the delimiter. Frames without an event name
// (hello, heartbeat acks, reconnect requests) always pass.
func (n *Normalizer) Normalize(raw []byte, s Settings) ([][]byte, Action, error) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		return nil, ActionDropped, err
	}

	name := env.Type()
	switch {
	case name == protocol.EventReady:
		lines, err := n.ready(raw, env, s)
		if err != nil {
			return nil, ActionDropped, err
		}
		return lines, ActionRewritten, nil
	case isMessageEvent(name) && s.Filter.Has(protocol.MarkerPrefix+name):
		msg, err := n.ProjectMessage(env.Data(), s.ShowGuildEmoji)
		if err != nil {
			return nil, ActionDropped, errors.Wrapf(err, "project %s", name)
		}
		line, err := n.synthesize(env, protocol.MarkerPrefix+name, msg)
		if err != nil {
			return nil, ActionDropped, err
		}
		return [][]byte{line}, ActionRewritten, nil
	case name == "" || s.Filter.Allows(name):
		return [][]byte{protocol.Frame(raw)}, ActionForwarded, nil
	}
	return nil, ActionDropped, nil
}

func (n *Normalizer) ready(raw []byte, env protocol.Envelope, s Settings) ([][]byte, error) {
	var data readyData
	if err := json.Unmarshal(env.Data(), &data); err != nil {
		return nil, errors.Wrap(err, "decode ready")
	}
	if protocol.IsNull(data.User.ID) {
		return nil, ErrMissingUser
	}

	line, err := n.synthesize(env, protocol.TagReady, readyNotice{ID: data.User.ID})
	if err != nil {
		return nil, err
	}
	lines := [][]byte{line}

	if s.Filter.Has(protocol.TagReadStates) {
		pairs, err := readStatePairs(data.ReadState)
		if err != nil {
			return nil, err
		}
		line, err := n.synthesize(env, protocol.TagReadStates, pairs)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if s.Filter.Has(protocol.EventReady) {
		lines = append(lines, protocol.Frame(raw))
	}
	return lines, nil
}

// readStatePairs flattens read state entries into [id, last_message_id, ...],
// skipping channels that were never read. Newer gateways wrap the entries in
// an object, older ones send the bare list.
func readStatePairs(raw json.RawMessage) ([]json.RawMessage, error) {
	var entries []readStateEntry
	v := bytes.TrimSpace(raw)
	switch {
	case len(v) == 0 || protocol.IsNull(v):
	case v[0] == '[':
		if err := json.Unmarshal(v, &entries); err != nil {
			return nil, errors.Wrap(err, "decode read states")
		}
	default:
		var wrapped struct {
			Entries []readStateEntry `json:"entries"`
		}
		if err := json.Unmarshal(v, &wrapped); err != nil {
			return nil, errors.Wrap(err, "decode read states")
		}
		entries = wrapped.Entries
	}

	pairs := make([]json.RawMessage, 0, 2*len(entries))
	for _, e := range entries {
		if !protocol.Truthy(e.LastMessageID) {
			continue
		}
		pairs = append(pairs, e.ID, e.LastMessageID)
	}
	return pairs, nil
}

func (n *Normalizer) synthesize(env protocol.Envelope, tag string, data any) ([]byte, error) {
	p := protocol.Payload{
		Op: protocol.OpGateway,
		S:  env.Sequence(),
		T:  tag,
		D:  data,
	}
	return p.Encode()
}

func isMessageEvent(name string) bool {
	return name == protocol.EventMessageCreate || name == protocol.EventMessageUpdate
}
