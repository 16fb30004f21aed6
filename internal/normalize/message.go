package normalize

import (
	"encoding/json"

	"github.com/omochice/j2me-gateway/pkg/protocol"
)

// Message kinds the client can render. Kinds outside the range are system
// messages it has no use for.
const (
	minMessageType = 1
	maxMessageType = 11

	typeRecipientAdd    = 1
	typeRecipientRemove = 2
)

// Scalar fields are kept as raw JSON so that null stays null and an absent
// field stays absent.

type upstreamUser struct {
	ID         json.RawMessage `json:"id"`
	Avatar     json.RawMessage `json:"avatar"`
	GlobalName json.RawMessage `json:"global_name"`
	Username   json.RawMessage `json:"username"`
}

type upstreamAttachment struct {
	Filename json.RawMessage `json:"filename"`
	Size     json.RawMessage `json:"size"`
	Width    json.RawMessage `json:"width"`
	Height   json.RawMessage `json:"height"`
	ProxyURL json.RawMessage `json:"proxy_url"`
}

type upstreamSticker struct {
	Name json.RawMessage `json:"name"`
}

type upstreamEmbed struct {
	Title       json.RawMessage `json:"title"`
	Description json.RawMessage `json:"description"`
}

type upstreamMessage struct {
	ID                json.RawMessage      `json:"id"`
	ChannelID         json.RawMessage      `json:"channel_id"`
	GuildID           json.RawMessage      `json:"guild_id"`
	Author            *upstreamUser        `json:"author"`
	Type              *int                 `json:"type"`
	Content           string               `json:"content"`
	ReferencedMessage *upstreamMessage     `json:"referenced_message"`
	Attachments       []upstreamAttachment `json:"attachments"`
	StickerItems      []upstreamSticker    `json:"sticker_items"`
	Embeds            []upstreamEmbed      `json:"embeds"`
	Mentions          []upstreamUser       `json:"mentions"`
}

// User is the projection of a message author or mentioned user. Username is
// only set when there is no display name.
type User struct {
	ID         json.RawMessage `json:"id,omitempty"`
	Avatar     json.RawMessage `json:"avatar,omitempty"`
	GlobalName json.RawMessage `json:"global_name,omitempty"`
	Username   json.RawMessage `json:"username,omitempty"`
}

// Reply is the one-line preview of a referenced message.
type Reply struct {
	Author  *User  `json:"author,omitempty"`
	Content string `json:"content"`
}

// Attachment keeps what the client needs to show or fetch a file.
type Attachment struct {
	Filename json.RawMessage `json:"filename,omitempty"`
	Size     json.RawMessage `json:"size,omitempty"`
	Width    json.RawMessage `json:"width,omitempty"`
	Height   json.RawMessage `json:"height,omitempty"`
	ProxyURL json.RawMessage `json:"proxy_url,omitempty"`
}

// Sticker keeps only the sticker name.
type Sticker struct {
	Name json.RawMessage `json:"name,omitempty"`
}

// Embed keeps only the embed title and description.
type Embed struct {
	Title       json.RawMessage `json:"title,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
}

// Message is the compact form of a chat message sent to the client.
// RawContent holds the original text when normalization changed it.
type Message struct {
	ID                json.RawMessage `json:"id,omitempty"`
	ChannelID         json.RawMessage `json:"channel_id,omitempty"`
	GuildID           json.RawMessage `json:"guild_id,omitempty"`
	Author            *User           `json:"author,omitempty"`
	Type              *int            `json:"type,omitempty"`
	Content           string          `json:"content,omitempty"`
	RawContent        string          `json:"_rc,omitempty"`
	ReferencedMessage *Reply          `json:"referenced_message,omitempty"`
	Attachments       []Attachment    `json:"attachments,omitempty"`
	StickerItems      []Sticker       `json:"sticker_items,omitempty"`
	Embeds            []Embed         `json:"embeds,omitempty"`
	Mentions          []User          `json:"mentions,omitempty"`
}

// ProjectMessage decodes an upstream message object and reduces it to the
// fields the client renders.
func (n *Normalizer) ProjectMessage(data json.RawMessage, showGuildEmoji bool) (*Message, error) {
	var msg upstreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return n.project(&msg, showGuildEmoji), nil
}

func (n *Normalizer) project(msg *upstreamMessage, showGuildEmoji bool) *Message {
	out := &Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Author:    projectAuthor(msg.Author),
	}
	if msg.Type != nil && *msg.Type >= minMessageType && *msg.Type <= maxMessageType {
		t := *msg.Type
		out.Type = &t
	}

	if msg.Content != "" {
		out.Content = n.Text(msg.Content, showGuildEmoji)
		if out.Content != msg.Content {
			out.RawContent = msg.Content
		}
	}

	if ref := msg.ReferencedMessage; ref != nil {
		out.ReferencedMessage = &Reply{
			Author:  projectAuthor(ref.Author),
			Content: replyPreview(n.Text(ref.Content, showGuildEmoji)),
		}
	}

	for _, a := range msg.Attachments {
		out.Attachments = append(out.Attachments, Attachment(a))
	}
	if len(msg.StickerItems) > 0 {
		out.StickerItems = []Sticker{{Name: msg.StickerItems[0].Name}}
	}
	for _, e := range msg.Embeds {
		out.Embeds = append(out.Embeds, Embed(e))
	}

	if msg.Type != nil && (*msg.Type == typeRecipientAdd || *msg.Type == typeRecipientRemove) {
		for _, m := range msg.Mentions {
			u := User{ID: m.ID, GlobalName: m.GlobalName}
			if protocol.IsNull(m.GlobalName) {
				u.Username = m.Username
			}
			out.Mentions = append(out.Mentions, u)
		}
	}
	return out
}

func projectAuthor(a *upstreamUser) *User {
	if a == nil {
		return nil
	}
	u := &User{ID: a.ID, Avatar: a.Avatar, GlobalName: a.GlobalName}
	if protocol.IsNull(a.GlobalName) {
		u.Username = a.Username
	}
	return u
}
