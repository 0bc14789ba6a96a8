// Package models defines the declarative outgoing message intents.
//
// Core modules never talk to the transport; they return Intent values that
// the Telegram adapter renders into platform calls.
package models

// IntentKind tags the closed sum of outgoing intents.
type IntentKind string

const (
	IntentNone        IntentKind = ""
	IntentText        IntentKind = "text"
	IntentMedia       IntentKind = "media"
	IntentEditText    IntentKind = "edit_text"
	IntentDelete      IntentKind = "delete"
	IntentCallbackAck IntentKind = "callback_ack"
)

// Button is one inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
	Data  string `json:"data,omitempty"`
}

// Intent is a single declarative outgoing action. Fields are interpreted
// per Kind: Text intents may carry a reply keyboard or an inline keyboard,
// media intents carry the stored reply, edit/delete target MessageID, and
// callback acks target CallbackID.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Text       string     `json:"text,omitempty"`
	Markdown   bool       `json:"markdown,omitempty"`
	Media      *Payload   `json:"media,omitempty"`
	Keyboard   [][]string `json:"keyboard,omitempty"` // reply keyboard rows
	Inline     [][]Button `json:"inline,omitempty"`   // inline keyboard rows
	MessageID  int        `json:"message_id,omitempty"`
	CallbackID string     `json:"callback_id,omitempty"`
}

// TextIntent builds a plain text reply.
func TextIntent(text string) Intent {
	return Intent{Kind: IntentText, Text: text}
}

// MarkdownIntent builds a Markdown-formatted text reply.
func MarkdownIntent(text string) Intent {
	return Intent{Kind: IntentText, Text: text, Markdown: true}
}

// InlineIntent builds a text reply with an inline keyboard.
func InlineIntent(text string, rows [][]Button) Intent {
	return Intent{Kind: IntentText, Text: text, Inline: rows}
}

// KeyboardIntent builds a text reply with a reply keyboard prompt.
func KeyboardIntent(text string, rows [][]string) Intent {
	return Intent{Kind: IntentText, Text: text, Keyboard: rows}
}

// MediaIntent builds a media reply from a stored custom reply payload.
func MediaIntent(p Payload) Intent {
	media := p
	return Intent{Kind: IntentMedia, Media: &media}
}

// EditIntent builds an edit of a previously sent message.
func EditIntent(messageID int, text string, rows [][]Button) Intent {
	return Intent{Kind: IntentEditText, MessageID: messageID, Text: text, Inline: rows}
}

// DeleteIntent builds a deletion of a previously sent message.
func DeleteIntent(messageID int) Intent {
	return Intent{Kind: IntentDelete, MessageID: messageID}
}

// AckIntent builds a callback-query acknowledgment.
func AckIntent(callbackID, text string) Intent {
	return Intent{Kind: IntentCallbackAck, CallbackID: callbackID, Text: text}
}
