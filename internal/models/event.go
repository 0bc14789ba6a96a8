// Package models defines the inbound event shape consumed by the dispatcher.
package models

// PayloadKind tags the closed sum of inbound message payloads.
// The kind is decided once at the transport boundary and never re-sniffed.
type PayloadKind string

const (
	PayloadNone  PayloadKind = ""
	PayloadText  PayloadKind = "text"
	PayloadImage PayloadKind = "image"
	PayloadVideo PayloadKind = "video"
	PayloadAudio PayloadKind = "audio"
)

// Payload is the tagged variant carried by an inbound event. Text is set
// for PayloadText; FileID for the media kinds. Caption may accompany media.
type Payload struct {
	Kind    PayloadKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	FileID  string      `json:"file_id,omitempty"`
	Caption string      `json:"caption,omitempty"`
}

// Callback carries a callback-query interaction attached to an event.
type Callback struct {
	ID        string `json:"id"`   // platform callback query id, for acks
	Data      string `json:"data"` // opaque routing payload
	MessageID int    `json:"message_id"`
}

// Event is one inbound platform event. ID is the deduplication key.
type Event struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	ChatID    int64     `json:"chat_id"`
	FirstName string    `json:"first_name"`
	Payload   Payload   `json:"payload"`
	Callback  *Callback `json:"callback,omitempty"`
}

// Text returns the textual payload, or empty for media-only events.
func (e Event) Text() string {
	if e.Payload.Kind == PayloadText {
		return e.Payload.Text
	}
	return ""
}
