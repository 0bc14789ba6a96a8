// Package models defines the core data structures for StreakBot.
//
// It includes the actor record with streak and wizard state, the
// admin-managed content collections, and the inbound/outbound message
// shapes shared across modules.
package models

import (
	"errors"
	"time"
)

// Configuration entry keys recognized by the dispatcher.
const (
	ConfigKeyWelcome      = "welcome_msg"
	ConfigKeyLayout       = "keyboard_layout"
	ConfigKeyUrgeLabel    = "urge_btn_label"
	ConfigKeyStreakLabel  = "streak_btn_label"
	ConfigKeyChannelLabel = "channel_btn_label"
)

// Validation constants for admin-supplied content.
const (
	// MaxLabelLength defines the maximum allowed length for button labels.
	MaxLabelLength = 64
	// MaxContentLength defines the maximum allowed length for stored text content.
	MaxContentLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateLabel = errors.New("label already exists")
	ErrEmptyLabel     = errors.New("label cannot be empty")
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrLabelTooLong   = errors.New("label exceeds maximum length")
	ErrContentTooLong = errors.New("content exceeds maximum length")
)

// ReplyType defines the media kind of a stored custom reply.
type ReplyType string

const (
	ReplyTypeText  ReplyType = "text"
	ReplyTypePhoto ReplyType = "photo"
	ReplyTypeVideo ReplyType = "video"
	ReplyTypeVoice ReplyType = "voice"
)

// IsValidReplyType checks if the given reply type is supported.
func IsValidReplyType(rt ReplyType) bool {
	switch rt {
	case ReplyTypeText, ReplyTypePhoto, ReplyTypeVideo, ReplyTypeVoice:
		return true
	}
	return false
}

// Relapse is one append-only entry in an actor's relapse history.
type Relapse struct {
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}

// Actor represents one end user (or administrator) of the bot.
type Actor struct {
	ID             string      `json:"id"` // stable external identity (Telegram user id)
	FirstName      string      `json:"first_name"`
	StreakStart    time.Time   `json:"streak_start"`
	BestStreak     int         `json:"best_streak"` // days, never decreases
	RelapseHistory []Relapse   `json:"relapse_history,omitempty"`
	Wizard         WizardState `json:"wizard"`
}

// Channel is an admin-curated link shown in the channels list.
type Channel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

// CustomReply is an admin-defined reply bound to a keyboard label.
// Content holds either plain text or a platform file id, per Type.
type CustomReply struct {
	ID      int64     `json:"id"`
	Label   string    `json:"label"`
	Type    ReplyType `json:"type"`
	Content string    `json:"content"`
	Caption string    `json:"caption,omitempty"`
}

// Validate ensures the custom reply is storable.
func (r *CustomReply) Validate() error {
	if r.Label == "" {
		return ErrEmptyLabel
	}
	if len(r.Label) > MaxLabelLength {
		return ErrLabelTooLong
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if !IsValidReplyType(r.Type) {
		return errors.New("invalid reply type")
	}
	return nil
}

// Motivation is one admin-curated encouragement text.
type Motivation struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	AddedAt time.Time `json:"added_at"`
}

// DedupRecord tracks an already-processed inbound event identifier.
type DedupRecord struct {
	EventID    string    `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
}
