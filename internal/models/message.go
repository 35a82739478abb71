package models

import (
	"errors"
	"fmt"
	"time"
)

// Schema versions stamped on persisted chat records so future readers can
// tell which field set they were written with.
const (
	MessageSchemaVersion    = 1
	AttachmentSchemaVersion = 1
)

var (
	// ErrEmptyAttachmentURL is returned when an attachment has no URL.
	ErrEmptyAttachmentURL = errors.New("message attachments must have a url")

	// ErrEmptyMessage is returned when a message has neither text nor
	// attachments.
	ErrEmptyMessage = errors.New("either text or an attachment is required")
)

// AttachmentKind is the closed set of attachment types a message can carry.
type AttachmentKind string

const (
	AttachmentVideo AttachmentKind = "video"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Valid reports whether the kind is one of the supported attachment types.
func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentVideo, AttachmentAudio, AttachmentImage, AttachmentFile:
		return true
	}
	return false
}

// MessageAttachment is a reference to media sent alongside a message.
// Attachments are immutable once constructed; use NewMessageAttachment so
// the invariants hold for every instance that reaches the store.
type MessageAttachment struct {
	Kind          AttachmentKind `bson:"kind" json:"kind"`
	URL           string         `bson:"url" json:"url"`
	SchemaVersion int            `bson:"schema_version" json:"schema_version"`
}

// NewMessageAttachment validates and constructs an attachment.
func NewMessageAttachment(kind AttachmentKind, url string) (MessageAttachment, error) {
	if !kind.Valid() {
		return MessageAttachment{}, fmt.Errorf("unsupported attachment kind: %q", kind)
	}
	if url == "" {
		return MessageAttachment{}, ErrEmptyAttachmentURL
	}
	return MessageAttachment{
		Kind:          kind,
		URL:           url,
		SchemaVersion: AttachmentSchemaVersion,
	}, nil
}

// Message is a single chat message. Messages form an append-only log: once
// persisted they are never edited or deleted by this service.
type Message struct {
	ID            string              `bson:"_id,omitempty" json:"id,omitempty"`
	SenderID      int64               `bson:"sender_id" json:"sender_id"`
	Text          string              `bson:"text" json:"text"`
	Timestamp     time.Time           `bson:"timestamp" json:"timestamp"`
	Attachments   []MessageAttachment `bson:"attachments" json:"attachments"`
	SchemaVersion int                 `bson:"schema_version" json:"schema_version"`
}

// NewMessage constructs a message with the current time as its timestamp.
// A message must carry text, an attachment, or both.
func NewMessage(senderID int64, text string, attachments []MessageAttachment) (*Message, error) {
	if text == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	return &Message{
		SenderID:      senderID,
		Text:          text,
		Timestamp:     time.Now().UTC(),
		Attachments:   attachments,
		SchemaVersion: MessageSchemaVersion,
	}, nil
}
