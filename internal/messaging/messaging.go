// Package messaging defines the abstract messaging API the bot core consumes.
// Transport adapters (internal/telegram) implement Client; the core never
// imports a transport library directly.
package messaging

import (
	"context"
	"time"
)

// Ref is a stable handle to a sent or received message, sufficient to delete
// or reply to it later.
type Ref struct {
	ChatID    int64
	MessageID int
}

// Contact identifies the author of a message.
type Contact struct {
	ID   int64
	Name string
}

// Chat identifies where a message was sent.
type Chat struct {
	ID      int64
	Title   string
	IsGroup bool
}

// MediaKind classifies a message's attachment.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaSticker
	MediaAudio
	MediaImage
)

// Message is an inbound chat event. It is never mutated after construction;
// command re-dispatch carries override text alongside instead of rewriting
// the body.
type Message struct {
	Ref   Ref
	From  Contact
	Chat  Chat
	Text  string
	Media MediaKind
	// MediaID is the transport's file handle for the attachment; MediaMIME
	// is its reported content type. Both are empty for MediaNone.
	MediaID   string
	MediaMIME string
	Quoted    *Message
	FromMe    bool
	Timestamp time.Time
}

// HasMedia reports whether the message carries an attachment.
func (m Message) HasMedia() bool { return m.Media != MediaNone }

// Client is the outbound messaging surface. Implementations wrap transport
// failures in *domain.TransportError.
type Client interface {
	// Reply sends text as a reply to the given message and returns a handle
	// to the sent message.
	Reply(ctx context.Context, to Message, text string) (Ref, error)
	// SendText sends text to a chat without replying to anything.
	SendText(ctx context.Context, chatID int64, text string) (Ref, error)
	// SendSticker sends image bytes as a sticker.
	SendSticker(ctx context.Context, chatID int64, image []byte) (Ref, error)
	// SendImage sends image bytes with an optional caption.
	SendImage(ctx context.Context, chatID int64, image []byte, caption string) (Ref, error)
	// Delete removes a previously sent message.
	Delete(ctx context.Context, ref Ref) error
	// DownloadMedia fetches a message's attachment, returning the payload and
	// its MIME type.
	DownloadMedia(ctx context.Context, msg Message) ([]byte, string, error)
	// SendTyping marks the bot as typing in a chat. Best effort.
	SendTyping(ctx context.Context, chatID int64) error
}
