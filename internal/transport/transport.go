// Package transport abstracts the messaging surface the assistant lives
// behind. The pipeline only sees Messages and replies; the console
// implementation here is the local development surface.
package transport

import (
	"context"
	"errors"

	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/normalize"
)

// ErrClosed is returned by Receive once the transport has no more messages.
var ErrClosed = errors.New("transport closed")

// Message is one inbound message.
type Message struct {
	ChatID    string
	MessageID int64
	Content   normalize.Content
}

// Ref returns the message's stable reference for forwarding.
func (m Message) Ref() memory.MessageRef {
	return memory.MessageRef{ChatID: m.ChatID, MessageID: m.MessageID}
}

// Transport delivers inbound messages and carries replies back.
type Transport interface {
	// Receive blocks until the next message arrives. Returns ErrClosed
	// when the transport shuts down.
	Receive(ctx context.Context) (Message, error)

	// Reply sends text to the chat.
	Reply(ctx context.Context, chatID, text string) error

	// Forward re-delivers the original message the ref points at.
	Forward(ctx context.Context, chatID string, ref memory.MessageRef) error
}
