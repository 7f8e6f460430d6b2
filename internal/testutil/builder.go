// Package testutil provides builders, a recording fake view, and an
// in-memory fake backend for exercising the session core in tests.
package testutil

import (
	"fmt"
	"time"

	"studyhall/internal/chat"
)

// BaseTime anchors deterministic message timestamps in builders.
var BaseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// MessageOption configures a built message.
type MessageOption func(*chat.Message)

// WithText sets the message text.
func WithText(text string) MessageOption {
	return func(m *chat.Message) { m.Text = text }
}

// WithTimestamp sets the message timestamp.
func WithTimestamp(ts time.Time) MessageOption {
	return func(m *chat.Message) { m.Timestamp = ts }
}

// Msg builds a message with deterministic defaults.
func Msg(id string, sender chat.Sender, opts ...MessageOption) chat.Message {
	m := chat.Message{
		ID:        id,
		Sender:    sender,
		Text:      "text-" + id,
		Timestamp: BaseTime,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ChatOption configures a built chat.
type ChatOption func(*chat.Chat)

// WithTitle sets the chat title.
func WithTitle(title string) ChatOption {
	return func(c *chat.Chat) { c.Title = title }
}

// WithPinned marks the chat pinned.
func WithPinned() ChatOption {
	return func(c *chat.Chat) { c.IsPinned = true }
}

// WithPinnedMessage pins a message inside the chat.
func WithPinnedMessage(messageID string) ChatOption {
	return func(c *chat.Chat) { c.PinnedMessageID = messageID }
}

// WithMessages sets the message sequence.
func WithMessages(msgs ...chat.Message) ChatOption {
	return func(c *chat.Chat) { c.Messages = msgs }
}

// WithConversation fills the chat with n alternating user/assistant messages
// with deterministic ids ("<chatID>-m1", "<chatID>-m2", ...).
func WithConversation(n int) ChatOption {
	return func(c *chat.Chat) {
		c.Messages = make([]chat.Message, 0, n)
		for i := 1; i <= n; i++ {
			sender := chat.SenderUser
			if i%2 == 0 {
				sender = chat.SenderAssistant
			}
			c.Messages = append(c.Messages, Msg(
				fmt.Sprintf("%s-m%d", c.ID, i),
				sender,
				WithTimestamp(BaseTime.Add(time.Duration(i)*time.Minute)),
			))
		}
	}
}

// NewChat builds a chat with deterministic defaults.
func NewChat(id string, opts ...ChatOption) *chat.Chat {
	c := &chat.Chat{
		ID:    id,
		Title: "chat-" + id,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
