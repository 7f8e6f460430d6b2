// Package chat holds the domain model for tutoring conversations: the
// lightweight Summary used for list rendering, the fully loaded Chat with its
// ordered message sequence, and the ordering contract for summary listings.
package chat

import (
	"sort"
	"time"
)

// Sender identifies which side of the conversation authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is a single conversation entry. A pending message carries a
// client-generated id and provisional text until the server confirms it.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
	Pending   bool      `json:"-"`
}

// Summary is the lightweight descriptor of a conversation. One exists for
// every chat the user owns, whether or not the full body has been fetched.
type Summary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	IsPinned        bool      `json:"isPinned"`
	PinnedMessageID string    `json:"pinnedMessageId,omitempty"`
	LastMessageAt   time.Time `json:"lastMessageTimestamp"`
	MessageCount    int       `json:"messageCount"`
}

// Chat is the fully loaded conversation body.
type Chat struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	IsPinned        bool      `json:"isPinned"`
	PinnedMessageID string    `json:"pinnedMessageId,omitempty"`
	Messages        []Message `json:"messages"`
}

// MessageIDs returns the ids of all messages in order.
func (c *Chat) MessageIDs() []string {
	ids := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		ids[i] = m.ID
	}
	return ids
}

// Find returns the message with the given id, or nil if absent.
func (c *Chat) Find(id string) *Message {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return &c.Messages[i]
		}
	}
	return nil
}

// Append adds messages to the end of the sequence.
func (c *Chat) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// Remove deletes the messages with the given ids, preserving the order of the
// remainder. Unknown ids are ignored.
func (c *Chat) Remove(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := c.Messages[:0]
	for _, m := range c.Messages {
		if _, ok := drop[m.ID]; !ok {
			kept = append(kept, m)
		}
	}
	c.Messages = kept
}

// LastAssistant returns the most recent assistant message, or nil if the chat
// has none.
func (c *Chat) LastAssistant() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == SenderAssistant {
			return &c.Messages[i]
		}
	}
	return nil
}

// PendingCount returns how many placeholder messages the chat holds. During a
// send this is either 0 or 2; any other value is an invariant violation.
func (c *Chat) PendingCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Pending {
			n++
		}
	}
	return n
}

// TogglePinnedMessage pins the given message, or clears the pin when the same
// id is already pinned. A chat has at most one pinned message.
func (c *Chat) TogglePinnedMessage(messageID string) {
	if c.PinnedMessageID == messageID {
		c.PinnedMessageID = ""
		return
	}
	c.PinnedMessageID = messageID
}

// SortSummaries orders summaries for listing: pinned chats first, ties broken
// by descending last-message time.
func SortSummaries(summaries []Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].IsPinned != summaries[j].IsPinned {
			return summaries[i].IsPinned
		}
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
}
