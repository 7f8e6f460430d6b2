// Package view defines the contract between the session core and whatever
// renders it, plus the reconciler that keeps a view's message list a
// minimal-diff mirror of the active chat.
//
// The core issues three kinds of instructions: replace/clear the message list
// (full render), append or remove a single message node (incremental render),
// and update named header/banner regions. How a view addresses its regions is
// its own business.
package view

import (
	"time"

	"studyhall/internal/chat"
)

// Header carries the named header region state for the active chat.
type Header struct {
	ChatID   string
	Title    string
	IsPinned bool
}

// PinnedBanner carries the pinned-message banner region. A nil banner hides
// the region.
type PinnedBanner struct {
	MessageID string
	Text      string
	Timestamp time.Time
}

// View is implemented by the rendering layer. Implementations must treat
// every call as cheap bookkeeping; the reconciler already minimizes the
// add/remove traffic.
type View interface {
	// ResetMessages clears the message list and replaces it with msgs in
	// order. Used when the active chat switches.
	ResetMessages(chatID string, msgs []chat.Message)

	// AppendMessage adds a single message node at the end of the list.
	AppendMessage(chatID string, msg chat.Message)

	// RemoveMessage removes the node for messageID.
	RemoveMessage(chatID, messageID string)

	// UpdateMessage replaces the displayed text of an existing node. Used
	// by the reveal sub-process; membership never changes.
	UpdateMessage(chatID string, msg chat.Message)

	// SetHeader updates the title/pin header region.
	SetHeader(h Header)

	// SetPinnedBanner shows or hides the pinned-message banner.
	SetPinnedBanner(b *PinnedBanner)

	// SetFollowUp enables the follow-up affordance on exactly one message;
	// an empty id disables it everywhere.
	SetFollowUp(messageID string)

	// ShowChatLoading shows a loading placeholder while a chat body is
	// being restored.
	ShowChatLoading(chatID string)

	// ShowChatLoadError shows a retry affordance after a failed restore.
	ShowChatLoadError(chatID string, err error)

	// SetSummaries replaces the conversation list, already ordered.
	SetSummaries(summaries []chat.Summary)

	// ShowWelcome shows the empty state when no chat is active.
	ShowWelcome()
}
