package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"studyhall/internal/chat"
	"studyhall/internal/view"
)

// Messages the session core delivers to the Bubble Tea program through the
// Bridge. Each mirrors one view.View instruction.
type (
	resetMessagesMsg struct {
		chatID string
		msgs   []chat.Message
	}
	appendMessageMsg struct {
		chatID string
		msg    chat.Message
	}
	removeMessageMsg struct {
		chatID    string
		messageID string
	}
	updateMessageMsg struct {
		chatID string
		msg    chat.Message
	}
	setHeaderMsg struct{ header view.Header }
	setBannerMsg struct{ banner *view.PinnedBanner }
	setFollowUpMsg struct{ messageID string }
	chatLoadingMsg struct{ chatID string }
	chatLoadErrMsg struct {
		chatID string
		err    error
	}
	setSummariesMsg struct{ summaries []chat.Summary }
	showWelcomeMsg  struct{}

	// statusMsg carries a transient status line, such as a send failure.
	statusMsg struct{ text string }

	// opDoneMsg reports a session operation finishing, successfully or not.
	opDoneMsg struct{ err error }
)

// Bridge adapts view.View to a running Bubble Tea program. The session core
// calls it from its own goroutines; every instruction becomes a message the
// program applies on its update loop. Instructions issued before the program
// is attached are buffered and flushed on Attach.
type Bridge struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []tea.Msg
}

// NewBridge creates a detached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to a program's send function and flushes
// buffered instructions in order.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, msg := range pending {
		send(msg)
	}
}

func (b *Bridge) deliver(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	if send == nil {
		b.pending = append(b.pending, msg)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	send(msg)
}

func (b *Bridge) ResetMessages(chatID string, msgs []chat.Message) {
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)
	b.deliver(resetMessagesMsg{chatID: chatID, msgs: copied})
}

func (b *Bridge) AppendMessage(chatID string, msg chat.Message) {
	b.deliver(appendMessageMsg{chatID: chatID, msg: msg})
}

func (b *Bridge) RemoveMessage(chatID, messageID string) {
	b.deliver(removeMessageMsg{chatID: chatID, messageID: messageID})
}

func (b *Bridge) UpdateMessage(chatID string, msg chat.Message) {
	b.deliver(updateMessageMsg{chatID: chatID, msg: msg})
}

func (b *Bridge) SetHeader(h view.Header) {
	b.deliver(setHeaderMsg{header: h})
}

func (b *Bridge) SetPinnedBanner(banner *view.PinnedBanner) {
	b.deliver(setBannerMsg{banner: banner})
}

func (b *Bridge) SetFollowUp(messageID string) {
	b.deliver(setFollowUpMsg{messageID: messageID})
}

func (b *Bridge) ShowChatLoading(chatID string) {
	b.deliver(chatLoadingMsg{chatID: chatID})
}

func (b *Bridge) ShowChatLoadError(chatID string, err error) {
	b.deliver(chatLoadErrMsg{chatID: chatID, err: err})
}

func (b *Bridge) SetSummaries(summaries []chat.Summary) {
	copied := make([]chat.Summary, len(summaries))
	copy(copied, summaries)
	b.deliver(setSummariesMsg{summaries: copied})
}

func (b *Bridge) ShowWelcome() {
	b.deliver(showWelcomeMsg{})
}

var _ view.View = (*Bridge)(nil)
