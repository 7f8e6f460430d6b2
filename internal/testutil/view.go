package testutil

import (
	"sync"

	"studyhall/internal/chat"
	"studyhall/internal/view"
)

// ViewOp records one instruction issued to the fake view.
type ViewOp struct {
	Kind      string // "reset", "append", "remove", "update"
	ChatID    string
	MessageID string
	Text      string
}

// RecorderView implements view.View and records every instruction it
// receives. Counter methods only count the message-list operations the
// reconciliation-minimality property is defined over (append/remove).
type RecorderView struct {
	mu sync.Mutex

	Ops        []ViewOp
	Headers    []view.Header
	Banners    []*view.PinnedBanner
	FollowUps  []string
	Summaries  [][]chat.Summary
	Loading    []string
	LoadErrors []string
	Welcomes   int
}

// NewRecorderView creates an empty recorder.
func NewRecorderView() *RecorderView {
	return &RecorderView{}
}

func (v *RecorderView) ResetMessages(chatID string, msgs []chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	// A reset carries its messages wholesale; individual nodes are not
	// counted as incremental operations.
	v.Ops = append(v.Ops, ViewOp{Kind: "reset", ChatID: chatID})
}

func (v *RecorderView) AppendMessage(chatID string, msg chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Ops = append(v.Ops, ViewOp{Kind: "append", ChatID: chatID, MessageID: msg.ID, Text: msg.Text})
}

func (v *RecorderView) RemoveMessage(chatID, messageID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Ops = append(v.Ops, ViewOp{Kind: "remove", ChatID: chatID, MessageID: messageID})
}

func (v *RecorderView) UpdateMessage(chatID string, msg chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Ops = append(v.Ops, ViewOp{Kind: "update", ChatID: chatID, MessageID: msg.ID, Text: msg.Text})
}

func (v *RecorderView) SetHeader(h view.Header) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Headers = append(v.Headers, h)
}

func (v *RecorderView) SetPinnedBanner(b *view.PinnedBanner) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Banners = append(v.Banners, b)
}

func (v *RecorderView) SetFollowUp(messageID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.FollowUps = append(v.FollowUps, messageID)
}

func (v *RecorderView) ShowChatLoading(chatID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Loading = append(v.Loading, chatID)
}

func (v *RecorderView) ShowChatLoadError(chatID string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.LoadErrors = append(v.LoadErrors, chatID)
}

func (v *RecorderView) SetSummaries(summaries []chat.Summary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	copied := make([]chat.Summary, len(summaries))
	copy(copied, summaries)
	v.Summaries = append(v.Summaries, copied)
}

func (v *RecorderView) ShowWelcome() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Welcomes++
}

// MessageOps returns the number of append/remove operations recorded.
func (v *RecorderView) MessageOps() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, op := range v.Ops {
		if op.Kind == "append" || op.Kind == "remove" {
			n++
		}
	}
	return n
}

// OpsOfKind returns the recorded operations of one kind, in order.
func (v *RecorderView) OpsOfKind(kind string) []ViewOp {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []ViewOp
	for _, op := range v.Ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// LastFollowUp returns the most recent follow-up target, or "" when none was
// ever set.
func (v *RecorderView) LastFollowUp() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.FollowUps) == 0 {
		return ""
	}
	return v.FollowUps[len(v.FollowUps)-1]
}

// LastBanner returns the most recent pinned-banner instruction.
func (v *RecorderView) LastBanner() *view.PinnedBanner {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.Banners) == 0 {
		return nil
	}
	return v.Banners[len(v.Banners)-1]
}

// ClearOps forgets recorded operations while keeping region state history.
func (v *RecorderView) ClearOps() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Ops = nil
}

var _ view.View = (*RecorderView)(nil)
