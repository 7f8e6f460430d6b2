package view

import (
	"strings"

	"studyhall/internal/chat"
	"studyhall/internal/log"
)

// DefaultFollowUpMarker is the text marker the backend embeds in an
// assistant message that offers a follow-up.
const DefaultFollowUpMarker = "[follow-up]"

// Reconciler keeps the view's message list a faithful mirror of the active
// chat. It tracks which message ids the view currently shows and issues only
// the add/remove operations needed to close the gap.
type Reconciler struct {
	view              View
	followUpMarker    string
	domIDs            map[string]struct{}
	domOrder          []string
	lastRenderedCount int
}

// NewReconciler creates a reconciler issuing instructions to v. marker
// selects the follow-up affordance text; empty uses the default.
func NewReconciler(v View, marker string) *Reconciler {
	if marker == "" {
		marker = DefaultFollowUpMarker
	}
	return &Reconciler{
		view:           v,
		followUpMarker: marker,
		domIDs:         make(map[string]struct{}),
	}
}

// FullRender clears the view's message list and mirror, then adds every
// message of c in order. Used when the active chat switches.
func (r *Reconciler) FullRender(c *chat.Chat) {
	r.domIDs = make(map[string]struct{}, len(c.Messages))
	r.domOrder = r.domOrder[:0]
	for _, m := range c.Messages {
		r.domIDs[m.ID] = struct{}{}
		r.domOrder = append(r.domOrder, m.ID)
	}
	r.lastRenderedCount = len(c.Messages)

	r.view.ResetMessages(c.ID, c.Messages)
	r.refreshChrome(c)
	log.Debug(log.CatRender, "full render", "chat", c.ID, "messages", len(c.Messages))
}

// Clear empties the mirror and shows the welcome state. Used when no chat is
// active.
func (r *Reconciler) Clear() {
	r.domIDs = make(map[string]struct{})
	r.domOrder = r.domOrder[:0]
	r.lastRenderedCount = 0
	r.view.ShowWelcome()
}

// Reconcile applies the minimal add/remove set to bring the view in line
// with c.Messages, refreshes the header and banner regions, and returns the
// number of add/remove operations issued. A call that finds no difference
// issues zero operations.
func (r *Reconciler) Reconcile(c *chat.Chat) int {
	current := make(map[string]struct{}, len(c.Messages))
	for _, m := range c.Messages {
		current[m.ID] = struct{}{}
	}

	ops := 0

	// Remove first so a rollback never leaves a stale node behind an
	// append.
	kept := r.domOrder[:0]
	for _, id := range r.domOrder {
		if _, ok := current[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(r.domIDs, id)
		r.view.RemoveMessage(c.ID, id)
		ops++
	}
	r.domOrder = kept

	for _, m := range c.Messages {
		if _, ok := r.domIDs[m.ID]; ok {
			continue
		}
		r.domIDs[m.ID] = struct{}{}
		r.domOrder = append(r.domOrder, m.ID)
		r.view.AppendMessage(c.ID, m)
		ops++
	}

	r.lastRenderedCount = len(c.Messages)
	r.refreshChrome(c)

	if ops > 0 {
		log.Debug(log.CatRender, "incremental render", "chat", c.ID, "ops", ops)
	}
	return ops
}

// AppendNow adds a single message node to the view and the mirror. The
// commit path uses this to append the confirmed assistant message with
// empty text ahead of the reveal, which a data-driven reconcile cannot
// express.
func (r *Reconciler) AppendNow(chatID string, m chat.Message) {
	if _, ok := r.domIDs[m.ID]; ok {
		return
	}
	r.domIDs[m.ID] = struct{}{}
	r.domOrder = append(r.domOrder, m.ID)
	r.view.AppendMessage(chatID, m)
}

// RemoveNow removes the given message nodes from the view and the mirror
// immediately, without touching the data model. The rollback path uses this
// so the view stops referencing placeholders before they are deleted from
// the chat.
func (r *Reconciler) RemoveNow(chatID string, ids ...string) {
	for _, id := range ids {
		if _, ok := r.domIDs[id]; !ok {
			continue
		}
		delete(r.domIDs, id)
		for i, ordered := range r.domOrder {
			if ordered == id {
				r.domOrder = append(r.domOrder[:i], r.domOrder[i+1:]...)
				break
			}
		}
		r.view.RemoveMessage(chatID, id)
	}
}

// MirroredCount returns how many message nodes the view currently shows.
func (r *Reconciler) MirroredCount() int {
	return len(r.domIDs)
}

// LastRenderedCount returns the message count observed by the most recent
// render.
func (r *Reconciler) LastRenderedCount() int {
	return r.lastRenderedCount
}

// refreshChrome recomputes the derived header, pin banner, and follow-up
// enablement. Runs after every render: switching chats changes which message
// is most recent, so enablement cannot be recomputed only after sends.
func (r *Reconciler) refreshChrome(c *chat.Chat) {
	r.view.SetHeader(Header{ChatID: c.ID, Title: c.Title, IsPinned: c.IsPinned})
	r.view.SetPinnedBanner(r.pinnedBanner(c))
	r.view.SetFollowUp(r.followUpTarget(c))
}

// pinnedBanner derives the banner purely from Chat.PinnedMessageID.
func (r *Reconciler) pinnedBanner(c *chat.Chat) *PinnedBanner {
	if c.PinnedMessageID == "" {
		return nil
	}
	m := c.Find(c.PinnedMessageID)
	if m == nil {
		return nil
	}
	return &PinnedBanner{MessageID: m.ID, Text: m.Text, Timestamp: m.Timestamp}
}

// followUpTarget returns the id of the only message whose follow-up
// affordance is enabled: the most recent assistant message, provided its
// text still contains the marker.
func (r *Reconciler) followUpTarget(c *chat.Chat) string {
	last := c.LastAssistant()
	if last == nil || last.Pending {
		return ""
	}
	if !strings.Contains(last.Text, r.followUpMarker) {
		return ""
	}
	return last.ID
}
