package session

import (
	"context"
	"strconv"

	"studyhall/internal/api"
	"studyhall/internal/cachemanager"
	"studyhall/internal/chat"
	"studyhall/internal/log"
)

// thinkingText is the assistant placeholder shown while a send is in
// flight.
const thinkingText = "Thinking..."

// Send runs the full message lifecycle against the active chat: optimistic
// placeholders, the backend round trip, then commit with token reveal or
// rollback. Placeholders are appended in one step so the transcript never
// shows one without the other. The target chat is captured up front, so a
// chat switch mid-send commits or rolls back the originating chat, not
// whichever is active when the response lands. One send per chat at a time;
// a second concurrent send returns ErrSendInFlight.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.activeID == "" {
		s.mu.Unlock()
		return ErrNoActiveChat
	}
	target, ok := s.resident.Get(ctx, s.activeID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownChat
	}
	if _, inFlight := s.sending[target.ID]; inFlight {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending[target.ID] = struct{}{}

	now := s.cfg.Clock()
	userPH := chat.Message{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Sender:    chat.SenderUser,
		Text:      text,
		Timestamp: now,
		UserID:    s.cfg.UserID,
		Pending:   true,
	}
	assistantPH := chat.Message{
		ID:        strconv.FormatInt(now.UnixMilli()+1, 10),
		Sender:    chat.SenderAssistant,
		Text:      thinkingText,
		Timestamp: now,
		Pending:   true,
	}
	target.Append(userPH, assistantPH)
	if s.activeID == target.ID {
		s.recon.Reconcile(target)
	}
	s.mu.Unlock()

	s.publish(ChangeSending, target.ID)
	log.Info(log.CatSend, "send started", "chat", target.ID, "chars", len(text))

	result, err := s.backend.SendMessage(ctx, target.ID, api.SendMessageRequest{
		Message:    text,
		UserID:     s.cfg.UserID,
		CourseName: s.cfg.CourseName,
	})
	if err != nil {
		s.rollback(target, userPH.ID, assistantPH.ID)
		s.publish(ChangeSending, target.ID)
		log.ErrorErr(log.CatSend, "send failed, placeholders rolled back", err, "chat", target.ID)
		s.fireError(err)
		return err
	}

	confirmed := s.commit(target, result, userPH.ID, assistantPH.ID)
	s.publish(ChangeSending, target.ID)
	s.publish(ChangeChat, target.ID)
	log.Info(log.CatSend, "send committed", "chat", target.ID, "user_msg", result.UserMessage.ID, "assistant_msg", result.AssistantMessage.ID)

	s.reveal(target, confirmed)

	s.refresh(ctx)
	return nil
}

// rollback removes both placeholders, view first so no node outlives its
// message, leaving the chat exactly as it was before the send.
func (s *Session) rollback(target *chat.Chat, placeholderIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == target.ID {
		s.recon.RemoveNow(target.ID, placeholderIDs...)
	}
	target.Remove(placeholderIDs...)
	if s.activeID == target.ID {
		s.recon.Reconcile(target)
	}
	delete(s.sending, target.ID)
}

// commit swaps the placeholder pair for the server-confirmed pair. The
// confirmed user message renders with its final text right away; the
// confirmed assistant message enters the view empty so the reveal can build
// it up token by token. Returns the assistant message holding the full text.
func (s *Session) commit(target *chat.Chat, result *api.SendResult, placeholderIDs ...string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	confirmedUser := result.UserMessage
	confirmedAssistant := result.AssistantMessage

	if s.activeID == target.ID {
		s.recon.RemoveNow(target.ID, placeholderIDs...)
	}
	target.Remove(placeholderIDs...)
	target.Append(confirmedUser, confirmedAssistant)

	if s.activeID == target.ID {
		s.recon.AppendNow(target.ID, confirmedUser)
		blank := confirmedAssistant
		blank.Text = ""
		s.recon.AppendNow(target.ID, blank)
		s.recon.Reconcile(target)
	}

	for i := range s.summaries {
		if s.summaries[i].ID == target.ID {
			s.summaries[i].MessageCount = len(target.Messages)
			s.summaries[i].LastMessageAt = confirmedAssistant.Timestamp
			break
		}
	}
	chat.SortSummaries(s.summaries)
	s.view.SetSummaries(s.summaries)

	delete(s.sending, target.ID)
	return confirmedAssistant
}

// refresh re-fetches the summary list and re-restores loaded bodies so
// server-computed metadata such as titles converge after a send. The active
// chat id is preserved. Every failure here is logged and swallowed; the
// committed send already succeeded.
func (s *Session) refresh(ctx context.Context) {
	summaries, err := s.backend.ListSummaries(ctx)
	if err != nil {
		log.ErrorErr(log.CatSession, "post-send summary refresh failed", err)
		return
	}
	chat.SortSummaries(summaries)

	known := make(map[string]struct{}, len(summaries))
	for _, summary := range summaries {
		known[summary.ID] = struct{}{}
	}

	s.mu.Lock()
	s.summaries = summaries
	var stale, refreshable []string
	for id := range s.loaded {
		if _, ok := known[id]; !ok {
			stale = append(stale, id)
			continue
		}
		refreshable = append(refreshable, id)
	}
	for _, id := range stale {
		delete(s.loaded, id)
		_ = s.resident.Delete(ctx, id)
		if s.activeID == id {
			s.activeID = ""
			s.recon.Clear()
		}
	}
	s.view.SetSummaries(s.summaries)
	s.mu.Unlock()

	for _, id := range refreshable {
		c, err := s.backend.RestoreChat(ctx, id)
		if err != nil {
			log.Warn(log.CatSession, "body refresh failed, keeping cached copy", "chat", id, "error", err.Error())
			continue
		}
		s.mu.Lock()
		s.resident.Set(ctx, id, c, cachemanager.NoExpiration)
		if s.activeID == id {
			s.recon.Reconcile(c)
		}
		s.mu.Unlock()
	}

	s.publish(ChangeSummaries, "")
}
