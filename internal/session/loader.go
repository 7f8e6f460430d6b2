package session

import (
	"context"

	"studyhall/internal/cachemanager"
	"studyhall/internal/chat"
	"studyhall/internal/log"
)

// EnsureLoaded returns the full body for id, restoring it from the backend
// on the first request. A hit on the resident set answers synchronously with
// no network activity. Concurrent cold requests for the same id are
// collapsed into one restore; the second caller waits on the first instead
// of issuing its own. A failed restore leaves the chat unloaded so a later
// call retries.
func (s *Session) EnsureLoaded(ctx context.Context, id string) (*chat.Chat, error) {
	s.mu.Lock()
	if _, ok := s.loaded[id]; ok {
		if c, found := s.resident.Get(ctx, id); found {
			s.mu.Unlock()
			return c, nil
		}
		// Loaded id with no resident body means the two sets diverged.
		delete(s.loaded, id)
	}
	if !s.hasSummaryLocked(id) {
		s.mu.Unlock()
		return nil, ErrUnknownChat
	}
	s.mu.Unlock()

	v, err, shared := s.flight.Do(id, func() (interface{}, error) {
		// A flight that just completed may have loaded the chat already.
		s.mu.Lock()
		if _, ok := s.loaded[id]; ok {
			if c, found := s.resident.Get(ctx, id); found {
				s.mu.Unlock()
				return c, nil
			}
		}
		s.mu.Unlock()

		c, err := s.backend.RestoreChat(ctx, id)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.resident.Set(ctx, id, c, cachemanager.NoExpiration)
		s.loaded[id] = struct{}{}
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		log.ErrorErr(log.CatCache, "chat restore failed", err, "chat", id)
		return nil, err
	}
	if shared {
		log.Debug(log.CatCache, "restore shared with concurrent caller", "chat", id)
	}
	return v.(*chat.Chat), nil
}

// SetActive switches the active chat. A loaded target activates and renders
// synchronously; a cold target shows the loading state while its body is
// restored. On restore failure the active chat does not change and the view
// shows a retry affordance for the target.
func (s *Session) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.activeID == id {
		s.mu.Unlock()
		return nil
	}
	if !s.hasSummaryLocked(id) {
		s.mu.Unlock()
		log.Warn(log.CatSession, "activation of unknown chat ignored", "chat", id)
		return nil
	}
	if _, ok := s.loaded[id]; ok {
		if c, found := s.resident.Get(ctx, id); found {
			s.activeID = id
			s.recon.FullRender(c)
			s.mu.Unlock()
			s.publish(ChangeActive, id)
			return nil
		}
	}
	s.mu.Unlock()

	s.view.ShowChatLoading(id)
	c, err := s.EnsureLoaded(ctx, id)
	if err != nil {
		s.view.ShowChatLoadError(id, err)
		s.fireError(err)
		return err
	}

	s.mu.Lock()
	s.activeID = id
	s.recon.FullRender(c)
	s.mu.Unlock()

	s.publish(ChangeActive, id)
	return nil
}
