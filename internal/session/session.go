// Package session implements the conversation session core: the
// authoritative in-memory model of a user's chats, lazy loading of chat
// bodies, the send-message lifecycle, and the hand-off to the view
// reconciler.
//
// A Session is constructed per authenticated user context and passed by
// reference to the view binding; there is no process-wide instance. All
// methods are safe for concurrent use; blocking operations take a context.
// The resident set, the summary list, and the loaded-id set are mutated only
// here.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"studyhall/internal/api"
	"studyhall/internal/cachemanager"
	"studyhall/internal/chat"
	"studyhall/internal/log"
	"studyhall/internal/pubsub"
	"studyhall/internal/view"
)

// Sentinel errors surfaced to the view binding.
var (
	ErrNoActiveChat = errors.New("no active chat")
	ErrSendInFlight = errors.New("a send is already in flight for this chat")
	ErrUnknownChat  = errors.New("unknown chat")
)

const (
	defaultRevealDelay = 40 * time.Millisecond
	defaultPinTimeout  = 5 * time.Second
)

// Backend is the slice of the API client the session consumes.
type Backend interface {
	ListSummaries(ctx context.Context) ([]chat.Summary, error)
	RestoreChat(ctx context.Context, id string) (*chat.Chat, error)
	CreateChat(ctx context.Context, req api.CreateChatRequest) (*api.CreateChatResult, error)
	SendMessage(ctx context.Context, chatID string, req api.SendMessageRequest) (*api.SendResult, error)
	DeleteChat(ctx context.Context, id string) error
	UpdatePin(ctx context.Context, id string, isPinned bool) error
}

// ChangeKind classifies session change events published to subscribers.
type ChangeKind string

const (
	ChangeSummaries ChangeKind = "summaries"
	ChangeActive    ChangeKind = "active"
	ChangeChat      ChangeKind = "chat"
	ChangeSending   ChangeKind = "sending"
)

// Change is the payload published on every observable state transition.
type Change struct {
	Kind   ChangeKind
	ChatID string
}

// Config carries the per-session context and tunables.
type Config struct {
	UserID     string
	CourseName string

	// FollowUpMarker selects the follow-up affordance text; empty uses the
	// reconciler default.
	FollowUpMarker string

	// RevealDelay is the pause between revealed tokens.
	RevealDelay time.Duration

	// PinTimeout bounds the fire-and-forget pin-status update.
	PinTimeout time.Duration

	// OnError receives failures the session recovers from locally, so the
	// binding can surface them.
	OnError func(error)

	// Clock and Sleep are test seams; nil uses the real clock.
	Clock func() time.Time
	Sleep func(time.Duration)
}

// Session is the single source of truth for chat identity, membership, pin
// state, and deletion.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	backend Backend
	view    view.View
	recon   *view.Reconciler

	summaries []chat.Summary
	resident  cachemanager.CacheManager[string, *chat.Chat]
	loaded    map[string]struct{}
	activeID  string

	flight  singleflight.Group
	sending map[string]struct{}

	events *pubsub.Broker[Change]
	bg     sync.WaitGroup
}

// New creates a session bound to a backend and a view.
func New(backend Backend, v view.View, cfg Config) *Session {
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = defaultRevealDelay
	}
	if cfg.PinTimeout <= 0 {
		cfg.PinTimeout = defaultPinTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Session{
		cfg:      cfg,
		backend:  backend,
		view:     v,
		recon:    view.NewReconciler(v, cfg.FollowUpMarker),
		resident: cachemanager.NewInMemoryCacheManager[string, *chat.Chat]("resident-chats", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval),
		loaded:   make(map[string]struct{}),
		sending:  make(map[string]struct{}),
		events:   pubsub.NewBroker[Change](),
	}
}

// Initialize populates the summary list. No chat is auto-selected; the view
// shows its welcome state until the user picks one. A summary fetch failure
// is logged, not fatal: the session starts empty.
func (s *Session) Initialize(ctx context.Context) {
	summaries, err := s.backend.ListSummaries(ctx)
	if err != nil {
		log.ErrorErr(log.CatSession, "summary fetch failed, starting empty", err)
		summaries = nil
	}
	chat.SortSummaries(summaries)

	s.mu.Lock()
	s.summaries = summaries
	_ = s.resident.Flush(ctx)
	s.loaded = make(map[string]struct{})
	s.activeID = ""
	s.view.SetSummaries(s.summaries)
	s.recon.Clear()
	s.mu.Unlock()

	s.publish(ChangeSummaries, "")
	log.Info(log.CatSession, "session initialized", "user", s.cfg.UserID, "course", s.cfg.CourseName, "chats", len(summaries))
}

// CreateChat asks the backend for a new conversation. On success the new
// summary joins the front of the list, the body becomes resident and loaded,
// and the chat becomes active. On failure no state changes.
func (s *Session) CreateChat(ctx context.Context) (*chat.Chat, error) {
	result, err := s.backend.CreateChat(ctx, api.CreateChatRequest{
		UserID:     s.cfg.UserID,
		CourseName: s.cfg.CourseName,
		Date:       s.cfg.Clock(),
	})
	if err != nil {
		log.ErrorErr(log.CatSession, "create chat failed", err)
		return nil, err
	}

	c := result.Chat
	summary := chat.Summary{
		ID:           c.ID,
		Title:        c.Title,
		IsPinned:     c.IsPinned,
		MessageCount: len(c.Messages),
	}
	if len(c.Messages) > 0 {
		summary.LastMessageAt = c.Messages[len(c.Messages)-1].Timestamp
	}

	s.mu.Lock()
	s.summaries = append([]chat.Summary{summary}, s.summaries...)
	chat.SortSummaries(s.summaries)
	s.resident.Set(ctx, c.ID, c, cachemanager.NoExpiration)
	s.loaded[c.ID] = struct{}{}
	s.activeID = c.ID
	s.view.SetSummaries(s.summaries)
	s.recon.FullRender(c)
	s.mu.Unlock()

	s.publish(ChangeSummaries, c.ID)
	s.publish(ChangeActive, c.ID)
	log.Info(log.CatSession, "chat created", "chat", c.ID)
	return c, nil
}

// DeleteChat removes a conversation. Consistency over optimism: only a
// confirmed server delete mutates the summary list, the resident set, and
// the loaded set. If the deleted chat was active, the next active chat
// prefers the most recently added pinned summary, then the first remaining
// summary, then none.
func (s *Session) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.hasSummaryLocked(id) {
		s.mu.Unlock()
		log.Warn(log.CatSession, "delete of unknown chat ignored", "chat", id)
		return nil
	}
	s.mu.Unlock()

	if err := s.backend.DeleteChat(ctx, id); err != nil {
		log.ErrorErr(log.CatSession, "server delete failed, state unchanged", err, "chat", id)
		s.fireError(err)
		return err
	}

	s.mu.Lock()
	for i, summary := range s.summaries {
		if summary.ID == id {
			s.summaries = append(s.summaries[:i], s.summaries[i+1:]...)
			break
		}
	}
	_ = s.resident.Delete(ctx, id)
	delete(s.loaded, id)

	wasActive := s.activeID == id
	next := ""
	if wasActive {
		s.activeID = ""
		next = s.nextActiveLocked()
		if next == "" {
			s.recon.Clear()
		}
	}
	s.view.SetSummaries(s.summaries)
	s.mu.Unlock()

	s.publish(ChangeSummaries, id)
	log.Info(log.CatSession, "chat deleted", "chat", id)

	if wasActive && next != "" {
		return s.SetActive(ctx, next)
	}
	if wasActive {
		s.publish(ChangeActive, "")
	}
	return nil
}

// nextActiveLocked picks the replacement active chat after a delete: the
// most recently added pinned summary, else the first remaining summary.
// The list is kept in pinned-first, newest-first order, so that is its head.
func (s *Session) nextActiveLocked() string {
	for _, summary := range s.summaries {
		if summary.IsPinned {
			return summary.ID
		}
	}
	if len(s.summaries) > 0 {
		return s.summaries[0].ID
	}
	return ""
}

// TogglePin flips a chat's pin state locally and immediately, then fires a
// non-blocking update to the backend. Pin state is low-stakes and
// eventually consistent: a failed server update is logged, never rolled
// back.
func (s *Session) TogglePin(id string) {
	s.mu.Lock()
	idx := -1
	for i := range s.summaries {
		if s.summaries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.summaries[idx].IsPinned = !s.summaries[idx].IsPinned
	pinned := s.summaries[idx].IsPinned
	if c, ok := s.resident.Get(context.Background(), id); ok {
		c.IsPinned = pinned
		if s.activeID == id {
			s.recon.Reconcile(c)
		}
	}
	chat.SortSummaries(s.summaries)
	s.view.SetSummaries(s.summaries)
	s.mu.Unlock()

	s.publish(ChangeSummaries, id)
	log.Debug(log.CatSession, "pin toggled", "chat", id, "pinned", pinned)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PinTimeout)
		defer cancel()
		if err := s.backend.UpdatePin(ctx, id, pinned); err != nil {
			log.ErrorErr(log.CatSession, "pin update not persisted", err, "chat", id)
		}
	}()
}

// TogglePinnedMessage pins or unpins a message within a resident chat.
// Toggling the currently pinned id clears it.
func (s *Session) TogglePinnedMessage(chatID, messageID string) {
	s.mu.Lock()
	c, ok := s.resident.Get(context.Background(), chatID)
	if !ok {
		s.mu.Unlock()
		return
	}
	c.TogglePinnedMessage(messageID)
	for i := range s.summaries {
		if s.summaries[i].ID == chatID {
			s.summaries[i].PinnedMessageID = c.PinnedMessageID
			break
		}
	}
	if s.activeID == chatID {
		s.recon.Reconcile(c)
	}
	s.mu.Unlock()

	s.publish(ChangeChat, chatID)
}

// ActiveChatID returns the id of the active chat, or "" when none is.
func (s *Session) ActiveChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Summaries returns a copy of the ordered summary list.
func (s *Session) Summaries() []chat.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Summary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// LoadedIDs returns the ids whose full bodies are resident.
func (s *Session) LoadedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.loaded))
	for id := range s.loaded {
		ids = append(ids, id)
	}
	return ids
}

// Resident returns the resident chat body for id, if loaded.
func (s *Session) Resident(id string) (*chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resident.Get(context.Background(), id)
}

// Sending reports whether a send is in flight for the chat.
func (s *Session) Sending(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sending[chatID]
	return ok
}

// Events exposes the session change broker for view bindings.
func (s *Session) Events() *pubsub.Broker[Change] {
	return s.events
}

// Close tears the session down: waits for fire-and-forget work and closes
// the event broker. Called on logout or navigation away.
func (s *Session) Close() {
	s.bg.Wait()
	s.events.Close()
}

func (s *Session) hasSummaryLocked(id string) bool {
	for _, summary := range s.summaries {
		if summary.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) publish(kind ChangeKind, chatID string) {
	s.events.Publish(pubsub.UpdatedEvent, Change{Kind: kind, ChatID: chatID})
}

func (s *Session) fireError(err error) {
	if s.cfg.OnError != nil && err != nil {
		s.cfg.OnError(err)
	}
}
