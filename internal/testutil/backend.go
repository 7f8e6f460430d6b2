package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"studyhall/internal/chat"
)

// FakeBackend is an in-memory implementation of the tutoring-chat REST
// contract, served over httptest. Failure switches let tests force transient
// (HTTP 500) or server-logic (success:false) outcomes per operation.
type FakeBackend struct {
	mu    sync.Mutex
	srv   *httptest.Server
	chats map[string]*chat.Chat
	order []string // insertion order, newest last
	hits  map[string]int

	nextID int

	// Failure switches by operation name: "list", "restore", "create",
	// "send", "delete", "pin".
	Fail map[string]bool

	// ServerLogic makes forced failures come back as 2xx success:false
	// envelopes instead of HTTP 500s.
	ServerLogic bool

	// RestoreDelay stalls restore handling, widening the window for
	// duplicate-fetch races.
	RestoreDelay time.Duration

	// SendDelay stalls send handling so tests can act while a send is in
	// flight.
	SendDelay time.Duration

	// AssistantReply is the text of the confirmed assistant message for
	// sends.
	AssistantReply string

	// AutoTitle, when set, replaces a chat's title after a successful send
	// (server-computed metadata picked up by the background refresh).
	AutoTitle string
}

// NewBackend starts a fake backend with no chats.
func NewBackend() *FakeBackend {
	b := &FakeBackend{
		chats:          make(map[string]*chat.Chat),
		hits:           make(map[string]int),
		Fail:           make(map[string]bool),
		AssistantReply: "Here is how to think about it.",
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	return b
}

// URL returns the backend base URL.
func (b *FakeBackend) URL() string { return b.srv.URL }

// Close shuts the server down.
func (b *FakeBackend) Close() { b.srv.Close() }

// AddChat seeds a conversation.
func (b *FakeBackend) AddChat(c *chat.Chat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats[c.ID] = c
	b.order = append(b.order, c.ID)
}

// Hits returns how many requests hit the given operation key. Restore hits
// are keyed "restore:<id>".
func (b *FakeBackend) Hits(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

// HasChat reports whether the backend still holds the chat.
func (b *FakeBackend) HasChat(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.chats[id]
	return ok
}

func (b *FakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case r.Method == http.MethodGet && path == "chats/metadata":
		b.handleList(w)
	case r.Method == http.MethodPost && len(parts) == 3 && parts[1] == "restore":
		b.handleRestore(w, parts[2])
	case r.Method == http.MethodPost && path == "chats":
		b.handleCreate(w, r)
	case r.Method == http.MethodPost && len(parts) == 2 && parts[0] == "chats":
		b.handleSend(w, r, parts[1])
	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "chats":
		b.handleDelete(w, parts[1])
	case r.Method == http.MethodPatch && len(parts) == 3 && parts[2] == "pin":
		b.handlePin(w, r, parts[1])
	default:
		http.NotFound(w, r)
	}
}

// fail writes the configured failure shape and reports whether the request
// was intercepted.
func (b *FakeBackend) fail(w http.ResponseWriter, op string) bool {
	b.mu.Lock()
	forced := b.Fail[op]
	serverLogic := b.ServerLogic
	b.mu.Unlock()

	if !forced {
		return false
	}
	if serverLogic {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": op + " rejected"})
	} else {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": op + " unavailable"})
	}
	return true
}

func (b *FakeBackend) handleList(w http.ResponseWriter) {
	b.count("list")
	if b.fail(w, "list") {
		return
	}

	b.mu.Lock()
	summaries := make([]chat.Summary, 0, len(b.order))
	for _, id := range b.order {
		c := b.chats[id]
		s := chat.Summary{
			ID:              c.ID,
			Title:           c.Title,
			IsPinned:        c.IsPinned,
			PinnedMessageID: c.PinnedMessageID,
			MessageCount:    len(c.Messages),
		}
		if len(c.Messages) > 0 {
			s.LastMessageAt = c.Messages[len(c.Messages)-1].Timestamp
		}
		summaries = append(summaries, s)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chats": summaries})
}

func (b *FakeBackend) handleRestore(w http.ResponseWriter, id string) {
	b.count("restore:" + id)
	if b.RestoreDelay > 0 {
		time.Sleep(b.RestoreDelay)
	}
	if b.fail(w, "restore") {
		return
	}

	b.mu.Lock()
	c, ok := b.chats[id]
	var body chat.Chat
	if ok {
		body = *c
		body.Messages = append([]chat.Message(nil), c.Messages...)
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "unknown chat"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chat": body})
}

func (b *FakeBackend) handleCreate(w http.ResponseWriter, r *http.Request) {
	b.count("create")
	if b.fail(w, "create") {
		return
	}

	var req struct {
		UserID     string `json:"userId"`
		CourseName string `json:"courseName"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("chat-%d", b.nextID)
	greeting := chat.Message{
		ID:        fmt.Sprintf("srv-%d", b.nextMsgIDLocked()),
		Sender:    chat.SenderAssistant,
		Text:      "Welcome to " + req.CourseName + "! What shall we work on?",
		Timestamp: time.Now(),
	}
	c := &chat.Chat{ID: id, Title: "New chat", Messages: []chat.Message{greeting}}
	b.chats[id] = c
	b.order = append(b.order, id)
	body := *c
	body.Messages = append([]chat.Message(nil), c.Messages...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chatId": id, "chat": body})
}

func (b *FakeBackend) handleSend(w http.ResponseWriter, r *http.Request, id string) {
	b.count("send:" + id)
	if b.SendDelay > 0 {
		time.Sleep(b.SendDelay)
	}
	if b.fail(w, "send") {
		return
	}

	var req struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	c, ok := b.chats[id]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "unknown chat"})
		return
	}
	now := time.Now()
	userMsg := chat.Message{
		ID: fmt.Sprintf("srv-%d", b.nextMsgIDLocked()), Sender: chat.SenderUser,
		Text: req.Message, Timestamp: now, UserID: req.UserID,
	}
	assistantMsg := chat.Message{
		ID: fmt.Sprintf("srv-%d", b.nextMsgIDLocked()), Sender: chat.SenderAssistant,
		Text: b.AssistantReply, Timestamp: now.Add(time.Second),
	}
	c.Messages = append(c.Messages, userMsg, assistantMsg)
	if b.AutoTitle != "" {
		c.Title = b.AutoTitle
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"userMessage":      userMsg,
		"assistantMessage": assistantMsg,
	})
}

func (b *FakeBackend) handleDelete(w http.ResponseWriter, id string) {
	b.count("delete:" + id)
	if b.fail(w, "delete") {
		return
	}

	b.mu.Lock()
	delete(b.chats, id)
	for i, ordered := range b.order {
		if ordered == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *FakeBackend) handlePin(w http.ResponseWriter, r *http.Request, id string) {
	b.count("pin:" + id)
	if b.fail(w, "pin") {
		return
	}

	var req struct {
		IsPinned bool `json:"isPinned"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	if c, ok := b.chats[id]; ok {
		c.IsPinned = req.IsPinned
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *FakeBackend) count(key string) {
	b.mu.Lock()
	b.hits[key]++
	b.mu.Unlock()
}

// nextMsgIDLocked returns the next server message id. Caller holds b.mu.
func (b *FakeBackend) nextMsgIDLocked() int {
	b.nextID++
	return b.nextID
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
