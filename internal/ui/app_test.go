package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"studyhall/internal/api"
	"studyhall/internal/session"
	"studyhall/internal/testutil"
)

// Full-program smoke test: the app boots, loads the conversation list from
// the backend, and renders it in the sidebar.
func TestAppRendersConversationList(t *testing.T) {
	backend := testutil.NewBackend()
	t.Cleanup(backend.Close)
	backend.AddChat(testutil.NewChat("c1", testutil.WithTitle("Limits and continuity"), testutil.WithConversation(2)))

	bridge := NewBridge()
	sess := session.New(api.New(backend.URL(), ""), bridge, session.Config{
		UserID:     "u1",
		CourseName: "calculus",
	})
	t.Cleanup(sess.Close)

	tm := teatest.NewTestModel(t, New(sess), teatest.WithInitialTermSize(100, 32))
	bridge.Attach(tm.Send)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Conversations")) &&
			bytes.Contains(bts, []byte("Limits and continuity"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// The welcome state shows when the backend has no conversations.
func TestAppShowsWelcomeWhenEmpty(t *testing.T) {
	backend := testutil.NewBackend()
	t.Cleanup(backend.Close)

	bridge := NewBridge()
	sess := session.New(api.New(backend.URL(), ""), bridge, session.Config{
		UserID:     "u1",
		CourseName: "calculus",
	})
	t.Cleanup(sess.Close)

	tm := teatest.NewTestModel(t, New(sess), teatest.WithInitialTermSize(100, 32))
	bridge.Attach(tm.Send)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Welcome to studyhall"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}
