package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyhall/internal/chat"
	"studyhall/internal/testutil"
)

func activeFixture(t *testing.T, seed ...*chat.Chat) *fixture {
	t.Helper()
	f := newFixture(t, seed...)
	f.session.Initialize(context.Background())
	require.NoError(t, f.session.SetActive(context.Background(), seed[0].ID))
	f.view.ClearOps()
	return f
}

func TestSendAppendsPlaceholderPairAtomically(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))

	require.NoError(t, f.session.Send(context.Background(), "what is a derivative?"))

	appends := f.view.OpsOfKind("append")
	require.GreaterOrEqual(t, len(appends), 4)
	require.Equal(t, "what is a derivative?", appends[0].Text, "user placeholder carries the typed text")
	require.Equal(t, thinkingText, appends[1].Text, "assistant placeholder follows in the same step")

	// No remove is interleaved between the two placeholder appends.
	for _, op := range f.view.Ops {
		if op.Kind == "remove" {
			break
		}
		if op.Kind == "append" {
			require.Contains(t, []string{"what is a derivative?", thinkingText}, op.Text)
		}
	}
}

func TestSendCommitSwapsPlaceholdersForConfirmedPair(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))
	f.backend.AssistantReply = "Start from the limit definition."

	require.NoError(t, f.session.Send(context.Background(), "what is a derivative?"))

	c, ok := f.session.Resident("c1")
	require.True(t, ok)
	require.Len(t, c.Messages, 4)
	require.Zero(t, c.PendingCount(), "no placeholder survives the commit")

	userMsg := c.Messages[2]
	assistantMsg := c.Messages[3]
	require.Equal(t, chat.SenderUser, userMsg.Sender)
	require.Equal(t, "what is a derivative?", userMsg.Text)
	require.Equal(t, chat.SenderAssistant, assistantMsg.Sender)
	require.Equal(t, "Start from the limit definition.", assistantMsg.Text)

	removes := f.view.OpsOfKind("remove")
	require.Len(t, removes, 2, "both placeholders leave the view")

	// The confirmed assistant node enters the view empty; the reveal fills
	// it in.
	appends := f.view.OpsOfKind("append")
	last := appends[len(appends)-1]
	require.Equal(t, assistantMsg.ID, last.MessageID)
	require.Empty(t, last.Text)
}

func TestSendRevealsAssistantTextTokenByToken(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))
	f.backend.AssistantReply = "one two  three"

	require.NoError(t, f.session.Send(context.Background(), "go"))

	c, _ := f.session.Resident("c1")
	assistantID := c.Messages[len(c.Messages)-1].ID

	var shown []string
	for _, op := range f.view.OpsOfKind("update") {
		if op.MessageID == assistantID {
			shown = append(shown, op.Text)
		}
	}
	require.NotEmpty(t, shown)
	require.Equal(t, "one", shown[0])
	require.Equal(t, "one two  three", shown[len(shown)-1], "final update carries the complete text")
	for i := 1; i < len(shown); i++ {
		require.True(t, len(shown[i]) >= len(shown[i-1]), "displayed text only grows")
		require.Equal(t, shown[i-1], shown[i][:len(shown[i-1])], "earlier text is a strict prefix")
	}
}

func TestSendFailureRollsBackCompletely(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))
	before, _ := f.session.Resident("c1")
	wantIDs := before.MessageIDs()

	f.backend.Fail["send"] = true
	err := f.session.Send(context.Background(), "lost question")
	require.Error(t, err)

	after, _ := f.session.Resident("c1")
	require.Equal(t, wantIDs, after.MessageIDs(), "transcript identical to before the send")
	require.Zero(t, after.PendingCount())
	require.Len(t, f.view.OpsOfKind("remove"), 2, "both placeholder nodes leave the view")
	require.False(t, f.session.Sending("c1"))
	require.Equal(t, 1, f.errs.count())
}

func TestSendServerLogicFailureRollsBack(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))
	f.backend.Fail["send"] = true
	f.backend.ServerLogic = true

	err := f.session.Send(context.Background(), "rejected question")
	require.Error(t, err)

	after, _ := f.session.Resident("c1")
	require.Len(t, after.Messages, 2)
	require.Zero(t, after.PendingCount())
}

func TestSendWithoutActiveChat(t *testing.T) {
	f := newFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))
	f.session.Initialize(context.Background())

	err := f.session.Send(context.Background(), "hello?")
	require.ErrorIs(t, err, ErrNoActiveChat)
}

func TestSendWhileSendInFlightIsRejected(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))

	f.session.mu.Lock()
	f.session.sending["c1"] = struct{}{}
	f.session.mu.Unlock()

	err := f.session.Send(context.Background(), "second question")
	require.ErrorIs(t, err, ErrSendInFlight)

	f.session.mu.Lock()
	delete(f.session.sending, "c1")
	f.session.mu.Unlock()
}

func TestSendCommitsToOriginChatAfterSwitch(t *testing.T) {
	f := activeFixture(t,
		testutil.NewChat("c1", testutil.WithConversation(2)),
		testutil.NewChat("c2", testutil.WithConversation(2)),
	)
	f.backend.SendDelay = 80 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- f.session.Send(context.Background(), "slow question")
	}()

	// Wait for the in-flight marker, then switch away.
	require.Eventually(t, func() bool {
		return f.session.Sending("c1")
	}, time.Second, time.Millisecond)
	require.NoError(t, f.session.SetActive(context.Background(), "c2"))

	require.NoError(t, <-done)

	origin, _ := f.session.Resident("c1")
	require.Len(t, origin.Messages, 4, "response committed to the chat that sent it")
	require.Zero(t, origin.PendingCount())
	require.Equal(t, "c2", f.session.ActiveChatID())

	// No commit-time view traffic targets the origin chat once it is
	// inactive.
	for _, op := range f.view.OpsOfKind("update") {
		require.NotEqual(t, "c1", op.ChatID)
	}
}

func TestSendRefreshPicksUpServerTitle(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2), testutil.WithTitle("New chat")))
	f.backend.AutoTitle = "Derivatives walkthrough"

	require.NoError(t, f.session.Send(context.Background(), "what is a derivative?"))

	require.Equal(t, "Derivatives walkthrough", f.session.Summaries()[0].Title)
	c, _ := f.session.Resident("c1")
	require.Equal(t, "Derivatives walkthrough", c.Title)
}

func TestSendRefreshFailureKeepsCommittedState(t *testing.T) {
	f := activeFixture(t, testutil.NewChat("c1", testutil.WithConversation(2)))
	f.backend.Fail["list"] = true

	require.NoError(t, f.session.Send(context.Background(), "question"))

	c, _ := f.session.Resident("c1")
	require.Len(t, c.Messages, 4, "the committed send is kept when the refresh fails")
	require.Equal(t, "c1", f.session.ActiveChatID())
}
