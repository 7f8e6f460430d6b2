package view_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"studyhall/internal/chat"
	"studyhall/internal/testutil"
	"studyhall/internal/view"
)

func TestFullRenderResetsAndPopulates(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4))

	r.FullRender(c)

	require.Len(t, v.OpsOfKind("reset"), 1)
	require.Equal(t, 4, r.MirroredCount())
	require.Equal(t, 4, r.LastRenderedCount())
	require.Len(t, v.Headers, 1)
	require.Equal(t, "c1", v.Headers[0].ChatID)
}

func TestReconcileNoChangeIssuesZeroOps(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4))
	r.FullRender(c)
	v.ClearOps()

	require.Zero(t, r.Reconcile(c))
	require.Zero(t, v.MessageOps())
}

func TestReconcileAppendsOnlyTheNewTail(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4))
	r.FullRender(c)
	v.ClearOps()

	c.Append(
		testutil.Msg("c1-m5", chat.SenderUser),
		testutil.Msg("c1-m6", chat.SenderAssistant),
	)

	require.Equal(t, 2, r.Reconcile(c))
	appends := v.OpsOfKind("append")
	require.Len(t, appends, 2)
	require.Equal(t, "c1-m5", appends[0].MessageID)
	require.Equal(t, "c1-m6", appends[1].MessageID)
	require.Empty(t, v.OpsOfKind("remove"))
}

func TestReconcileRemovesBeforeAppending(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4))
	r.FullRender(c)
	v.ClearOps()

	c.Remove("c1-m3", "c1-m4")
	c.Append(testutil.Msg("c1-m5", chat.SenderUser))

	require.Equal(t, 3, r.Reconcile(c))
	var kinds []string
	for _, op := range v.Ops {
		if op.Kind == "append" || op.Kind == "remove" {
			kinds = append(kinds, op.Kind)
		}
	}
	require.Equal(t, []string{"remove", "remove", "append"}, kinds)
}

func TestReconcileOpCountIsSymmetricDifference(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := rapid.SliceOfNDistinct(rapid.StringMatching(`m[0-9]{1,3}`), 0, 30, rapid.ID[string]).Draw(t, "before")
		after := rapid.SliceOfNDistinct(rapid.StringMatching(`m[0-9]{1,3}`), 0, 30, rapid.ID[string]).Draw(t, "after")

		v := testutil.NewRecorderView()
		r := view.NewReconciler(v, "")
		r.FullRender(chatOf("c1", before))
		v.ClearOps()

		ops := r.Reconcile(chatOf("c1", after))

		beforeSet := make(map[string]struct{}, len(before))
		for _, id := range before {
			beforeSet[id] = struct{}{}
		}
		afterSet := make(map[string]struct{}, len(after))
		for _, id := range after {
			afterSet[id] = struct{}{}
		}
		want := 0
		for id := range beforeSet {
			if _, ok := afterSet[id]; !ok {
				want++
			}
		}
		for id := range afterSet {
			if _, ok := beforeSet[id]; !ok {
				want++
			}
		}

		require.Equal(t, want, ops)
		require.Equal(t, ops, v.MessageOps())
		require.Equal(t, len(after), r.MirroredCount())
	})
}

func chatOf(chatID string, ids []string) *chat.Chat {
	c := testutil.NewChat(chatID)
	for i, id := range ids {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderAssistant
		}
		c.Messages = append(c.Messages, testutil.Msg(id, sender))
	}
	return c
}

func TestRemoveNowDropsNodesWithoutDataChange(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4))
	r.FullRender(c)
	v.ClearOps()

	r.RemoveNow("c1", "c1-m3", "c1-m4", "never-shown")

	removes := v.OpsOfKind("remove")
	require.Len(t, removes, 2, "unknown ids are skipped")
	require.Equal(t, 2, r.MirroredCount())
	require.Len(t, c.Messages, 4, "the chat itself is untouched")

	// The data catching up afterwards costs nothing further.
	c.Remove("c1-m3", "c1-m4")
	v.ClearOps()
	require.Zero(t, r.Reconcile(c))
}

func TestAppendNowMirrorsSingleNode(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(2))
	r.FullRender(c)
	v.ClearOps()

	m := testutil.Msg("c1-m3", chat.SenderAssistant, testutil.WithText(""))
	r.AppendNow("c1", m)
	r.AppendNow("c1", m)

	require.Len(t, v.OpsOfKind("append"), 1, "appending a mirrored id is a no-op")
	require.Equal(t, 3, r.MirroredCount())
}

func TestFollowUpEnablement(t *testing.T) {
	marker := view.DefaultFollowUpMarker

	tests := []struct {
		name string
		c    *chat.Chat
		want string
	}{
		{
			name: "latest assistant message with marker",
			c: testutil.NewChat("c1", testutil.WithMessages(
				testutil.Msg("m1", chat.SenderUser),
				testutil.Msg("m2", chat.SenderAssistant, testutil.WithText("Try this. "+marker)),
			)),
			want: "m2",
		},
		{
			name: "marker absent",
			c: testutil.NewChat("c1", testutil.WithMessages(
				testutil.Msg("m1", chat.SenderUser),
				testutil.Msg("m2", chat.SenderAssistant, testutil.WithText("Try this.")),
			)),
			want: "",
		},
		{
			name: "older assistant message loses the affordance",
			c: testutil.NewChat("c1", testutil.WithMessages(
				testutil.Msg("m1", chat.SenderAssistant, testutil.WithText("Old. "+marker)),
				testutil.Msg("m2", chat.SenderUser),
				testutil.Msg("m3", chat.SenderAssistant, testutil.WithText("New, plain.")),
			)),
			want: "",
		},
		{
			name: "no assistant messages",
			c: testutil.NewChat("c1", testutil.WithMessages(
				testutil.Msg("m1", chat.SenderUser),
			)),
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testutil.NewRecorderView()
			r := view.NewReconciler(v, "")
			r.FullRender(tt.c)
			require.Equal(t, tt.want, v.LastFollowUp())
		})
	}
}

func TestPinnedBannerDerivedFromChat(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4), testutil.WithPinnedMessage("c1-m2"))

	r.FullRender(c)
	banner := v.LastBanner()
	require.NotNil(t, banner)
	require.Equal(t, "c1-m2", banner.MessageID)
	require.Equal(t, "text-c1-m2", banner.Text)

	c.PinnedMessageID = ""
	r.Reconcile(c)
	require.Nil(t, v.LastBanner())
}

func TestPinnedBannerHiddenWhenMessageGone(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	c := testutil.NewChat("c1", testutil.WithConversation(4), testutil.WithPinnedMessage("gone"))

	r.FullRender(c)
	require.Nil(t, v.LastBanner())
}

func TestClearShowsWelcome(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "")
	r.FullRender(testutil.NewChat("c1", testutil.WithConversation(2)))

	r.Clear()
	require.Equal(t, 1, v.Welcomes)
	require.Zero(t, r.MirroredCount())
}

func TestCustomFollowUpMarker(t *testing.T) {
	v := testutil.NewRecorderView()
	r := view.NewReconciler(v, "(continue?)")
	c := testutil.NewChat("c1", testutil.WithMessages(
		testutil.Msg("m1", chat.SenderUser),
		testutil.Msg("m2", chat.SenderAssistant, testutil.WithText(fmt.Sprintf("Next step. %s", "(continue?)"))),
	))

	r.FullRender(c)
	require.Equal(t, "m2", v.LastFollowUp())
}
