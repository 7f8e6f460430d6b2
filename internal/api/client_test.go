package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyhall/internal/chat"
)

func TestListSummaries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/chats/metadata", r.URL.Path)
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"chats": []chat.Summary{
				{ID: "a", Title: "Derivatives", MessageCount: 3},
				{ID: "b", Title: "Limits", MessageCount: 1},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	summaries, err := c.ListSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "Derivatives", summaries[0].Title)
}

func TestListSummaries_ServerLogicError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "user not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.ListSummaries(context.Background())
	require.Error(t, err)
	require.True(t, IsServerLogic(err))
	require.False(t, IsTransient(err))
	require.Contains(t, err.Error(), "user not found")
}

func TestListSummaries_Non2xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"error":"boom"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.ListSummaries(context.Background())
	require.Error(t, err)
	require.True(t, IsTransient(err))

	apiErr := AsError(err)
	require.NotNil(t, apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestListSummaries_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := New(srv.URL, "")
	_, err := c.ListSummaries(context.Background())
	require.Error(t, err)
	require.True(t, IsTransient(err))
}

func TestRestoreChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chats/restore/abc", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"chat": chat.Chat{
				ID:    "abc",
				Title: "Integration by parts",
				Messages: []chat.Message{
					{ID: "m1", Sender: chat.SenderUser, Text: "help"},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	loaded, err := c.RestoreChat(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", loaded.ID)
	require.Len(t, loaded.Messages, 1)
}

func TestCreateChat_SynthesizesBodyWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CreateChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "u1", req.UserID)
		require.Equal(t, "calculus", req.CourseName)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"chatId":  "new-chat",
			"initAssistantMessage": chat.Message{
				ID: "m0", Sender: chat.SenderAssistant, Text: "Hi! What are we working on?",
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	result, err := c.CreateChat(context.Background(), CreateChatRequest{
		UserID:     "u1",
		CourseName: "calculus",
		Date:       time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "new-chat", result.ChatID)
	require.NotNil(t, result.Chat)
	require.Len(t, result.Chat.Messages, 1)
	require.Equal(t, chat.SenderAssistant, result.Chat.Messages[0].Sender)
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chats/abc", r.URL.Path)

		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "what is a limit?", req.Message)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":          true,
			"userMessage":      chat.Message{ID: "u-9", Sender: chat.SenderUser, Text: req.Message},
			"assistantMessage": chat.Message{ID: "a-10", Sender: chat.SenderAssistant, Text: "A limit describes..."},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	result, err := c.SendMessage(context.Background(), "abc", SendMessageRequest{
		Message: "what is a limit?", UserID: "u1", CourseName: "calculus",
	})
	require.NoError(t, err)
	require.Equal(t, "u-9", result.UserMessage.ID)
	require.Equal(t, "a-10", result.AssistantMessage.ID)
}

func TestDeleteChat_FailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "chat is locked"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.DeleteChat(context.Background(), "abc")
	require.True(t, IsServerLogic(err))
}

func TestUpdatePin(t *testing.T) {
	var got pinRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/chats/abc/pin", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	require.NoError(t, c.UpdatePin(context.Background(), "abc", true))
	require.True(t, got.IsPinned)
}
