package api

import (
	"time"

	"studyhall/internal/chat"
)

// Every backend response wraps its payload in a success envelope. A 2xx
// response with Success=false is a server-logic failure.

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type summariesResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Chats   []chat.Summary `json:"chats"`
}

type restoreResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	Chat    *chat.Chat `json:"chat"`
}

// CreateChatRequest starts a new conversation for a user in a course.
type CreateChatRequest struct {
	UserID     string    `json:"userId"`
	CourseName string    `json:"courseName"`
	Date       time.Time `json:"date"`
}

type createChatResponse struct {
	Success              bool          `json:"success"`
	Error                string        `json:"error,omitempty"`
	ChatID               string        `json:"chatId"`
	Chat                 *chat.Chat    `json:"chat,omitempty"`
	InitAssistantMessage *chat.Message `json:"initAssistantMessage,omitempty"`
}

// CreateChatResult is the confirmed outcome of a create-chat call. Chat is
// populated either from the response body or synthesized from ChatID and the
// optional initial assistant message.
type CreateChatResult struct {
	ChatID string
	Chat   *chat.Chat
}

// SendMessageRequest posts one outgoing message to a conversation.
type SendMessageRequest struct {
	Message    string `json:"message"`
	UserID     string `json:"userId"`
	CourseName string `json:"courseName"`
}

type sendResponse struct {
	Success          bool         `json:"success"`
	Error            string       `json:"error,omitempty"`
	UserMessage      chat.Message `json:"userMessage"`
	AssistantMessage chat.Message `json:"assistantMessage"`
}

// SendResult carries the server-confirmed pair for a sent message.
type SendResult struct {
	UserMessage      chat.Message
	AssistantMessage chat.Message
}

type pinRequest struct {
	IsPinned bool `json:"isPinned"`
}
