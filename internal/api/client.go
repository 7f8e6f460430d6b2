// Package api implements the typed REST client for the tutoring-chat
// backend. All methods return an *Error classifying the failure as transient
// (network, non-2xx) or server-logic (2xx envelope with success:false).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"studyhall/internal/chat"
	"studyhall/internal/log"
	"studyhall/internal/trace"
)

const defaultTimeout = 30 * time.Second

// Client talks to the tutoring-chat backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  oteltrace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracer replaces the tracer used for round-trip spans.
func WithTracer(t oteltrace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a client for the backend at baseURL. token may be empty when
// the backend does not require one.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		tracer: otel.Tracer("studyhall/internal/api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSummaries fetches the lightweight metadata for every chat the user
// owns.
func (c *Client) ListSummaries(ctx context.Context) ([]chat.Summary, error) {
	var resp summariesResponse
	if err := c.doJSON(ctx, "list_summaries", http.MethodGet, "/chats/metadata", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, serverErr(http.StatusOK, resp.Error)
	}
	return resp.Chats, nil
}

// RestoreChat fetches the full body of one chat.
func (c *Client) RestoreChat(ctx context.Context, id string) (*chat.Chat, error) {
	var resp restoreResponse
	path := "/chats/restore/" + url.PathEscape(id)
	if err := c.doJSON(ctx, "restore_chat", http.MethodPost, path, nil, &resp,
		attribute.String(trace.AttrChatID, id)); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Chat == nil {
		return nil, serverErr(http.StatusOK, resp.Error)
	}
	return resp.Chat, nil
}

// CreateChat asks the backend to start a new conversation.
func (c *Client) CreateChat(ctx context.Context, req CreateChatRequest) (*CreateChatResult, error) {
	var resp createChatResponse
	if err := c.doJSON(ctx, "create_chat", http.MethodPost, "/chats", req, &resp,
		attribute.String(trace.AttrUserID, req.UserID),
		attribute.String(trace.AttrCourseName, req.CourseName)); err != nil {
		return nil, err
	}
	if !resp.Success || resp.ChatID == "" {
		return nil, serverErr(http.StatusOK, resp.Error)
	}

	body := resp.Chat
	if body == nil {
		body = &chat.Chat{ID: resp.ChatID, Title: "New chat"}
		if resp.InitAssistantMessage != nil {
			body.Messages = []chat.Message{*resp.InitAssistantMessage}
		}
	}
	return &CreateChatResult{ChatID: resp.ChatID, Chat: body}, nil
}

// SendMessage posts one message and returns the server-confirmed user and
// assistant messages.
func (c *Client) SendMessage(ctx context.Context, chatID string, req SendMessageRequest) (*SendResult, error) {
	var resp sendResponse
	path := "/chats/" + url.PathEscape(chatID)
	if err := c.doJSON(ctx, "send_message", http.MethodPost, path, req, &resp,
		attribute.String(trace.AttrChatID, chatID),
		attribute.String(trace.AttrUserID, req.UserID)); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, serverErr(http.StatusOK, resp.Error)
	}
	return &SendResult{
		UserMessage:      resp.UserMessage,
		AssistantMessage: resp.AssistantMessage,
	}, nil
}

// DeleteChat removes a conversation on the server.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	var resp statusResponse
	path := "/chats/" + url.PathEscape(id)
	if err := c.doJSON(ctx, "delete_chat", http.MethodDelete, path, nil, &resp,
		attribute.String(trace.AttrChatID, id)); err != nil {
		return err
	}
	if !resp.Success {
		return serverErr(http.StatusOK, resp.Error)
	}
	return nil
}

// UpdatePin pushes a chat's pin state to the backend.
func (c *Client) UpdatePin(ctx context.Context, id string, isPinned bool) error {
	var resp statusResponse
	path := "/chats/" + url.PathEscape(id) + "/pin"
	if err := c.doJSON(ctx, "update_pin", http.MethodPatch, path, pinRequest{IsPinned: isPinned}, &resp,
		attribute.String(trace.AttrChatID, id)); err != nil {
		return err
	}
	if !resp.Success {
		return serverErr(http.StatusOK, resp.Error)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, out any, attrs ...attribute.KeyValue) error {
	requestID := uuid.NewString()

	attrs = append(attrs,
		attribute.String(trace.AttrHTTPMethod, method),
		attribute.String(trace.AttrHTTPPath, path),
		attribute.String(trace.AttrRequestID, requestID),
	)
	ctx, span := c.tracer.Start(ctx, trace.SpanPrefixAPI+op,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attrs...),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return transientErr(0, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatAPI, "request failed", err, "op", op, "request_id", requestID)
		return transientErr(0, err.Error())
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int(trace.AttrHTTPStatus, resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeErrorBody(resp)
		span.SetStatus(codes.Error, apiErr.Message)
		log.Error(log.CatAPI, "non-2xx response", "op", op, "status", resp.StatusCode, "request_id", requestID)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return transientErr(resp.StatusCode, "decoding response: "+err.Error())
	}
	return nil
}

func decodeErrorBody(resp *http.Response) *Error {
	var payload statusResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return transientErr(resp.StatusCode, payload.Error)
	}
	return transientErr(resp.StatusCode, resp.Status)
}
