package handler

import (
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CredentialsRequest is the request body for POST /api/register and
// POST /api/login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is the response body for POST /api/register.
type RegisterResponse struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse is the response body for POST /api/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// PostMessageRequest is the request body for POST /api/messages.
type PostMessageRequest struct {
	Text       string             `json:"text,omitempty"`
	Attachment *AttachmentRequest `json:"attachment,omitempty"`
}

// AttachmentRequest is an attachment supplied by the client.
type AttachmentRequest struct {
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
}

// MessageResponse is a message as returned to clients. The source address
// stays server-side.
type MessageResponse struct {
	ID         uint64             `json:"id"`
	Author     string             `json:"author"`
	Text       string             `json:"text,omitempty"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func messageResponse(m domain.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		Author:     m.Author,
		Text:       m.Text,
		Attachment: m.Attachment,
		CreatedAt:  m.CreatedAt,
	}
}

// ListMessagesResponse is the response body for GET /api/messages.
type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	LatestID uint64            `json:"latest_id"`
	Total    int               `json:"total"`
}

// UploadImageResponse is the response body for POST /api/images.
type UploadImageResponse struct {
	ImageID string          `json:"image_id"`
	Message MessageResponse `json:"message"`
}
