// Package models holds the API request and response shapes shared between
// the service layer and the HTTP handlers.
package models

import "github.com/weavechat/weavechat/pkg/db"

// Re-exported storage types so handlers only import one package.
type (
	Session    = db.Session
	Message    = db.Message
	Attachment = db.Attachment
)

// AttachmentUpload is one file riding along with a message.
type AttachmentUpload struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// SendMessageRequest submits a new human message. The session ID is chosen
// by the client; the session is created on first use with the binding
// fields below.
type SendMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`

	// MessageID is the client-chosen ID for the human message; it must be
	// unique within the session. Left empty, the server assigns one.
	MessageID         string  `json:"message_id,omitempty"`
	PreviousMessageID *string `json:"previous_message_id,omitempty"`

	Attachments []AttachmentUpload `json:"attachments,omitempty"`

	// Session binding, used only when the session does not exist yet.
	Title        string   `json:"title,omitempty"`
	WorkflowID   *string  `json:"workflow_id,omitempty"`
	AgentID      *string  `json:"agent_id,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	CredentialID *string  `json:"credential_id,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

// SendMessageResponse returns the persisted turn: the human message and the
// assistant placeholder whose content will stream in.
type SendMessageResponse struct {
	Session      *Session `json:"session"`
	HumanMessage *Message `json:"human_message"`
	AIMessage    *Message `json:"ai_message"`
}

// EditMessageRequest edits a message. For human messages this creates a
// revision branch; for assistant messages it rewrites the text in place.
type EditMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	MessageID string `json:"message_id" binding:"required"`
	Content   string `json:"content"`

	// Revision-only fields. KeptAttachmentIndexes selects attachments of
	// the original message (by position) to carry over; NewAttachments are
	// uploaded fresh.
	KeptAttachmentIndexes []int              `json:"kept_attachment_indexes,omitempty"`
	NewAttachments        []AttachmentUpload `json:"new_attachments,omitempty"`
}

// EditMessageResponse returns the affected message. AIMessage is set only
// when the edit spawned a new assistant generation.
type EditMessageResponse struct {
	Message   *Message `json:"message"`
	AIMessage *Message `json:"ai_message,omitempty"`
}

// RetryMessageRequest regenerates an assistant message as a sibling branch.
type RetryMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	MessageID string `json:"message_id" binding:"required"`
}

// RetryMessageResponse returns the new assistant placeholder.
type RetryMessageResponse struct {
	AIMessage *Message `json:"ai_message"`
}

// StopGenerationRequest aborts the session's running generation.
type StopGenerationRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// UpdateSessionRequest renames a session or rebinds its reply source.
type UpdateSessionRequest struct {
	Title        string  `json:"title,omitempty"`
	WorkflowID   *string `json:"workflow_id,omitempty"`
	AgentID      *string `json:"agent_id,omitempty"`
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	CredentialID *string `json:"credential_id,omitempty"`
}

// SessionListResponse pages through a user's sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
	HasMore  bool      `json:"has_more"`
}

// GenerationStatus reports whether a session is currently generating.
type GenerationStatus struct {
	Active    bool   `json:"active"`
	MessageID string `json:"message_id,omitempty"`
}
