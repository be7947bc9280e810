// Database models for chat messages
package db

import (
	"time"
)

// Message represents one turn in a session. PreviousMessageID forms a
// singly-linked backward chain: the history is a tree where each node points
// to its parent and concurrent branches (edits, retries) share ancestors.
type Message struct {
	// The primary key is (session_id, id): message IDs are client-supplied
	// and unique within their session, not globally.
	SessionID string `json:"session_id" gorm:"primaryKey;size:64"`
	ID        string `json:"id" gorm:"primaryKey;size:64"`

	Type    string `json:"type" gorm:"size:10;not null"` // human, ai, system
	Content string `json:"content" gorm:"type:text"`

	// Branch support
	PreviousMessageID   *string `json:"previous_message_id,omitempty" gorm:"index;size:64"`
	RetryOfMessageID    *string `json:"retry_of_message_id,omitempty" gorm:"size:64"`
	RevisionOfMessageID *string `json:"revision_of_message_id,omitempty" gorm:"size:64"`

	// Execution tracking (AI messages only)
	Status      string  `json:"status,omitempty" gorm:"size:20"` // pending, running, success, error, cancelled, waiting
	ExecutionID *string `json:"execution_id,omitempty" gorm:"size:64"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Attachments owned by this message, loaded from the attachments table.
	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:SessionID,MessageID;references:SessionID,ID"`
}

func (*Message) TableName() string {
	return "messages"
}

// Message types
const (
	MessageTypeHuman  = "human"
	MessageTypeSystem = "system"
	MessageTypeAI     = "ai"
)

// Message status (AI messages only). Waiting marks a workflow execution
// paused for further user input.
const (
	MessageStatusPending   = "pending"
	MessageStatusRunning   = "running"
	MessageStatusSuccess   = "success"
	MessageStatusError     = "error"
	MessageStatusCancelled = "cancelled"
	MessageStatusWaiting   = "waiting"
)

// RetryRoot returns the origin of this message's retry lineage: its own
// RetryOfMessageID when it is itself a retry, else its own ID.
func (m *Message) RetryRoot() string {
	if m.RetryOfMessageID != nil && *m.RetryOfMessageID != "" {
		return *m.RetryOfMessageID
	}
	return m.ID
}

// RevisionRoot returns the origin of this message's revision lineage,
// flattening revision chains to a single root.
func (m *Message) RevisionRoot() string {
	if m.RevisionOfMessageID != nil && *m.RevisionOfMessageID != "" {
		return *m.RevisionOfMessageID
	}
	return m.ID
}
