// Database models for message attachments
package db

import "time"

// Attachment is a file attached to a human message. The bytes live in the
// blob store under BlobKey; only metadata is kept in this table.
type Attachment struct {
	ID string `json:"id" gorm:"primaryKey;size:64"`

	// Message IDs are only unique per session, so the owning message is
	// addressed by both columns.
	SessionID string `json:"session_id" gorm:"index:idx_attachments_message;size:64;not null"`
	MessageID string `json:"message_id" gorm:"index:idx_attachments_message;size:64;not null"`

	FileName string `json:"file_name" gorm:"size:255"`
	MimeType string `json:"mime_type" gorm:"size:100"`
	FileSize int64  `json:"file_size"`
	BlobKey  string `json:"-" gorm:"size:128;not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}
