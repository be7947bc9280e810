package repository

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weavechat/weavechat/pkg/db"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(gdb *gorm.DB) *MessageRepository {
	return &MessageRepository{db: gdb}
}

// WithTx returns a repository bound to the given transaction.
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Get(sessionID, id string) (*db.Message, error) {
	var msg db.Message
	if err := r.db.Preload("Attachments").
		First(&msg, "session_id = ? AND id = ?", sessionID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get message")
	}
	return &msg, nil
}

// Exists reports whether a message with the given ID exists in the session.
func (r *MessageRepository) Exists(sessionID, id string) (bool, error) {
	var count int64
	if err := r.db.Model(&db.Message{}).
		Where("session_id = ? AND id = ?", sessionID, id).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check message exists")
	}
	return count > 0, nil
}

// ListBySession returns all messages of a session in creation order, with
// attachments preloaded. Dangling previous_message_id links are tolerated;
// chain traversal simply stops at them.
func (r *MessageRepository) ListBySession(sessionID string) ([]db.Message, error) {
	var messages []db.Message
	if err := r.db.Preload("Attachments").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return messages, nil
}

// MapBySession returns the session's messages indexed by ID for chain walks.
func (r *MessageRepository) MapBySession(sessionID string) (map[string]*db.Message, error) {
	messages, err := r.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*db.Message, len(messages))
	for i := range messages {
		byID[messages[i].ID] = &messages[i]
	}
	return byID, nil
}

// Create inserts the message row only; attachment rows are written by the
// caller so they commit in the same transaction with explicit IDs.
func (r *MessageRepository) Create(msg *db.Message) error {
	if err := r.db.Omit(clause.Associations).Create(msg).Error; err != nil {
		return errors.Wrap(err, "create message")
	}
	return nil
}

func (r *MessageRepository) UpdateContent(sessionID, id, content string) error {
	err := r.db.Model(&db.Message{}).
		Where("session_id = ? AND id = ?", sessionID, id).
		Updates(map[string]interface{}{"content": content, "updated_at": time.Now().UTC()}).Error
	return errors.Wrap(err, "update message content")
}

func (r *MessageRepository) UpdateStatus(sessionID, id, status string) error {
	err := r.db.Model(&db.Message{}).
		Where("session_id = ? AND id = ?", sessionID, id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
	return errors.Wrap(err, "update message status")
}

func (r *MessageRepository) UpdateExecution(sessionID, id, status string, executionID *string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if executionID != nil {
		updates["execution_id"] = *executionID
	}
	err := r.db.Model(&db.Message{}).
		Where("session_id = ? AND id = ?", sessionID, id).
		Updates(updates).Error
	return errors.Wrap(err, "update message execution")
}
