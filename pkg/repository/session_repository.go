// Package repository holds the GORM-backed stores for sessions, messages
// and attachments. Every repository carries a WithTx variant so the
// orchestrator can run all writes of one conversational turn inside a
// single transaction.
package repository

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/weavechat/weavechat/pkg/db"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(gdb *gorm.DB) *SessionRepository {
	return &SessionRepository{db: gdb}
}

// WithTx returns a repository bound to the given transaction.
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Get(id string) (*db.Session, error) {
	var sess db.Session
	if err := r.db.First(&sess, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get session")
	}
	return &sess, nil
}

func (r *SessionRepository) Create(sess *db.Session) error {
	if err := r.db.Create(sess).Error; err != nil {
		return errors.Wrap(err, "create session")
	}
	return nil
}

// List returns the user's sessions ordered by most recent activity.
// It fetches limit+1 rows so callers can report whether more exist.
func (r *SessionRepository) List(userID string, limit, offset int) ([]db.Session, bool, error) {
	var sessions []db.Session
	if err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit + 1).Offset(offset).
		Find(&sessions).Error; err != nil {
		return nil, false, errors.Wrap(err, "list sessions")
	}

	hasMore := len(sessions) > limit
	if hasMore {
		sessions = sessions[:limit]
	}
	return sessions, hasMore, nil
}

func (r *SessionRepository) Update(sess *db.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	if err := r.db.Save(sess).Error; err != nil {
		return errors.Wrap(err, "update session")
	}
	return nil
}

func (r *SessionRepository) UpdateTitle(id, title string) error {
	err := r.db.Model(&db.Session{}).Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now().UTC()}).Error
	return errors.Wrap(err, "update session title")
}

func (r *SessionRepository) Touch(id string) error {
	err := r.db.Model(&db.Session{}).Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
	return errors.Wrap(err, "touch session")
}

// Delete removes a session together with its messages and attachment rows.
// Blob cleanup is the caller's concern.
func (r *SessionRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&db.Attachment{}).Error; err != nil {
			return errors.Wrap(err, "delete session attachments")
		}
		if err := tx.Where("session_id = ?", id).Delete(&db.Message{}).Error; err != nil {
			return errors.Wrap(err, "delete session messages")
		}
		if err := tx.Delete(&db.Session{}, "id = ?", id).Error; err != nil {
			return errors.Wrap(err, "delete session")
		}
		return nil
	})
}
