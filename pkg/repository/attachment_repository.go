package repository

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/weavechat/weavechat/pkg/db"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(gdb *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: gdb}
}

// WithTx returns a repository bound to the given transaction.
func (r *AttachmentRepository) WithTx(tx *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: tx}
}

func (r *AttachmentRepository) Create(att *db.Attachment) error {
	if err := r.db.Create(att).Error; err != nil {
		return errors.Wrap(err, "create attachment")
	}
	return nil
}
