package postgres

import (
	"context"

	"github.com/frahmantamala/redteam-collab/internal/comment"
	commentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/comment"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) comment.Repository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) ListByFinding(ctx context.Context, findingID int64) ([]*comment.Row, error) {
	var rows []*comment.Row
	err := r.db.WithContext(ctx).
		Table("comments").
		Select("comments.*, users.username AS author_username, users.first_name AS author_first_name, users.last_name AS author_last_name").
		Joins("LEFT JOIN users ON users.id = comments.user_id").
		Where("comments.finding_id = ?", findingID).
		Order("comments.created_at ASC").
		Order("comments.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *CommentRepository) Create(ctx context.Context, c *commentdm.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}
