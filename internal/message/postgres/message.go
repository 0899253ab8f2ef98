package postgres

import (
	"context"
	"slices"

	"github.com/frahmantamala/redteam-collab/internal"
	messagedm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/message"
	"github.com/frahmantamala/redteam-collab/internal/message"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) message.Repository {
	return &MessageRepository{db: db}
}

const authorColumns = "messages.*, users.username AS author_username, users.first_name AS author_first_name, users.last_name AS author_last_name"

func (r *MessageRepository) withAuthor(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("messages").
		Select(authorColumns).
		Joins("LEFT JOIN users ON users.id = messages.user_id")
}

func (r *MessageRepository) ListByChannel(ctx context.Context, channel string, limit, offset int) ([]*message.Row, error) {
	var rows []*message.Row
	err := r.withAuthor(ctx).
		Where("messages.channel = ?", channel).
		Order("messages.created_at DESC").
		Order("messages.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	return rows, nil
}

func (r *MessageRepository) Channels(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&messagedm.Message{}).
		Distinct("channel").
		Order("channel ASC").
		Pluck("channel", &names).Error
	return names, err
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*message.Row, error) {
	var row message.Row
	res := r.withAuthor(ctx).Where("messages.id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, internal.ErrMessageNotFound
	}
	return &row, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *messagedm.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) Update(ctx context.Context, m *messagedm.Message) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MessageRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&messagedm.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrMessageNotFound
	}
	return nil
}
