package message

import (
	"context"
	"time"

	messagedm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/message"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

const (
	DefaultChannel = "general"
	DefaultLimit   = 50
	MaxLimit       = 200
)

type Message struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName"`
	Channel    string    `json:"channel"`
	ReplyTo    *int64    `json:"replyTo,omitempty"`
	Edited     bool      `json:"edited"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Row is a message joined with its author's name columns.
type Row struct {
	messagedm.Message
	AuthorUsername  *string
	AuthorFirstName *string
	AuthorLastName  *string
}

func FromRow(r *Row) *Message {
	m := fromDataModel(&r.Message)
	m.AuthorName = coreuser.DisplayNameOf(r.AuthorFirstName, r.AuthorLastName, r.AuthorUsername)
	return m
}

func fromDataModel(m *messagedm.Message) *Message {
	return &Message{
		ID:        m.ID,
		Content:   m.Content,
		UserID:    m.UserID,
		Channel:   m.Channel,
		ReplyTo:   m.ReplyTo,
		Edited:    m.Edited,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type Repository interface {
	// ListByChannel pages backwards from the newest message and returns the
	// page oldest first.
	ListByChannel(ctx context.Context, channel string, limit, offset int) ([]*Row, error)
	Channels(ctx context.Context) ([]string, error)
	// GetByID returns the message joined with its author's name columns.
	GetByID(ctx context.Context, id int64) (*Row, error)
	Create(ctx context.Context, m *messagedm.Message) error
	Update(ctx context.Context, m *messagedm.Message) error
	Delete(ctx context.Context, id int64) error
}
