package comment

import (
	"context"
	"time"

	commentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/comment"
	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

type Comment struct {
	ID         int64     `json:"id"`
	FindingID  int64     `json:"findingId"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Row is a comment joined with its author's name columns. The author
// fields are nil when the account no longer exists.
type Row struct {
	commentdm.Comment
	AuthorUsername  *string
	AuthorFirstName *string
	AuthorLastName  *string
}

func FromRow(r *Row) *Comment {
	return &Comment{
		ID:         r.ID,
		FindingID:  r.FindingID,
		UserID:     r.UserID,
		AuthorName: coreuser.DisplayNameOf(r.AuthorFirstName, r.AuthorLastName, r.AuthorUsername),
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type Repository interface {
	// ListByFinding returns oldest first.
	ListByFinding(ctx context.Context, findingID int64) ([]*Row, error)
	Create(ctx context.Context, c *commentdm.Comment) error
}

// FindingReader is the slice of the finding repository comments need.
type FindingReader interface {
	GetByID(ctx context.Context, id int64) (*findingdm.Finding, error)
}
