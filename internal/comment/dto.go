package comment

import (
	"strings"

	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
)

const maxContentLength = 10000

type CreateCommentDTO struct {
	Content string `json:"content"`
}

func (d *CreateCommentDTO) Validate() error {
	d.Content = strings.TrimSpace(d.Content)
	return validation.NewValidator().
		Field("content", d.Content).Required().MaxLength(maxContentLength).
		Validate()
}

type CommentsResponse struct {
	Comments []*Comment `json:"comments"`
}
