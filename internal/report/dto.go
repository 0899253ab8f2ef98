package report

import (
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
)

type CreateReportDTO struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Findings    []int64 `json:"findings"`
	Format      string  `json:"format"`
}

// Validate trims the title, defaults the format to pdf and drops duplicate
// finding ids.
func (d *CreateReportDTO) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Format = strings.ToLower(strings.TrimSpace(d.Format))
	if d.Format == "" {
		d.Format = FormatPDF
	}

	seen := make(map[int64]struct{}, len(d.Findings))
	ids := make([]int64, 0, len(d.Findings))
	for _, id := range d.Findings {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	d.Findings = ids

	return validation.NewValidator().
		Field("title", d.Title).Required().MaxLength(255).
		Field("description", d.Description).MaxLength(20000).
		Field("format", d.Format).OneOf(Formats, internal.ErrCodeValidationFailed).
		Field("findings", int64(len(d.Findings))).MaxInt(500, internal.ErrCodeValidationFailed).
		Validate()
}

type ReportsResponse struct {
	Reports []*Report `json:"reports"`
}
