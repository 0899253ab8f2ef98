package report

import (
	"context"
	"time"

	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	reportdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/report"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
)

const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

var Formats = []string{FormatPDF, FormatHTML}

// ContentType maps a stored format to the download media type.
func ContentType(format string) string {
	if format == FormatPDF {
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

type Report struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Findings    []int64   `json:"findings"`
	GeneratedBy string    `json:"generatedBy"`
	Format      string    `json:"format"`
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"createdAt"`

	key string
}

// Key is the blob storage key of the rendered document.
func (r *Report) Key() string { return r.key }

func FromDataModel(m *reportdm.Report) *Report {
	findings := m.Findings
	if findings == nil {
		findings = []int64{}
	}
	return &Report{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Findings:    findings,
		GeneratedBy: m.GeneratedByID,
		Format:      m.Format,
		Filename:    m.Filename,
		CreatedAt:   m.CreatedAt,
		key:         m.FilePath,
	}
}

type Repository interface {
	List(ctx context.Context) ([]*reportdm.Report, error)
	GetByID(ctx context.Context, id int64) (*reportdm.Report, error)
	Create(ctx context.Context, r *reportdm.Report) error
	Delete(ctx context.Context, id int64) error
}

// FindingReader returns the requested findings in request order, skipping
// ids that do not exist.
type FindingReader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*findingdm.Finding, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*userdm.User, error)
}
