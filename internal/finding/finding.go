package finding

import (
	"context"
	"encoding/json"
	"time"

	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Severities is ordered from most to least severe.
var Severities = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusVerified   = "verified"
)

var Statuses = []string{StatusOpen, StatusInProgress, StatusResolved, StatusVerified}

type Finding struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Severity         string          `json:"severity"`
	Category         string          `json:"category"`
	Status           string          `json:"status"`
	CVSSScore        string          `json:"cvssScore,omitempty"`
	AffectedURL      string          `json:"affectedUrl,omitempty"`
	Payload          string          `json:"payload,omitempty"`
	Evidence         []string        `json:"evidence"`
	NetworkTopology  json.RawMessage `json:"networkTopology,omitempty"`
	ExploitationFlow json.RawMessage `json:"exploitationFlow,omitempty"`
	MitreAttack      json.RawMessage `json:"mitreAttack,omitempty"`
	ReportedBy       string          `json:"reportedBy"`
	AssignedTo       []string        `json:"assignedTo"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (f *Finding) IsAssigned(userID string) bool {
	for _, id := range f.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

func FromDataModel(m *findingdm.Finding) *Finding {
	f := &Finding{
		ID:               m.ID,
		Title:            m.Title,
		Description:      m.Description,
		Severity:         m.Severity,
		Category:         m.Category,
		Status:           m.Status,
		CVSSScore:        m.CVSSScore,
		AffectedURL:      m.AffectedURL,
		Payload:          m.Payload,
		Evidence:         m.Evidence,
		NetworkTopology:  m.NetworkTopology,
		ExploitationFlow: m.ExploitationFlow,
		MitreAttack:      m.MitreAttack,
		ReportedBy:       m.ReportedByID,
		AssignedTo:       m.AssignedTo,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if f.Evidence == nil {
		f.Evidence = []string{}
	}
	if f.AssignedTo == nil {
		f.AssignedTo = []string{}
	}
	return f
}

func ToDataModel(f *Finding) *findingdm.Finding {
	return &findingdm.Finding{
		ID:               f.ID,
		Title:            f.Title,
		Description:      f.Description,
		Severity:         f.Severity,
		Category:         f.Category,
		Status:           f.Status,
		CVSSScore:        f.CVSSScore,
		AffectedURL:      f.AffectedURL,
		Payload:          f.Payload,
		Evidence:         f.Evidence,
		NetworkTopology:  f.NetworkTopology,
		ExploitationFlow: f.ExploitationFlow,
		MitreAttack:      f.MitreAttack,
		ReportedByID:     f.ReportedBy,
		AssignedTo:       f.AssignedTo,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Severities []string
	Status     string
	Category   string
	Search     string
}

// Stats summarises the workspace for the dashboard.
type Stats struct {
	TotalFindings int64            `json:"totalFindings"`
	BySeverity    map[string]int64 `json:"bySeverity"`
	ByStatus      map[string]int64 `json:"byStatus"`
	TotalReports  int64            `json:"totalReports"`
	TotalUsers    int64            `json:"totalUsers"`
}

// Repository returns internal.ErrFindingNotFound for missing rows.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]*findingdm.Finding, error)
	GetByID(ctx context.Context, id int64) (*findingdm.Finding, error)
	// GetByIDs skips ids that do not exist and keeps the requested order.
	GetByIDs(ctx context.Context, ids []int64) ([]*findingdm.Finding, error)
	Create(ctx context.Context, f *findingdm.Finding) error
	Update(ctx context.Context, f *findingdm.Finding) error
	// Delete removes the finding with its comments and attachment rows and
	// returns the storage keys of the removed attachments.
	Delete(ctx context.Context, id int64) ([]string, error)
}

type StatsRepository interface {
	Stats(ctx context.Context) (*Stats, error)
}

// BlobRemover deletes stored attachment blobs.
type BlobRemover interface {
	Delete(ctx context.Context, key string) error
}
