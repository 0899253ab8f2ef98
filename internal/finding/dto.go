package finding

import (
	"encoding/json"
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
)

type CreateFindingDTO struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Severity         string          `json:"severity"`
	Category         string          `json:"category"`
	Status           string          `json:"status"`
	CVSSScore        string          `json:"cvssScore"`
	AffectedURL      string          `json:"affectedUrl"`
	Payload          string          `json:"payload"`
	Evidence         []string        `json:"evidence"`
	NetworkTopology  json.RawMessage `json:"networkTopology"`
	ExploitationFlow json.RawMessage `json:"exploitationFlow"`
	MitreAttack      json.RawMessage `json:"mitreAttack"`
	AssignedTo       []string        `json:"assignedTo"`
}

func (d *CreateFindingDTO) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Severity = strings.ToLower(strings.TrimSpace(d.Severity))
	d.Status = strings.ToLower(strings.TrimSpace(d.Status))
	return validation.NewValidator().
		Field("title", d.Title).Required().MaxLength(255).
		Field("description", d.Description).Required().
		Field("severity", d.Severity).Required().OneOf(Severities, internal.ErrCodeInvalidSeverity).
		Field("status", d.Status).OneOf(Statuses, internal.ErrCodeInvalidStatus).
		Field("category", d.Category).MaxLength(100).
		Field("cvssScore", d.CVSSScore).MaxLength(16).
		Field("affectedUrl", d.AffectedURL).MaxLength(2048).
		Validate()
}

// UpdateFindingDTO patches only the fields that are present.
type UpdateFindingDTO struct {
	Title            *string          `json:"title"`
	Description      *string          `json:"description"`
	Severity         *string          `json:"severity"`
	Category         *string          `json:"category"`
	Status           *string          `json:"status"`
	CVSSScore        *string          `json:"cvssScore"`
	AffectedURL      *string          `json:"affectedUrl"`
	Payload          *string          `json:"payload"`
	Evidence         *[]string        `json:"evidence"`
	NetworkTopology  *json.RawMessage `json:"networkTopology"`
	ExploitationFlow *json.RawMessage `json:"exploitationFlow"`
	MitreAttack      *json.RawMessage `json:"mitreAttack"`
	AssignedTo       *[]string        `json:"assignedTo"`
}

func (d *UpdateFindingDTO) Validate() error {
	v := validation.NewValidator()
	if d.Title != nil {
		t := strings.TrimSpace(*d.Title)
		d.Title = &t
		v.Field("title", t).Required().MaxLength(255)
	}
	if d.Description != nil {
		v.Field("description", *d.Description).Required()
	}
	if d.Severity != nil {
		s := strings.ToLower(strings.TrimSpace(*d.Severity))
		d.Severity = &s
		v.Field("severity", s).Required().OneOf(Severities, internal.ErrCodeInvalidSeverity)
	}
	if d.Status != nil {
		s := strings.ToLower(strings.TrimSpace(*d.Status))
		d.Status = &s
		v.Field("status", s).Required().OneOf(Statuses, internal.ErrCodeInvalidStatus)
	}
	if d.Category != nil {
		v.Field("category", *d.Category).MaxLength(100)
	}
	return v.Validate()
}

// Fields names the attributes the patch touches, for the activity log.
func (d *UpdateFindingDTO) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(d.Title != nil, "title")
	add(d.Description != nil, "description")
	add(d.Severity != nil, "severity")
	add(d.Category != nil, "category")
	add(d.Status != nil, "status")
	add(d.CVSSScore != nil, "cvssScore")
	add(d.AffectedURL != nil, "affectedUrl")
	add(d.Payload != nil, "payload")
	add(d.Evidence != nil, "evidence")
	add(d.NetworkTopology != nil, "networkTopology")
	add(d.ExploitationFlow != nil, "exploitationFlow")
	add(d.MitreAttack != nil, "mitreAttack")
	add(d.AssignedTo != nil, "assignedTo")
	return fields
}

func (d *UpdateFindingDTO) apply(f *Finding) {
	if d.Title != nil {
		f.Title = *d.Title
	}
	if d.Description != nil {
		f.Description = *d.Description
	}
	if d.Severity != nil {
		f.Severity = *d.Severity
	}
	if d.Category != nil {
		f.Category = *d.Category
	}
	if d.Status != nil {
		f.Status = *d.Status
	}
	if d.CVSSScore != nil {
		f.CVSSScore = *d.CVSSScore
	}
	if d.AffectedURL != nil {
		f.AffectedURL = *d.AffectedURL
	}
	if d.Payload != nil {
		f.Payload = *d.Payload
	}
	if d.Evidence != nil {
		f.Evidence = *d.Evidence
	}
	if d.NetworkTopology != nil {
		f.NetworkTopology = *d.NetworkTopology
	}
	if d.ExploitationFlow != nil {
		f.ExploitationFlow = *d.ExploitationFlow
	}
	if d.MitreAttack != nil {
		f.MitreAttack = *d.MitreAttack
	}
	if d.AssignedTo != nil {
		f.AssignedTo = *d.AssignedTo
	}
}

type FindingsResponse struct {
	Findings []*Finding `json:"findings"`
}
