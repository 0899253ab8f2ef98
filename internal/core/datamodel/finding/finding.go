package finding

import (
	"encoding/json"
	"time"
)

type Finding struct {
	ID               int64           `gorm:"primaryKey"`
	Title            string          `gorm:"column:title;not null"`
	Description      string          `gorm:"column:description;type:text;not null"`
	Severity         string          `gorm:"column:severity;not null;index"`
	Category         string          `gorm:"column:category;index"`
	Status           string          `gorm:"column:status;not null;default:open;index"`
	CVSSScore        string          `gorm:"column:cvss_score"`
	AffectedURL      string          `gorm:"column:affected_url"`
	Payload          string          `gorm:"column:payload;type:text"`
	Evidence         []string        `gorm:"column:evidence;serializer:json"`
	NetworkTopology  json.RawMessage `gorm:"column:network_topology;serializer:json"`
	ExploitationFlow json.RawMessage `gorm:"column:exploitation_flow;serializer:json"`
	MitreAttack      json.RawMessage `gorm:"column:mitre_attack;serializer:json"`
	ReportedByID     string          `gorm:"column:reported_by_id;not null;index"`
	AssignedTo       []string        `gorm:"column:assigned_to;serializer:json"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Finding) TableName() string {
	return "findings"
}
