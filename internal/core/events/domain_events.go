package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeFindingCreated  = "finding.created"
	EventTypeFindingUpdated  = "finding.updated"
	EventTypeFindingDeleted  = "finding.deleted"
	EventTypeCommentCreated  = "comment.created"
	EventTypeReportGenerated = "report.generated"
	EventTypeUserApproved    = "user.approved"

	EventTypeNetworkScanned       = "live.network_scanned"
	EventTypeVulnerabilityScanned = "live.vulnerability_scanned"
)

// AllTypes lists every event the application publishes.
var AllTypes = []string{
	EventTypeFindingCreated,
	EventTypeFindingUpdated,
	EventTypeFindingDeleted,
	EventTypeCommentCreated,
	EventTypeReportGenerated,
	EventTypeUserApproved,
	EventTypeNetworkScanned,
	EventTypeVulnerabilityScanned,
}

// DomainEvent records who did what to which resource.
type DomainEvent struct {
	BaseEvent
	ActorID    string `json:"actor_id"`
	ResourceID string `json:"resource_id"`
}

func newDomainEvent(eventType, actorID, resourceID string, data map[string]interface{}) *DomainEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["actor_id"] = actorID
	data["resource_id"] = resourceID
	return &DomainEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      data,
		},
		ActorID:    actorID,
		ResourceID: resourceID,
	}
}

func NewFindingCreatedEvent(actorID, findingID, title, severity string) *DomainEvent {
	return newDomainEvent(EventTypeFindingCreated, actorID, findingID, map[string]interface{}{
		"title":    title,
		"severity": severity,
	})
}

func NewFindingUpdatedEvent(actorID, findingID string, fields []string) *DomainEvent {
	return newDomainEvent(EventTypeFindingUpdated, actorID, findingID, map[string]interface{}{
		"fields": fields,
	})
}

func NewFindingDeletedEvent(actorID, findingID string) *DomainEvent {
	return newDomainEvent(EventTypeFindingDeleted, actorID, findingID, nil)
}

func NewCommentCreatedEvent(actorID, commentID, findingID string) *DomainEvent {
	return newDomainEvent(EventTypeCommentCreated, actorID, commentID, map[string]interface{}{
		"finding_id": findingID,
	})
}

func NewReportGeneratedEvent(actorID, reportID, format string, findingCount int) *DomainEvent {
	return newDomainEvent(EventTypeReportGenerated, actorID, reportID, map[string]interface{}{
		"format":   format,
		"findings": findingCount,
	})
}

func NewUserApprovedEvent(actorID, userID string) *DomainEvent {
	return newDomainEvent(EventTypeUserApproved, actorID, userID, nil)
}

func NewNetworkScannedEvent(actorID, subnet string, hosts int) *DomainEvent {
	return newDomainEvent(EventTypeNetworkScanned, actorID, subnet, map[string]interface{}{
		"hosts": hosts,
	})
}

func NewVulnerabilityScannedEvent(actorID string, targets []string, assessed int) *DomainEvent {
	return newDomainEvent(EventTypeVulnerabilityScanned, actorID, strings.Join(targets, ","), map[string]interface{}{
		"assessed": assessed,
	})
}
