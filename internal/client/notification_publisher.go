package client

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

const subjectPrefix = "notifications.sow."

// Event types published for SOW workflows.
const (
	EventWorkflowStarted  = "sow_workflow_started"
	EventApprovalRequired = "sow_approval_required"
	EventApproved         = "sow_approved"
	EventRejected         = "sow_rejected"
)

// Publisher is the bus the notification events go to.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NotificationPublisher publishes SOW workflow events for the notifications
// service.
//
// Subject convention: notifications.sow.<event_type>
//
// Publishing is non-fatal: errors are logged and never returned, so a broker
// outage never fails a workflow operation.
type NotificationPublisher struct {
	bus Publisher
	log zerolog.Logger
}

// NotificationEvent is the JSON body published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	ActorID      string         `json:"actor_id"`
	Recipients   []string       `json:"recipients"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IsActionable bool           `json:"is_actionable,omitempty"`
	Severity     string         `json:"severity,omitempty"`
	Category     string         `json:"category,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher. A nil bus disables
// publishing.
func NewNotificationPublisher(bus Publisher, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{bus: bus, log: log}
}

// PublishSOWEvent publishes one workflow event for documentID. Recipients are
// role names; events without recipients are dropped.
func (p *NotificationPublisher) PublishSOWEvent(ctx context.Context, eventType, documentID, actorID string, recipients []string, payload map[string]any) {
	if p == nil || p.bus == nil {
		return
	}
	if len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		ActorID:      actorID,
		Recipients:   recipients,
		ResourceType: "sow",
		ResourceID:   documentID,
		IsActionable: eventType == EventApprovalRequired,
		Severity:     severityOf(eventType),
		Category:     "sow_approval",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := subjectPrefix + eventType
	if err := p.bus.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("document_id", documentID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("document_id", documentID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}

func severityOf(eventType string) string {
	if eventType == EventRejected {
		return "warning"
	}
	return "info"
}
