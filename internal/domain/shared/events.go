package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types published by the PEI facade.
const (
	// PEI events
	EventPEICreated EventType = "pei.created"
	EventPEISaved   EventType = "pei.saved"
	EventPEIDeleted EventType = "pei.deleted"

	// Goal events
	EventGoalStatusChanged EventType = "goal.status_changed"

	// Progress events
	EventProgressRecorded EventType = "progress.recorded"

	// Notification events
	EventNotificationRaised EventType = "notification.raised"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// PEI Events
// ═══════════════════════════════════════════════════════════════════════════

// PEICreatedEvent is emitted when a new plan is created for a student.
type PEICreatedEvent struct {
	BaseEvent
	StudentID    string `json:"student_id"`
	AssessmentID string `json:"assessment_id,omitempty"`
}

// NewPEICreatedEvent creates a new PEICreatedEvent.
func NewPEICreatedEvent(peiID, studentID, assessmentID string) PEICreatedEvent {
	return PEICreatedEvent{
		BaseEvent:    NewBaseEvent(EventPEICreated, peiID),
		StudentID:    studentID,
		AssessmentID: assessmentID,
	}
}

// Payload implements Event interface.
func (e PEICreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"assessment_id": e.AssessmentID,
	}
}

// PEISavedEvent is emitted after a snapshot has been written to storage.
type PEISavedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	GoalCount int    `json:"goal_count"`
}

// NewPEISavedEvent creates a new PEISavedEvent.
func NewPEISavedEvent(peiID, studentID string, goalCount int) PEISavedEvent {
	return PEISavedEvent{
		BaseEvent: NewBaseEvent(EventPEISaved, peiID),
		StudentID: studentID,
		GoalCount: goalCount,
	}
}

// Payload implements Event interface.
func (e PEISavedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"goal_count": e.GoalCount,
	}
}

// PEIDeletedEvent is emitted when a stored plan is removed.
type PEIDeletedEvent struct {
	BaseEvent
}

// NewPEIDeletedEvent creates a new PEIDeletedEvent.
func NewPEIDeletedEvent(peiID string) PEIDeletedEvent {
	return PEIDeletedEvent{BaseEvent: NewBaseEvent(EventPEIDeleted, peiID)}
}

// Payload implements Event interface.
func (e PEIDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal & Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalStatusChangedEvent is emitted when a goal's status changes, either
// explicitly or as a side effect of a new progress record.
type GoalStatusChangedEvent struct {
	BaseEvent
	GoalID    string `json:"goal_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Automatic bool   `json:"automatic"`
}

// NewGoalStatusChangedEvent creates a new GoalStatusChangedEvent.
func NewGoalStatusChangedEvent(peiID, goalID, oldStatus, newStatus string, automatic bool) GoalStatusChangedEvent {
	return GoalStatusChangedEvent{
		BaseEvent: NewBaseEvent(EventGoalStatusChanged, peiID),
		GoalID:    goalID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Automatic: automatic,
	}
}

// Payload implements Event interface.
func (e GoalStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"goal_id":    e.GoalID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
		"automatic":  e.Automatic,
	}
}

// ProgressRecordedEvent is emitted when a progress record is appended to a goal.
type ProgressRecordedEvent struct {
	BaseEvent
	GoalID     string `json:"goal_id"`
	ProgressID string `json:"progress_id"`
	Status     string `json:"status"`
}

// NewProgressRecordedEvent creates a new ProgressRecordedEvent.
func NewProgressRecordedEvent(peiID, goalID, progressID, status string) ProgressRecordedEvent {
	return ProgressRecordedEvent{
		BaseEvent:  NewBaseEvent(EventProgressRecorded, peiID),
		GoalID:     goalID,
		ProgressID: progressID,
		Status:     status,
	}
}

// Payload implements Event interface.
func (e ProgressRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"goal_id":     e.GoalID,
		"progress_id": e.ProgressID,
		"status":      e.Status,
	}
}

// NotificationRaisedEvent carries a user-facing message from the core.
type NotificationRaisedEvent struct {
	BaseEvent
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// NewNotificationRaisedEvent creates a new NotificationRaisedEvent.
func NewNotificationRaisedEvent(aggregateID, message, kind string) NotificationRaisedEvent {
	return NotificationRaisedEvent{
		BaseEvent: NewBaseEvent(EventNotificationRaised, aggregateID),
		Message:   message,
		Kind:      kind,
	}
}

// Payload implements Event interface.
func (e NotificationRaisedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"message": e.Message,
		"kind":    e.Kind,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
