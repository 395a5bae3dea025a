package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketCommentAdded       EventType = "ticket_comment_added"
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventTicketPatched            EventType = "ticket_patched"
	EventTicketStudentReportAdded EventType = "ticket_student_report_added"
	EventTicketAdvisoryGenerated  EventType = "ticket_advisory_generated"
)

// AllEventTypes lists every type the ticket surface emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketCommentAdded,
	EventTicketStatusChanged,
	EventTicketPatched,
	EventTicketStudentReportAdded,
	EventTicketAdvisoryGenerated,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
	Name string      `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, ticketID string, actor domain.Identity, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     Actor{ID: actor.ID, Role: actor.Role, Name: actor.DisplayName()},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Category   string                `json:"category"`
	Priority   domain.TicketPriority `json:"priority"`
	SchoolName string                `json:"school_name"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string      `json:"comment_id"`
	AuthorRole  domain.Role `json:"author_role"`
	BodyPreview string      `json:"body_preview"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketPatchedPayload lists the administrative fields that changed.
type TicketPatchedPayload struct {
	Priority      *domain.TicketPriority `json:"priority,omitempty"`
	Category      *string                `json:"category,omitempty"`
	AssignedMitra []string               `json:"assigned_mitra,omitempty"`
}

// TicketStudentReportAddedPayload payload.
type TicketStudentReportAddedPayload struct {
	StudentName string `json:"student_name"`
}

// TicketAdvisoryGeneratedPayload payload.
type TicketAdvisoryGeneratedPayload struct {
	Role        domain.Role `json:"role"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Preview trims a message for event payloads.
func Preview(message string) string {
	const max = 120
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max]) + "..."
}
