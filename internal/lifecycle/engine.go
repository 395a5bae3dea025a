// Package lifecycle owns every status change of a ticket. A Transition can
// only be produced by Engine.Plan, so stores cannot set status on their own.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// Kind names a modeled transition.
type Kind string

const (
	KindEscalate Kind = "escalate"
	KindResolve  Kind = "resolve"
	KindReject   Kind = "reject"
)

// ParseKind validates a raw transition name.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case KindEscalate, KindResolve, KindReject:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown transition %q", raw)
	}
}

// EscalationMessage narrates an escalation in the thread.
const EscalationMessage = "Ticket escalated to Pusat."

// SystemAuthor is the display name of lifecycle narration.
const SystemAuthor = "System"

// Request asks the engine to move a ticket.
type Request struct {
	Kind  Kind
	Actor domain.Identity
	Note  string
}

// Transition is a validated status change plus the system comment that
// must be persisted with it in one atomic write.
type Transition struct {
	kind    Kind
	from    domain.TicketStatus
	to      domain.TicketStatus
	comment domain.Comment
}

func (t Transition) Kind() Kind                { return t.kind }
func (t Transition) From() domain.TicketStatus { return t.from }
func (t Transition) To() domain.TicketStatus   { return t.to }
func (t Transition) Comment() domain.Comment   { return t.comment }

// Engine plans transitions.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides comment id generation.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine builds an engine with wall-clock time and UUIDv7 comment ids.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, newID: NewCommentID}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewCommentID returns a time-ordered opaque id.
func NewCommentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Plan validates req against the ticket's current status.
func (e *Engine) Plan(ticket *domain.Ticket, req Request) (Transition, error) {
	if ticket == nil {
		return Transition{}, apperrors.NewNotFound("ticket", nil)
	}
	from := ticket.Status
	var to domain.TicketStatus

	switch req.Kind {
	case KindEscalate:
		if req.Actor.Role != domain.RoleDaerah {
			return Transition{}, apperrors.NewAccessDenied("only daerah may escalate")
		}
		if from == domain.TicketStatusEscalated {
			return Transition{}, apperrors.NewAlreadyEscalated(ticket.ID)
		}
		if from != domain.TicketStatusPending && from != domain.TicketStatusOpen {
			return Transition{}, invalid(ticket.ID, from, domain.TicketStatusEscalated)
		}
		to = domain.TicketStatusEscalated
	case KindResolve, KindReject:
		to = domain.TicketStatusResolved
		if req.Kind == KindReject {
			to = domain.TicketStatusRejected
		}
		if from.Terminal() {
			return Transition{}, invalid(ticket.ID, from, to)
		}
		switch req.Actor.Role {
		case domain.RoleDaerah:
		case domain.RolePusat:
			if from != domain.TicketStatusEscalated {
				return Transition{}, apperrors.NewAccessDenied("pusat acts only on escalated tickets")
			}
		default:
			return Transition{}, apperrors.NewAccessDenied(fmt.Sprintf("%s may not %s tickets", req.Actor.Role, req.Kind))
		}
	default:
		return Transition{}, apperrors.NewInvalidInput("unknown transition", map[string]any{"kind": req.Kind})
	}

	return Transition{
		kind: req.Kind,
		from: from,
		to:   to,
		comment: domain.Comment{
			ID:      e.newID(),
			Author:  SystemAuthor,
			Role:    domain.RoleSystem,
			Message: narrate(req, to),
			Time:    e.now().UTC(),
		},
	}, nil
}

// KindForStatus maps a requested target status onto a transition kind.
func KindForStatus(target domain.TicketStatus) (Kind, error) {
	switch target {
	case domain.TicketStatusEscalated:
		return KindEscalate, nil
	case domain.TicketStatusResolved:
		return KindResolve, nil
	case domain.TicketStatusRejected:
		return KindReject, nil
	default:
		return "", apperrors.NewInvalidTransition("no transition leads to status",
			map[string]any{"status": target})
	}
}

// Conflict explains a lost compare-and-set given the ticket as it is now.
func Conflict(current *domain.Ticket, t Transition) error {
	if current != nil && current.Status == domain.TicketStatusEscalated && t.to == domain.TicketStatusEscalated {
		return apperrors.NewAlreadyEscalated(current.ID)
	}
	id := ""
	status := t.from
	if current != nil {
		id = current.ID
		status = current.Status
	}
	return invalid(id, status, t.to)
}

func invalid(ticketID string, from, to domain.TicketStatus) error {
	return apperrors.NewInvalidTransition("transition not allowed", map[string]any{
		"ticket_id": ticketID,
		"from":      from,
		"to":        to,
	})
}

func narrate(req Request, to domain.TicketStatus) string {
	var msg string
	switch to {
	case domain.TicketStatusEscalated:
		msg = EscalationMessage
	case domain.TicketStatusResolved:
		msg = fmt.Sprintf("Ticket resolved by %s.", req.Actor.Role)
	case domain.TicketStatusRejected:
		msg = fmt.Sprintf("Ticket rejected by %s.", req.Actor.Role)
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		msg += " Note: " + note
	}
	return msg
}
