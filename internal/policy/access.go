// Package policy decides who may see and contribute to a ticket.
package policy

import (
	"strings"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

// CanView is the last-mile guard for direct access to one ticket. Listing
// scopes are applied by the store query, not here.
func CanView(viewer domain.Identity, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	switch viewer.Role {
	case domain.RoleSekolah:
		return sameSchool(viewer, ticket)
	case domain.RolePusat, domain.RoleDaerah, domain.RoleMitra, domain.RoleMurid:
		return true
	default:
		return false
	}
}

// CanContribute reports whether the role may post to the ticket thread.
func CanContribute(role domain.Role, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	switch role {
	case domain.RoleSekolah, domain.RoleDaerah:
		return true
	case domain.RolePusat:
		return ticket.Status == domain.TicketStatusEscalated
	case domain.RoleMurid, domain.RoleMitra:
		return false
	default:
		return false
	}
}

// CanPost combines the view and contribute guards for a thread write.
func CanPost(viewer domain.Identity, ticket *domain.Ticket) bool {
	return CanView(viewer, ticket) && CanContribute(viewer.Role, ticket)
}

func sameSchool(viewer domain.Identity, ticket *domain.Ticket) bool {
	if viewer.SchoolID != "" && ticket.SchoolID != "" {
		return viewer.SchoolID == ticket.SchoolID
	}
	viewerSchool := strings.TrimSpace(viewer.SchoolName)
	if viewerSchool == "" {
		return false
	}
	return strings.EqualFold(viewerSchool, strings.TrimSpace(ticket.SchoolName))
}
