// Package advisory derives role-specific guidance for a ticket. Derive is the
// always-available deterministic core; Service adds the optional generated
// path with a per-ticket cache.
package advisory

import (
	"fmt"
	"strings"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

const (
	clauseEscalated = "case escalated"
	clauseDistrict  = "handled at district level"
)

// Derive builds the advisory for role viewing ticket in status. It reads only
// its arguments, so identical input always yields identical output.
func Derive(role domain.Role, status domain.TicketStatus, ticket *domain.Ticket, reports []domain.StudentReport) domain.Advisory {
	if ticket == nil {
		ticket = &domain.Ticket{}
	}
	escalated := status == domain.TicketStatusEscalated
	partners := partnerList(ticket.AssignedMitra)

	advice := domain.Advisory{
		Summary:  summary(status, ticket, escalated, partners),
		Insights: insights(status, ticket, escalated, len(reports)),
	}

	switch role {
	case domain.RolePusat:
		pusatBranch(&advice, status, ticket, escalated, partners)
	case domain.RoleDaerah:
		daerahBranch(&advice, status, ticket, escalated, partners, len(reports))
	case domain.RoleSekolah:
		sekolahBranch(&advice, status, ticket, escalated)
	default:
		defaultBranch(&advice, status)
	}
	return advice
}

func summary(status domain.TicketStatus, ticket *domain.Ticket, escalated bool, partners string) string {
	clause := clauseDistrict
	if escalated {
		clause = clauseEscalated
	}
	return fmt.Sprintf("[%s] %s at %s: %s. Partners: %s.",
		strings.ToUpper(string(status)), orDash(ticket.Title), orDash(ticket.SchoolName), clause, partners)
}

func insights(status domain.TicketStatus, ticket *domain.Ticket, escalated bool, reportCount int) []string {
	priority := fmt.Sprintf("Priority %s.", strings.ToUpper(orDash(string(ticket.Priority))))

	var escalation string
	switch {
	case escalated:
		escalation = "Escalated to Pusat; central authority may act in the thread."
	case status.Terminal():
		escalation = fmt.Sprintf("Closed as %s without escalation.", status)
	default:
		escalation = "Not escalated; Dinas Daerah remains the primary handler."
	}

	reports := "No student reports attached."
	switch {
	case reportCount == 1:
		reports = "1 student report attached."
	case reportCount > 1:
		reports = fmt.Sprintf("%d student reports attached.", reportCount)
	}

	return []string{priority, escalation, reports}
}

func pusatBranch(a *domain.Advisory, status domain.TicketStatus, ticket *domain.Ticket, escalated bool, partners string) {
	if !escalated {
		a.Guidance = "Monitor only. The district is handling this case and Pusat cannot post until it is escalated."
		a.NextSteps = []string{
			"Review the thread for recurring issues across schools.",
			"Wait for Dinas Daerah to escalate before intervening.",
		}
		a.DraftReply = ""
		a.StatusAdvice = terminalOr(status, "Leave the status to Dinas Daerah.")
		return
	}
	a.Guidance = "The case is escalated. Pusat holds authority to direct partners and decide the outcome."
	a.NextSteps = []string{
		"Confirm the findings reported by Dinas Daerah.",
		fmt.Sprintf("Instruct partners (%s) on corrective action.", partners),
		"Resolve the ticket once corrective action is verified, or reject it with a note.",
	}
	a.DraftReply = fmt.Sprintf(
		"Pusat has received the escalation for \"%s\" at %s. We are coordinating with the district and partners (%s) and will follow up in this thread.",
		orDash(ticket.Title), orDash(ticket.SchoolName), partners)
	a.StatusAdvice = "Resolve after corrective action is confirmed; reject with a note if the report is unfounded."
}

func daerahBranch(a *domain.Advisory, status domain.TicketStatus, ticket *domain.Ticket, escalated bool, partners string, reportCount int) {
	if escalated {
		a.Guidance = "The case is with Pusat. Keep contributing field data and coordinate with the school."
		a.NextSteps = []string{
			"Share inspection results and partner responses in the thread.",
			"Keep the school informed of Pusat decisions.",
		}
		a.DraftReply = fmt.Sprintf(
			"Dinas Daerah has escalated \"%s\" to Pusat and continues to follow up with %s.",
			orDash(ticket.Title), orDash(ticket.SchoolName))
		a.StatusAdvice = "Resolve together with Pusat once the outcome is agreed."
		return
	}
	a.Guidance = "Dinas Daerah owns triage. Verify the report with the school and partners."
	a.NextSteps = []string{
		"Contact the school to confirm the details.",
		fmt.Sprintf("Request a response from partners (%s).", partners),
		"Escalate to Pusat if the issue cannot be settled at district level.",
	}
	a.DraftReply = fmt.Sprintf(
		"Thank you for the report on \"%s\". Dinas Daerah is reviewing it with the partners and will update this thread.",
		orDash(ticket.Title))

	switch {
	case status.Terminal():
		a.StatusAdvice = terminalOr(status, "")
	case ticket.Priority == domain.TicketPriorityHigh || reportCount >= 3:
		a.StatusAdvice = "Consider escalating: high priority or repeated student reports."
	default:
		a.StatusAdvice = "Keep the ticket open at district level while verification is ongoing."
	}
}

func sekolahBranch(a *domain.Advisory, status domain.TicketStatus, ticket *domain.Ticket, escalated bool) {
	a.Guidance = "Provide evidence: photos, meal times, affected students and any partner communication."
	a.NextSteps = []string{
		"Attach documentation to the thread.",
		"Collect student reports related to this incident.",
		"Answer follow-up questions from the district.",
	}
	if escalated {
		a.NextSteps = append(a.NextSteps, "Respond to Pusat requests for additional evidence.")
	}
	a.DraftReply = fmt.Sprintf(
		"%s has documented the incident \"%s\" and will provide further evidence on request.",
		orDash(ticket.SchoolName), orDash(ticket.Title))
	a.StatusAdvice = terminalOr(status, "Schools cannot change status; evidence supports the district review.")
}

func defaultBranch(a *domain.Advisory, status domain.TicketStatus) {
	a.Guidance = "Follow the thread for updates. Status decisions are made by district and central administrators."
	a.NextSteps = []string{"Check the ticket for new comments."}
	a.DraftReply = ""
	a.StatusAdvice = terminalOr(status, "No status action available for this role.")
}

func terminalOr(status domain.TicketStatus, fallback string) string {
	if status.Terminal() {
		return fmt.Sprintf("No further transitions: the ticket is %s.", status)
	}
	return fallback
}

func partnerList(partners []string) string {
	names := make([]string, 0, len(partners))
	for _, p := range partners {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
