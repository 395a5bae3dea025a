package advisory

import (
	"fmt"
	"strings"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

// BuildPrompt renders the generation request for one role and ticket. The
// deterministic advisory is included as a baseline the model should refine.
func BuildPrompt(role domain.Role, ticket *domain.Ticket) string {
	baseline := Derive(role, ticket.Status, ticket, ticket.StudentReports)

	var b strings.Builder
	b.WriteString("You advise participants of a school meal program reporting workflow.\n")
	fmt.Fprintf(&b, "Reader role: %s.\n", role)
	b.WriteString("Roles: pusat (central authority, may act only on escalated tickets), daerah (district triage), ")
	b.WriteString("sekolah (school, provides evidence), murid (student reporter), mitra (catering partner).\n\n")

	b.WriteString("Ticket\n")
	fmt.Fprintf(&b, "- Title: %s\n", ticket.Title)
	fmt.Fprintf(&b, "- Category: %s\n", orDash(ticket.Category))
	fmt.Fprintf(&b, "- Status: %s\n", ticket.Status)
	fmt.Fprintf(&b, "- Priority: %s\n", ticket.Priority)
	fmt.Fprintf(&b, "- School: %s (%s)\n", orDash(ticket.SchoolName), orDash(ticket.District))
	fmt.Fprintf(&b, "- Partners: %s\n", partnerList(ticket.AssignedMitra))
	fmt.Fprintf(&b, "- Description: %s\n", ticket.Description)

	if len(ticket.Comments) > 0 {
		b.WriteString("\nThread\n")
		for _, c := range ticket.Comments {
			fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", c.Time.UTC().Format("2006-01-02 15:04"), c.Author, c.Role, c.Message)
		}
	}
	if len(ticket.StudentReports) > 0 {
		b.WriteString("\nStudent reports\n")
		for _, r := range ticket.StudentReports {
			fmt.Fprintf(&b, "- %s: %s\n", r.StudentName, r.Summary)
		}
	}

	b.WriteString("\nBaseline advisory\n")
	fmt.Fprintf(&b, "- summary: %s\n", baseline.Summary)
	fmt.Fprintf(&b, "- guidance: %s\n", baseline.Guidance)
	fmt.Fprintf(&b, "- statusAdvice: %s\n", baseline.StatusAdvice)

	b.WriteString("\nRespond with a single JSON object and nothing else, with keys ")
	b.WriteString(`"summary" (string), "insights" (array of strings), "guidance" (string), `)
	b.WriteString(`"nextSteps" (array of strings), "draftReply" (string, empty when the role cannot post), `)
	b.WriteString(`"statusAdvice" (string).`)
	b.WriteString("\n")
	return b.String()
}
