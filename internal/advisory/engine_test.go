package advisory

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

func sampleTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:            "t-1",
		Title:         "Keterlambatan",
		Description:   "Makanan datang jam 11.",
		Category:      "Distribusi",
		Status:        domain.TicketStatusPending,
		Priority:      domain.TicketPriorityHigh,
		SchoolName:    "SMAN 5",
		AssignedMitra: []string{"CV Dapur Sehat", "Katering Nusantara"},
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	reports := []domain.StudentReport{{StudentName: "Budi", Summary: "Nasi dingin", Time: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)}}
	statuses := []domain.TicketStatus{
		domain.TicketStatusPending, domain.TicketStatusOpen, domain.TicketStatusEscalated,
		domain.TicketStatusResolved, domain.TicketStatusRejected,
	}
	for _, role := range append(append([]domain.Role{}, domain.ActorRoles...), domain.RoleSystem) {
		for _, status := range statuses {
			first := Derive(role, status, sampleTicket(), reports)
			second := Derive(role, status, sampleTicket(), reports)
			if diff := cmp.Diff(first, second); diff != "" {
				t.Fatalf("Derive(%s, %s) not deterministic (-first +second):\n%s", role, status, diff)
			}
			assert.Len(t, first.Insights, 3, "role=%s status=%s", role, status)
			assert.NotEmpty(t, first.Guidance)
			assert.NotEmpty(t, first.StatusAdvice)
		}
	}
}

func TestDeriveSummary(t *testing.T) {
	ticket := sampleTicket()

	pending := Derive(domain.RoleDaerah, domain.TicketStatusPending, ticket, nil)
	assert.Contains(t, pending.Summary, "PENDING")
	assert.Contains(t, pending.Summary, "SMAN 5")
	assert.Contains(t, pending.Summary, "handled at district level")
	assert.True(t, strings.HasSuffix(pending.Summary, "Partners: CV Dapur Sehat, Katering Nusantara."))

	ticket.AssignedMitra = nil
	escalated := Derive(domain.RoleDaerah, domain.TicketStatusEscalated, ticket, nil)
	assert.Contains(t, escalated.Summary, "ESCALATED")
	assert.Contains(t, escalated.Summary, "case escalated")
	assert.True(t, strings.HasSuffix(escalated.Summary, "Partners: -."))
}

func TestDeriveInsights(t *testing.T) {
	ticket := sampleTicket()

	none := Derive(domain.RoleSekolah, domain.TicketStatusPending, ticket, nil)
	assert.Equal(t, "Priority HIGH.", none.Insights[0])
	assert.Contains(t, none.Insights[1], "Not escalated")
	assert.Equal(t, "No student reports attached.", none.Insights[2])

	reports := []domain.StudentReport{{StudentName: "A"}, {StudentName: "B"}}
	two := Derive(domain.RoleSekolah, domain.TicketStatusEscalated, ticket, reports)
	assert.Contains(t, two.Insights[1], "Escalated to Pusat")
	assert.Equal(t, "2 student reports attached.", two.Insights[2])
}

func TestDeriveRoleBranches(t *testing.T) {
	ticket := sampleTicket()

	pusatMonitoring := Derive(domain.RolePusat, domain.TicketStatusPending, ticket, nil)
	assert.Empty(t, pusatMonitoring.DraftReply, "pusat cannot post before escalation")
	assert.Contains(t, pusatMonitoring.Guidance, "Monitor only")

	pusatActive := Derive(domain.RolePusat, domain.TicketStatusEscalated, ticket, nil)
	assert.NotEmpty(t, pusatActive.DraftReply)
	assert.Contains(t, pusatActive.DraftReply, "Keterlambatan")

	daerahOpen := Derive(domain.RoleDaerah, domain.TicketStatusPending, ticket, nil)
	assert.NotEmpty(t, daerahOpen.DraftReply)
	assert.Contains(t, daerahOpen.StatusAdvice, "escalating")

	daerahEscalated := Derive(domain.RoleDaerah, domain.TicketStatusEscalated, ticket, nil)
	assert.NotEmpty(t, daerahEscalated.DraftReply, "daerah keeps contribution rights")
	assert.NotEqual(t, daerahOpen.Guidance, daerahEscalated.Guidance)

	sekolah := Derive(domain.RoleSekolah, domain.TicketStatusPending, ticket, nil)
	assert.Contains(t, sekolah.Guidance, "evidence")
	assert.NotContains(t, strings.ToLower(sekolah.StatusAdvice), "escalat")

	mitra := Derive(domain.RoleMitra, domain.TicketStatusPending, ticket, nil)
	assert.Empty(t, mitra.DraftReply)

	resolved := Derive(domain.RoleDaerah, domain.TicketStatusResolved, ticket, nil)
	assert.Contains(t, resolved.StatusAdvice, "No further transitions")
}

func TestDeriveToleratesNilTicket(t *testing.T) {
	advice := Derive(domain.RoleMurid, domain.TicketStatusPending, nil, nil)
	require.Len(t, advice.Insights, 3)
	assert.Contains(t, advice.Summary, "Partners: -.")
}

func TestBuildPromptCarriesThread(t *testing.T) {
	ticket := sampleTicket()
	ticket.Comments = []domain.Comment{{Author: "Dinas", Role: domain.RoleDaerah, Message: "Sedang dicek", Time: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}}
	ticket.StudentReports = []domain.StudentReport{{StudentName: "Budi", Summary: "Nasi dingin"}}

	prompt := BuildPrompt(domain.RolePusat, ticket)
	assert.Contains(t, prompt, "Reader role: pusat.")
	assert.Contains(t, prompt, "Sedang dicek")
	assert.Contains(t, prompt, "Budi: Nasi dingin")
	assert.Contains(t, prompt, `"statusAdvice"`)
}
