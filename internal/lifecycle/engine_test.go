package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newEngine() *lifecycle.Engine {
	return lifecycle.NewEngine(
		lifecycle.WithClock(func() time.Time { return fixedNow }),
		lifecycle.WithIDs(func() string { return "c-1" }),
	)
}

var daerah = domain.Identity{ID: "d-1", Username: "dinas", Role: domain.RoleDaerah}
var pusat = domain.Identity{ID: "p-1", Username: "pusat", Role: domain.RolePusat}

func TestPlan_EscalatePending(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusPending}

	tr, err := newEngine().Plan(ticket, lifecycle.Request{Kind: lifecycle.KindEscalate, Actor: daerah})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusPending, tr.From())
	assert.Equal(t, domain.TicketStatusEscalated, tr.To())
	assert.Equal(t, domain.Comment{
		ID:      "c-1",
		Author:  lifecycle.SystemAuthor,
		Role:    domain.RoleSystem,
		Message: lifecycle.EscalationMessage,
		Time:    fixedNow,
	}, tr.Comment())
	assert.Equal(t, domain.TicketStatusPending, ticket.Status, "planning must not mutate the ticket")
}

func TestPlan_EscalateOpenLegacyState(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusOpen}
	tr, err := newEngine().Plan(ticket, lifecycle.Request{Kind: lifecycle.KindEscalate, Actor: daerah})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, tr.To())
}

func TestPlan_EscalateTwiceRejected(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusEscalated}
	_, err := newEngine().Plan(ticket, lifecycle.Request{Kind: lifecycle.KindEscalate, Actor: daerah})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAlreadyEscalated))
}

func TestPlan_EscalateRequiresDaerah(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusPending}
	for _, actor := range []domain.Identity{pusat, {Role: domain.RoleSekolah}, {Role: domain.RoleMurid}} {
		_, err := newEngine().Plan(ticket, lifecycle.Request{Kind: lifecycle.KindEscalate, Actor: actor})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAccessDenied), actor.Role)
	}
}

func TestPlan_TerminalStatesStayTerminal(t *testing.T) {
	for _, status := range []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusRejected} {
		ticket := &domain.Ticket{ID: "t-1", Status: status}
		for _, kind := range []lifecycle.Kind{lifecycle.KindEscalate, lifecycle.KindResolve, lifecycle.KindReject} {
			_, err := newEngine().Plan(ticket, lifecycle.Request{Kind: kind, Actor: daerah})
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition), "%s from %s", kind, status)
		}
	}
}

func TestPlan_PusatResolvesOnlyEscalated(t *testing.T) {
	pending := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusPending}
	_, err := newEngine().Plan(pending, lifecycle.Request{Kind: lifecycle.KindResolve, Actor: pusat})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAccessDenied))

	escalated := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusEscalated}
	tr, err := newEngine().Plan(escalated, lifecycle.Request{Kind: lifecycle.KindResolve, Actor: pusat, Note: "menu replaced"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, tr.To())
	assert.Equal(t, "Ticket resolved by pusat. Note: menu replaced", tr.Comment().Message)
}

func TestPlan_DaerahRejects(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusPending}
	tr, err := newEngine().Plan(ticket, lifecycle.Request{Kind: lifecycle.KindReject, Actor: daerah})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRejected, tr.To())
}

func TestKindForStatus(t *testing.T) {
	kind, err := lifecycle.KindForStatus(domain.TicketStatusEscalated)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.KindEscalate, kind)

	_, err = lifecycle.KindForStatus(domain.TicketStatusPending)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
}

func TestConflict(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusPending}
	tr, err := newEngine().Plan(ticket, lifecycle.Request{Kind: lifecycle.KindEscalate, Actor: daerah})
	require.NoError(t, err)

	raced := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusEscalated}
	assert.True(t, apperrors.IsCode(lifecycle.Conflict(raced, tr), apperrors.CodeAlreadyEscalated))

	resolved := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusResolved}
	assert.True(t, apperrors.IsCode(lifecycle.Conflict(resolved, tr), apperrors.CodeInvalidTransition))
}
