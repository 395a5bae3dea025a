package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
	"github.com/AhmadRadith/jycc-sub001/internal/repository"
)

func seed(t *testing.T, repo repository.TicketRepository, ticket domain.Ticket) *domain.Ticket {
	t.Helper()
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusPending
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	require.NoError(t, repo.Create(context.Background(), &ticket))
	return &ticket
}

func TestMemoryTicketRepository_CreateAndGet(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	created := seed(t, repo, domain.Ticket{Title: "Keterlambatan", SchoolName: "SMAN 5", AssignedMitra: []string{"Dapur A"}})

	require.NotEmpty(t, created.ID)
	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keterlambatan", got.Title)

	// Mutating the returned copy must not leak into the store.
	got.AssignedMitra[0] = "changed"
	again, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dapur A"}, again.AssignedMitra)
}

func TestMemoryTicketRepository_UnknownID(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.AppendComment(context.Background(), "missing", domain.Comment{Message: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, repo.SaveAnalysis(context.Background(), "missing", domain.AIAnalysis{}), repository.ErrNotFound)
}

func TestMemoryTicketRepository_ConcurrentAppendsKeepEveryComment(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seed(t, repo, domain.Ticket{Title: "Menu basi", SchoolName: "SMAN 5"})

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.AppendComment(context.Background(), ticket.ID, domain.Comment{
				ID:      fmt.Sprintf("c-%d", i),
				Author:  "writer",
				Role:    domain.RoleDaerah,
				Message: "reply",
				Time:    time.Now(),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, writers)
}

func TestMemoryTicketRepository_ApplyTransitionIsCompareAndSet(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seed(t, repo, domain.Ticket{Title: "Porsi kurang", SchoolName: "SMAN 5"})

	engine := lifecycle.NewEngine()
	daerah := domain.Identity{ID: "d-1", Role: domain.RoleDaerah}
	tr, err := engine.Plan(ticket, lifecycle.Request{Kind: lifecycle.KindEscalate, Actor: daerah})
	require.NoError(t, err)

	updated, err := repo.Apply(context.Background(), ticket.ID, repository.TicketMutation{Transition: &tr})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, updated.Status)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, domain.RoleSystem, updated.Comments[0].Role)

	// The same planned transition no longer matches the stored status.
	_, err = repo.Apply(context.Background(), ticket.ID, repository.TicketMutation{Transition: &tr})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	after, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, after.Comments, 1, "a rejected write leaves the thread untouched")
}

func TestMemoryTicketRepository_ApplyFields(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seed(t, repo, domain.Ticket{Title: "Alergi", SchoolName: "SMAN 5"})

	high := domain.TicketPriorityHigh
	category := "Keamanan Pangan"
	updated, err := repo.Apply(context.Background(), ticket.ID, repository.TicketMutation{
		Priority:      &high,
		Category:      &category,
		AssignedMitra: []string{"Dapur Sehat"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Equal(t, "Keamanan Pangan", updated.Category)
	assert.Equal(t, []string{"Dapur Sehat"}, updated.AssignedMitra)
	assert.Equal(t, domain.TicketStatusPending, updated.Status)
}

func TestMemoryTicketRepository_ApplyExpectedStatus(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seed(t, repo, domain.Ticket{Title: "Porsi", SchoolName: "SMAN 5", Status: domain.TicketStatusEscalated})

	low := domain.TicketPriorityLow
	stale := domain.TicketStatusPending
	_, err := repo.Apply(context.Background(), ticket.ID, repository.TicketMutation{Priority: &low, ExpectedStatus: &stale})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	after, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, after.Priority)

	current := domain.TicketStatusEscalated
	updated, err := repo.Apply(context.Background(), ticket.ID, repository.TicketMutation{Priority: &low, ExpectedStatus: &current})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityLow, updated.Priority)
}

func TestSchoolScope_Matches(t *testing.T) {
	tests := []struct {
		name       string
		scope      repository.SchoolScope
		schoolID   string
		schoolName string
		want       bool
	}{
		{"same id", repository.SchoolScope{ID: "a", Name: "SMAN 5"}, "a", "SMAN 9", true},
		{"different id same name", repository.SchoolScope{ID: "a", Name: "SMAN 5"}, "b", "SMAN 5", false},
		{"ticket without id", repository.SchoolScope{ID: "a", Name: "SMAN 5"}, "", " sman 5 ", true},
		{"viewer without id", repository.SchoolScope{Name: "SMAN 5"}, "b", "SMAN 5", true},
		{"no name", repository.SchoolScope{ID: "a"}, "", "", false},
		{"empty scope", repository.SchoolScope{}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Matches(tt.schoolID, tt.schoolName))
		})
	}
}

func TestMemoryTicketRepository_ListFilters(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ctx := context.Background()

	seed(t, repo, domain.Ticket{Title: "Nasi dingin", SchoolName: "SMAN 5", Category: "Kualitas", ReporterID: "m-1", AssignedMitra: []string{"CV Dapur Sehat"}})
	seed(t, repo, domain.Ticket{Title: "Laporan murid", SchoolName: "SMAN 5", Category: domain.CategoryStudentReport, ReporterID: "m-2"})
	seed(t, repo, domain.Ticket{Title: "Telat datang", SchoolName: "SMAN 7", Category: "Distribusi", Status: domain.TicketStatusEscalated, Priority: domain.TicketPriorityHigh})

	excluded := domain.CategoryStudentReport
	schoolTickets, err := repo.List(ctx, repository.TicketFilter{
		School:          &repository.SchoolScope{Name: "sman 5"},
		ExcludeCategory: &excluded,
	})
	require.NoError(t, err)
	require.Len(t, schoolTickets, 1)
	assert.Equal(t, "Nasi dingin", schoolTickets[0].Title)

	reporter := "m-2"
	mine, err := repo.List(ctx, repository.TicketFilter{ReporterID: &reporter})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Laporan murid", mine[0].Title)

	partner, err := repo.List(ctx, repository.TicketFilter{MitraNames: []string{"dapur sehat"}})
	require.NoError(t, err)
	require.Len(t, partner, 1)
	assert.Equal(t, "Nasi dingin", partner[0].Title)

	escalated, err := repo.List(ctx, repository.TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusEscalated}})
	require.NoError(t, err)
	require.Len(t, escalated, 1)
	assert.Equal(t, "SMAN 7", escalated[0].SchoolName)

	term := "distribusi"
	searched, err := repo.List(ctx, repository.TicketFilter{SearchTerm: &term})
	require.NoError(t, err)
	require.Len(t, searched, 1)

	paged, err := repo.List(ctx, repository.TicketFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestMemoryAccountRepository(t *testing.T) {
	repo := repository.NewMemoryAccountRepository()
	ctx := context.Background()

	account := &domain.Account{Username: "Dinas.Kota", Role: domain.RoleDaerah}
	require.NoError(t, repo.Create(ctx, account))
	assert.ErrorIs(t, repo.Create(ctx, &domain.Account{Username: "dinas.kota"}), repository.ErrAccountExists)

	got, err := repo.GetByUsername(ctx, "DINAS.KOTA")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}
