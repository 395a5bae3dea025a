package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
	"github.com/AhmadRadith/jycc-sub001/internal/persistence"
)

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%nasi%", containsPattern("  NASI "))
	assert.Equal(t, `%50\%%`, containsPattern("50%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\x%`, containsPattern(`C:\x`))
}

func TestSchoolClause(t *testing.T) {
	var args []any
	clause := schoolClause(SchoolScope{ID: "school-a", Name: " SMAN 5 "}, &args)
	assert.Equal(t, "(school_id=$2 OR (school_id='' AND LOWER(BTRIM(school_name))=$1))", clause)
	assert.Equal(t, []any{"sman 5", "school-a"}, args)

	args = nil
	assert.Equal(t, "LOWER(BTRIM(school_name))=$1", schoolClause(SchoolScope{Name: "SMAN 5"}, &args))

	args = nil
	assert.Equal(t, "FALSE", schoolClause(SchoolScope{}, &args))
	assert.Empty(t, args)
}

// pgStore connects to POSTGRES_TEST_DSN, applies the migrations and removes
// the tickets the test created when it ends.
type pgStore struct {
	TicketRepository
	t       *testing.T
	mu      sync.Mutex
	created []string
}

func newPGStore(t *testing.T) *pgStore {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))

	store := &pgStore{TicketRepository: NewTicketRepository(pool), t: t}
	t.Cleanup(func() {
		store.mu.Lock()
		ids := store.created
		store.mu.Unlock()
		if len(ids) > 0 {
			_, err := pool.Exec(context.Background(), `DELETE FROM tickets WHERE id::text = ANY($1)`, ids)
			assert.NoError(t, err)
		}
		pool.Close()
	})
	return store
}

func (s *pgStore) seed(ticket domain.Ticket) *domain.Ticket {
	s.t.Helper()
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusPending
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.ReporterID == "" {
		ticket.ReporterID = "s-1"
		ticket.ReporterRole = domain.RoleSekolah
	}
	require.NoError(s.t, s.Create(context.Background(), &ticket))
	s.mu.Lock()
	s.created = append(s.created, ticket.ID)
	s.mu.Unlock()
	return &ticket
}

func TestTicketRepository_ConcurrentAppendsKeepEveryComment(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()
	ticket := store.seed(domain.Ticket{Title: "Nasi basi", SchoolName: "SMAN 5"})

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AppendComment(ctx, ticket.ID, domain.Comment{
				ID:      uuid.NewString(),
				Role:    domain.RoleDaerah,
				Message: fmt.Sprintf("catatan %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, writers)
}

func TestTicketRepository_RacingTransitionsHaveOneWinner(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()
	ticket := store.seed(domain.Ticket{Title: "Alergi", SchoolName: "SMAN 5"})

	engine := lifecycle.NewEngine()
	daerah := domain.Identity{ID: "d-1", Role: domain.RoleDaerah}
	var planned []lifecycle.Transition
	for _, kind := range []lifecycle.Kind{lifecycle.KindResolve, lifecycle.KindReject} {
		tr, err := engine.Plan(ticket, lifecycle.Request{Kind: kind, Actor: daerah})
		require.NoError(t, err)
		planned = append(planned, tr)
	}

	results := make([]error, len(planned))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range planned {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = store.Apply(ctx, ticket.ID, TicketMutation{Transition: &planned[i]})
		}(i)
	}
	close(start)
	wg.Wait()

	conflicts := 0
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, ErrStatusConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
	assert.Len(t, got.Comments, 1, "only the winning transition narrates")
}

func TestTicketRepository_ApplyGuards(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()
	ticket := store.seed(domain.Ticket{Title: "Porsi", SchoolName: "SMAN 5", Status: domain.TicketStatusEscalated})

	low := domain.TicketPriorityLow
	stale := domain.TicketStatusPending
	_, err := store.Apply(ctx, ticket.ID, TicketMutation{Priority: &low, ExpectedStatus: &stale})
	assert.ErrorIs(t, err, ErrStatusConflict)

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, got.Priority)

	_, err = store.Apply(ctx, uuid.NewString(), TicketMutation{Priority: &low, ExpectedStatus: &stale})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Apply(ctx, "not-a-uuid", TicketMutation{Priority: &low})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepository_ListFilters(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	// A unique marker keeps the assertions independent of other rows.
	marker := uuid.NewString()[:8]
	own := store.seed(domain.Ticket{Title: "Diskon 50% " + marker, SchoolID: "school-a", SchoolName: "SMAN 5", AssignedMitra: []string{"CV Dapur_Sehat"}})
	other := store.seed(domain.Ticket{Title: "Diskon 505 " + marker, SchoolID: "school-b", SchoolName: "sman 5", AssignedMitra: []string{"CV DapurXSehat"}})
	legacy := store.seed(domain.Ticket{Title: "Lama " + marker, SchoolName: " SMAN 5 "})

	ids := func(filter TicketFilter) []string {
		t.Helper()
		filter.SearchTerm = &marker
		filter.Limit = 50
		tickets, err := store.List(ctx, filter)
		require.NoError(t, err)
		out := make([]string, 0, len(tickets))
		for _, ticket := range tickets {
			out = append(out, ticket.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{own.ID, legacy.ID}, ids(TicketFilter{School: &SchoolScope{ID: "school-a", Name: "SMAN 5"}}))
	assert.ElementsMatch(t, []string{own.ID, other.ID, legacy.ID}, ids(TicketFilter{School: &SchoolScope{Name: "SMAN 5"}}))

	assert.Equal(t, []string{own.ID}, ids(TicketFilter{MitraNames: []string{"dapur_sehat"}}))

	percent := "50% " + marker
	tickets, err := store.List(ctx, TicketFilter{SearchTerm: &percent})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, own.ID, tickets[0].ID)
}
