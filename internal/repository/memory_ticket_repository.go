package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

// memoryTicketRepository keeps tickets in process. Every write happens under
// one lock, which gives the same atomic push and compare-and-set guarantees
// as the Postgres statements.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	now     func() time.Time
}

// NewMemoryTicketRepository builds an empty in-memory store.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		now:     time.Now,
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) AppendComment(_ context.Context, id string, comment domain.Comment) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket.Comments = append(ticket.Comments, comment)
	ticket.UpdatedAt = r.now().UTC()
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) AppendStudentReport(_ context.Context, id string, report domain.StudentReport) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket.StudentReports = append(ticket.StudentReports, report)
	ticket.UpdatedAt = r.now().UTC()
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) Apply(_ context.Context, id string, mutation TicketMutation) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, expected := range mutation.expectations() {
		if stored.Status != expected {
			return nil, ErrStatusConflict
		}
	}

	// Build the next version aside so the stored ticket is replaced whole.
	next := stored.Clone()
	if mutation.Priority != nil {
		next.Priority = *mutation.Priority
	}
	if mutation.Category != nil {
		next.Category = *mutation.Category
	}
	if mutation.AssignedMitra != nil {
		next.AssignedMitra = append([]string{}, mutation.AssignedMitra...)
	}
	next.Comments = append(next.Comments, mutation.appended()...)
	if tr := mutation.Transition; tr != nil {
		next.Status = tr.To()
	}
	next.UpdatedAt = r.now().UTC()
	r.tickets[id] = next
	return next.Clone(), nil
}

func (r *memoryTicketRepository) SaveAnalysis(_ context.Context, id string, analysis domain.AIAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return ErrNotFound
	}
	cached := analysis.Clone()
	ticket.AIAnalysis = &cached
	ticket.UpdatedAt = r.now().UTC()
	return nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	matched := make([]*domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, ticket.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	result := make([]domain.Ticket, 0, end-offset)
	for _, ticket := range matched[offset:end] {
		result = append(result, *ticket)
	}
	return result, nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if filter.ReporterID != nil && ticket.ReporterID != *filter.ReporterID {
		return false
	}
	if scope := filter.School; scope != nil {
		if !scope.Matches(ticket.SchoolID, ticket.SchoolName) {
			return false
		}
	}
	if filter.ExcludeCategory != nil && ticket.Category == *filter.ExcludeCategory {
		return false
	}
	if len(filter.MitraNames) > 0 && !mitraMatches(ticket.AssignedMitra, filter.MitraNames) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsValue(filter.Statuses, ticket.Status) {
		return false
	}
	if filter.Category != nil && ticket.Category != *filter.Category {
		return false
	}
	if len(filter.Priorities) > 0 && !containsValue(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" {
			haystack := strings.ToLower(strings.Join([]string{
				ticket.Title, ticket.Description, ticket.SchoolName, ticket.Category,
			}, "\n"))
			if !strings.Contains(haystack, term) {
				return false
			}
		}
	}
	return true
}

func mitraMatches(assigned, names []string) bool {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for _, partner := range assigned {
			if strings.Contains(strings.ToLower(partner), name) {
				return true
			}
		}
	}
	return false
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
