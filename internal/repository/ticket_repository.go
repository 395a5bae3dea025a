package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
)

var (
	// ErrNotFound is returned for unknown or malformed ticket ids.
	ErrNotFound = errors.New("ticket not found")
	// ErrStatusConflict is returned when a transition's expected status no longer holds.
	ErrStatusConflict = errors.New("ticket status changed concurrently")
)

// SchoolScope restricts listings to one school. IDs decide when both the
// scope and the ticket carry one; otherwise the trimmed names are compared
// case-insensitively.
type SchoolScope struct {
	ID   string
	Name string
}

// Matches reports whether a ticket filed for schoolID/schoolName is in scope.
func (s SchoolScope) Matches(schoolID, schoolName string) bool {
	if s.ID != "" && schoolID != "" {
		return s.ID == schoolID
	}
	name := strings.TrimSpace(s.Name)
	return name != "" && strings.EqualFold(name, strings.TrimSpace(schoolName))
}

// TicketFilter captures listing parameters. Every set field narrows the result.
type TicketFilter struct {
	ReporterID      *string
	School          *SchoolScope
	ExcludeCategory *string
	MitraNames      []string
	Statuses        []domain.TicketStatus
	Category        *string
	Priorities      []domain.TicketPriority
	SearchTerm      *string
	Limit           int
	Offset          int
}

// TicketMutation is one atomic write against a ticket. Status can only
// change through Transition, which is checked against the stored status.
// ExpectedStatus guards writes whose permission depended on the status the
// caller read.
type TicketMutation struct {
	Priority       *domain.TicketPriority
	Category       *string
	AssignedMitra  []string
	Comments       []domain.Comment
	Transition     *lifecycle.Transition
	ExpectedStatus *domain.TicketStatus
}

// Empty reports whether the mutation changes nothing.
func (m TicketMutation) Empty() bool {
	return m.Priority == nil && m.Category == nil && m.AssignedMitra == nil &&
		len(m.Comments) == 0 && m.Transition == nil
}

func (m TicketMutation) guarded() bool {
	return m.Transition != nil || m.ExpectedStatus != nil
}

// expectations lists the statuses the stored ticket must hold.
func (m TicketMutation) expectations() []domain.TicketStatus {
	var statuses []domain.TicketStatus
	if m.Transition != nil {
		statuses = append(statuses, m.Transition.From())
	}
	if m.ExpectedStatus != nil {
		statuses = append(statuses, *m.ExpectedStatus)
	}
	return statuses
}

// appended returns the comments to push, caller comments before narration.
func (m TicketMutation) appended() []domain.Comment {
	comments := append([]domain.Comment(nil), m.Comments...)
	if m.Transition != nil {
		comments = append(comments, m.Transition.Comment())
	}
	return comments
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	AppendComment(ctx context.Context, id string, comment domain.Comment) (*domain.Ticket, error)
	AppendStudentReport(ctx context.Context, id string, report domain.StudentReport) (*domain.Ticket, error)
	Apply(ctx context.Context, id string, mutation TicketMutation) (*domain.Ticket, error)
	SaveAnalysis(ctx context.Context, id string, analysis domain.AIAnalysis) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, category, status, priority, reporter_id, reporter_role,
               school_id, school_name, district, assigned_mitra, attachments, comments,
               student_reports, ai_analysis, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	mitra, err := jsonArray(ticket.AssignedMitra)
	if err != nil {
		return err
	}
	attachments, err := jsonArray(ticket.Attachments)
	if err != nil {
		return err
	}
	comments, err := jsonArray(ticket.Comments)
	if err != nil {
		return err
	}
	reports, err := jsonArray(ticket.StudentReports)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO tickets (title, description, category, status, priority, reporter_id, reporter_role,
            school_id, school_name, district, assigned_mitra, attachments, comments, student_reports)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12::jsonb,$13::jsonb,$14::jsonb)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
		ticket.ReporterID,
		ticket.ReporterRole,
		ticket.SchoolID,
		ticket.SchoolName,
		ticket.District,
		mitra,
		attachments,
		comments,
		reports,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) AppendComment(ctx context.Context, id string, comment domain.Comment) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	payload, err := json.Marshal([]domain.Comment{comment})
	if err != nil {
		return nil, err
	}
	// Single-statement push; concurrent appends serialize on the row lock.
	query := `UPDATE tickets SET comments = comments || $2::jsonb, updated_at = NOW()
              WHERE id=$1 RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, payload)
}

func (r *ticketRepository) AppendStudentReport(ctx context.Context, id string, report domain.StudentReport) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	payload, err := json.Marshal([]domain.StudentReport{report})
	if err != nil {
		return nil, err
	}
	query := `UPDATE tickets SET student_reports = student_reports || $2::jsonb, updated_at = NOW()
              WHERE id=$1 RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, payload)
}

func (r *ticketRepository) Apply(ctx context.Context, id string, mutation TicketMutation) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	args := []any{id}
	sets := []string{"updated_at = NOW()"}
	where := []string{"id=$1"}

	if mutation.Priority != nil {
		args = append(args, *mutation.Priority)
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	if mutation.Category != nil {
		args = append(args, *mutation.Category)
		sets = append(sets, fmt.Sprintf("category=$%d", len(args)))
	}
	if mutation.AssignedMitra != nil {
		mitra, err := jsonArray(mutation.AssignedMitra)
		if err != nil {
			return nil, err
		}
		args = append(args, mitra)
		sets = append(sets, fmt.Sprintf("assigned_mitra=$%d::jsonb", len(args)))
	}
	if comments := mutation.appended(); len(comments) > 0 {
		payload, err := json.Marshal(comments)
		if err != nil {
			return nil, err
		}
		args = append(args, payload)
		sets = append(sets, fmt.Sprintf("comments = comments || $%d::jsonb", len(args)))
	}
	if tr := mutation.Transition; tr != nil {
		args = append(args, tr.To())
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	for _, expected := range mutation.expectations() {
		args = append(args, expected)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), strings.Join(where, " AND "), ticketColumns)
	ticket, err := r.fetchSingle(ctx, query, args...)
	if errors.Is(err, ErrNotFound) && mutation.guarded() {
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, ErrStatusConflict
		}
	}
	return ticket, err
}

func (r *ticketRepository) SaveAnalysis(ctx context.Context, id string, analysis domain.AIAnalysis) error {
	if !validID(id) {
		return ErrNotFound
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	const query = `UPDATE tickets SET ai_analysis=$2::jsonb, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, payload)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if scope := filter.School; scope != nil {
		clauses = append(clauses, schoolClause(*scope, &args))
	}
	if filter.ExcludeCategory != nil {
		args = append(args, *filter.ExcludeCategory)
		clauses = append(clauses, fmt.Sprintf("category<>$%d", len(args)))
	}
	if len(filter.MitraNames) > 0 {
		patterns := make([]string, 0, len(filter.MitraNames))
		for _, name := range filter.MitraNames {
			if name = strings.TrimSpace(name); name != "" {
				patterns = append(patterns, containsPattern(name))
			}
		}
		if len(patterns) == 0 {
			clauses = append(clauses, "FALSE")
		} else {
			// Patterns rely on backslash being the default LIKE escape.
			args = append(args, patterns)
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements_text(assigned_mitra) AS m(name) WHERE LOWER(m.name) LIKE ANY($%d::text[]))",
				len(args)))
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, containsPattern(*filter.SearchTerm))
		placeholder := fmt.Sprintf("$%d ESCAPE '\\'", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE %[1]s OR LOWER(description) LIKE %[1]s OR LOWER(school_name) LIKE %[1]s OR LOWER(category) LIKE %[1]s)",
			placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// schoolClause mirrors SchoolScope.Matches in SQL.
func schoolClause(scope SchoolScope, args *[]any) string {
	name := strings.ToLower(strings.TrimSpace(scope.Name))
	byName := "FALSE"
	if name != "" {
		*args = append(*args, name)
		byName = fmt.Sprintf("LOWER(BTRIM(school_name))=$%d", len(*args))
	}
	if scope.ID == "" {
		return byName
	}
	*args = append(*args, scope.ID)
	return fmt.Sprintf("(school_id=$%d OR (school_id='' AND %s))", len(*args), byName)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern lowercases term and escapes LIKE wildcards so it matches
// literally as a substring.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                                     domain.Ticket
		mitra, attachments, comments, reports, ai []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Status,
		&ticket.Priority,
		&ticket.ReporterID,
		&ticket.ReporterRole,
		&ticket.SchoolID,
		&ticket.SchoolName,
		&ticket.District,
		&mitra,
		&attachments,
		&comments,
		&reports,
		&ai,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, col := range []struct {
		raw    []byte
		target any
	}{
		{mitra, &ticket.AssignedMitra},
		{attachments, &ticket.Attachments},
		{comments, &ticket.Comments},
		{reports, &ticket.StudentReports},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.target); err != nil {
			return nil, fmt.Errorf("decode ticket %s: %w", ticket.ID, err)
		}
	}
	if len(ai) > 0 && string(ai) != "null" {
		var analysis domain.AIAnalysis
		if err := json.Unmarshal(ai, &analysis); err != nil {
			return nil, fmt.Errorf("decode ticket %s analysis: %w", ticket.ID, err)
		}
		ticket.AIAnalysis = &analysis
	}
	return &ticket, nil
}

func jsonArray[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
