package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/advisory"
	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/events"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
	"github.com/AhmadRadith/jycc-sub001/internal/policy"
	"github.com/AhmadRadith/jycc-sub001/internal/repository"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// DefaultCategory is used when a reporter leaves the category empty.
const DefaultCategory = "Umum"

const (
	maxTitleLength   = 200
	maxCommentLength = 4000
)

// TicketLimits bounds ticket intake and listing.
type TicketLimits struct {
	MaxAttachmentBytes int64
	DefaultPageSize    int
}

// TicketService coordinates ticket workflows: every operation resolves
// access, plans status changes through the lifecycle engine and persists the
// result in one store call.
type TicketService struct {
	tickets    repository.TicketRepository
	engine     *lifecycle.Engine
	advisory   *advisory.Service
	dispatcher events.Dispatcher
	logger     *zap.Logger
	tracer     trace.Tracer
	limits     TicketLimits
	now        func() time.Time
	newID      func() string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Engine     *lifecycle.Engine
	Advisory   *advisory.Service
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Limits     TicketLimits
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload. Status may only be
// empty or pending.
type TicketCreateInput struct {
	Title         string
	Description   string
	Category      string
	Priority      string
	Status        string
	SchoolID      string
	SchoolName    string
	District      string
	AssignedMitra []string
	Attachments   []domain.Attachment
}

// TicketListFilter holds the optional caller filters. They are applied after
// the role scope and can only narrow it.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Category   *string
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketPatchInput is an administrative field patch. A nil field is left
// unchanged. Status is planned through the lifecycle engine.
type TicketPatchInput struct {
	Priority      *string
	Category      *string
	AssignedMitra []string
	Status        *string
	Note          string
}

// StudentReportInput describes a student report attached to a ticket.
type StudentReportInput struct {
	StudentName string
	Summary     string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	engine := deps.Engine
	if engine == nil {
		engine = lifecycle.NewEngine()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits := deps.Limits
	if limits.MaxAttachmentBytes <= 0 {
		limits.MaxAttachmentBytes = 5 << 20
	}
	if limits.DefaultPageSize <= 0 {
		limits.DefaultPageSize = 20
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		engine:     engine,
		advisory:   deps.Advisory,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		tracer:     otel.Tracer("jycc/lifecycle"),
		limits:     limits,
		now:        now,
		newID:      lifecycle.NewCommentID,
	}
}

// ListTickets returns the tickets visible to viewer, newest first.
func (s *TicketService) ListTickets(ctx context.Context, viewer domain.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	query := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Category:   filter.Category,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if query.Limit <= 0 {
		query.Limit = s.limits.DefaultPageSize
	}

	switch viewer.Role {
	case domain.RoleSekolah:
		if strings.TrimSpace(viewer.SchoolID) == "" && strings.TrimSpace(viewer.SchoolName) == "" {
			return []domain.Ticket{}, nil
		}
		excluded := domain.CategoryStudentReport
		query.School = &repository.SchoolScope{ID: viewer.SchoolID, Name: viewer.SchoolName}
		query.ExcludeCategory = &excluded
	case domain.RoleMurid:
		reporter := viewer.ID
		query.ReporterID = &reporter
	case domain.RoleMitra:
		names := nonEmpty(viewer.Username, viewer.Name)
		if len(names) == 0 {
			return []domain.Ticket{}, nil
		}
		query.MitraNames = names
	case domain.RolePusat:
		query.Statuses = intersectStatuses(pusatStatuses, filter.Statuses)
		if len(query.Statuses) == 0 {
			return []domain.Ticket{}, nil
		}
	case domain.RoleDaerah:
	default:
		return nil, apperrors.NewAccessDenied("role may not list tickets")
	}

	tickets, err := s.tickets.List(ctx, query)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return tickets, nil
}

var pusatStatuses = []domain.TicketStatus{
	domain.TicketStatusEscalated,
	domain.TicketStatusResolved,
	domain.TicketStatusRejected,
}

// GetTicket loads one ticket behind the view guard.
func (s *TicketService) GetTicket(ctx context.Context, viewer domain.Identity, id string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(viewer, ticket) {
		return nil, apperrors.NewAccessDenied("ticket belongs to another school")
	}
	return ticket, nil
}

// CreateTicket files a new ticket in status pending.
func (s *TicketService) CreateTicket(ctx context.Context, reporter domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	if !reporter.Role.IsReporter() {
		return nil, apperrors.NewAccessDenied("only murid and sekolah may file tickets")
	}

	ticket, err := s.newTicket(reporter, input)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, reporter, events.TicketCreatedPayload{
		Title:      ticket.Title,
		Category:   ticket.Category,
		Priority:   ticket.Priority,
		SchoolName: ticket.SchoolName,
	}))
	return ticket, nil
}

func (s *TicketService) newTicket(reporter domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewInvalidInput("title is required", map[string]any{"field": "title"})
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, apperrors.NewInvalidInput("title too long", map[string]any{"field": "title", "max": maxTitleLength})
	}

	if status := strings.TrimSpace(input.Status); status != "" {
		parsed, err := domain.ParseTicketStatus(status)
		if err != nil {
			return nil, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "status"})
		}
		if parsed != domain.TicketStatusPending {
			return nil, apperrors.NewInvalidInput("new tickets start as pending", map[string]any{"field": "status"})
		}
	}

	priority := domain.TicketPriorityMedium
	if raw := strings.TrimSpace(input.Priority); raw != "" {
		parsed, err := domain.ParseTicketPriority(raw)
		if err != nil {
			return nil, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "priority"})
		}
		priority = parsed
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = DefaultCategory
	}

	// Schools always file for themselves; students fall back to the payload.
	schoolID, schoolName, district := reporter.SchoolID, strings.TrimSpace(reporter.SchoolName), reporter.District
	if reporter.Role == domain.RoleMurid {
		if schoolName == "" {
			schoolID, schoolName = strings.TrimSpace(input.SchoolID), strings.TrimSpace(input.SchoolName)
		}
		if district == "" {
			district = strings.TrimSpace(input.District)
		}
	}
	if schoolName == "" {
		return nil, apperrors.NewInvalidInput("schoolName is required", map[string]any{"field": "schoolName"})
	}

	attachments, err := s.validateAttachments(input.Attachments)
	if err != nil {
		return nil, err
	}

	return &domain.Ticket{
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Category:       category,
		Status:         domain.TicketStatusPending,
		Priority:       priority,
		ReporterID:     reporter.ID,
		ReporterRole:   reporter.Role,
		SchoolID:       schoolID,
		SchoolName:     schoolName,
		District:       district,
		AssignedMitra:  nonEmpty(input.AssignedMitra...),
		Attachments:    attachments,
		Comments:       []domain.Comment{},
		StudentReports: []domain.StudentReport{},
	}, nil
}

func (s *TicketService) validateAttachments(in []domain.Attachment) ([]domain.Attachment, error) {
	out := make([]domain.Attachment, 0, len(in))
	for i, a := range in {
		a.Name = strings.TrimSpace(a.Name)
		a.URL = strings.TrimSpace(a.URL)
		if a.Name == "" || a.URL == "" {
			return nil, apperrors.NewInvalidInput("attachment name and url are required", map[string]any{"index": i})
		}
		if a.SizeBytes < 0 || a.SizeBytes > s.limits.MaxAttachmentBytes {
			return nil, apperrors.NewInvalidInput("attachment too large", map[string]any{
				"index": i, "sizeBytes": a.SizeBytes, "maxBytes": s.limits.MaxAttachmentBytes,
			})
		}
		out = append(out, a)
	}
	return out, nil
}

// AddComment appends one comment authored by viewer. The append is a single
// atomic push in the store, so concurrent replies are never lost.
func (s *TicketService) AddComment(ctx context.Context, viewer domain.Identity, id, message string) (*domain.Ticket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewInvalidInput("message is required", map[string]any{"field": "message"})
	}
	if len([]rune(message)) > maxCommentLength {
		return nil, apperrors.NewInvalidInput("message too long", map[string]any{"field": "message", "max": maxCommentLength})
	}

	ticket, err := s.GetTicket(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanContribute(viewer.Role, ticket) {
		return nil, apperrors.NewAccessDenied("role may not post to this ticket")
	}

	comment := domain.Comment{
		ID:      s.newID(),
		Author:  viewer.DisplayName(),
		Role:    viewer.Role,
		Message: message,
		Time:    s.now().UTC(),
	}
	updated, err := s.tickets.AppendComment(ctx, ticket.ID, comment)
	if err != nil {
		return nil, storeError(err, ticket.ID)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCommentAdded, ticket.ID, viewer, events.TicketCommentAddedPayload{
		CommentID:   comment.ID,
		AuthorRole:  comment.Role,
		BodyPreview: events.Preview(comment.Message),
	}))
	return updated, nil
}

// Escalate hands the ticket to pusat.
func (s *TicketService) Escalate(ctx context.Context, viewer domain.Identity, id string) (*domain.Ticket, error) {
	return s.Transition(ctx, viewer, id, lifecycle.KindEscalate, "")
}

// Transition applies one lifecycle transition and its system comment atomically.
func (s *TicketService) Transition(ctx context.Context, viewer domain.Identity, id string, kind lifecycle.Kind, note string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.transition", trace.WithAttributes(
		attribute.String("ticket.id", id),
		attribute.String("transition.kind", string(kind)),
		attribute.String("actor.role", viewer.Role.String()),
	))
	defer span.End()

	ticket, err := s.GetTicket(ctx, viewer, id)
	if err != nil {
		return nil, spanError(span, err)
	}
	tr, err := s.engine.Plan(ticket, lifecycle.Request{Kind: kind, Actor: viewer, Note: strings.TrimSpace(note)})
	if err != nil {
		return nil, spanError(span, err)
	}

	updated, err := s.apply(ctx, ticket.ID, repository.TicketMutation{Transition: &tr})
	if err != nil {
		return nil, spanError(span, err)
	}
	s.publishTransition(ctx, viewer, updated.ID, tr)
	return updated, nil
}

// PatchTicket updates administrative fields. A status in the patch is turned
// into a lifecycle request and written in the same mutation.
func (s *TicketService) PatchTicket(ctx context.Context, viewer domain.Identity, id string, input TicketPatchInput) (*domain.Ticket, error) {
	if viewer.Role != domain.RoleDaerah && viewer.Role != domain.RolePusat {
		return nil, apperrors.NewAccessDenied("only daerah and pusat may update tickets")
	}

	ticket, err := s.GetTicket(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanContribute(viewer.Role, ticket) {
		return nil, apperrors.NewAccessDenied("pusat may update escalated tickets only")
	}

	var mutation repository.TicketMutation
	var patched events.TicketPatchedPayload

	if input.Priority != nil {
		priority, err := domain.ParseTicketPriority(*input.Priority)
		if err != nil {
			return nil, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "priority"})
		}
		mutation.Priority = &priority
		patched.Priority = &priority
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, apperrors.NewInvalidInput("category cannot be empty", map[string]any{"field": "category"})
		}
		mutation.Category = &category
		patched.Category = &category
	}
	if input.AssignedMitra != nil {
		mutation.AssignedMitra = nonEmpty(input.AssignedMitra...)
		patched.AssignedMitra = mutation.AssignedMitra
	}

	var tr lifecycle.Transition
	if input.Status != nil {
		target, err := domain.ParseTicketStatus(*input.Status)
		if err != nil {
			return nil, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "status"})
		}
		if target != ticket.Status {
			kind, err := lifecycle.KindForStatus(target)
			if err != nil {
				return nil, err
			}
			tr, err = s.engine.Plan(ticket, lifecycle.Request{Kind: kind, Actor: viewer, Note: strings.TrimSpace(input.Note)})
			if err != nil {
				return nil, err
			}
			mutation.Transition = &tr
		}
	}

	if mutation.Empty() {
		return nil, apperrors.NewInvalidInput("nothing to update", nil)
	}
	// Pusat may only write while the ticket stays escalated.
	if viewer.Role == domain.RolePusat && mutation.Transition == nil {
		status := ticket.Status
		mutation.ExpectedStatus = &status
	}

	updated, err := s.apply(ctx, ticket.ID, mutation)
	if err != nil {
		return nil, err
	}

	if mutation.Priority != nil || mutation.Category != nil || mutation.AssignedMitra != nil {
		s.publishEvent(ctx, events.NewEvent(events.EventTicketPatched, updated.ID, viewer, patched))
	}
	if mutation.Transition != nil {
		s.publishTransition(ctx, viewer, updated.ID, tr)
	}
	return updated, nil
}

// AttachStudentReport appends a student report to the ticket.
func (s *TicketService) AttachStudentReport(ctx context.Context, viewer domain.Identity, id string, input StudentReportInput) (*domain.Ticket, error) {
	if !viewer.Role.IsReporter() {
		return nil, apperrors.NewAccessDenied("only murid and sekolah may attach student reports")
	}
	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		return nil, apperrors.NewInvalidInput("summary is required", map[string]any{"field": "summary"})
	}
	name := strings.TrimSpace(input.StudentName)
	if name == "" && viewer.Role == domain.RoleMurid {
		name = viewer.DisplayName()
	}
	if name == "" {
		return nil, apperrors.NewInvalidInput("studentName is required", map[string]any{"field": "studentName"})
	}

	ticket, err := s.GetTicket(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewInvalidTransition("ticket is closed", map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
	}

	report := domain.StudentReport{StudentName: name, Summary: summary, Time: s.now().UTC()}
	updated, err := s.tickets.AppendStudentReport(ctx, ticket.ID, report)
	if err != nil {
		return nil, storeError(err, ticket.ID)
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketStudentReportAdded, ticket.ID, viewer,
		events.TicketStudentReportAddedPayload{StudentName: name}))
	return updated, nil
}

// Advisory returns the deterministic advisory for viewer.
func (s *TicketService) Advisory(ctx context.Context, viewer domain.Identity, id string) (domain.Advisory, error) {
	ticket, err := s.GetTicket(ctx, viewer, id)
	if err != nil {
		return domain.Advisory{}, err
	}
	return advisory.Derive(viewer.Role, ticket.Status, ticket, ticket.StudentReports), nil
}

// GenerateAdvisory runs the generated advisory path, serving the cached
// analysis unless forceRefresh is set.
func (s *TicketService) GenerateAdvisory(ctx context.Context, viewer domain.Identity, id string, forceRefresh bool) (advisory.Result, error) {
	ticket, err := s.GetTicket(ctx, viewer, id)
	if err != nil {
		return advisory.Result{}, err
	}
	if s.advisory == nil {
		return advisory.Result{}, apperrors.NewAdvisoryGenerationFailed(advisory.ErrNotConfigured)
	}
	result, err := s.advisory.Generate(ctx, viewer, ticket, forceRefresh)
	if err != nil {
		return advisory.Result{}, err
	}
	if !result.Cached {
		s.publishEvent(ctx, events.NewEvent(events.EventTicketAdvisoryGenerated, ticket.ID, viewer,
			events.TicketAdvisoryGeneratedPayload{Role: result.Analysis.Role, GeneratedAt: result.Analysis.GeneratedAt}))
	}
	return result, nil
}

// apply writes a mutation and settles compare-and-set conflicts against the
// status that won.
func (s *TicketService) apply(ctx context.Context, id string, mutation repository.TicketMutation) (*domain.Ticket, error) {
	updated, err := s.tickets.Apply(ctx, id, mutation)
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, repository.ErrStatusConflict) && mutation.Transition != nil {
		current, loadErr := s.load(ctx, id)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, lifecycle.Conflict(current, *mutation.Transition)
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperrors.NewAccessDenied("ticket status changed; update no longer permitted")
	}
	return nil, storeError(err, id)
}

func (s *TicketService) load(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err, id)
	}
	return ticket, nil
}

func (s *TicketService) publishTransition(ctx context.Context, viewer domain.Identity, id string, tr lifecycle.Transition) {
	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, id, viewer, events.TicketStatusChangedPayload{
		OldStatus: tr.From(),
		NewStatus: tr.To(),
		Comment:   tr.Comment().Message,
	}))
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func storeError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return apperrors.NewPersistenceFailed(err)
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func intersectStatuses(scope, requested []domain.TicketStatus) []domain.TicketStatus {
	if len(requested) == 0 {
		return append([]domain.TicketStatus(nil), scope...)
	}
	out := make([]domain.TicketStatus, 0, len(scope))
	for _, s := range scope {
		for _, r := range requested {
			if s == r {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
