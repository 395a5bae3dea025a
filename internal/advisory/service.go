package advisory

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
	"golang.org/x/sync/singleflight"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/observability"
	"github.com/AhmadRadith/jycc-sub001/internal/repository"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// ErrNotConfigured is reported when no generator is wired.
var ErrNotConfigured = errors.New("advisory generator not configured")

// AnalysisStore persists generated advisories on their ticket.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, id string, analysis domain.AIAnalysis) error
}

// Result is a generated advisory and whether it came from the ticket cache.
type Result struct {
	Analysis domain.AIAnalysis
	Cached   bool
}

// Service runs the generated advisory path. It does not check access; the
// caller passes a ticket it has already authorized.
type Service struct {
	store     AnalysisStore
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	group     singleflight.Group
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records cache hits and generation outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the service. generator may be nil, in which case every
// uncached request fails with ADVISORY_GENERATION_FAILED.
func NewService(store AnalysisStore, generator Generator, timeout time.Duration, logger *zap.Logger, opts ...Option) *Service {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := &Service{
		store:     store,
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		tracer:    otel.Tracer("jycc/advisory"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deterministic returns the rule-based advisory for viewer.
func (s *Service) Deterministic(viewer domain.Identity, ticket *domain.Ticket) domain.Advisory {
	return Derive(viewer.Role, ticket.Status, ticket, ticket.StudentReports)
}

// Generate returns the cached analysis unless forceRefresh is set or none is
// cached; otherwise it calls the generator, validates the output and replaces
// the cache. Concurrent calls for one ticket share a single generation.
func (s *Service) Generate(ctx context.Context, viewer domain.Identity, ticket *domain.Ticket, forceRefresh bool) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "advisory.generate",
		trace.WithAttributes(
			attribute.String("ticket.id", ticket.ID),
			attribute.String("viewer.role", viewer.Role.String()),
			attribute.Bool("advisory.force_refresh", forceRefresh),
		),
	)
	defer span.End()

	if !forceRefresh && ticket.AIAnalysis != nil && strings.TrimSpace(ticket.AIAnalysis.Summary) != "" {
		span.SetAttributes(attribute.Bool("advisory.cached", true))
		s.metrics.RecordAdvisory("cache_hit")
		return Result{Analysis: ticket.AIAnalysis.Clone(), Cached: true}, nil
	}

	v, err, shared := s.group.Do(ticket.ID, func() (interface{}, error) {
		return s.generate(ctx, viewer.Role, ticket)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordAdvisory("failed")
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("advisory.shared", shared))
	s.metrics.RecordAdvisory("generated")
	analysis := v.(domain.AIAnalysis)
	return Result{Analysis: analysis.Clone()}, nil
}

func (s *Service) generate(ctx context.Context, role domain.Role, ticket *domain.Ticket) (domain.AIAnalysis, error) {
	if s.generator == nil {
		return domain.AIAnalysis{}, apperrors.NewAdvisoryGenerationFailed(ErrNotConfigured)
	}

	// Shared by every caller of the flight, so one caller going away does not
	// cancel the others.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	raw, err := s.generator.Generate(callCtx, BuildPrompt(role, ticket))
	if err != nil {
		s.logger.Warn("advisory generation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return domain.AIAnalysis{}, apperrors.NewAdvisoryGenerationFailed(err)
	}
	advice, err := ParseGenerated(raw)
	if err != nil {
		s.logger.Warn("advisory output rejected", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return domain.AIAnalysis{}, apperrors.NewAdvisoryGenerationFailed(err)
	}

	analysis := domain.AIAnalysis{Advisory: advice, Role: role, GeneratedAt: s.now().UTC()}
	if err := s.store.SaveAnalysis(callCtx, ticket.ID, analysis); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.AIAnalysis{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return domain.AIAnalysis{}, apperrors.NewPersistenceFailed(err)
	}
	return analysis, nil
}
