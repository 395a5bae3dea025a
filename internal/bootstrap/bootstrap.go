// Package bootstrap assembles stores and services from configuration for the
// server and the admin CLI.
package bootstrap

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/advisory"
	"github.com/AhmadRadith/jycc-sub001/internal/config"
	"github.com/AhmadRadith/jycc-sub001/internal/events"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
	"github.com/AhmadRadith/jycc-sub001/internal/observability"
	"github.com/AhmadRadith/jycc-sub001/internal/persistence"
	"github.com/AhmadRadith/jycc-sub001/internal/repository"
	"github.com/AhmadRadith/jycc-sub001/internal/service"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// Stores are the ticket and account stores plus the pool behind them, if any.
type Stores struct {
	Postgres *persistence.Postgres
	Tickets  repository.TicketRepository
	Accounts repository.AccountRepository
}

// Close releases the pool.
func (s *Stores) Close() {
	s.Postgres.Close()
}

// OpenStores connects to Postgres when a DSN is configured and falls back to
// in-memory stores otherwise.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if !pg.Enabled() {
		return &Stores{
			Postgres: pg,
			Tickets:  repository.NewMemoryTicketRepository(),
			Accounts: repository.NewMemoryAccountRepository(),
		}, nil
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, err
		}
	}
	return &Stores{
		Postgres: pg,
		Tickets:  repository.NewTicketRepository(pg.PoolHandle()),
		Accounts: repository.NewAccountRepository(pg.PoolHandle()),
	}, nil
}

// NewAdvisoryService wires the generated advisory path. Without an API key
// the service has no generator and every uncached request fails cleanly.
func NewAdvisoryService(cfg *config.Config, store advisory.AnalysisStore, logger *zap.Logger, metrics *observability.Metrics) *advisory.Service {
	var generator advisory.Generator
	if cfg.Advisory.Enabled() {
		client := &http.Client{Timeout: cfg.Advisory.Timeout()}
		generator = advisory.NewGeminiGenerator(client, cfg.Advisory.Endpoint, cfg.Advisory.Model, cfg.Advisory.APIKey)
	} else {
		logger.Info("ADVISORY_API_KEY not set, generated advisories disabled")
	}
	return advisory.NewService(store, generator, cfg.Advisory.Timeout(), logger, advisory.WithMetrics(metrics))
}

// NewTicketService builds the collaboration surface over stores.
func NewTicketService(cfg *config.Config, stores *Stores, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *service.TicketService {
	return service.NewTicketService(service.TicketDependencies{
		TicketRepo: stores.Tickets,
		Engine:     lifecycle.NewEngine(),
		Advisory:   NewAdvisoryService(cfg, stores.Tickets, logger, metrics),
		Dispatcher: dispatcher,
		Logger:     logger,
		Limits: service.TicketLimits{
			MaxAttachmentBytes: cfg.Tickets.MaxAttachmentBytes,
			DefaultPageSize:    cfg.Tickets.DefaultPageSize,
		},
	})
}

// DemoAccounts are seeded into the in-memory store when a seed password is
// configured, one per actor role.
var DemoAccounts = []service.AccountInput{
	{Username: "pusat", Role: "pusat", Name: "BGN Pusat"},
	{Username: "dinas", Role: "daerah", Name: "Dinas Pendidikan", District: "Kota Bandung"},
	{Username: "sman5", Role: "sekolah", Name: "Admin SMAN 5", SchoolID: "sman-5", SchoolName: "SMAN 5", District: "Kota Bandung"},
	{Username: "budi", Role: "murid", Name: "Budi", SchoolID: "sman-5", SchoolName: "SMAN 5", District: "Kota Bandung"},
	{Username: "dapursehat", Role: "mitra", Name: "Dapur Sehat"},
}

// SeedDemoAccounts creates DemoAccounts with password. It only runs against
// the in-memory store and skips accounts that already exist.
func SeedDemoAccounts(ctx context.Context, stores *Stores, authService *service.AuthService, password string, logger *zap.Logger) error {
	if password == "" || stores.Postgres.Enabled() {
		return nil
	}
	for _, in := range DemoAccounts {
		in.Password = password
		if _, err := authService.CreateAccount(ctx, in); err != nil {
			if apperrors.IsCode(err, apperrors.CodeInvalidInput) {
				if _, lookupErr := authService.Account(ctx, in.Username); lookupErr == nil {
					continue
				}
			}
			return err
		}
		logger.Info("seeded demo account", zap.String("username", in.Username), zap.String("role", in.Role))
	}
	return nil
}
