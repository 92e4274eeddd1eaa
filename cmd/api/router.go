package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/pix-ledger/internal/auth"
	"github.com/josh-kwaku/pix-ledger/internal/command"
	"github.com/josh-kwaku/pix-ledger/internal/config"
	"github.com/josh-kwaku/pix-ledger/internal/gateway"
	"github.com/josh-kwaku/pix-ledger/internal/handler"
	"github.com/josh-kwaku/pix-ledger/internal/metrics"
	"github.com/josh-kwaku/pix-ledger/internal/middleware"
	"github.com/josh-kwaku/pix-ledger/internal/money"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
	"github.com/josh-kwaku/pix-ledger/internal/service/affiliate"
	"github.com/josh-kwaku/pix-ledger/internal/service/commission"
	"github.com/josh-kwaku/pix-ledger/internal/service/dashboard"
	"github.com/josh-kwaku/pix-ledger/internal/service/deposit"
	"github.com/josh-kwaku/pix-ledger/internal/service/ledger"
	"github.com/josh-kwaku/pix-ledger/internal/service/settlement"
	"github.com/josh-kwaku/pix-ledger/internal/service/withdrawal"
)

type application struct {
	db    *sql.DB
	redis *redis.Client

	users         *repository.UserRepository
	withdraws     *repository.WithdrawRepository
	outbox        *repository.OutboxRepository
	webhookEvents *repository.WebhookEventRepository
	idempotency   *repository.IdempotencyStore

	ledger      *ledger.Store
	deposits    *deposit.Orchestrator
	withdrawals *withdrawal.Processor
	settlement  *settlement.Processor
	affiliates  *affiliate.Service
	dashboard   *dashboard.Service
	commands    *command.Commands
}

func wire(cfg *config.Config, db *sql.DB, rdb *redis.Client, m *metrics.Metrics) *application {
	users := repository.NewUserRepository(db)
	ledgers := repository.NewLedgerRepository(db)
	deposits := repository.NewDepositRepository(db)
	withdraws := repository.NewWithdrawRepository(db)
	affiliates := repository.NewAffiliateRepository(db)
	commissions := repository.NewCommissionRepository(db)
	outbox := repository.NewOutboxRepository(db)

	gw := gateway.NewFlowpag(gateway.Config{
		BaseURL:           cfg.GatewayBaseURL,
		ClientID:          cfg.GatewayClientID,
		ClientSecret:      cfg.GatewayClientSecret,
		Timeout:           cfg.GatewayTimeout,
		DepositExpiration: cfg.DepositExpiration(),
	}, m)

	store := ledger.NewStore(ledgers, db, cfg.LedgerMaxRetries, m)
	orchestrator := deposit.NewOrchestrator(deposits, users, gw, m, cfg.MaxAmountCents)
	withdrawProc := withdrawal.NewProcessor(store, withdraws, users, gw, outbox, m, cfg.MaxAmountCents)
	accruer := commission.NewAccruer(users, commissions, m)
	affiliateSvc := affiliate.NewService(affiliates, cfg.AffiliateCommissionPercent, cfg.AffiliateBaseURL)

	return &application{
		db:            db,
		redis:         rdb,
		users:         users,
		withdraws:     withdraws,
		outbox:        outbox,
		webhookEvents: repository.NewWebhookEventRepository(db),
		idempotency:   repository.NewIdempotencyStore(rdb),
		ledger:        store,
		deposits:      orchestrator,
		withdrawals:   withdrawProc,
		settlement:    settlement.NewProcessor(store, deposits, accruer, withdrawProc, outbox, m),
		affiliates:    affiliateSvc,
		dashboard:     dashboard.NewService(affiliates, commissions, withdraws, affiliateSvc),
		commands:      command.New(orchestrator, withdrawProc, money.NewConverter(cfg.MaxAmountCents)),
	}
}

func newRouter(cfg *config.Config, app *application, m *metrics.Metrics, gatherer prometheus.Gatherer) http.Handler {
	health := handler.NewHealthHandler(app.db).
		WithCheck("redis", func(ctx context.Context) error { return app.redis.Ping(ctx).Err() })
	tokens := auth.NewSigner(cfg.JWTSecret, cfg.JWTExpiry)
	authn := handler.NewAuthHandler(app.users, app.affiliates, tokens)
	me := handler.NewMeHandler(app.users, app.ledger)
	deposits := handler.NewDepositHandler(app.commands, app.deposits)
	withdrawals := handler.NewWithdrawalHandler(app.commands, app.withdrawals)
	affiliates := handler.NewAffiliateHandler(app.affiliates, app.dashboard)
	admin := handler.NewAdminHandler(app.withdrawals)
	webhooks := handler.NewWebhookHandler(app.webhookEvents, cfg.WebhookSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler(gatherer))
	r.Post("/webhooks/flowpag", webhooks.ReceiveFlowpag)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authn.Register)
		r.Post("/auth/login", authn.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))
			r.Use(middleware.Idempotency(app.idempotency))

			r.Get("/me", me.Me)
			r.Get("/me/balance", me.Balance)
			r.Get("/me/movements", me.Movements)

			r.Post("/deposits", deposits.Create)
			r.Get("/deposits", deposits.List)
			r.Get("/deposits/{id}", deposits.Get)

			r.Post("/withdrawals", withdrawals.Create)
			r.Get("/withdrawals", withdrawals.List)
			r.Get("/withdrawals/{id}", withdrawals.Get)

			r.Post("/affiliates", affiliates.Register)
			r.Get("/affiliates/me", affiliates.Me)
			r.Get("/affiliates/me/dashboard", affiliates.Dashboard)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminToken(cfg.AdminToken))
			r.Post("/withdrawals/{id}/resolve", admin.ResolveWithdrawal)
		})
	})

	return r
}
