package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ussd_gateway/internal/config"
	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/metrics"
	"github.com/congo-pay/ussd_gateway/internal/middleware"
	"github.com/congo-pay/ussd_gateway/internal/notification"
	"github.com/congo-pay/ussd_gateway/internal/payments"
	"github.com/congo-pay/ussd_gateway/internal/pinguard"
	"github.com/congo-pay/ussd_gateway/internal/session"
	"github.com/congo-pay/ussd_gateway/internal/ussd"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// Setup configures middlewares and all application routes. It returns the
// session reaper bound to the store the routes use; the caller runs it.
func Setup(app *fiber.App, d Deps) (*session.Reaper, error) {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Cfg.SessionBackend == config.SessionBackendRedis && d.Cache == nil {
		return nil, fmt.Errorf("redis is required for SESSION_BACKEND=%s", d.Cfg.SessionBackend)
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	m := metrics.New(d.Registry)

	var (
		ledgerBackend ledger.Ledger
		identityRepo  identity.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory ledger and directory")
		ledgerBackend = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	var (
		sessions session.Store
		guard    pinguard.Guard
	)
	if d.Cfg.SessionBackend == config.SessionBackendRedis {
		sessions = session.NewRedisStore(d.Cache, d.Cfg.SessionIdle, nil)
	} else {
		sessions = session.NewMemoryStore(d.Cfg.SessionIdle, nil)
	}
	if d.Cache != nil {
		guard = pinguard.NewRedis(d.Cache, d.Cfg.PINMaxAttempts, d.Cfg.PINLockoutWindow)
	} else {
		guard = pinguard.NewMemory(d.Cfg.PINMaxAttempts, d.Cfg.PINLockoutWindow, nil)
	}

	identitySvc := identity.NewService(identityRepo, identity.PINHasher{Cost: d.Cfg.BcryptCost})
	walletSvc := wallet.NewService(ledgerBackend)
	paymentSvc := payments.NewService(payments.Dependencies{
		Ledger:    ledgerBackend,
		Directory: identitySvc,
		Vendors:   payments.StaticVendors(d.Cfg.AirtimeProviders),
		Biller:    payments.StaticBiller{},
		Notifier:  notification.NewLoggerNotifier(d.Logger),
		Metrics:   m,
		Logger:    d.Logger,
		Currency:  d.Cfg.Currency,
		Timeout:   d.Cfg.OperationTimeout,
	})

	engine := ussd.NewEngine(ussd.Dependencies{
		Sessions:   sessions,
		Identities: identitySvc,
		Wallets:    walletSvc,
		Payments:   paymentSvc,
		Guard:      guard,
		Metrics:    m,
		Logger:     d.Logger,
		Options: ussd.Options{
			AppName:      d.Cfg.AppName,
			Currency:     d.Cfg.Currency,
			SupportPhone: d.Cfg.SupportPhone,
			SupportEmail: d.Cfg.SupportEmail,
			AirtimeMin:   d.Cfg.AirtimeMin,
			AirtimeMax:   d.Cfg.AirtimeMax,
			TextMode:     ussd.TextMode(d.Cfg.RelayTextMode),
			Timeout:      d.Cfg.OperationTimeout,
		},
	})

	RegisterHealthRoutes(app, d, sessions)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	RegisterUSSDRoutes(app, ussd.NewHandler(engine, sessions))

	return session.NewReaper(sessions, d.Cfg.ReaperInterval, d.Logger, m), nil
}
